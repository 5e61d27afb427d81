package main

import (
	"fmt"
	"io"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/guildworks/toolledger/ledger"
	"github.com/guildworks/toolledger/loans"
)

const displayTimeLayout = "2006-01-02 15:04"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func writeJSON(out io.Writer, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, string(data))

	return err
}

type toolView struct {
	Category   string `json:"category"`
	Name       string `json:"name"`
	HolderID   string `json:"holder_id,omitempty"`
	Holder     string `json:"holder,omitempty"`
	BorrowedAt string `json:"borrowed_at,omitempty"`
}

type failureView struct {
	Category string `json:"category"`
	Name     string `json:"name"`
	Reason   string `json:"reason"`
}

type warningView struct {
	Category string `json:"category"`
	Reason   string `json:"reason"`
}

type borrowView struct {
	HolderID   string        `json:"holder_id"`
	BorrowedAt string        `json:"borrowed_at"`
	Succeeded  []toolView    `json:"succeeded"`
	Failed     []failureView `json:"failed"`
}

type returnView struct {
	Succeeded []toolView    `json:"succeeded"`
	Failed    []failureView `json:"failed"`
	Warnings  []warningView `json:"warnings"`
}

type revokeView struct {
	Category  string    `json:"category"`
	Name      string    `json:"name"`
	Revoked   bool      `json:"revoked"`
	Reason    string    `json:"reason,omitempty"`
	Previous  *toolView `json:"previous,omitempty"`
	Notified  bool      `json:"notified"`
	NotifyErr string    `json:"notify_error,omitempty"`
}

type snapshotRowView struct {
	Name       string `json:"name"`
	Holder     string `json:"holder,omitempty"`
	BorrowedAt string `json:"borrowed_at,omitempty"`
}

type presenter struct {
	location *time.Location
}

func (p presenter) formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.In(p.location).Format(displayTimeLayout)
}

func (p presenter) tool(tool ledger.Tool) toolView {
	return toolView{
		Category:   tool.Key.Category,
		Name:       tool.Key.Name,
		HolderID:   tool.HolderID,
		Holder:     tool.Label(),
		BorrowedAt: p.formatTime(tool.BorrowedAt),
	}
}

func (p presenter) tools(tools []ledger.Tool) []toolView {
	views := make([]toolView, 0, len(tools))
	for _, tool := range tools {
		views = append(views, p.tool(tool))
	}

	return views
}

func (p presenter) keys(keys []ledger.ToolKey) []toolView {
	views := make([]toolView, 0, len(keys))
	for _, key := range keys {
		views = append(views, toolView{Category: key.Category, Name: key.Name})
	}

	return views
}

func (p presenter) failures(failures []loans.Failure) []failureView {
	views := make([]failureView, 0, len(failures))
	for _, failure := range failures {
		views = append(views, failureView{
			Category: failure.Key.Category,
			Name:     failure.Key.Name,
			Reason:   failure.Reason.String(),
		})
	}

	return views
}

func (p presenter) borrow(result loans.BorrowResult) borrowView {
	return borrowView{
		HolderID:   result.Holder.ID,
		BorrowedAt: p.formatTime(result.BorrowedAt),
		Succeeded:  p.keys(result.Succeeded),
		Failed:     p.failures(result.Failed),
	}
}

func (p presenter) returned(result loans.ReturnResult) returnView {
	warnings := make([]warningView, 0, len(result.Warnings))
	for _, warning := range result.Warnings {
		warnings = append(warnings, warningView{Category: warning.Category, Reason: warning.Reason.String()})
	}

	return returnView{
		Succeeded: p.keys(result.Succeeded),
		Failed:    p.failures(result.Failed),
		Warnings:  warnings,
	}
}

func (p presenter) revoke(result loans.RevokeResult) revokeView {
	view := revokeView{
		Category: result.Key.Category,
		Name:     result.Key.Name,
		Revoked:  result.Revoked,
		Reason:   result.Reason.String(),
		Notified: result.Notified,
	}

	if result.Revoked {
		previous := p.tool(ledger.Tool{
			Key:         result.Key,
			HolderID:    result.PreviousLoan.HolderID,
			HolderName:  result.PreviousLoan.HolderName,
			HolderLabel: result.PreviousLoan.HolderLabel,
			BorrowedAt:  result.PreviousLoan.BorrowedAt,
		})
		view.Previous = &previous
	}

	if result.NotifyErr != nil {
		view.NotifyErr = result.NotifyErr.Error()
	}

	return view
}

func (p presenter) snapshot(rows []loans.SnapshotRow) []snapshotRowView {
	views := make([]snapshotRowView, 0, len(rows))
	for _, row := range rows {
		views = append(views, snapshotRowView{
			Name:       row.Name,
			Holder:     row.HolderLabel,
			BorrowedAt: p.formatTime(row.BorrowedAt),
		})
	}

	return views
}

func (p presenter) loanReports(reports []loans.LoanReport) []toolView {
	views := make([]toolView, 0, len(reports))
	for _, report := range reports {
		views = append(views, toolView{
			Category:   report.Key.Category,
			Name:       report.Key.Name,
			HolderID:   report.HolderID,
			Holder:     report.HolderLabel,
			BorrowedAt: p.formatTime(report.BorrowedAt),
		})
	}

	return views
}
