package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func givenConfigFile(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "toolledger.yaml")
	content := fmt.Sprintf(`engine: sqlite
sqlite_path: %s
labels_path: %s
table_name: tools
time_zone: Asia/Seoul
log_level: error
`, filepath.Join(dir, "ledger.db"), filepath.Join(dir, "labels.db"))

	require.NoError(t, os.WriteFile(path, []byte(content), 0o600), "error in arranging test data")

	return path
}

func run(t *testing.T, configFile string, args ...string) (string, error) {
	t.Helper()

	root := newRootCommand()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"--config", configFile}, args...))

	err := root.ExecuteContext(t.Context())

	return out.String(), err
}

func mustRun(t *testing.T, configFile string, args ...string) string {
	t.Helper()

	out, err := run(t, configFile, args...)
	require.NoError(t, err, "toolledger %v", args)

	return out
}

func decode[T any](t *testing.T, out string) T {
	t.Helper()

	var value T
	require.NoError(t, json.Unmarshal([]byte(out), &value), "output: %s", out)

	return value
}

func Test_Borrow_Status_Return_Round_Trip(t *testing.T) {
	// arrange
	cfg := givenConfigFile(t)
	added := decode[map[string]any](t, mustRun(t, cfg, "add-tool", "pick", "Alpha"))
	require.Equal(t, true, added["added"])

	// act
	borrowed := decode[borrowView](t, mustRun(t, cfg, "borrow", "--holder", "u1", "--name", "Alice", "pick/Alpha"))
	status := decode[toolView](t, mustRun(t, cfg, "status", "pick", "Alpha"))
	returned := decode[returnView](t, mustRun(t, cfg, "return", "--holder", "u1", "pick"))
	after := decode[toolView](t, mustRun(t, cfg, "status", "pick", "Alpha"))

	// assert
	assert.Equal(t, []toolView{{Category: "pick", Name: "Alpha"}}, borrowed.Succeeded)
	assert.Empty(t, borrowed.Failed)
	assert.Equal(t, "u1", status.HolderID)
	assert.Equal(t, "Alice", status.Holder)
	assert.NotEmpty(t, status.BorrowedAt)
	assert.Equal(t, []toolView{{Category: "pick", Name: "Alpha"}}, returned.Succeeded)
	assert.Empty(t, after.HolderID)
}

func Test_Borrow_When_An_Item_Fails_It_Prints_The_Result_And_Exits_With_Partial_Failure(t *testing.T) {
	// arrange
	cfg := givenConfigFile(t)
	mustRun(t, cfg, "add-tool", "pick", "Alpha")

	// act
	out, err := run(t, cfg, "borrow", "--holder", "u1", "pick/Alpha", "pick/Missing")

	// assert
	var exitErr exitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, exitCodePartialFailure, exitErr.code)

	result := decode[borrowView](t, out)
	assert.Len(t, result.Succeeded, 1)
	assert.Equal(t, []failureView{{Category: "pick", Name: "Missing", Reason: "not_found"}}, result.Failed)
}

func Test_Borrow_Rejects_Malformed_Tool_Arguments(t *testing.T) {
	cfg := givenConfigFile(t)

	_, err := run(t, cfg, "borrow", "--holder", "u1", "pick")

	assert.ErrorIs(t, err, errInvalidToolArg)
}

func Test_Revoke_Returns_The_Tool_And_Notifies_The_Holder(t *testing.T) {
	// arrange
	cfg := givenConfigFile(t)
	mustRun(t, cfg, "add-tool", "drill", "Makita")
	mustRun(t, cfg, "borrow", "--holder", "u1", "--name", "Alice", "drill/Makita")

	// act
	result := decode[revokeView](t, mustRun(t, cfg, "revoke", "drill", "Makita"))
	again := decode[revokeView](t, mustRun(t, cfg, "revoke", "drill", "Makita"))

	// assert
	assert.True(t, result.Revoked)
	assert.True(t, result.Notified)
	require.NotNil(t, result.Previous)
	assert.Equal(t, "u1", result.Previous.HolderID)
	assert.False(t, again.Revoked)
	assert.Equal(t, "no_active_loan", again.Reason)
}

func Test_Label_Set_Is_Snapshotted_Onto_New_Loans(t *testing.T) {
	// arrange
	cfg := givenConfigFile(t)
	mustRun(t, cfg, "add-tool", "pick", "Beta")
	mustRun(t, cfg, "label", "set", "u1", "Ally")

	// act
	mustRun(t, cfg, "borrow", "--holder", "u1", "--name", "Alice", "pick/Beta")
	snapshot := decode[[]snapshotRowView](t, mustRun(t, cfg, "snapshot", "pick"))
	labels := decode[[]map[string]any](t, mustRun(t, cfg, "label", "list"))

	// assert
	require.Len(t, snapshot, 1)
	assert.Equal(t, "Ally", snapshot[0].Holder)
	require.Len(t, labels, 1)
	assert.Equal(t, "Ally", labels[0]["label"])
}

func Test_Suggest_Reads_From_The_Lookup_Cache(t *testing.T) {
	// arrange
	cfg := givenConfigFile(t)
	mustRun(t, cfg, "add-tool", "pick", "Alpha")
	mustRun(t, cfg, "add-tool", "pick", "Beta")
	mustRun(t, cfg, "add-tool", "saw", "Gamma")
	mustRun(t, cfg, "borrow", "--holder", "u1", "pick/Alpha")

	// act
	categories := decode[[]string](t, mustRun(t, cfg, "suggest", "categories"))
	available := decode[[]string](t, mustRun(t, cfg, "suggest", "available", "--category", "pick"))
	held := decode[[]string](t, mustRun(t, cfg, "suggest", "holder-categories", "--holder", "u1"))
	none := decode[[]string](t, mustRun(t, cfg, "suggest", "held", "--category", "saw", "--holder", "u1"))

	// assert
	assert.Equal(t, []string{"pick", "saw"}, categories)
	assert.Equal(t, []string{"Beta"}, available)
	assert.Equal(t, []string{"pick"}, held)
	assert.Empty(t, none)
}

func Test_Remove_Tool_Is_Idempotent(t *testing.T) {
	// arrange
	cfg := givenConfigFile(t)
	mustRun(t, cfg, "add-tool", "pick", "Alpha")

	// act
	first := decode[map[string]any](t, mustRun(t, cfg, "remove-tool", "pick", "Alpha"))
	second := decode[map[string]any](t, mustRun(t, cfg, "remove-tool", "pick", "Alpha"))
	tools := decode[[]toolView](t, mustRun(t, cfg, "all-tools"))

	// assert
	assert.Equal(t, true, first["removed"])
	assert.Equal(t, false, second["removed"])
	assert.Empty(t, tools)
}

func Test_Status_When_Tool_Is_Unknown_It_Fails(t *testing.T) {
	cfg := givenConfigFile(t)

	_, err := run(t, cfg, "status", "pick", "Nope")

	var exitErr exitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, "not_found", exitErr.message)
}

func Test_Handler_Exposes_Metrics_And_Health(t *testing.T) {
	// arrange
	root := newRootCommand()
	opts := &cliOptions{configFile: givenConfigFile(t)}
	require.NoError(t, opts.load(root))

	a, err := openApp(context.Background(), opts, &bytes.Buffer{})
	require.NoError(t, err)
	t.Cleanup(a.close)

	_, err = a.service.AllTools(t.Context())
	require.NoError(t, err)

	// act
	metrics := httptest.NewRecorder()
	a.handler().ServeHTTP(metrics, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	health := httptest.NewRecorder()
	a.handler().ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	// assert
	assert.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), "loans_operation_calls_total")
	assert.Equal(t, http.StatusOK, health.Code)
}
