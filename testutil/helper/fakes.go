package helper

import (
	"context"
	"sync"
	"time"

	"github.com/guildworks/toolledger/ledger"
	"github.com/guildworks/toolledger/loans"
)

// FakeClock is a loans.Clock that only moves when told to.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

// NotifierSpy records revocation notices and optionally fails or blocks.
type NotifierSpy struct {
	mu      sync.Mutex
	notices []loans.RevocationNotice
	err     error
	block   bool
}

func NewNotifierSpy() *NotifierSpy {
	return &NotifierSpy{}
}

// Failing makes every following notification fail with err.
func (n *NotifierSpy) Failing(err error) *NotifierSpy {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.err = err

	return n
}

// Blocking makes every following notification wait until its context is done.
func (n *NotifierSpy) Blocking() *NotifierSpy {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.block = true

	return n
}

func (n *NotifierSpy) NotifyRevoked(ctx context.Context, notice loans.RevocationNotice) error {
	n.mu.Lock()
	n.notices = append(n.notices, notice)
	err, block := n.err, n.block
	n.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}

	return err
}

func (n *NotifierSpy) Notices() []loans.RevocationNotice {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]loans.RevocationNotice(nil), n.notices...)
}

// LabelSourceStub serves preferred labels from a map.
type LabelSourceStub struct {
	Labels map[ledger.HolderID]string
	Err    error
}

func (s LabelSourceStub) PreferredLabel(_ context.Context, holderID ledger.HolderID) (string, error) {
	if s.Err != nil {
		return "", s.Err
	}

	return s.Labels[holderID], nil
}
