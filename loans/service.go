package loans

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/guildworks/toolledger/ledger"
	"github.com/guildworks/toolledger/lookupcache"
)

const defaultNotifyTimeout = 5 * time.Second

// Service is the loan policy engine. It is the only writer of the lookup cache and the
// entry point for every ledger operation.
//
// Admission decisions are always made by the store; the cache is updated after the store
// changed, either by patching the single tool that changed or by a full reload.
type Service struct {
	store            Store
	cache            *lookupcache.Cache
	clock            Clock
	labels           LabelSource
	notifier         Notifier
	maxLoans         int
	allToken         string
	notifyTimeout    time.Duration
	logger           ledger.Logger
	contextualLogger ledger.ContextualLogger
	metricsCollector ledger.MetricsCollector
	tracingCollector ledger.TracingCollector

	// syncMu serializes cache updates, each of which re-reads the store, so the cache
	// converges to the store regardless of the order in which concurrent operations finish.
	syncMu     sync.Mutex
	cacheStale atomic.Bool
}

// NewService creates a Service on top of the given store.
// Call Start before serving suggestions so the cache is populated.
func NewService(store Store, options ...Option) (*Service, error) {
	if store == nil {
		return nil, ErrNilStore
	}

	s := &Service{
		store:         store,
		clock:         ClockFunc(time.Now),
		maxLoans:      ledger.DefaultMaxLoans,
		allToken:      DefaultReturnAllToken,
		notifyTimeout: defaultNotifyTimeout,
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	if s.cache == nil {
		s.cache = lookupcache.New()
	}

	return s, nil
}

// Start performs the initial full cache load.
func (s *Service) Start(ctx context.Context) error {
	return s.Refresh(ctx)
}

// Refresh reloads the whole cache from the store.
func (s *Service) Refresh(ctx context.Context) error {
	observer, ctx := s.startOperation(ctx, operationRefresh)

	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	if err := s.reloadLocked(ctx); err != nil {
		observer.finishError(err)
		return err
	}

	observer.finishSuccess(logAttrToolCount, s.cache.Len())

	return nil
}

// MaxLoans returns the configured cap of active loans per holder.
func (s *Service) MaxLoans() int {
	return s.maxLoans
}

// ReturnAllToken returns the configured return-all token.
func (s *Service) ReturnAllToken() string {
	return s.allToken
}

// Suggestions returns the read-only completion surface of the cache.
func (s *Service) Suggestions() lookupcache.Suggester {
	return s.cache
}

// syncCache brings the cache up to date after the given tools changed in the store.
// One changed tool is patched; more than one triggers a full reload.
// Failures are logged and leave the cache marked stale, so that the next sync reloads.
func (s *Service) syncCache(ctx context.Context, changed []ledger.ToolKey) {
	switch len(changed) {
	case 0:
		return
	case 1:
		s.patchCache(ctx, changed[0])
	default:
		s.reloadCache(ctx)
	}
}

func (s *Service) reloadCache(ctx context.Context) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	if err := s.reloadLocked(ctx); err != nil {
		s.logWarn(ctx, logMsgCacheSyncFailed, logAttrError, err.Error())
	}
}

func (s *Service) patchCache(ctx context.Context, key ledger.ToolKey) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	if s.cacheStale.Load() {
		if err := s.reloadLocked(ctx); err != nil {
			s.logWarn(ctx, logMsgCacheSyncFailed, logAttrError, err.Error())
		}

		return
	}

	tool, found, err := s.store.Status(ledger.WithStrongConsistency(ctx), key)
	if err != nil {
		s.cacheStale.Store(true)
		s.recordCacheSync(ctx, cacheSyncPatch, statusError)
		s.logWarn(ctx, logMsgCacheSyncFailed, logAttrError, err.Error())

		return
	}

	var loan *ledger.Loan
	if l, onLoan := tool.Loan(); onLoan {
		loan = &l
	}

	if !found || !s.cache.Patch(key, loan) {
		if reloadErr := s.reloadLocked(ctx); reloadErr != nil {
			s.logWarn(ctx, logMsgCacheSyncFailed, logAttrError, reloadErr.Error())
		}

		return
	}

	s.recordCacheSync(ctx, cacheSyncPatch, statusSuccess)
}

// reloadLocked reloads the cache; syncMu must be held.
func (s *Service) reloadLocked(ctx context.Context) error {
	tools, err := s.store.ListAll(ledger.WithStrongConsistency(ctx))
	if err != nil {
		s.cacheStale.Store(true)
		s.recordCacheSync(ctx, cacheSyncReload, statusError)

		return err
	}

	s.cache.Reload(tools)
	s.cacheStale.Store(false)
	s.recordCacheSync(ctx, cacheSyncReload, statusSuccess)

	return nil
}
