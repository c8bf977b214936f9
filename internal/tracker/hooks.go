package tracker

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

// BreakerSettings configures the circuit breaker guarding ledger writes from hooks.
type BreakerSettings struct {
	// FailureThreshold is the number of consecutive storage failures that opens the breaker.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before letting a trial call through.
	OpenTimeout time.Duration
}

// DefaultBreakerSettings returns the settings used when none are configured.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
	}
}

// Dispatcher is the entry point for file events raised by user-facing operations.
// Its methods never return errors: every failure is logged and reported as false
// so the triggering request is never blocked.
type Dispatcher struct {
	policy   FilterPolicy
	resolver NodeResolver
	store    LedgerStore
	logger   Logger
	clock    Clock
	observer Observer
	breaker  *gobreaker.CircuitBreaker[struct{}]
}

// NewDispatcher creates a Dispatcher with the provided dependencies.
func NewDispatcher(policy FilterPolicy, resolver NodeResolver, store LedgerStore, logger Logger, clock Clock, observer Observer, bs BreakerSettings) *Dispatcher {
	if bs.FailureThreshold == 0 {
		bs.FailureThreshold = DefaultBreakerSettings().FailureThreshold
	}
	if bs.OpenTimeout <= 0 {
		bs.OpenTimeout = DefaultBreakerSettings().OpenTimeout
	}

	d := &Dispatcher{
		policy:   policy,
		resolver: resolver,
		store:    store,
		logger:   logger,
		clock:    clock,
		observer: observer,
	}
	d.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "ledger-writes",
		MaxRequests: 1,
		Timeout:     bs.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= bs.FailureThreshold
		},
		// A caller giving up says nothing about the health of the store.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("ledger breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return d
}

// BreakerState returns the current state of the ledger write breaker.
func (d *Dispatcher) BreakerState() string {
	return d.breaker.State().String()
}

// OnEdit handles a file edit. It returns true when a change signal was recorded.
func (d *Dispatcher) OnEdit(ctx context.Context, ev FileEvent) (handled bool) {
	defer d.recoverHook(HookEdit, &handled)

	decision := d.policy.Evaluate(ev)
	if decision.Rejected() {
		d.logger.Info("edit event rejected", "reason", string(decision.Reason), "path", ev.Path, "user", ev.UserID, "client", string(ev.Client))
		d.observer.HookEvent(HookEdit, OutcomeRejected)
		return false
	}

	node, ok := d.resolve(HookEdit, ev.UserID, func() (*Node, error) {
		return d.resolver.ResolvePath(ctx, ev.UserID, ev.Path)
	}, "path", ev.Path)
	if !ok {
		return false
	}

	// Content on disk changed, so the extracted copy is stale.
	err := d.guard(ctx, func(ctx context.Context) error {
		return d.store.RecordEdit(ctx, node.ID, ev.UserID, DomainUserProfile, d.clock.Now())
	})
	if err != nil {
		d.logger.Error("recording edit failed", "file_id", node.ID, "user", ev.UserID, "error", err)
		d.observer.HookEvent(HookEdit, OutcomeFailed)
		return false
	}

	d.logger.Debug("edit recorded", "file_id", node.ID, "user", ev.UserID, "path", node.Path)
	d.observer.HookEvent(HookEdit, OutcomeHandled)
	return true
}

// OnFavorite handles a favorite being added or removed. Favorite toggling is an
// explicit user action, so the event filter does not apply.
func (d *Dispatcher) OnFavorite(ctx context.Context, userID string, fileID int64, caller FavoriteCaller) (handled bool) {
	defer d.recoverHook(HookFavorite, &handled)

	if caller != AddFavorite && caller != RemoveFavorite {
		d.logger.Warn("favorite event ignored: unknown caller", "caller", string(caller), "file_id", fileID, "user", userID)
		d.observer.HookEvent(HookFavorite, OutcomeSkipped)
		return false
	}

	node, ok := d.resolve(HookFavorite, userID, func() (*Node, error) {
		return d.resolver.ResolveID(ctx, userID, fileID)
	}, "file_id", fileID)
	if !ok {
		return false
	}

	err := d.guard(ctx, func(ctx context.Context) error {
		if caller == AddFavorite {
			return d.store.UpsertChanged(ctx, node.ID, userID, ReasonFavorite, d.clock.Now())
		}
		return d.store.DeleteChanged(ctx, node.ID, userID, ReasonFavorite)
	})
	if err != nil {
		d.logger.Error("recording favorite failed", "caller", string(caller), "file_id", node.ID, "user", userID, "error", err)
		d.observer.HookEvent(HookFavorite, OutcomeFailed)
		return false
	}

	d.logger.Debug("favorite recorded", "caller", string(caller), "file_id", node.ID, "user", userID)
	d.observer.HookEvent(HookFavorite, OutcomeHandled)
	return true
}

// resolve runs a resolver lookup and filters out missing nodes and directories.
func (d *Dispatcher) resolve(hook, userID string, lookup func() (*Node, error), args ...any) (*Node, bool) {
	node, err := lookup()
	if err != nil {
		args = append(args, "hook", hook, "user", userID, "error", err)
		if errors.Is(err, ErrNotFound) {
			d.logger.Info("event skipped: node not found", args...)
			d.observer.HookEvent(hook, OutcomeNotFound)
		} else {
			d.logger.Warn("event skipped: resolving node failed", args...)
			d.observer.HookEvent(hook, OutcomeFailed)
		}
		return nil, false
	}
	if node.IsDir {
		d.logger.Info("event skipped: not a file", "hook", hook, "user", userID, "path", node.Path)
		d.observer.HookEvent(hook, OutcomeSkipped)
		return nil, false
	}
	return node, true
}

// guard runs fn through the breaker so a failing store makes hooks fail fast.
// The write is detached from ctx cancellation: the file operation already
// happened, so a caller that hangs up must not lose its change signal.
func (d *Dispatcher) guard(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx = context.WithoutCancel(ctx)
	_, err := d.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func (d *Dispatcher) recoverHook(hook string, handled *bool) {
	if r := recover(); r != nil {
		d.logger.Error("hook panicked", "hook", hook, "panic", r)
		d.observer.HookEvent(hook, OutcomeFailed)
		*handled = false
	}
}
