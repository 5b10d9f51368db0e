package sched

import (
	"context"
	"sync"
	"time"

	"telegram-payment-links/internal/infra/metrics"
	"telegram-payment-links/internal/usecase"

	"github.com/rs/zerolog"
)

// PassResult summarizes one reconciliation sweep.
type PassResult struct {
	Processed int       `json:"processed"`
	Changed   int       `json:"changed"`
	Failed    int       `json:"failed"`
	At        time.Time `json:"at"`
}

// LinkReconciler periodically converges unresolved payment links with the provider.
// It runs one pass on Start and then one per interval. Passes never overlap.
type LinkReconciler struct {
	uc          usecase.PaymentLinkUseCase
	interval    time.Duration
	tickTimeout time.Duration
	batch       int
	log         *zerolog.Logger

	passMu sync.Mutex

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	abort   context.CancelFunc
	done    chan struct{}
}

func NewLinkReconciler(uc usecase.PaymentLinkUseCase, interval, tickTimeout time.Duration, batch int, logger *zerolog.Logger) *LinkReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if tickTimeout <= 0 {
		tickTimeout = interval
	}
	if batch <= 0 {
		batch = 500
	}
	recLog := logger.With().Str("component", "LinkReconciler").Logger()
	return &LinkReconciler{
		uc:          uc,
		interval:    interval,
		tickTimeout: tickTimeout,
		batch:       batch,
		log:         &recLog,
	}
}

// Start launches the loop in a background goroutine. Calling Start twice has no effect.
func (r *LinkReconciler) Start(parent context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	r.running = true
	r.stop = make(chan struct{})
	r.abort = cancel
	r.done = make(chan struct{})

	go r.loop(ctx, r.stop, r.done)
}

func (r *LinkReconciler) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	r.log.Info().Dur("interval", r.interval).Msg("Starting link reconciler")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.tick(ctx)
	for {
		select {
		case <-stop:
			r.log.Info().Msg("Stopping link reconciler")
			return
		case <-ctx.Done():
			r.log.Info().Msg("link reconciler context cancelled; stopping")
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *LinkReconciler) tick(ctx context.Context) {
	tickCtx, cancel := context.WithTimeout(ctx, r.tickTimeout)
	defer cancel()
	if _, err := r.RunOnce(tickCtx); err != nil {
		r.log.Error().Err(err).Msg("reconcile pass failed")
	}
}

// Stop stops scheduling new passes and waits for the in-flight one. When ctx
// expires first, the in-flight pass is aborted and ctx.Err() is returned.
func (r *LinkReconciler) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	stop, abort, done := r.stop, r.abort, r.done
	r.mu.Unlock()

	close(stop)
	select {
	case <-done:
		abort()
		return nil
	case <-ctx.Done():
		abort()
		<-done
		r.log.Warn().Msg("in-flight reconcile pass aborted")
		return ctx.Err()
	}
}

// RunOnce performs a single sweep. Each link is reconciled in its own
// transaction; a failed link is counted and the sweep continues.
func (r *LinkReconciler) RunOnce(ctx context.Context) (res PassResult, err error) {
	r.passMu.Lock()
	defer r.passMu.Unlock()

	start := time.Now()
	res.At = start.UTC()
	defer func() {
		metrics.ObserveReconcilePass(err, time.Since(start))
	}()

	links, err := r.uc.ListUnresolved(ctx, r.batch)
	if err != nil {
		return res, err
	}
	for _, l := range links {
		if err := ctx.Err(); err != nil {
			r.log.Warn().Int("processed", res.Processed).Int("remaining", len(links)-res.Processed).Msg("reconcile pass interrupted")
			return res, err
		}
		outcome, recErr := r.uc.ReconcileLink(ctx, l.ProviderLinkID)
		res.Processed++
		metrics.IncReconcileLink(string(outcome))
		switch outcome {
		case usecase.OutcomeUpdated, usecase.OutcomeExpiredFallback:
			res.Changed++
		case usecase.OutcomeFailed:
			res.Failed++
			r.log.Warn().Err(recErr).Str("link_id", l.ID).Msg("reconcile link failed")
		}
	}

	r.log.Info().
		Int("processed", res.Processed).
		Int("changed", res.Changed).
		Int("failed", res.Failed).
		Time("at", res.At).
		Dur("took", time.Since(start)).
		Msg("reconcile pass finished")
	return res, nil
}
