package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"subscription-commerce/internal/domain"
	"subscription-commerce/internal/domain/ports/repository"
	"subscription-commerce/internal/usecase"
)

// CaptureReconciler periodically scans for stale pending contracts that
// already carry a provider reference and re-drives the capture. This covers
// the caller that timed out after the provider charge went through, or a
// process crash mid-pipeline.
type CaptureReconciler struct {
	uc         usecase.CaptureUseCase
	contracts  repository.ContractRepository
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old a pending contract must be to retry
	log        *zerolog.Logger
}

func NewCaptureReconciler(uc usecase.CaptureUseCase, contracts repository.ContractRepository, interval, staleAfter time.Duration, logger *zerolog.Logger) *CaptureReconciler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 15 * time.Minute
	}
	return &CaptureReconciler{uc: uc, contracts: contracts, interval: interval, staleAfter: staleAfter, log: logger}
}

func (w *CaptureReconciler) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *CaptureReconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	pending, err := w.contracts.ListPendingOlderThan(ctx, repository.NoTX, cutoff, 200)
	if err != nil {
		w.log.Error().Err(err).Msg("capture-reconciler: list pending failed")
		return
	}
	for _, c := range pending {
		req := usecase.OrderRequest{ContractID: c.ID}
		_, err := w.uc.Capture(ctx, c.Provider, c.ProviderRef, req)
		switch {
		case err == nil:
			w.log.Info().Str("contract_id", c.ID).Msg("capture-reconciler: reconciled")
		case errors.Is(err, domain.ErrGatewayUnavailable):
			// Still settling or provider down; next tick retries.
			continue
		case errors.Is(err, domain.ErrPaymentDeclined):
			w.log.Info().Str("contract_id", c.ID).Msg("capture-reconciler: contract cancelled on decline")
		default:
			w.log.Error().Err(err).Str("contract_id", c.ID).Msg("capture-reconciler: capture failed")
		}
	}
}
