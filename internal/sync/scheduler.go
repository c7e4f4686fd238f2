package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/quillsync/quillsync/internal/model"
	"github.com/quillsync/quillsync/internal/service"
)

// Scheduler runs periodic reconciliation passes over every configured
// tenant, strictly one tenant at a time.
type Scheduler struct {
	svc      *Service
	tenants  service.TenantStore
	logger   *slog.Logger
	interval time.Duration
}

// NewScheduler creates a scheduler that visits all configured tenants every
// interval.
func NewScheduler(svc *Service, tenants service.TenantStore, interval time.Duration) *Scheduler {
	return &Scheduler{
		svc:      svc,
		tenants:  tenants,
		logger:   slog.Default().With("component", "scheduler"),
		interval: interval,
	}
}

// Run executes one pass immediately, then one per interval until the
// context is canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce visits every configured tenant sequentially. Each tenant's pass
// runs to completion before the next tenant starts, and one tenant's
// failure never stops the rest.
func (s *Scheduler) RunOnce(ctx context.Context) {
	tenants, err := s.tenants.ListConfiguredTenants(ctx)
	if err != nil {
		s.logger.Error("Failed to list tenants", "error", err)
		return
	}

	s.logger.Info("Starting scheduled pass", "tenants", len(tenants))
	for _, tenant := range tenants {
		if ctx.Err() != nil {
			return
		}
		if err := s.syncTenant(ctx, tenant); err != nil {
			s.logger.Error("Tenant sync failed",
				"tenant_id", tenant.ID,
				"error", err)
		}
	}
	s.logger.Info("Scheduled pass done", "tenants", len(tenants))
}

// syncTenant drains one tenant's full pass, logging each progress message.
func (s *Scheduler) syncTenant(ctx context.Context, tenant model.Tenant) error {
	scope, err := s.svc.ScopeFor(ctx, tenant.ID)
	if err != nil {
		return err
	}

	provider, err := s.svc.ResolveProvider(ctx, scope)
	if err != nil {
		return err
	}

	for message, err := range provider.SyncAll(ctx, scope.Workspace, scope.Config) {
		if err != nil {
			return err
		}
		s.logger.Info(message, "tenant_id", tenant.ID)
	}
	return nil
}
