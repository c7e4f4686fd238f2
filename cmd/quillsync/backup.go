package main

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/quillsync/quillsync/internal/backup"
	"github.com/quillsync/quillsync/internal/sync"
)

func backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Archive every configured tenant's workspace",
		Long: `Walk each configured tenant's workspace into a compressed archive and
store it in the configured sink, one tenant at a time.`,
		RunE: runBackup,
	}
	return cmd
}

func runBackup(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := openTenantStore()
	if err != nil {
		return fmt.Errorf("failed to open tenant database: %w", err)
	}
	defer func() { _ = store.Close() }()

	opts, err := serviceOptions()
	if err != nil {
		return err
	}
	svc := sync.NewService(store, opts)

	tenants, err := store.ListConfiguredTenants(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tenants: %w", err)
	}
	if len(tenants) == 0 {
		fmt.Println(subtleStyle.Render("No configured tenants."))
		return nil
	}

	bar := progressbar.NewOptions(len(tenants),
		progressbar.OptionSetWriter(cmd.OutOrStdout()),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Backing up tenants..."),
	)

	failures := 0
	for _, tenant := range tenants {
		if err := backupTenant(cmd, svc, tenant.ID); err != nil {
			failures++
			fmt.Println(errorStyle.Render(fmt.Sprintf("✗ %s: %v", tenant.ID, err)))
		}
		_ = bar.Add(1)
	}
	fmt.Println()

	if failures > 0 {
		return fmt.Errorf("%d of %d backup(s) failed", failures, len(tenants))
	}
	fmt.Println(successStyle.Render(fmt.Sprintf("✓ Backed up %d tenant(s)", len(tenants))))
	return nil
}

func backupTenant(cmd *cobra.Command, svc *sync.Service, tenantID string) error {
	ctx := cmd.Context()

	scope, err := svc.ScopeFor(ctx, tenantID)
	if err != nil {
		return err
	}

	provider := backup.NewProvider(scope.Archives)
	for _, err := range provider.SyncAll(ctx, scope.Workspace, scope.Config) {
		if err != nil {
			return err
		}
	}

	link, err := provider.Link(ctx)
	if err != nil {
		return err
	}
	fmt.Println(subtleStyle.Render(fmt.Sprintf("  %s → %s", tenantID, link)))
	return nil
}
