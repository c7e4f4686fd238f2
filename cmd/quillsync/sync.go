package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quillsync/quillsync/internal/sync"
)

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync <tenant-id>",
		Short: "Run one tenant's synchronization pass",
		Long: `Run a single tenant's full reconciliation pass in the foreground,
printing each progress message as the provider produces it.`,
		Args: cobra.ExactArgs(1),
		RunE: runSync,
	}
	return cmd
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	tenantID := args[0]

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

	scope, err := svc.ScopeFor(ctx, tenantID)
	if err != nil {
		return err
	}
	provider, err := svc.ResolveProvider(ctx, scope)
	if err != nil {
		return err
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("Syncing %s (%s)", tenantID, scope.Domain)))
	for message, err := range provider.SyncAll(ctx, scope.Workspace, scope.Config) {
		if err != nil {
			fmt.Println(errorStyle.Render("✗ " + err.Error()))
			return err
		}
		fmt.Println("  " + message)
	}
	fmt.Println(successStyle.Render("✓ Pass complete"))
	return nil
}
