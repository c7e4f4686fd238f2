package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quillsync/quillsync/internal/model"
)

func tenantsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenants",
		Short: "Manage tenants",
	}
	cmd.AddCommand(tenantsAddCmd())
	cmd.AddCommand(tenantsListCmd())
	return cmd
}

func tenantsAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <tenant-id>",
		Short: "Add or update a tenant",
		Args:  cobra.ExactArgs(1),
		RunE:  runTenantsAdd,
	}

	cmd.Flags().String("domain", "", "provider domain (TMDB, GBook, GoCardless, backup)")
	cmd.Flags().String("token", "", "workspace integration token")
	_ = cmd.MarkFlagRequired("domain")
	_ = cmd.MarkFlagRequired("token")

	return cmd
}

func runTenantsAdd(cmd *cobra.Command, args []string) error {
	domain, _ := cmd.Flags().GetString("domain")
	token, _ := cmd.Flags().GetString("token")

	store, err := openTenantStore()
	if err != nil {
		return fmt.Errorf("failed to open tenant database: %w", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.Migrate(cmd.Context()); err != nil {
		return fmt.Errorf("failed to migrate tenant database: %w", err)
	}

	tenant := &model.Tenant{
		ID:             args[0],
		Domain:         domain,
		WorkspaceToken: token,
	}
	if err := store.SaveTenant(cmd.Context(), tenant); err != nil {
		return err
	}

	fmt.Println(successStyle.Render("✓ Saved tenant " + tenant.ID))
	return nil
}

func tenantsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured tenants",
		RunE:  runTenantsList,
	}
	return cmd
}

func runTenantsList(cmd *cobra.Command, _ []string) error {
	store, err := openTenantStore()
	if err != nil {
		return fmt.Errorf("failed to open tenant database: %w", err)
	}
	defer func() { _ = store.Close() }()

	tenants, err := store.ListConfiguredTenants(cmd.Context())
	if err != nil {
		return err
	}
	if len(tenants) == 0 {
		fmt.Println(subtleStyle.Render("No configured tenants."))
		return nil
	}

	fmt.Println(headerStyle.Render("Configured tenants"))
	for _, tenant := range tenants {
		fmt.Printf("  %s  %s\n", tenant.ID, subtleStyle.Render(tenant.Domain))
	}
	return nil
}
