package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quillsync/quillsync/internal/sync"
)

func searchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <tenant-id> <query>",
		Short: "Look up catalog suggestions for a tenant",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runSearch,
	}
	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	tenantID := args[0]
	query := strings.Join(args[1:], " ")

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

	suggestions, err := provider.Search(ctx, query)
	if err != nil {
		return err
	}
	if len(suggestions) == 0 {
		fmt.Println(subtleStyle.Render("No matches."))
		return nil
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("%d match(es)", len(suggestions))))
	for _, s := range suggestions {
		line := fmt.Sprintf("  %s (%s)", s.Title, s.ReleaseDate)
		if s.Subtitle != "" {
			line += subtleStyle.Render(" — " + s.Subtitle)
		}
		fmt.Println(line)
	}
	return nil
}
