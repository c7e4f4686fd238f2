package gocardless

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quillsync/quillsync/internal/common"
	"github.com/quillsync/quillsync/internal/model"
	"github.com/quillsync/quillsync/internal/service"
	"github.com/quillsync/quillsync/internal/workspace"
)

// identifierBatchSize caps the number of ids per workspace query, the
// upstream filter-expression size limit.
const identifierBatchSize = 100

// Provider reconciles aggregator transactions against the tenant's
// workspace records.
type Provider struct {
	api       BankAPI
	snapshots service.SnapshotStore
	logger    *slog.Logger
}

// NewProvider creates the transaction-aggregator provider.
func NewProvider(api BankAPI, snapshots service.SnapshotStore) *Provider {
	return &Provider{
		api:       api,
		snapshots: snapshots,
		logger:    slog.Default().With("component", "gocardless"),
	}
}

// Search is not supported for bank transactions; interactive lookup never
// applied to this variant.
func (p *Provider) Search(_ context.Context, _ string) ([]model.Suggestion, error) {
	return nil, fmt.Errorf("%w: search is not supported for bank transactions", common.ErrNotImplemented)
}

// LoadRecord is not supported; transactions only flow through SyncAll.
func (p *Provider) LoadRecord(_ context.Context, _ string, _ *model.SyncConfig) (*service.RecordPage, error) {
	return nil, fmt.Errorf("%w: single-record load is not supported for bank transactions", common.ErrNotImplemented)
}

// SyncAll runs a full reconciliation pass: fetch every linked account's
// transactions, deduplicate, diff against the records already present in
// the workspace, and create only the missing ones.
func (p *Provider) SyncAll(ctx context.Context, ws service.Workspace, cfg *model.SyncConfig) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if err := cfg.Validate(); err != nil {
			yield("", fmt.Errorf("%w: %v", common.ErrMissingConfig, err))
			return
		}

		token, err := p.api.Token(ctx, cfg.SecretID, cfg.SecretKey)
		if err != nil {
			yield("", common.NewUserError("could not authenticate with the bank aggregator", err))
			return
		}

		candidates := model.DeduplicateTransactions(p.fetchAllAccounts(ctx, token, cfg))

		if !yield(fmt.Sprintf("Considering %d transaction(s).", len(candidates)), nil) {
			return
		}

		existing, err := p.existingIdentifiers(ctx, ws, cfg, candidates)
		if err != nil {
			yield("", err)
			return
		}

		var toInsert []model.Transaction
		for _, tx := range candidates {
			if _, ok := existing[tx.ID]; !ok {
				toInsert = append(toInsert, tx)
			}
		}

		if !yield(fmt.Sprintf("Inserting %d new transaction(s).", len(toInsert)), nil) {
			return
		}

		for _, tx := range toInsert {
			title := tx.Title()
			if err := ws.CreateRecord(ctx, cfg.DatabaseID, p.transactionToPage(tx, title, cfg)); err != nil {
				// Records created earlier in this pass stay in place.
				yield("", common.NewUserError(fmt.Sprintf("could not create record for %s", title), err))
				return
			}
			if !yield(fmt.Sprintf("Created %s.", title), nil) {
				return
			}
		}

		yield("Transaction sync done.", nil)
	}
}

// fetchAllAccounts fetches every linked account as a batch, preserving
// account order in the result. A failed account degrades to its fallback
// snapshot and never aborts the pass.
func (p *Provider) fetchAllAccounts(ctx context.Context, token string, cfg *model.SyncConfig) []model.Transaction {
	accountIDs := cfg.AccountIDs()
	results := make([][]model.Transaction, len(accountIDs))

	var g errgroup.Group
	for i, accountID := range accountIDs {
		g.Go(func() error {
			results[i] = p.fetchAccount(ctx, token, accountID)
			return nil
		})
	}
	// Account failures are handled per account; the batch itself cannot fail.
	_ = g.Wait()

	var all []model.Transaction
	for _, transactions := range results {
		all = append(all, transactions...)
	}
	return all
}

// fetchAccount fetches one account's transactions and display name
// concurrently. On success the snapshot is refreshed; on failure the last
// snapshot is used instead.
func (p *Provider) fetchAccount(ctx context.Context, token, accountID string) []model.Transaction {
	var (
		transactions []model.Transaction
		details      AccountDetails
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		transactions, err = p.api.AccountTransactions(gctx, token, accountID)
		return err
	})
	g.Go(func() error {
		var err error
		details, err = p.api.AccountDetails(gctx, token, accountID)
		return err
	})

	if err := g.Wait(); err != nil {
		p.logger.Warn("Falling back to account snapshot",
			"account_id", accountID,
			"error", err)

		snapshot, readErr := p.snapshots.Read(accountID)
		if readErr != nil {
			p.logger.Error("No usable snapshot for account",
				"account_id", accountID,
				"error", readErr)
			return nil
		}
		return snapshot
	}

	for i := range transactions {
		transactions[i].Account = details.Name
	}

	// Snapshot writes happen on the success path only, so a later fallback
	// never reads data that itself came from a fallback.
	if err := p.snapshots.Write(accountID, transactions); err != nil {
		p.logger.Warn("Failed to write account snapshot",
			"account_id", accountID,
			"error", err)
	}

	return transactions
}

// existingIdentifiers queries the workspace for records matching the
// candidate transaction ids, at most 100 ids per query.
func (p *Provider) existingIdentifiers(ctx context.Context, ws service.Workspace, cfg *model.SyncConfig, candidates []model.Transaction) (map[string]struct{}, error) {
	ids := make([]string, 0, len(candidates))
	for _, tx := range candidates {
		ids = append(ids, tx.ID)
	}

	existing := make(map[string]struct{})
	for start := 0; start < len(ids); start += identifierBatchSize {
		end := min(start+identifierBatchSize, len(ids))

		items, err := ws.QueryByIdentifier(ctx, cfg, ids[start:end])
		if err != nil {
			return nil, common.NewUserError("could not query existing records", err)
		}
		for _, item := range items {
			if value, ok := item.Properties.Find(cfg.IdentifierField); ok {
				if id := value.PlainText(); id != "" {
					existing[id] = struct{}{}
				}
			}
		}
	}
	return existing, nil
}

// transactionToPage builds the workspace record for one transaction. Only
// mapped fields are written; the identifier and status fields are always
// present.
func (p *Provider) transactionToPage(tx model.Transaction, title string, cfg *model.SyncConfig) workspace.Page {
	page := workspace.Page{
		Properties: workspace.Properties{
			cfg.IdentifierField: workspace.RichTextProperty(tx.ID, ""),
			cfg.StatusField:     workspace.TimestampProperty(time.Now()),
		},
	}

	if cfg.TitleField != "" {
		page.Properties[cfg.TitleField] = workspace.TitleProperty(title)
	}
	if cfg.AccountField != "" && tx.Account != "" {
		page.Properties[cfg.AccountField] = workspace.RichTextProperty(tx.Account, "")
	}
	if cfg.AmountField != "" {
		page.Properties[cfg.AmountField] = workspace.NumberProperty(tx.Amount)
	}
	if cfg.BookingDateField != "" && !tx.BookingDate.IsZero() {
		page.Properties[cfg.BookingDateField] = workspace.DateProperty(tx.BookingDate)
	}
	if cfg.ValueDateField != "" && !tx.EffectiveValueDate().IsZero() {
		page.Properties[cfg.ValueDateField] = workspace.DateProperty(tx.EffectiveValueDate())
	}
	if cfg.ClassificationField != "" {
		categories := model.Classify(cfg.ClassificationRules, title)
		page.Properties[cfg.ClassificationField] = workspace.MultiSelectProperty(categories)
	}

	return page
}

// Ensure Provider implements the DataProvider contract.
var _ service.DataProvider = (*Provider)(nil)
