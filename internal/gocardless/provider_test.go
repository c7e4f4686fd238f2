package gocardless

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillsync/quillsync/internal/common"
	"github.com/quillsync/quillsync/internal/model"
	"github.com/quillsync/quillsync/internal/workspace"
)

type fakeBankAPI struct {
	transactions map[string][]model.Transaction
	details      map[string]AccountDetails
	failing      map[string]error
	tokenErr     error
}

func (f *fakeBankAPI) Token(_ context.Context, _, _ string) (string, error) {
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	return "token-1", nil
}

func (f *fakeBankAPI) AccountTransactions(_ context.Context, _, accountID string) ([]model.Transaction, error) {
	if err := f.failing[accountID]; err != nil {
		return nil, err
	}
	return f.transactions[accountID], nil
}

func (f *fakeBankAPI) AccountDetails(_ context.Context, _, accountID string) (AccountDetails, error) {
	if err := f.failing[accountID]; err != nil {
		return AccountDetails{}, err
	}
	return f.details[accountID], nil
}

type fakeWorkspace struct {
	existing   map[string]bool
	createErr  error
	created    []workspace.Page
	queryCalls [][]string
}

func (f *fakeWorkspace) ListPendingEntries(_ context.Context, _ *model.SyncConfig) ([]workspace.Item, error) {
	return nil, nil
}

func (f *fakeWorkspace) QueryByIdentifier(_ context.Context, cfg *model.SyncConfig, ids []string) ([]workspace.Item, error) {
	f.queryCalls = append(f.queryCalls, ids)

	var items []workspace.Item
	for _, id := range ids {
		if f.existing[id] {
			items = append(items, workspace.Item{
				ID:     "page-" + id,
				Object: workspace.ObjectPage,
				Properties: workspace.Properties{
					cfg.IdentifierField: workspace.RichTextProperty(id, ""),
				},
			})
		}
	}
	return items, nil
}

func (f *fakeWorkspace) CreateRecord(_ context.Context, _ string, page workspace.Page) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, page)
	return nil
}

func (f *fakeWorkspace) UpdateRecord(_ context.Context, _ string, _ workspace.Page) error {
	return nil
}

func (f *fakeWorkspace) ListContent(_ context.Context) iter.Seq2[workspace.Item, error] {
	return func(func(workspace.Item, error) bool) {}
}

type fakeSnapshots struct {
	stored  map[string][]model.Transaction
	writes  map[string][]model.Transaction
	readErr error
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{
		stored: make(map[string][]model.Transaction),
		writes: make(map[string][]model.Transaction),
	}
}

func (f *fakeSnapshots) Read(accountID string) ([]model.Transaction, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	snapshot, ok := f.stored[accountID]
	if !ok {
		return nil, errors.New("no snapshot")
	}
	return snapshot, nil
}

func (f *fakeSnapshots) Write(accountID string, transactions []model.Transaction) error {
	f.writes[accountID] = transactions
	return nil
}

func testConfig(accounts ...model.BankAccount) *model.SyncConfig {
	return &model.SyncConfig{
		DatabaseID:      "db-1",
		IdentifierField: "field-url",
		StatusField:     "field-status",
		TitleField:      "field-title",
		SecretID:        "sid",
		SecretKey:       "skey",
		BankAccounts:    accounts,
	}
}

func drain(t *testing.T, seq iter.Seq2[string, error]) ([]string, error) {
	t.Helper()

	var messages []string
	for msg, err := range seq {
		if err != nil {
			return messages, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func tx(id, creditor string) model.Transaction {
	return model.Transaction{
		ID:           id,
		CreditorName: creditor,
		BookingDate:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Amount:       -12.5,
	}
}

func TestSyncAllFullPass(t *testing.T) {
	api := &fakeBankAPI{
		transactions: map[string][]model.Transaction{
			"a1": {tx("t1", "Bakery"), tx("t2", "Metro")},
			"a2": {tx("t2", "Metro"), tx("t3", "Cinema")},
		},
		details: map[string]AccountDetails{
			"a1": {ID: "a1", Name: "Checking"},
			"a2": {ID: "a2", Name: "Savings"},
		},
	}
	ws := &fakeWorkspace{existing: map[string]bool{"t1": true}}
	snapshots := newFakeSnapshots()

	provider := NewProvider(api, snapshots)
	cfg := testConfig(
		model.BankAccount{Name: "Checking", AccountIDs: []string{"a1"}},
		model.BankAccount{Name: "Savings", AccountIDs: []string{"a2"}},
	)

	messages, err := drain(t, provider.SyncAll(context.Background(), ws, cfg))
	require.NoError(t, err)

	// The shared t2 is considered once, the already-present t1 is skipped.
	assert.Equal(t, []string{
		"Considering 3 transaction(s).",
		"Inserting 2 new transaction(s).",
		"Created Metro.",
		"Created Cinema.",
		"Transaction sync done.",
	}, messages)

	require.Len(t, ws.created, 2)
	identifier, ok := ws.created[0].Properties.Find(cfg.IdentifierField)
	require.True(t, ok)
	assert.Equal(t, "t2", identifier.PlainText())

	// Fresh fetches refresh the snapshots with the account name applied.
	require.Len(t, snapshots.writes["a1"], 2)
	assert.Equal(t, "Checking", snapshots.writes["a1"][0].Account)
}

func TestSyncAllSecondRunInsertsNothing(t *testing.T) {
	api := &fakeBankAPI{
		transactions: map[string][]model.Transaction{
			"a1": {tx("t1", "Bakery"), tx("t2", "Metro")},
		},
		details: map[string]AccountDetails{"a1": {ID: "a1", Name: "Checking"}},
	}
	ws := &fakeWorkspace{existing: map[string]bool{"t1": true, "t2": true}}

	provider := NewProvider(api, newFakeSnapshots())
	cfg := testConfig(model.BankAccount{Name: "Checking", AccountIDs: []string{"a1"}})

	messages, err := drain(t, provider.SyncAll(context.Background(), ws, cfg))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Considering 2 transaction(s).",
		"Inserting 0 new transaction(s).",
		"Transaction sync done.",
	}, messages)
	assert.Empty(t, ws.created)
}

func TestSyncAllFailedAccountFallsBackToSnapshot(t *testing.T) {
	api := &fakeBankAPI{
		transactions: map[string][]model.Transaction{
			"a1": {tx("t1", "Bakery")},
		},
		details: map[string]AccountDetails{"a1": {ID: "a1", Name: "Checking"}},
		failing: map[string]error{"a2": errors.New("upstream 500")},
	}
	snapshots := newFakeSnapshots()
	snapshots.stored["a2"] = []model.Transaction{tx("t9", "Old Grocer")}
	ws := &fakeWorkspace{}

	provider := NewProvider(api, snapshots)
	cfg := testConfig(
		model.BankAccount{Name: "Checking", AccountIDs: []string{"a1"}},
		model.BankAccount{Name: "Savings", AccountIDs: []string{"a2"}},
	)

	messages, err := drain(t, provider.SyncAll(context.Background(), ws, cfg))
	require.NoError(t, err)

	assert.Equal(t, "Considering 2 transaction(s).", messages[0])
	assert.Contains(t, messages, "Created Old Grocer.")

	// The failing account must not overwrite its last good snapshot.
	_, wrote := snapshots.writes["a2"]
	assert.False(t, wrote)
	assert.Len(t, snapshots.writes["a1"], 1)
}

func TestSyncAllFailedAccountWithoutSnapshotYieldsNothing(t *testing.T) {
	api := &fakeBankAPI{
		failing: map[string]error{"a1": errors.New("upstream 500")},
	}
	ws := &fakeWorkspace{}

	provider := NewProvider(api, newFakeSnapshots())
	cfg := testConfig(model.BankAccount{Name: "Checking", AccountIDs: []string{"a1"}})

	messages, err := drain(t, provider.SyncAll(context.Background(), ws, cfg))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Considering 0 transaction(s).",
		"Inserting 0 new transaction(s).",
		"Transaction sync done.",
	}, messages)
}

func TestSyncAllBatchesIdentifierQueries(t *testing.T) {
	var transactions []model.Transaction
	for i := range 250 {
		transactions = append(transactions, tx(fmt.Sprintf("t%03d", i), "Shop"))
	}
	api := &fakeBankAPI{
		transactions: map[string][]model.Transaction{"a1": transactions},
		details:      map[string]AccountDetails{"a1": {ID: "a1", Name: "Checking"}},
	}
	ws := &fakeWorkspace{existing: map[string]bool{}}
	for _, transaction := range transactions {
		ws.existing[transaction.ID] = true
	}

	provider := NewProvider(api, newFakeSnapshots())
	cfg := testConfig(model.BankAccount{Name: "Checking", AccountIDs: []string{"a1"}})

	_, err := drain(t, provider.SyncAll(context.Background(), ws, cfg))
	require.NoError(t, err)

	// 250 candidates means ceil(250/100) = 3 queries of 100, 100 and 50.
	require.Len(t, ws.queryCalls, 3)
	assert.Len(t, ws.queryCalls[0], 100)
	assert.Len(t, ws.queryCalls[1], 100)
	assert.Len(t, ws.queryCalls[2], 50)
	assert.Empty(t, ws.created)
}

func TestSyncAllInvalidConfigIsTerminal(t *testing.T) {
	provider := NewProvider(&fakeBankAPI{}, newFakeSnapshots())

	_, err := drain(t, provider.SyncAll(context.Background(), &fakeWorkspace{}, &model.SyncConfig{}))

	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestSyncAllTokenFailureIsTerminal(t *testing.T) {
	api := &fakeBankAPI{tokenErr: errors.New("401")}
	provider := NewProvider(api, newFakeSnapshots())
	cfg := testConfig(model.BankAccount{Name: "Checking", AccountIDs: []string{"a1"}})

	messages, err := drain(t, provider.SyncAll(context.Background(), &fakeWorkspace{}, cfg))

	require.Error(t, err)
	assert.Empty(t, messages)
	assert.Equal(t, "could not authenticate with the bank aggregator", common.UserMessage(err))
}

func TestSyncAllCreateFailureKeepsEarlierRecords(t *testing.T) {
	api := &fakeBankAPI{
		transactions: map[string][]model.Transaction{
			"a1": {tx("t1", "Bakery"), tx("t2", "Metro")},
		},
		details: map[string]AccountDetails{"a1": {ID: "a1", Name: "Checking"}},
	}
	ws := &fakeWorkspace{}
	provider := NewProvider(api, newFakeSnapshots())
	cfg := testConfig(model.BankAccount{Name: "Checking", AccountIDs: []string{"a1"}})

	// Let the first create succeed, then fail.
	createCalls := 0
	failing := &createFailingWorkspace{fakeWorkspace: ws, failFrom: 2, calls: &createCalls}

	messages, err := drain(t, provider.SyncAll(context.Background(), failing, cfg))

	require.Error(t, err)
	assert.Contains(t, common.UserMessage(err), "could not create record")
	assert.Contains(t, messages, "Created Bakery.")
	assert.Len(t, ws.created, 1)
}

type createFailingWorkspace struct {
	*fakeWorkspace
	failFrom int
	calls    *int
}

func (w *createFailingWorkspace) CreateRecord(ctx context.Context, databaseID string, page workspace.Page) error {
	*w.calls++
	if *w.calls >= w.failFrom {
		return errors.New("workspace 500")
	}
	return w.fakeWorkspace.CreateRecord(ctx, databaseID, page)
}

func TestSearchAndLoadRecordNotImplemented(t *testing.T) {
	provider := NewProvider(&fakeBankAPI{}, newFakeSnapshots())

	_, err := provider.Search(context.Background(), "anything")
	assert.ErrorIs(t, err, common.ErrNotImplemented)

	_, err = provider.LoadRecord(context.Background(), "t1", testConfig())
	assert.ErrorIs(t, err, common.ErrNotImplemented)
}
