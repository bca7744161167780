package reconcile

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/unjob-ai/backend/internal/models"
	"github.com/unjob-ai/backend/internal/notify"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

// --- noopTx satisfies pgx.Tx for test use; only Commit/Rollback are called. ---

type noopTx struct{}

func (noopTx) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }
func (noopTx) Commit(context.Context) error          { return nil }
func (noopTx) Rollback(context.Context) error        { return nil }
func (noopTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (noopTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (noopTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (noopTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (noopTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (noopTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (noopTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (noopTx) Conn() *pgx.Conn { return nil }

// --- Wallet store mock ---

type mockWallets struct {
	mu      sync.Mutex
	wallets map[uuid.UUID]*models.Wallet // by user id
	txns    []*models.WalletTransaction
}

func newMockWallets(ws ...*models.Wallet) *mockWallets {
	m := &mockWallets{wallets: make(map[uuid.UUID]*models.Wallet)}
	for _, w := range ws {
		cp := *w
		m.wallets[w.UserID] = &cp
	}
	return m
}

func (m *mockWallets) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }

func (m *mockWallets) GetForUpdateTx(_ context.Context, _ pgx.Tx, userID uuid.UUID) (*models.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.wallets[userID]
	return &cp, nil
}

func (m *mockWallets) UpdateBalancesTx(_ context.Context, _ pgx.Tx, w *models.Wallet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *w
	m.wallets[w.UserID] = &cp
	return nil
}

func (m *mockWallets) CreateTransactionTx(_ context.Context, _ pgx.Tx, t *models.WalletTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.txns = append(m.txns, &cp)
	return nil
}

func (m *mockWallets) ListUserIDs(context.Context) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for id := range m.wallets {
		ids = append(ids, id)
	}
	return ids, nil
}

// --- Ledger sums mock ---

type mockLedger struct {
	gross       map[uuid.UUID]int64
	withdrawals map[uuid.UUID]int64
}

func (m *mockLedger) SumCompletedEarnings(_ context.Context, payee uuid.UUID) (int64, error) {
	return m.gross[payee], nil
}

func (m *mockLedger) SumActiveWithdrawals(_ context.Context, payer uuid.UUID) (int64, error) {
	return m.withdrawals[payer], nil
}

// --- User stats mock ---

type mockUsers struct {
	mu  sync.Mutex
	set map[uuid.UUID]int64
}

func (m *mockUsers) SetEarningsTx(_ context.Context, _ pgx.Tx, id uuid.UUID, totalEarningsPaise int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.set == nil {
		m.set = make(map[uuid.UUID]int64)
	}
	m.set[id] = totalEarningsPaise
	return nil
}

// --- Notifier mock ---

type mockNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (m *mockNotifier) Notify(_ context.Context, e notify.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

// ---------------------------------------------------------------------------
// 1. TestReconcile_CorrectsDrift
// ---------------------------------------------------------------------------

// A manual settlement that missed the wallet: the ledger says 9,000 rupees
// earned, the wallet holds 3,000. Reconciliation credits the 6,000 gap.
func TestReconcile_CorrectsDrift(t *testing.T) {
	userID := uuid.New()
	wallets := newMockWallets(&models.Wallet{ID: uuid.New(), UserID: userID, BalancePaise: 3000_00, TotalEarnedPaise: 3000_00})
	ledger := &mockLedger{gross: map[uuid.UUID]int64{userID: 9000_00}}
	users := &mockUsers{}
	notifier := &mockNotifier{}
	svc := NewService(wallets, ledger, users, notifier, nil)

	res, err := svc.Reconcile(context.Background(), userID)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !res.Changed {
		t.Fatal("drifted wallet should be corrected")
	}
	if res.DeltaPaise != 6000_00 {
		t.Errorf("delta: got %d, want %d", res.DeltaPaise, 6000_00)
	}

	w := wallets.wallets[userID]
	if w.BalancePaise != 9000_00 {
		t.Errorf("balance: got %d, want %d", w.BalancePaise, 9000_00)
	}
	if w.TotalEarnedPaise != 9000_00 {
		t.Errorf("total earned: got %d, want %d", w.TotalEarnedPaise, 9000_00)
	}

	// A single synthetic credit covers the gap.
	if len(wallets.txns) != 1 {
		t.Fatalf("sync transactions: got %d, want 1", len(wallets.txns))
	}
	syncTx := wallets.txns[0]
	if syncTx.Type != models.WalletTxCredit || syncTx.AmountPaise != 6000_00 {
		t.Errorf("sync transaction: type %q amount %d", syncTx.Type, syncTx.AmountPaise)
	}
	if !syncTx.Metadata.SyncTransaction {
		t.Error("sync transaction should be flagged as such")
	}
	if syncTx.Metadata.BalanceBeforePaise != 3000_00 || syncTx.Metadata.BalanceAfterPaise != 9000_00 {
		t.Errorf("sync metadata: before %d after %d", syncTx.Metadata.BalanceBeforePaise, syncTx.Metadata.BalanceAfterPaise)
	}
	if syncTx.ReferencePayment != nil {
		t.Error("sync transaction must not reference a payment")
	}

	// Stats mirror the corrected balance; the user is told.
	if got := users.set[userID]; got != 9000_00 {
		t.Errorf("stats set: got %d, want %d", got, 9000_00)
	}
	if len(notifier.events) != 1 || notifier.events[0].Type != models.NotifyWalletSynced {
		t.Errorf("notifications: %+v", notifier.events)
	}
}

// ---------------------------------------------------------------------------
// 2. TestReconcile_DebitsOverfundedWallet
// ---------------------------------------------------------------------------

func TestReconcile_DebitsOverfundedWallet(t *testing.T) {
	userID := uuid.New()
	wallets := newMockWallets(&models.Wallet{ID: uuid.New(), UserID: userID, BalancePaise: 9000_00, TotalEarnedPaise: 9000_00})
	ledger := &mockLedger{
		gross:       map[uuid.UUID]int64{userID: 9000_00},
		withdrawals: map[uuid.UUID]int64{userID: 2000_00},
	}
	svc := NewService(wallets, ledger, &mockUsers{}, nil, nil)

	res, err := svc.Reconcile(context.Background(), userID)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !res.Changed || res.DeltaPaise != -2000_00 {
		t.Fatalf("result: %+v", res)
	}
	if got := wallets.wallets[userID].BalancePaise; got != 7000_00 {
		t.Errorf("balance: got %d, want %d", got, 7000_00)
	}
	if got := wallets.txns[0].Type; got != models.WalletTxDebit {
		t.Errorf("sync transaction type: got %q, want debit", got)
	}
}

// ---------------------------------------------------------------------------
// 3. TestReconcile_WithinToleranceNoOp
// ---------------------------------------------------------------------------

func TestReconcile_WithinToleranceNoOp(t *testing.T) {
	userID := uuid.New()
	wallets := newMockWallets(&models.Wallet{ID: uuid.New(), UserID: userID, BalancePaise: 9000_40, TotalEarnedPaise: 9000_40})
	ledger := &mockLedger{gross: map[uuid.UUID]int64{userID: 9000_00}}
	notifier := &mockNotifier{}
	svc := NewService(wallets, ledger, &mockUsers{}, notifier, nil)

	res, err := svc.Reconcile(context.Background(), userID)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Changed {
		t.Error("40 paise of drift is within tolerance")
	}
	if len(wallets.txns) != 0 {
		t.Errorf("no sync transaction expected, got %d", len(wallets.txns))
	}
	if len(notifier.events) != 0 {
		t.Errorf("no notification expected, got %d", len(notifier.events))
	}
}

// ---------------------------------------------------------------------------
// 4. TestReconcileAll
// ---------------------------------------------------------------------------

func TestReconcileAll(t *testing.T) {
	drifted := uuid.New()
	healthy := uuid.New()
	wallets := newMockWallets(
		&models.Wallet{ID: uuid.New(), UserID: drifted, BalancePaise: 1000_00},
		&models.Wallet{ID: uuid.New(), UserID: healthy, BalancePaise: 5000_00},
	)
	ledger := &mockLedger{gross: map[uuid.UUID]int64{
		drifted: 4000_00,
		healthy: 5000_00,
	}}
	svc := NewService(wallets, ledger, &mockUsers{}, nil, nil)

	corrected, err := svc.ReconcileAll(context.Background())
	if err != nil {
		t.Fatalf("ReconcileAll: %v", err)
	}
	if corrected != 1 {
		t.Errorf("corrected: got %d, want 1", corrected)
	}
	if got := wallets.wallets[drifted].BalancePaise; got != 4000_00 {
		t.Errorf("drifted balance: got %d, want %d", got, 4000_00)
	}
	if got := wallets.wallets[healthy].BalancePaise; got != 5000_00 {
		t.Errorf("healthy balance: got %d, want %d", got, 5000_00)
	}
}
