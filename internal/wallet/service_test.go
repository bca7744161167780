package wallet

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/unjob-ai/backend/internal/models"
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

// --- In-memory wallet store ---

type refKey struct {
	walletID  uuid.UUID
	reference uuid.UUID
	txType    string
}

type mockStore struct {
	mu          sync.Mutex
	wallets     map[uuid.UUID]*models.Wallet // by user id
	txns        []*models.WalletTransaction
	byRef       map[refKey]*models.WalletTransaction
	createTxErr error
}

func newMockStore() *mockStore {
	return &mockStore{
		wallets: make(map[uuid.UUID]*models.Wallet),
		byRef:   make(map[refKey]*models.WalletTransaction),
	}
}

func (m *mockStore) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }

func (m *mockStore) GetOrCreate(_ context.Context, userID uuid.UUID) (*models.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getOrCreateLocked(userID), nil
}

func (m *mockStore) GetForUpdateTx(_ context.Context, _ pgx.Tx, userID uuid.UUID) (*models.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getOrCreateLocked(userID), nil
}

func (m *mockStore) getOrCreateLocked(userID uuid.UUID) *models.Wallet {
	if w, ok := m.wallets[userID]; ok {
		cp := *w
		return &cp
	}
	w := &models.Wallet{ID: uuid.New(), UserID: userID}
	m.wallets[userID] = w
	cp := *w
	return &cp
}

func (m *mockStore) UpdateBalancesTx(_ context.Context, _ pgx.Tx, w *models.Wallet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *w
	m.wallets[w.UserID] = &cp
	return nil
}

func (m *mockStore) CreateTransactionTx(_ context.Context, _ pgx.Tx, t *models.WalletTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createTxErr != nil {
		return m.createTxErr
	}
	if t.ReferencePayment != nil {
		k := refKey{t.WalletID, *t.ReferencePayment, t.Type}
		if _, exists := m.byRef[k]; exists {
			return ErrDuplicateReference
		}
		cp := *t
		m.byRef[k] = &cp
	}
	cp := *t
	m.txns = append(m.txns, &cp)
	return nil
}

func (m *mockStore) FindByReferenceTx(_ context.Context, _ pgx.Tx, walletID, reference uuid.UUID, txType string) (*models.WalletTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.byRef[refKey{walletID, reference, txType}]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (m *mockStore) ListRecent(_ context.Context, walletID uuid.UUID, limit int) ([]*models.WalletTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.WalletTransaction
	for i := len(m.txns) - 1; i >= 0 && len(out) < limit; i-- {
		if m.txns[i].WalletID == walletID {
			out = append(out, m.txns[i])
		}
	}
	return out, nil
}

func (m *mockStore) balance(userID uuid.UUID) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.wallets[userID]; ok {
		return w.BalancePaise
	}
	return 0
}

// --- Ledger sums mock ---

type mockSums struct {
	gross       int64
	withdrawals int64
}

func (m *mockSums) SumCompletedEarnings(context.Context, uuid.UUID) (int64, error) {
	return m.gross, nil
}
func (m *mockSums) SumActiveWithdrawals(context.Context, uuid.UUID) (int64, error) {
	return m.withdrawals, nil
}

// ---------------------------------------------------------------------------
// 1. Credit
// ---------------------------------------------------------------------------

func TestCredit(t *testing.T) {
	userID := uuid.New()
	payment := uuid.New()
	store := newMockStore()
	svc := NewService(store, &mockSums{}, nil)

	ctx := context.Background()
	res, err := svc.Credit(ctx, userID, 9000_00, payment, "Payment for gig work")
	if err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if res.AlreadyApplied {
		t.Error("first credit should not be AlreadyApplied")
	}
	if got := store.balance(userID); got != 9000_00 {
		t.Errorf("balance after credit: got %d, want %d", got, 9000_00)
	}
	if res.Transaction.Metadata.BalanceBeforePaise != 0 || res.Transaction.Metadata.BalanceAfterPaise != 9000_00 {
		t.Errorf("transaction metadata: before %d after %d", res.Transaction.Metadata.BalanceBeforePaise, res.Transaction.Metadata.BalanceAfterPaise)
	}

	// Same reference payment again: no double credit.
	res, err = svc.Credit(ctx, userID, 9000_00, payment, "Payment for gig work")
	if err != nil {
		t.Fatalf("repeat Credit: %v", err)
	}
	if !res.AlreadyApplied {
		t.Error("repeat credit should be AlreadyApplied")
	}
	if got := store.balance(userID); got != 9000_00 {
		t.Errorf("balance after repeat credit: got %d, want %d", got, 9000_00)
	}

	// Invalid amount.
	if _, err := svc.Credit(ctx, userID, 0, uuid.New(), ""); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got: %v", err)
	}
}

func TestCreditDuplicateInsertSurfaces(t *testing.T) {
	// The row lock serializes writers, so a unique-index hit on the
	// transaction insert means something bypassed the reference check. That
	// must fail the mutation, not report it as already applied.
	store := newMockStore()
	store.createTxErr = ErrDuplicateReference
	svc := NewService(store, &mockSums{}, nil)

	res, err := svc.Credit(context.Background(), uuid.New(), 1000_00, uuid.New(), "Payment for gig work")
	if !errors.Is(err, ErrDuplicateReference) {
		t.Fatalf("expected ErrDuplicateReference, got: %v", err)
	}
	if res != nil {
		t.Error("a failed credit should not return a result")
	}
}

// ---------------------------------------------------------------------------
// 2. Debit
// ---------------------------------------------------------------------------

func TestDebit(t *testing.T) {
	userID := uuid.New()
	store := newMockStore()
	svc := NewService(store, &mockSums{}, nil)
	ctx := context.Background()

	if _, err := svc.Credit(ctx, userID, 5000_00, uuid.New(), "seed"); err != nil {
		t.Fatalf("seed credit: %v", err)
	}

	// Overdraw fails before any mutation.
	if _, err := svc.Debit(ctx, userID, 6000_00, uuid.New(), "too much"); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got: %v", err)
	}
	if got := store.balance(userID); got != 5000_00 {
		t.Errorf("balance after failed debit: got %d, want %d", got, 5000_00)
	}

	withdrawalPayment := uuid.New()
	res, err := svc.Debit(ctx, userID, 2000_00, withdrawalPayment, "Withdrawal request")
	if err != nil {
		t.Fatalf("Debit: %v", err)
	}
	if got := store.balance(userID); got != 3000_00 {
		t.Errorf("balance after debit: got %d, want %d", got, 3000_00)
	}
	if res.Transaction.Type != models.WalletTxWithdrawal {
		t.Errorf("debit transaction type: got %q, want %q", res.Transaction.Type, models.WalletTxWithdrawal)
	}
	if res.Wallet.TotalWithdrawnPaise != 2000_00 {
		t.Errorf("total withdrawn: got %d, want %d", res.Wallet.TotalWithdrawnPaise, 2000_00)
	}

	// Same withdrawal payment again: nothing moves.
	res, err = svc.Debit(ctx, userID, 2000_00, withdrawalPayment, "Withdrawal request")
	if err != nil {
		t.Fatalf("repeat Debit: %v", err)
	}
	if !res.AlreadyApplied {
		t.Error("repeat debit should be AlreadyApplied")
	}
	if got := store.balance(userID); got != 3000_00 {
		t.Errorf("balance after repeat debit: got %d, want %d", got, 3000_00)
	}
}

// ---------------------------------------------------------------------------
// 3. Refund
// ---------------------------------------------------------------------------

func TestRefund(t *testing.T) {
	userID := uuid.New()
	store := newMockStore()
	svc := NewService(store, &mockSums{}, nil)
	ctx := context.Background()

	if _, err := svc.Credit(ctx, userID, 5000_00, uuid.New(), "seed"); err != nil {
		t.Fatalf("seed credit: %v", err)
	}
	withdrawalPayment := uuid.New()
	withdrawalID := uuid.New()
	if _, err := svc.Debit(ctx, userID, 2000_00, withdrawalPayment, "Withdrawal request"); err != nil {
		t.Fatalf("debit: %v", err)
	}

	refund := func() (*MutationResult, error) {
		return svc.inTx(ctx, func(tx pgx.Tx) (*MutationResult, error) {
			return svc.RefundTx(ctx, tx, userID, 2000_00, withdrawalPayment, withdrawalID, "Refund for failed withdrawal")
		})
	}

	res, err := refund()
	if err != nil {
		t.Fatalf("RefundTx: %v", err)
	}
	if got := store.balance(userID); got != 5000_00 {
		t.Errorf("balance after refund: got %d, want %d", got, 5000_00)
	}
	if res.Wallet.TotalWithdrawnPaise != 0 {
		t.Errorf("total withdrawn after refund: got %d, want 0", res.Wallet.TotalWithdrawnPaise)
	}
	if res.Transaction.Metadata.WithdrawalID == nil || *res.Transaction.Metadata.WithdrawalID != withdrawalID {
		t.Error("refund transaction should reference the withdrawal")
	}

	// Retried refund is a no-op.
	res, err = refund()
	if err != nil {
		t.Fatalf("repeat RefundTx: %v", err)
	}
	if !res.AlreadyApplied {
		t.Error("repeat refund should be AlreadyApplied")
	}
	if got := store.balance(userID); got != 5000_00 {
		t.Errorf("balance after repeat refund: got %d, want %d", got, 5000_00)
	}
}

// ---------------------------------------------------------------------------
// 4. Summary health
// ---------------------------------------------------------------------------

func TestSummaryDriftDetection(t *testing.T) {
	userID := uuid.New()
	store := newMockStore()
	sums := &mockSums{gross: 9000_00}
	svc := NewService(store, sums, nil)
	ctx := context.Background()

	// Wallet holds only 3000_00 against 9000_00 of completed earnings.
	if _, err := svc.Credit(ctx, userID, 3000_00, uuid.New(), "partial"); err != nil {
		t.Fatalf("credit: %v", err)
	}

	sum, err := svc.Summary(ctx, userID)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.SystemHealth.InSync {
		t.Error("drifted wallet should not report in sync")
	}
	if len(sum.SystemHealth.SyncIssues) == 0 {
		t.Fatal("expected sync issues")
	}
	if got := sum.SystemHealth.SyncIssues[0].MagnitudePaise; got != 6000_00 {
		t.Errorf("drift magnitude: got %d, want %d", got, 6000_00)
	}
}

func TestSummaryInSyncWithinTolerance(t *testing.T) {
	userID := uuid.New()
	store := newMockStore()
	sums := &mockSums{gross: 9000_50}
	svc := NewService(store, sums, nil)
	ctx := context.Background()

	if _, err := svc.Credit(ctx, userID, 9000_00, uuid.New(), "settlement"); err != nil {
		t.Fatalf("credit: %v", err)
	}

	sum, err := svc.Summary(ctx, userID)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if !sum.SystemHealth.InSync {
		t.Errorf("50 paise of drift is within tolerance, got issues: %v", sum.SystemHealth.SyncIssues)
	}
}

// ---------------------------------------------------------------------------
// 5. ExpectedBalance
// ---------------------------------------------------------------------------

func TestExpectedBalance(t *testing.T) {
	cases := []struct {
		gross, withdrawals, want int64
	}{
		{9000_00, 0, 9000_00},
		{9000_00, 2000_00, 7000_00},
		{1000_00, 3000_00, 0}, // floored, never negative
		{0, 0, 0},
	}
	for _, c := range cases {
		if got := ExpectedBalance(c.gross, c.withdrawals); got != c.want {
			t.Errorf("ExpectedBalance(%d, %d): got %d, want %d", c.gross, c.withdrawals, got, c.want)
		}
	}
}
