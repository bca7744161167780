package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/unjob-ai/backend/internal/models"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

// --- trackedTx satisfies pgx.Tx and records savepoint lifecycle. ---

type trackedTx struct {
	children   []*trackedTx
	committed  bool
	rolledBack bool
}

func (t *trackedTx) Begin(context.Context) (pgx.Tx, error) {
	child := &trackedTx{}
	t.children = append(t.children, child)
	return child, nil
}
func (t *trackedTx) Commit(context.Context) error   { t.committed = true; return nil }
func (t *trackedTx) Rollback(context.Context) error { t.rolledBack = true; return nil }
func (t *trackedTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *trackedTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (t *trackedTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (t *trackedTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *trackedTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (t *trackedTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (t *trackedTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *trackedTx) Conn() *pgx.Conn { return nil }

// --- In-memory notification store ---

type mockNotifyStore struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]*models.Notification
	createErr error
	lastTx    pgx.Tx
}

func newMockNotifyStore() *mockNotifyStore {
	return &mockNotifyStore{rows: make(map[uuid.UUID]*models.Notification)}
}

func (m *mockNotifyStore) Create(_ context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	cp := *n
	m.rows[n.ID] = &cp
	return nil
}

func (m *mockNotifyStore) CreateTx(ctx context.Context, tx pgx.Tx, n *models.Notification) error {
	m.mu.Lock()
	m.lastTx = tx
	m.mu.Unlock()
	return m.Create(ctx, n)
}

func (m *mockNotifyStore) GetByID(_ context.Context, id uuid.UUID) (*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.rows[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *n
	return &cp, nil
}

func (m *mockNotifyStore) MarkDelivered(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.rows[id]
	if !ok {
		return errors.New("not found")
	}
	now := time.Now()
	n.DeliveredAt = &now
	return nil
}

// ---------------------------------------------------------------------------
// NotifyTx savepoint behavior
// ---------------------------------------------------------------------------

func TestNotifyTxRunsInSavepoint(t *testing.T) {
	store := newMockNotifyStore()
	var enqueuedTx pgx.Tx
	insertTx := func(_ context.Context, tx pgx.Tx, _ DeliverArgs) error {
		enqueuedTx = tx
		return nil
	}
	n := NewNotifier(store, nil, insertTx, nil)

	outer := &trackedTx{}
	err := n.NotifyTx(context.Background(), outer, Event{
		Type:   models.NotifyPaymentReceived,
		UserID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("NotifyTx: %v", err)
	}
	if len(outer.children) != 1 {
		t.Fatalf("savepoints opened: got %d, want 1", len(outer.children))
	}
	sp := outer.children[0]
	if !sp.committed || sp.rolledBack {
		t.Errorf("savepoint committed=%v rolledBack=%v, want committed", sp.committed, sp.rolledBack)
	}
	if store.lastTx != pgx.Tx(sp) {
		t.Error("notification row should be written through the savepoint")
	}
	if enqueuedTx != pgx.Tx(sp) {
		t.Error("delivery job should be enqueued through the savepoint")
	}
	if outer.committed || outer.rolledBack {
		t.Error("outer transaction must be left to the caller")
	}
}

func TestNotifyTxFailureLeavesOuterTxUsable(t *testing.T) {
	store := newMockNotifyStore()
	store.createErr = errors.New("value too long for type character varying(255)")
	inserted := false
	insertTx := func(context.Context, pgx.Tx, DeliverArgs) error {
		inserted = true
		return nil
	}
	n := NewNotifier(store, nil, insertTx, nil)

	outer := &trackedTx{}
	err := n.NotifyTx(context.Background(), outer, Event{
		Type:   models.NotifyPaymentReceived,
		UserID: uuid.New(),
	})
	if err == nil {
		t.Fatal("NotifyTx should surface the insert failure")
	}
	if len(outer.children) != 1 {
		t.Fatalf("savepoints opened: got %d, want 1", len(outer.children))
	}
	sp := outer.children[0]
	if !sp.rolledBack || sp.committed {
		t.Errorf("savepoint committed=%v rolledBack=%v, want rolled back", sp.committed, sp.rolledBack)
	}
	if inserted {
		t.Error("no delivery job should be enqueued after a failed insert")
	}
	if outer.committed || outer.rolledBack {
		t.Error("outer transaction must stay open for the caller's commit")
	}
	if len(store.rows) != 0 {
		t.Errorf("stored rows: got %d, want 0", len(store.rows))
	}
}

func TestNotifyTxEnqueueFailureRollsBackRow(t *testing.T) {
	store := newMockNotifyStore()
	insertTx := func(context.Context, pgx.Tx, DeliverArgs) error {
		return errors.New("queue unavailable")
	}
	n := NewNotifier(store, nil, insertTx, nil)

	outer := &trackedTx{}
	err := n.NotifyTx(context.Background(), outer, Event{
		Type:   models.NotifyWithdrawalRequested,
		UserID: uuid.New(),
	})
	if err == nil {
		t.Fatal("NotifyTx should surface the enqueue failure")
	}
	sp := outer.children[0]
	if !sp.rolledBack {
		t.Error("savepoint should be rolled back when the enqueue fails")
	}
	if outer.rolledBack || outer.committed {
		t.Error("outer transaction must be untouched")
	}
}
