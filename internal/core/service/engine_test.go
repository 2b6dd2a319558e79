package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/Relayn/warehouse-bot/internal/adapter/storage"
	"github.com/Relayn/warehouse-bot/internal/core/domain"
	"github.com/Relayn/warehouse-bot/internal/port"
)

// failingLedger returns the configured error from every operation.
type failingLedger struct {
	err error
}

func (f *failingLedger) CreateOrIncrement(ctx context.Context, name string, quantity int) (domain.Product, bool, error) {
	return domain.Product{}, false, f.err
}

func (f *failingLedger) GetByName(ctx context.Context, name string) (domain.Product, error) {
	return domain.Product{}, f.err
}

func (f *failingLedger) ListAll(ctx context.Context) ([]domain.Product, error) {
	return nil, f.err
}

func (f *failingLedger) AdjustQuantity(ctx context.Context, id string, delta int) (domain.Product, error) {
	return domain.Product{}, f.err
}

func newTestEngine(ledger port.Ledger) (*Engine, *storage.MemorySessionStore) {
	sessions := storage.NewMemorySessionStore()
	return NewEngine(ledger, sessions, zap.NewNop()), sessions
}

func send(t *testing.T, e *Engine, userID, text string) string {
	t.Helper()
	return e.HandleEvent(context.Background(), domain.InboundEvent{
		UserID:    userID,
		Text:      text,
		IsCommand: strings.HasPrefix(text, "/"),
	})
}

func sessionState(t *testing.T, sessions *storage.MemorySessionStore, userID string) domain.State {
	t.Helper()
	sess, err := sessions.Get(context.Background(), userID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	return sess.State
}

func TestAddScenario_NewProduct(t *testing.T) {
	ledger := storage.NewMemoryLedger()
	engine, sessions := newTestEngine(ledger)

	if got := send(t, engine, "u1", "/add"); got != "Enter product name:" {
		t.Errorf("unexpected reply: %q", got)
	}
	if got := send(t, engine, "u1", "Drill"); got != "Now enter quantity (digits only):" {
		t.Errorf("unexpected reply: %q", got)
	}
	if got := send(t, engine, "u1", "50"); got != "New product 'Drill' added, quantity 50." {
		t.Errorf("unexpected reply: %q", got)
	}

	if state := sessionState(t, sessions, "u1"); state != domain.StateIdle {
		t.Errorf("expected idle session after scenario, got %s", state)
	}

	p, err := ledger.GetByName(context.Background(), "Drill")
	if err != nil {
		t.Fatalf("product not in ledger: %v", err)
	}
	if p.Quantity != 50 {
		t.Errorf("expected quantity 50, got %d", p.Quantity)
	}
}

func TestAddScenario_MergeOnExisting(t *testing.T) {
	ledger := storage.NewMemoryLedger()
	ledger.CreateOrIncrement(context.Background(), "Hammer", 10)
	engine, _ := newTestEngine(ledger)

	send(t, engine, "u1", "/add")
	send(t, engine, "u1", "Hammer")
	got := send(t, engine, "u1", "5")

	if got != "Quantity of 'Hammer' increased by 5. New stock: 15." {
		t.Errorf("unexpected reply: %q", got)
	}
}

func TestAddScenario_TrimsName(t *testing.T) {
	ledger := storage.NewMemoryLedger()
	engine, _ := newTestEngine(ledger)

	send(t, engine, "u1", "/add")
	send(t, engine, "u1", "  Screwdriver  ")
	send(t, engine, "u1", "3")

	if _, err := ledger.GetByName(context.Background(), "Screwdriver"); err != nil {
		t.Errorf("expected product stored under trimmed name: %v", err)
	}
}

func TestAddScenario_EmptyNameReprompts(t *testing.T) {
	engine, sessions := newTestEngine(storage.NewMemoryLedger())

	send(t, engine, "u1", "/add")
	if got := send(t, engine, "u1", "   "); got != replyEmptyName {
		t.Errorf("unexpected reply: %q", got)
	}
	if state := sessionState(t, sessions, "u1"); state != domain.StateAddWaitingForName {
		t.Errorf("expected state unchanged, got %s", state)
	}
}

func TestAddScenario_ValidationLoop(t *testing.T) {
	ledger := storage.NewMemoryLedger()
	engine, sessions := newTestEngine(ledger)

	send(t, engine, "u1", "/add")
	send(t, engine, "u1", "Drill")

	for _, bad := range []string{"abc", "-5", "0", "1.5", ""} {
		if got := send(t, engine, "u1", bad); got != replyBadNumber {
			t.Errorf("input %q: unexpected reply %q", bad, got)
		}
		if state := sessionState(t, sessions, "u1"); state != domain.StateAddWaitingForQuantity {
			t.Errorf("input %q: expected state unchanged, got %s", bad, state)
		}
	}

	// A valid quantity still completes the scenario.
	if got := send(t, engine, "u1", "7"); got != "New product 'Drill' added, quantity 7." {
		t.Errorf("unexpected reply: %q", got)
	}
}

func TestRemoveScenario_Success(t *testing.T) {
	ledger := storage.NewMemoryLedger()
	ledger.CreateOrIncrement(context.Background(), "Hammer", 10)
	engine, sessions := newTestEngine(ledger)

	if got := send(t, engine, "u1", "/remove"); got != replyRemoveStart {
		t.Errorf("unexpected reply: %q", got)
	}
	if got := send(t, engine, "u1", "Hammer"); got != "Product 'Hammer' (stock: 10). How many units to remove?" {
		t.Errorf("unexpected reply: %q", got)
	}
	if got := send(t, engine, "u1", "4"); got != "Removed 4 units of 'Hammer'. New stock: 6." {
		t.Errorf("unexpected reply: %q", got)
	}

	if state := sessionState(t, sessions, "u1"); state != domain.StateIdle {
		t.Errorf("expected idle session, got %s", state)
	}
}

func TestRemoveScenario_InsufficientStock(t *testing.T) {
	ledger := storage.NewMemoryLedger()
	ledger.CreateOrIncrement(context.Background(), "Hammer", 10)
	engine, sessions := newTestEngine(ledger)

	send(t, engine, "u1", "/remove")
	send(t, engine, "u1", "Hammer")
	if got := send(t, engine, "u1", "100"); got != replyInsufficient {
		t.Errorf("unexpected reply: %q", got)
	}

	if state := sessionState(t, sessions, "u1"); state != domain.StateIdle {
		t.Errorf("expected session reset, got %s", state)
	}

	p, _ := ledger.GetByName(context.Background(), "Hammer")
	if p.Quantity != 10 {
		t.Errorf("expected stock unchanged at 10, got %d", p.Quantity)
	}
}

func TestRemoveScenario_ProductNotFound(t *testing.T) {
	engine, sessions := newTestEngine(storage.NewMemoryLedger())

	send(t, engine, "u1", "/remove")
	got := send(t, engine, "u1", "Ghost")
	if got != "Product 'Ghost' not found. Check the list with /list." {
		t.Errorf("unexpected reply: %q", got)
	}

	if state := sessionState(t, sessions, "u1"); state != domain.StateIdle {
		t.Errorf("expected session reset, got %s", state)
	}
}

func TestCancel_Idempotent(t *testing.T) {
	engine, sessions := newTestEngine(storage.NewMemoryLedger())

	for i := 0; i < 3; i++ {
		if got := send(t, engine, "u1", "/cancel"); got != replyCancelIdle {
			t.Errorf("cancel #%d: unexpected reply %q", i, got)
		}
		if state := sessionState(t, sessions, "u1"); state != domain.StateIdle {
			t.Errorf("cancel #%d: expected idle, got %s", i, state)
		}
	}
}

func TestCancel_ActiveScenario(t *testing.T) {
	engine, sessions := newTestEngine(storage.NewMemoryLedger())

	send(t, engine, "u1", "/add")
	send(t, engine, "u1", "Drill")

	// The bare word works case-insensitively, same as the command.
	if got := send(t, engine, "u1", "CANCEL"); got != replyCancelled {
		t.Errorf("unexpected reply: %q", got)
	}

	sess, _ := sessions.Get(context.Background(), "u1")
	if sess.State != domain.StateIdle || len(sess.Scratch) != 0 {
		t.Errorf("expected cleared idle session, got %+v", sess)
	}
}

func TestIdle_UnknownInput(t *testing.T) {
	engine, _ := newTestEngine(storage.NewMemoryLedger())

	if got := send(t, engine, "u1", "hello"); got != replyUsage {
		t.Errorf("unexpected reply: %q", got)
	}
}

func TestStart_Greeting(t *testing.T) {
	engine, _ := newTestEngine(storage.NewMemoryLedger())

	if got := send(t, engine, "u1", "/start"); got != replyGreeting {
		t.Errorf("unexpected reply: %q", got)
	}
}

func TestCommand_GroupChatSuffix(t *testing.T) {
	engine, _ := newTestEngine(storage.NewMemoryLedger())

	if got := send(t, engine, "u1", "/add@warehouse_bot"); got != replyAddStart {
		t.Errorf("unexpected reply: %q", got)
	}
}

func TestList_EmptyAndOrdered(t *testing.T) {
	ledger := storage.NewMemoryLedger()
	engine, _ := newTestEngine(ledger)

	if got := send(t, engine, "u1", "/list"); got != replyEmptyWarehouse {
		t.Errorf("unexpected reply: %q", got)
	}

	ledger.CreateOrIncrement(context.Background(), "Wrench", 2)
	ledger.CreateOrIncrement(context.Background(), "Drill", 5)

	want := "Products in stock:\n- Drill: 5 pcs\n- Wrench: 2 pcs"
	if got := send(t, engine, "u1", "/list"); got != want {
		t.Errorf("unexpected reply: %q", got)
	}
}

func TestLedgerError_ResetsSession(t *testing.T) {
	ledger := &failingLedger{err: errors.New("connection refused")}
	engine, sessions := newTestEngine(ledger)

	// Walk into the terminal add step; the name step needs no ledger.
	send(t, engine, "u1", "/add")
	send(t, engine, "u1", "Drill")
	if got := send(t, engine, "u1", "5"); got != replyInternal {
		t.Errorf("unexpected reply: %q", got)
	}

	if state := sessionState(t, sessions, "u1"); state != domain.StateIdle {
		t.Errorf("expected session reset after ledger error, got %s", state)
	}
}

func TestLedgerConflict_SurfacesRetryMessage(t *testing.T) {
	ledger := &failingLedger{err: domain.ErrConflict}
	engine, sessions := newTestEngine(ledger)

	send(t, engine, "u1", "/add")
	send(t, engine, "u1", "Drill")
	if got := send(t, engine, "u1", "5"); got != replyBusy {
		t.Errorf("unexpected reply: %q", got)
	}
	if state := sessionState(t, sessions, "u1"); state != domain.StateIdle {
		t.Errorf("expected session reset, got %s", state)
	}
}

func TestSessions_IndependentAcrossUsers(t *testing.T) {
	ledger := storage.NewMemoryLedger()
	ledger.CreateOrIncrement(context.Background(), "Hammer", 10)
	engine, _ := newTestEngine(ledger)

	send(t, engine, "alice", "/add")
	send(t, engine, "bob", "/remove")

	// Each user continues their own scenario.
	if got := send(t, engine, "alice", "Drill"); got != replyAskQuantity {
		t.Errorf("alice: unexpected reply %q", got)
	}
	if got := send(t, engine, "bob", "Hammer"); !strings.Contains(got, "stock: 10") {
		t.Errorf("bob: unexpected reply %q", got)
	}
}

func TestConcurrentUsers_LedgerStaysConsistent(t *testing.T) {
	ledger := storage.NewMemoryLedger()
	engine, _ := newTestEngine(ledger)

	const users = 20
	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := fmt.Sprintf("user-%d", i)
			send(t, engine, userID, "/add")
			send(t, engine, userID, "Nail")
			send(t, engine, userID, "2")
		}(i)
	}
	wg.Wait()

	p, err := ledger.GetByName(context.Background(), "Nail")
	if err != nil {
		t.Fatalf("product missing: %v", err)
	}
	if p.Quantity != users*2 {
		t.Errorf("expected quantity %d, got %d", users*2, p.Quantity)
	}
}
