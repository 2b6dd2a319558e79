package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Relayn/warehouse-bot/internal/core/domain"
	"github.com/Relayn/warehouse-bot/internal/port"
)

const (
	replyGreeting       = "Hi! I'm the warehouse bot. Commands: /add, /remove, /list, /cancel."
	replyUsage          = "I don't understand that. Commands: /add, /remove, /list, /cancel."
	replyAddStart       = "Enter product name:"
	replyAskQuantity    = "Now enter quantity (digits only):"
	replyRemoveStart    = "Enter product name to remove:"
	replyEmptyName      = "Name cannot be empty. Try again."
	replyBadNumber      = "Enter a valid positive number."
	replyCancelIdle     = "No active action to cancel."
	replyCancelled      = "Action cancelled."
	replyInsufficient   = "Insufficient stock to remove."
	replyBusy           = "The warehouse is busy, please try again."
	replyInternal       = "An internal error occurred. Please try again later."
	replyEmptyWarehouse = "Warehouse is empty."
)

// Scratch keys carried between steps of one scenario.
const (
	scratchName        = "name"
	scratchProductID   = "product_id"
	scratchProductName = "product_name"
)

// Engine drives the per-user conversation state machine. Events for the
// same user are serialized; events for different users run concurrently.
type Engine struct {
	ledger   port.Ledger
	sessions port.SessionStore
	logger   *zap.Logger

	userLocks sync.Map // user ID -> *sync.Mutex
}

func NewEngine(ledger port.Ledger, sessions port.SessionStore, logger *zap.Logger) *Engine {
	return &Engine{
		ledger:   ledger,
		sessions: sessions,
		logger:   logger,
	}
}

// HandleEvent processes one inbound message and returns the reply text.
// It never fails user-visibly: ledger and store errors are logged,
// mapped to a generic reply, and the session is reset so the user is
// never left stuck mid-scenario.
func (e *Engine) HandleEvent(ctx context.Context, ev domain.InboundEvent) string {
	mu := e.userLock(ev.UserID)
	mu.Lock()
	defer mu.Unlock()

	sess, err := e.sessions.Get(ctx, ev.UserID)
	if err != nil {
		e.logger.Error("session load failed",
			zap.String("user_id", ev.UserID), zap.Error(err))
		e.sessions.Clear(ctx, ev.UserID)
		return replyInternal
	}

	reply, next := e.transition(ctx, ev, sess)

	if next.State == domain.StateIdle {
		if err := e.sessions.Clear(ctx, ev.UserID); err != nil {
			e.logger.Error("session clear failed",
				zap.String("user_id", ev.UserID), zap.Error(err))
		}
		return reply
	}

	if err := e.sessions.Set(ctx, ev.UserID, next); err != nil {
		e.logger.Error("session save failed",
			zap.String("user_id", ev.UserID),
			zap.String("state", string(next.State)), zap.Error(err))
		// Without the saved state the next message would be handled as
		// idle anyway; tell the user instead of silently forgetting.
		e.sessions.Clear(ctx, ev.UserID)
		return replyInternal
	}
	return reply
}

func (e *Engine) userLock(userID string) *sync.Mutex {
	v, _ := e.userLocks.LoadOrStore(userID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// transition maps (session, event) to (reply, next session). Ledger
// calls happen only in terminal steps, after input validation.
func (e *Engine) transition(ctx context.Context, ev domain.InboundEvent, sess domain.Session) (string, domain.Session) {
	text := strings.TrimSpace(ev.Text)

	if isCancel(text) {
		if sess.State == domain.StateIdle {
			return replyCancelIdle, domain.NewIdleSession()
		}
		return replyCancelled, domain.NewIdleSession()
	}

	switch sess.State {
	case domain.StateIdle:
		return e.handleIdle(ctx, ev.UserID, text)
	case domain.StateAddWaitingForName:
		return handleAddName(text, sess)
	case domain.StateAddWaitingForQuantity:
		return e.handleAddQuantity(ctx, ev.UserID, text, sess)
	case domain.StateRemoveWaitingForName:
		return e.handleRemoveName(ctx, ev.UserID, text)
	case domain.StateRemoveWaitingForQuantity:
		return e.handleRemoveQuantity(ctx, ev.UserID, text, sess)
	default:
		// A state this binary does not know, e.g. after a rollback.
		// Same handling as an evicted session.
		e.logger.Warn("unknown session state",
			zap.String("user_id", ev.UserID), zap.String("state", string(sess.State)))
		return replyUsage, domain.NewIdleSession()
	}
}

func (e *Engine) handleIdle(ctx context.Context, userID, text string) (string, domain.Session) {
	idle := domain.NewIdleSession()

	switch commandOf(text) {
	case "/start":
		return replyGreeting, idle
	case "/add":
		return replyAddStart, domain.Session{State: domain.StateAddWaitingForName, Scratch: map[string]string{}}
	case "/remove":
		return replyRemoveStart, domain.Session{State: domain.StateRemoveWaitingForName, Scratch: map[string]string{}}
	case "/list":
		return e.handleList(ctx, userID), idle
	default:
		return replyUsage, idle
	}
}

func (e *Engine) handleList(ctx context.Context, userID string) string {
	products, err := e.ledger.ListAll(ctx)
	if err != nil {
		e.logger.Error("list products failed",
			zap.String("user_id", userID), zap.Error(err))
		return replyInternal
	}
	if len(products) == 0 {
		return replyEmptyWarehouse
	}

	var b strings.Builder
	b.WriteString("Products in stock:")
	for _, p := range products {
		fmt.Fprintf(&b, "\n- %s: %d pcs", p.Name, p.Quantity)
	}
	return b.String()
}

func handleAddName(text string, sess domain.Session) (string, domain.Session) {
	if text == "" {
		return replyEmptyName, sess
	}
	next := domain.Session{
		State:   domain.StateAddWaitingForQuantity,
		Scratch: map[string]string{scratchName: text},
	}
	return replyAskQuantity, next
}

func (e *Engine) handleAddQuantity(ctx context.Context, userID, text string, sess domain.Session) (string, domain.Session) {
	qty, ok := parsePositiveInt(text)
	if !ok {
		return replyBadNumber, sess
	}

	name := sess.Scratch[scratchName]
	idle := domain.NewIdleSession()

	product, created, err := e.ledger.CreateOrIncrement(ctx, name, qty)
	switch {
	case err == nil && created:
		return fmt.Sprintf("New product '%s' added, quantity %d.", product.Name, product.Quantity), idle
	case err == nil:
		return fmt.Sprintf("Quantity of '%s' increased by %d. New stock: %d.", product.Name, qty, product.Quantity), idle
	case errors.Is(err, domain.ErrConflict):
		e.logger.Warn("create race not resolved",
			zap.String("user_id", userID), zap.String("name", name))
		return replyBusy, idle
	default:
		e.logger.Error("create or increment failed",
			zap.String("user_id", userID), zap.String("name", name), zap.Error(err))
		return replyInternal, idle
	}
}

func (e *Engine) handleRemoveName(ctx context.Context, userID, text string) (string, domain.Session) {
	if text == "" {
		return replyEmptyName, domain.Session{State: domain.StateRemoveWaitingForName, Scratch: map[string]string{}}
	}

	product, err := e.ledger.GetByName(ctx, text)
	if errors.Is(err, domain.ErrProductNotFound) {
		return fmt.Sprintf("Product '%s' not found. Check the list with /list.", text), domain.NewIdleSession()
	}
	if err != nil {
		e.logger.Error("product lookup failed",
			zap.String("user_id", userID), zap.String("name", text), zap.Error(err))
		return replyInternal, domain.NewIdleSession()
	}

	next := domain.Session{
		State: domain.StateRemoveWaitingForQuantity,
		Scratch: map[string]string{
			scratchProductID:   product.ID,
			scratchProductName: product.Name,
		},
	}
	return fmt.Sprintf("Product '%s' (stock: %d). How many units to remove?", product.Name, product.Quantity), next
}

func (e *Engine) handleRemoveQuantity(ctx context.Context, userID, text string, sess domain.Session) (string, domain.Session) {
	qty, ok := parsePositiveInt(text)
	if !ok {
		return replyBadNumber, sess
	}

	id := sess.Scratch[scratchProductID]
	name := sess.Scratch[scratchProductName]
	idle := domain.NewIdleSession()

	product, err := e.ledger.AdjustQuantity(ctx, id, -qty)
	switch {
	case err == nil:
		return fmt.Sprintf("Removed %d units of '%s'. New stock: %d.", qty, name, product.Quantity), idle
	case errors.Is(err, domain.ErrInsufficientStock):
		return replyInsufficient, idle
	case errors.Is(err, domain.ErrProductNotFound):
		return fmt.Sprintf("Product '%s' not found. Check the list with /list.", name), idle
	default:
		e.logger.Error("adjust quantity failed",
			zap.String("user_id", userID), zap.String("product_id", id), zap.Error(err))
		return replyInternal, idle
	}
}

// commandOf extracts the leading bot command from text, without a
// group-chat "@botname" suffix. Returns "" for non-command text.
func commandOf(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd := strings.Fields(text)[0]
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return cmd
}

func isCancel(text string) bool {
	return commandOf(text) == "/cancel" || strings.EqualFold(text, "cancel")
}

// parsePositiveInt accepts only a plain string of digits with value > 0.
func parsePositiveInt(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
