// internal/domain/cart/engine.go
package cart

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultLocalTimeout = 2 * time.Second

// LocalCart is the durable fallback store used by the engine. Read fails only
// when the backend could not be reached; a missing or corrupt blob is empty.
type LocalCart interface {
	Read(ctx context.Context) (Cart, error)
	Save(ctx context.Context, items Cart) error
	Clear(ctx context.Context) error
}

// Options configures an Engine
type Options struct {
	Logger   logrus.FieldLogger
	Observer FallbackObserver
	// MergeOnLogin pushes the local cart into the remote cart when a session authenticates
	MergeOnLogin bool
	// LocalTimeout bounds each local store call
	LocalTimeout time.Duration
	Now          func() time.Time
}

// Engine reconciles one shopper's cart across the local and remote stores.
// Operations are serialized; Items returns the last published snapshot without
// waiting for an operation in flight.
type Engine struct {
	mu sync.Mutex

	sessionID    string
	state        State
	loaded       bool
	local        LocalCart
	remote       RemoteStore
	observer     FallbackObserver
	logger       logrus.FieldLogger
	mergeOnLogin bool
	mergePending bool
	localTimeout time.Duration
	now          func() time.Time

	items atomic.Pointer[Cart]
}

// NewEngine creates an engine for a session. The engine starts anonymous and
// empty until SetAuthenticated or Load is called.
func NewEngine(sessionID string, local LocalCart, remote RemoteStore, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.LocalTimeout <= 0 {
		opts.LocalTimeout = defaultLocalTimeout
	}

	e := &Engine{
		sessionID:    sessionID,
		state:        StateAnonymous,
		local:        local,
		remote:       remote,
		observer:     opts.Observer,
		logger:       opts.Logger.WithField("session_id", sessionID),
		mergeOnLogin: opts.MergeOnLogin,
		localTimeout: opts.LocalTimeout,
		now:          opts.Now,
	}
	e.publish(Cart{})
	return e
}

// SessionID returns the session this engine belongs to
func (e *Engine) SessionID() string {
	return e.sessionID
}

// State returns the current authentication state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Items returns a copy of the current cart
func (e *Engine) Items() Cart {
	return e.current().Clone()
}

// Totals computes the derived totals of the current cart
func (e *Engine) Totals() Totals {
	return ComputeTotals(e.current())
}

// SetAuthenticated applies the external authentication flag. A transition, or
// the first call, reloads the whole cart from the now-authoritative store.
// With login merge enabled, becoming authenticated first pushes the pending
// local lines, including those left by an earlier engine of the same session.
// It reports whether a reload happened.
func (e *Engine) SetAuthenticated(ctx context.Context, authenticated bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := StateAnonymous
	if authenticated {
		next = StateAuthenticated
	}
	if e.loaded && next == e.state {
		return false
	}

	if e.loaded {
		e.logger.WithFields(logrus.Fields{
			"from": e.state.String(),
			"to":   next.String(),
		}).Info("Cart authentication state changed")
	}

	if e.mergeOnLogin && e.state == StateAnonymous && next == StateAuthenticated {
		e.mergeLocalIntoRemote(ctx)
	}

	e.state = next
	e.reload(ctx, OperationLoad)
	return true
}

// Load re-derives the cart from the authoritative store. An incomplete login
// merge is retried first.
func (e *Engine) Load(ctx context.Context) Cart {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.mergePending && e.state == StateAuthenticated {
		e.mergeLocalIntoRemote(ctx)
	}
	e.reload(ctx, OperationLoad)
	return e.Items()
}

// Add puts a product into the cart, merging into an existing line with the same
// identity. Remote failures fall back to the local store and still succeed.
func (e *Engine) Add(ctx context.Context, in AddInput) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateAuthenticated {
		resp, err := e.remote.Add(ctx, AddRequest{
			ProductID:     in.Product.ID.String(),
			Quantity:      in.quantity(),
			SelectedColor: in.Color,
			SelectedSize:  in.Size,
			BlouseOption:  in.BlouseOption,
			Price:         ResolveUnitPrice(in.Price, in.Product),
		})
		if err == nil {
			if resp.Rejection != "" {
				return Result{Success: false, Outcome: OutcomeRejected, Message: resp.Rejection, Source: SourceRemote}
			}
			result := Result{Success: true, Outcome: OutcomeAdded, Message: MessageAdded, Source: SourceRemote}
			if resp.IsUpdate {
				result.Outcome = OutcomeUpdated
				result.Message = MessageQuantityUpdated
			}
			if !e.refetch(ctx, OperationAdd) {
				e.addLocal(ctx, in, true)
			}
			return result
		}
		e.fallback(ctx, Fallback{Operation: OperationAdd, ProductID: in.Product.ID.String(), Err: err})
	}

	return e.addLocal(ctx, in, false)
}

// Remove deletes a line by id, or by identity when color or size is given and
// no line has that id. A non-matching id is a no-op.
func (e *Engine) Remove(ctx context.Context, itemID string, color, size *string) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	items := e.current()
	idx := items.Resolve(itemID, color, size)
	if idx < 0 {
		return e.noop()
	}
	target := items[idx]

	if e.state == StateAuthenticated {
		err := e.remote.Remove(ctx, target.ID.String())
		if err == nil {
			if !e.refetch(ctx, OperationRemove) {
				e.removeLocal(ctx, target.ID.String())
			}
			return Result{Success: true, Outcome: OutcomeRemoved, Message: MessageRemoved, Source: SourceRemote}
		}
		e.fallback(ctx, Fallback{Operation: OperationRemove, ItemID: target.ID.String(), ProductID: target.Product.ID.String(), Err: err})
	}

	return e.removeLocal(ctx, target.ID.String())
}

// UpdateQuantity sets a line's quantity, clamped to the product's effective
// stock. Quantities below one are ignored rather than treated as a removal.
func (e *Engine) UpdateQuantity(ctx context.Context, itemID string, quantity int, color, size *string) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	if quantity < 1 {
		return e.noop()
	}

	items := e.current()
	idx := items.Resolve(itemID, color, size)
	if idx < 0 {
		return e.noop()
	}
	target := items[idx]

	message := MessageQuantityUpdated
	if stock := target.Product.EffectiveStock(); quantity > stock {
		quantity = stock
		message = StockMessage(stock)
	}

	if e.state == StateAuthenticated {
		err := e.remote.UpdateQuantity(ctx, target.ID.String(), quantity)
		if err == nil {
			if !e.refetch(ctx, OperationUpdate) {
				e.setQuantityLocal(ctx, target.ID.String(), quantity)
			}
			return Result{Success: true, Outcome: OutcomeUpdated, Message: message, Source: SourceRemote}
		}
		e.fallback(ctx, Fallback{Operation: OperationUpdate, ItemID: target.ID.String(), ProductID: target.Product.ID.String(), Err: err})
	}

	e.setQuantityLocal(ctx, target.ID.String(), quantity)
	return Result{Success: true, Outcome: OutcomeUpdated, Message: message, Source: SourceLocal}
}

// Clear empties the cart. The local store and the in-memory cart are always
// cleared, whatever the remote outcome.
func (e *Engine) Clear(ctx context.Context) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	source := SourceLocal
	if e.state == StateAuthenticated {
		if err := e.remote.Clear(ctx); err != nil {
			e.fallback(ctx, Fallback{Operation: OperationClear, Err: err})
		} else {
			source = SourceRemote
		}
	}

	if err := e.clearLocal(ctx); err != nil {
		e.logger.WithError(err).Warn("Failed to clear local cart")
	}
	e.publish(Cart{})

	return Result{Success: true, Outcome: OutcomeCleared, Message: MessageCleared, Source: source}
}

// Private helpers. All of them expect e.mu to be held.

func (e *Engine) current() Cart {
	return *e.items.Load()
}

func (e *Engine) publish(items Cart) {
	snapshot := items.Clone()
	e.items.Store(&snapshot)
}

func (e *Engine) noop() Result {
	source := SourceLocal
	if e.state == StateAuthenticated {
		source = SourceRemote
	}
	return Result{Success: true, Outcome: OutcomeNoop, Message: MessageNothingToDo, Source: source}
}

func (e *Engine) reload(ctx context.Context, op Operation) Source {
	e.loaded = true
	if e.state == StateAuthenticated {
		items, err := e.remote.Fetch(ctx)
		if err == nil {
			e.publish(items)
			return SourceRemote
		}
		e.fallback(ctx, Fallback{Operation: op, Err: err})
	}

	items, err := e.readLocal(ctx)
	if err != nil {
		e.logger.WithError(err).Warn("Failed to read local cart, keeping the cart in memory")
		return SourceLocal
	}
	e.publish(items)
	return SourceLocal
}

// refetch replaces the cart with the remote list after a successful mutation
func (e *Engine) refetch(ctx context.Context, op Operation) bool {
	items, err := e.remote.Fetch(ctx)
	if err != nil {
		e.fallback(ctx, Fallback{Operation: op, Err: fmt.Errorf("refetch after %s: %w", op, err)})
		return false
	}
	e.publish(items)
	return true
}

func (e *Engine) fallback(ctx context.Context, fb Fallback) {
	fb.SessionID = e.sessionID
	fb.OccurredAt = e.now().UTC()

	e.logger.WithError(fb.Err).WithFields(logrus.Fields{
		"operation":  string(fb.Operation),
		"item_id":    fb.ItemID,
		"product_id": fb.ProductID,
	}).Warn("Commerce cart unavailable, falling back to local cart")

	e.observer.RemoteFallback(ctx, fb)
}

// localContext detaches local store calls from the request's cancellation
// and deadline, bounding them by the engine's own timeout instead.
func (e *Engine) localContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), e.localTimeout)
}

func (e *Engine) readLocal(ctx context.Context) (Cart, error) {
	ctx, cancel := e.localContext(ctx)
	defer cancel()
	return e.local.Read(ctx)
}

func (e *Engine) saveLocal(ctx context.Context, items Cart) error {
	ctx, cancel := e.localContext(ctx)
	defer cancel()
	return e.local.Save(ctx, items)
}

func (e *Engine) clearLocal(ctx context.Context) error {
	ctx, cancel := e.localContext(ctx)
	defer cancel()
	return e.local.Clear(ctx)
}

func (e *Engine) persist(ctx context.Context, items Cart) {
	e.publish(items)
	if err := e.saveLocal(ctx, items); err != nil {
		e.logger.WithError(err).Warn("Failed to persist local cart")
	}
}

// addLocal applies an add to the in-memory and local cart. accepted marks an
// add the server already took: local stock is not enforced and a new line is
// not left pending for a login merge.
func (e *Engine) addLocal(ctx context.Context, in AddInput, accepted bool) Result {
	quantity := in.quantity()
	stock := in.Product.EffectiveStock()
	if accepted {
		stock = math.MaxInt
	}
	productID := in.Product.ID.String()

	items := e.current().Clone()
	if idx := items.FindByIdentity(productID, in.Color, in.Size); idx >= 0 {
		newQuantity := items[idx].Quantity + quantity
		if newQuantity > stock {
			return Result{Success: false, Outcome: OutcomeRejected, Message: StockMessage(stock), Source: SourceLocal}
		}
		items[idx].Quantity = newQuantity
		e.persist(ctx, items)
		return Result{Success: true, Outcome: OutcomeUpdated, Message: MessageQuantityUpdated, Source: SourceLocal}
	}

	if quantity > stock {
		return Result{Success: false, Outcome: OutcomeRejected, Message: StockMessage(stock), Source: SourceLocal}
	}

	now := e.now().UTC()
	items = append(items, CartItem{
		ID:            ID(fmt.Sprintf("%s-%s-%s-%d", productID, Normalize(in.Color), Normalize(in.Size), now.UnixNano())),
		Product:       in.Product,
		Quantity:      quantity,
		SelectedColor: in.Color,
		SelectedSize:  in.Size,
		BlouseOption:  in.BlouseOption,
		Price:         ResolveUnitPrice(in.Price, in.Product),
		AddedAt:       now,
		Pending:       !accepted,
	})
	e.persist(ctx, items)
	return Result{Success: true, Outcome: OutcomeAdded, Message: MessageAdded, Source: SourceLocal}
}

func (e *Engine) removeLocal(ctx context.Context, itemID string) Result {
	current := e.current()
	idx := current.FindByID(itemID)
	if idx < 0 {
		return Result{Success: true, Outcome: OutcomeNoop, Message: MessageNothingToDo, Source: SourceLocal}
	}

	items := make(Cart, 0, len(current)-1)
	items = append(items, current[:idx]...)
	items = append(items, current[idx+1:]...)
	e.persist(ctx, items)
	return Result{Success: true, Outcome: OutcomeRemoved, Message: MessageRemoved, Source: SourceLocal}
}

func (e *Engine) setQuantityLocal(ctx context.Context, itemID string, quantity int) {
	items := e.current().Clone()
	idx := items.FindByID(itemID)
	if idx < 0 {
		return
	}
	items[idx].Quantity = quantity
	e.persist(ctx, items)
}

// mergeLocalIntoRemote pushes the pending local lines into the remote cart.
// Lines the server accepted or refused leave the local blob. Lines that failed
// stay pending and the merge is retried on the next Load.
func (e *Engine) mergeLocalIntoRemote(ctx context.Context) {
	local, err := e.readLocal(ctx)
	if err != nil {
		e.logger.WithError(err).Warn("Failed to read local cart for login merge")
		e.mergePending = true
		return
	}

	remaining := make(Cart, 0, len(local))
	merged, failed := 0, 0
	for _, item := range local {
		if !item.Pending {
			remaining = append(remaining, item)
			continue
		}

		resp, err := e.remote.Add(ctx, AddRequest{
			ProductID:     item.Product.ID.String(),
			Quantity:      item.Quantity,
			SelectedColor: item.SelectedColor,
			SelectedSize:  item.SelectedSize,
			BlouseOption:  item.BlouseOption,
			Price:         UnitPrice(item),
		})
		if err != nil {
			failed++
			remaining = append(remaining, item)
			e.fallback(ctx, Fallback{Operation: OperationMerge, ItemID: item.ID.String(), ProductID: item.Product.ID.String(), Err: err})
			continue
		}
		merged++
		if resp.Rejection != "" {
			e.logger.WithFields(logrus.Fields{
				"product_id": item.Product.ID.String(),
				"reason":     resp.Rejection,
			}).Warn("Commerce API refused local cart line during login merge")
		}
	}
	e.mergePending = failed > 0

	if merged == 0 {
		if failed > 0 {
			e.logger.WithField("failed_lines", failed).Warn("Login merge failed, keeping local cart")
		}
		return
	}

	if len(remaining) == 0 {
		err = e.clearLocal(ctx)
	} else {
		err = e.saveLocal(ctx, remaining)
	}
	if err != nil {
		// The merged lines are still pending in the blob and would be pushed twice.
		e.logger.WithError(err).Error("Failed to update local cart after login merge")
	}

	entry := e.logger.WithFields(logrus.Fields{"merged_lines": merged, "failed_lines": failed})
	if failed > 0 {
		entry.Warn("Login merge incomplete, keeping failed lines pending")
		return
	}
	entry.Info("Merged local cart into commerce cart")
}
