package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"preordercore/internal/infra/persistence/memory"
	"preordercore/pkg/domain"
)

// Clock abstracts the time source used for audit timestamps.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now returns the current time from the wrapped function.
func (f ClockFunc) Now() time.Time { return f() }

// Service exposes the transactional operations of the pre-order domain on top
// of a persistent store, with logging, metrics, tracing, and audit hooks.
type Service struct {
	store   domain.PersistentStore
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	audit   AuditRecorder
	clock   Clock
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithLogger attaches a structured logger.
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsRecorder attaches a metrics recorder.
func WithMetricsRecorder(metrics MetricsRecorder) Option {
	return func(s *Service) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// WithTracer attaches a tracer.
func WithTracer(tracer Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithAuditRecorder attaches an audit recorder.
func WithAuditRecorder(audit AuditRecorder) Option {
	return func(s *Service) {
		if audit != nil {
			s.audit = audit
		}
	}
}

// WithClock overrides the audit time source, mainly for tests.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:   store,
		logger:  noopLogger{},
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
		audit:   noopAuditRecorder{},
		clock:   ClockFunc(func() time.Time { return time.Now().UTC() }),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service over a fresh in-memory store with the
// given rules engine. A nil engine gets the default policy set.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying persistent store.
func (s *Service) Store() domain.PersistentStore { return s.store }

// ErrNotFound is returned when a referenced record does not exist.
type ErrNotFound struct {
	Entity domain.EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// run executes fn inside a store transaction wrapped with tracing, metrics,
// audit, and violation logging. entityID is evaluated after fn so it can point
// at an identifier assigned during the transaction.
func (s *Service) run(ctx context.Context, operation string, entityID *string, fn func(tx domain.Transaction) error) (Result, error) {
	start := s.clock.Now()
	ctx, span := s.tracer.Start(ctx, operation)
	res, err := s.store.RunInTransaction(ctx, fn)
	duration := s.clock.Now().Sub(start)
	span.End(err)
	s.metrics.Observe(ctx, operation, err == nil, duration)
	id := ""
	if entityID != nil {
		id = *entityID
	}
	s.recordAudit(ctx, operation, id, duration, err)
	for _, v := range res.Violations {
		if v.Severity == domain.SeverityWarn {
			s.logger.Warn("rule violation", "rule", v.Rule, "entity", string(v.Entity), "entity_id", v.EntityID, "message", v.Message)
		}
	}
	if err != nil {
		s.logger.Error("operation failed", "operation", operation, "error", err.Error())
		return res, err
	}
	s.logger.Debug("operation committed", "operation", operation, "entity_id", id)
	return res, nil
}

func (s *Service) recordAudit(ctx context.Context, operation, entityID string, duration time.Duration, err error) {
	desc, ok := auditDescriptors[operation]
	if !ok {
		return
	}
	entry := AuditEntry{
		Operation: operation,
		Entity:    desc.Entity,
		Action:    desc.Action,
		EntityID:  entityID,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.clock.Now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}

// RegisterUser registers a new user. The first registration ever becomes the
// admin account.
func (s *Service) RegisterUser(ctx context.Context, user User) (User, Result, error) {
	var created User
	res, err := s.run(ctx, "register_user", &created.ID, func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreateUser(user)
		return err
	})
	return created, res, err
}

// Authenticate finds a user by name and phone. Both must match an existing
// registration exactly.
func (s *Service) Authenticate(_ context.Context, name, phone string) (User, error) {
	name = strings.TrimSpace(name)
	for _, u := range s.store.ListUsers() {
		if u.Name == name && u.Phone == phone {
			return u, nil
		}
	}
	return User{}, errors.New("no account matches that name and phone number")
}

// AddPeriod registers a new pre-order period, activates it, and announces it
// on the shared notification feed.
func (s *Service) AddPeriod(ctx context.Context, name string) (Result, error) {
	var id string
	return s.run(ctx, "add_period", &id, func(tx domain.Transaction) error {
		if err := tx.AddPeriod(name); err != nil {
			return err
		}
		id = strings.TrimSpace(name)
		_, err := tx.AppendNotification(Notification{Message: fmt.Sprintf("New period added: %s", id)})
		return err
	})
}

// SetActivePeriod switches the globally active period.
func (s *Service) SetActivePeriod(ctx context.Context, name string) (Result, error) {
	return s.run(ctx, "set_active_period", &name, func(tx domain.Transaction) error {
		return tx.SetActivePeriod(name)
	})
}

// ProductDraft carries admin input for a new product. Sizes and colors are
// comma-separated option lists; blank entries are dropped.
type ProductDraft struct {
	Name   string
	Sizes  string
	Colors string
	Price  float64
}

func splitOptions(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// CreateProduct adds a product to the currently active period and announces it.
func (s *Service) CreateProduct(ctx context.Context, draft ProductDraft) (Product, Result, error) {
	var created Product
	res, err := s.run(ctx, "create_product", &created.ID, func(tx domain.Transaction) error {
		period := tx.Snapshot().ActivePeriod()
		if period == "" {
			return errors.New("no active period; add a period first")
		}
		var err error
		created, err = tx.CreateProduct(Product{
			Name:   strings.TrimSpace(draft.Name),
			Sizes:  splitOptions(draft.Sizes),
			Colors: splitOptions(draft.Colors),
			Price:  draft.Price,
			Period: period,
		})
		if err != nil {
			return err
		}
		_, err = tx.AppendNotification(Notification{Message: fmt.Sprintf("New product added: %s", created.Name)})
		return err
	})
	return created, res, err
}

// DeleteProduct removes a product and announces the removal. Existing orders
// keep their copied product name and price.
func (s *Service) DeleteProduct(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, "delete_product", &id, func(tx domain.Transaction) error {
		product, ok := tx.FindProduct(id)
		if !ok {
			return ErrNotFound{Entity: domain.EntityProduct, ID: id}
		}
		if err := tx.DeleteProduct(id); err != nil {
			return err
		}
		_, err := tx.AppendNotification(Notification{Message: fmt.Sprintf("Product removed: %s", product.Name)})
		return err
	})
}

// OrderRequest carries user input for a new pre-order line.
type OrderRequest struct {
	UserID          string
	ProductID       string
	Size            string
	Color           string
	Quantity        int
	DropshipAddress string
}

// PlaceOrder creates a draft order against the active period. Price, user and
// product names are copied at creation time.
func (s *Service) PlaceOrder(ctx context.Context, req OrderRequest) (Order, Result, error) {
	var created Order
	res, err := s.run(ctx, "place_order", &created.ID, func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreateOrder(Order{
			UserID:          req.UserID,
			ProductID:       req.ProductID,
			Size:            req.Size,
			Color:           req.Color,
			Quantity:        req.Quantity,
			DropshipAddress: req.DropshipAddress,
			Period:          tx.Snapshot().ActivePeriod(),
		})
		return err
	})
	return created, res, err
}

// OrderUpdate carries the editable fields of a draft order. Nil fields stay
// unchanged.
type OrderUpdate struct {
	Size            *string
	Color           *string
	Quantity        *int
	DropshipAddress *string
}

// UpdateOrder edits a draft order. Locked and sent orders are not editable.
// The line total is recomputed from the copied price.
func (s *Service) UpdateOrder(ctx context.Context, id string, update OrderUpdate) (Order, Result, error) {
	var updated Order
	res, err := s.run(ctx, "update_order", &id, func(tx domain.Transaction) error {
		if tx.Snapshot().IsOrderLocked(id) {
			return domain.ConflictError{Message: fmt.Sprintf("order %q is locked by the admin and cannot be edited", id)}
		}
		current, ok := tx.FindOrder(id)
		if !ok {
			return ErrNotFound{Entity: domain.EntityOrder, ID: id}
		}
		if current.Status != domain.OrderStatusDraft {
			return domain.ConflictError{Message: fmt.Sprintf("order %q has been sent and cannot be edited", id)}
		}
		var err error
		updated, err = tx.UpdateOrder(id, func(o *Order) error {
			if update.Size != nil {
				o.Size = *update.Size
			}
			if update.Color != nil {
				o.Color = *update.Color
			}
			if update.Quantity != nil {
				if *update.Quantity < 1 {
					return errors.New("quantity must be at least 1")
				}
				o.Quantity = *update.Quantity
			}
			if update.DropshipAddress != nil {
				o.DropshipAddress = *update.DropshipAddress
			}
			o.Total = o.Price * float64(o.Quantity)
			return nil
		})
		return err
	})
	return updated, res, err
}

// DeleteOrder removes a draft order. Locked orders are never deletable.
func (s *Service) DeleteOrder(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, "delete_order", &id, func(tx domain.Transaction) error {
		if _, ok := tx.FindOrder(id); !ok {
			return ErrNotFound{Entity: domain.EntityOrder, ID: id}
		}
		return tx.DeleteOrder(id)
	})
}

// SendDraftOrders flips all of the user's draft orders to sent in one
// transaction, stamps each with the send time, and posts a single
// notification. With no drafts it is a no-op and posts nothing.
func (s *Service) SendDraftOrders(ctx context.Context, userID string) (int, Result, error) {
	count := 0
	res, err := s.run(ctx, "send_draft_orders", &userID, func(tx domain.Transaction) error {
		user, ok := tx.FindUser(userID)
		if !ok {
			return ErrNotFound{Entity: domain.EntityUser, ID: userID}
		}
		count = 0
		var sentAt *time.Time
		for _, order := range tx.Snapshot().ListOrders() {
			if order.UserID != userID || order.Status != domain.OrderStatusDraft {
				continue
			}
			_, err := tx.UpdateOrder(order.ID, func(o *Order) error {
				o.Status = domain.OrderStatusSent
				now := s.clock.Now()
				if sentAt == nil {
					sentAt = &now
				}
				o.SentAt = sentAt
				return nil
			})
			if err != nil {
				return err
			}
			count++
		}
		if count == 0 {
			return nil
		}
		_, err := tx.AppendNotification(Notification{
			Message: fmt.Sprintf("%s sent %d order(s) to the admin", user.Name, count),
			UserID:  userID,
		})
		return err
	})
	if err != nil {
		return 0, res, err
	}
	return count, res, nil
}

// SetOrderLock adds or removes an order from the admin lock set.
func (s *Service) SetOrderLock(ctx context.Context, id string, locked bool) (Result, error) {
	return s.run(ctx, "set_order_lock", &id, func(tx domain.Transaction) error {
		if _, ok := tx.FindOrder(id); !ok {
			return ErrNotFound{Entity: domain.EntityOrder, ID: id}
		}
		return tx.SetOrderLock(id, locked)
	})
}

// ToggleOrderLock flips the lock state of an order and returns the new state.
func (s *Service) ToggleOrderLock(ctx context.Context, id string) (bool, Result, error) {
	locked := false
	res, err := s.run(ctx, "set_order_lock", &id, func(tx domain.Transaction) error {
		if _, ok := tx.FindOrder(id); !ok {
			return ErrNotFound{Entity: domain.EntityOrder, ID: id}
		}
		locked = !tx.Snapshot().IsOrderLocked(id)
		return tx.SetOrderLock(id, locked)
	})
	if err != nil {
		return false, res, err
	}
	return locked, res, nil
}

// Notifications returns the shared notification feed oldest-first.
func (s *Service) Notifications(_ context.Context) []Notification {
	return s.store.ListNotifications()
}

// ClearNotifications empties the shared notification feed.
func (s *Service) ClearNotifications(ctx context.Context) (Result, error) {
	var id string
	return s.run(ctx, "clear_notification", &id, func(tx domain.Transaction) error {
		return tx.ClearNotifications()
	})
}
