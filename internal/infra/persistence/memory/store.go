// Package memory provides an in-memory implementation of the core persistence
// store used for tests and ephemeral environments.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"preordercore/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// User aliases domain.User for in-memory persistence operations.
	User = domain.User
	// Product aliases domain.Product.
	Product = domain.Product
	// Order aliases domain.Order.
	Order = domain.Order
	// Notification aliases domain.Notification.
	Notification = domain.Notification
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
	// PersistentStore aliases domain.PersistentStore abstraction.
	PersistentStore = domain.PersistentStore
)

// phonePattern is the registration contract: a bare 10-13 digit number.
var phonePattern = regexp.MustCompile(`^[0-9]{10,13}$`)

type memoryState struct {
	users         map[string]User
	products      map[string]Product
	orders        map[string]Order
	periods       []string
	activePeriod  string
	locked        map[string]struct{}
	notifications []Notification
}

// Snapshot captures a point-in-time clone of the store state. Bucket names
// match the persisted storage keys.
type Snapshot struct {
	Users         map[string]User    `json:"users"`
	Products      map[string]Product `json:"products"`
	Orders        map[string]Order   `json:"orders"`
	Periods       []string           `json:"periods"`
	ActivePeriod  string             `json:"active_period"`
	LockedOrders  []string           `json:"locked_orders"`
	Notifications []Notification     `json:"notifications"`
}

func newMemoryState() memoryState {
	return memoryState{
		users:    make(map[string]User),
		products: make(map[string]Product),
		orders:   make(map[string]Order),
		locked:   make(map[string]struct{}),
	}
}

func (st memoryState) clone() memoryState {
	out := memoryState{
		users:         make(map[string]User, len(st.users)),
		products:      make(map[string]Product, len(st.products)),
		orders:        make(map[string]Order, len(st.orders)),
		periods:       append([]string(nil), st.periods...),
		activePeriod:  st.activePeriod,
		locked:        make(map[string]struct{}, len(st.locked)),
		notifications: make([]Notification, 0, len(st.notifications)),
	}
	for k, v := range st.users {
		out.users[k] = v
	}
	for k, v := range st.products {
		out.products[k] = cloneProduct(v)
	}
	for k, v := range st.orders {
		out.orders[k] = cloneOrder(v)
	}
	for k := range st.locked {
		out.locked[k] = struct{}{}
	}
	out.notifications = append(out.notifications, st.notifications...)
	return out
}

func cloneProduct(p Product) Product {
	p.Sizes = append([]string(nil), p.Sizes...)
	p.Colors = append([]string(nil), p.Colors...)
	return p
}

func cloneOrder(o Order) Order {
	if o.SentAt != nil {
		sentAt := *o.SentAt
		o.SentAt = &sentAt
	}
	return o
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{
		Users:         make(map[string]User, len(state.users)),
		Products:      make(map[string]Product, len(state.products)),
		Orders:        make(map[string]Order, len(state.orders)),
		Periods:       append([]string(nil), state.periods...),
		ActivePeriod:  state.activePeriod,
		LockedOrders:  make([]string, 0, len(state.locked)),
		Notifications: append([]Notification(nil), state.notifications...),
	}
	for k, v := range state.users {
		s.Users[k] = v
	}
	for k, v := range state.products {
		s.Products[k] = cloneProduct(v)
	}
	for k, v := range state.orders {
		s.Orders[k] = cloneOrder(v)
	}
	for id := range state.locked {
		s.LockedOrders = append(s.LockedOrders, id)
	}
	sort.Strings(s.LockedOrders)
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Users {
		state.users[k] = v
	}
	for k, v := range s.Products {
		state.products[k] = cloneProduct(v)
	}
	for k, v := range s.Orders {
		state.orders[k] = cloneOrder(v)
	}
	state.periods = append(state.periods, s.Periods...)
	state.activePeriod = s.ActivePeriod
	for _, id := range s.LockedOrders {
		state.locked[id] = struct{}{}
	}
	state.notifications = append(state.notifications, s.Notifications...)
	return state
}

// migrateSnapshot normalizes snapshots loaded from durable backends so older
// or partially written payloads hydrate into a consistent state.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	if snapshot.Users == nil {
		snapshot.Users = map[string]User{}
	}
	if snapshot.Products == nil {
		snapshot.Products = map[string]Product{}
	}
	if snapshot.Orders == nil {
		snapshot.Orders = map[string]Order{}
	}

	for id, order := range snapshot.Orders {
		if order.Status == "" {
			order.Status = domain.OrderStatusDraft
		}
		if order.Quantity < 1 {
			order.Quantity = 1
		}
		order.Total = order.Price * float64(order.Quantity)
		snapshot.Orders[id] = order
	}

	if snapshot.ActivePeriod != "" {
		found := false
		for _, p := range snapshot.Periods {
			if p == snapshot.ActivePeriod {
				found = true
				break
			}
		}
		if !found {
			snapshot.Periods = append(snapshot.Periods, snapshot.ActivePeriod)
		}
	}
	return snapshot
}

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// RulesEngine exposes the currently configured engine for integration points.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// SetNowFunc overrides the time provider, mainly for tests.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		s.nowFn = fn
	}
}

// transaction represents a mutation set applied to the store state.
type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

// transactionView exposes a read-only snapshot of the transactional state to rules.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListUsers returns all users within the transaction snapshot.
func (v transactionView) ListUsers() []User {
	out := make([]User, 0, len(v.state.users))
	for _, u := range v.state.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// ListProducts returns all products in the snapshot.
func (v transactionView) ListProducts() []Product {
	out := make([]Product, 0, len(v.state.products))
	for _, p := range v.state.products {
		out = append(out, cloneProduct(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// ListOrders returns all orders in the snapshot.
func (v transactionView) ListOrders() []Order {
	out := make([]Order, 0, len(v.state.orders))
	for _, o := range v.state.orders {
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// ListPeriods returns period labels in insertion order.
func (v transactionView) ListPeriods() []string {
	return append([]string(nil), v.state.periods...)
}

// ActivePeriod returns the currently active period label, empty when unset.
func (v transactionView) ActivePeriod() string {
	return v.state.activePeriod
}

// LockedOrderIDs returns the locked order id set in stable order.
func (v transactionView) LockedOrderIDs() []string {
	out := make([]string, 0, len(v.state.locked))
	for id := range v.state.locked {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ListNotifications returns the shared notification list oldest-first.
func (v transactionView) ListNotifications() []Notification {
	return append([]Notification(nil), v.state.notifications...)
}

// FindUser retrieves a user by ID from the snapshot.
func (v transactionView) FindUser(id string) (User, bool) {
	u, ok := v.state.users[id]
	return u, ok
}

// FindProduct retrieves a product by ID from the snapshot.
func (v transactionView) FindProduct(id string) (Product, bool) {
	p, ok := v.state.products[id]
	if !ok {
		return Product{}, false
	}
	return cloneProduct(p), true
}

// FindOrder retrieves an order by ID from the snapshot.
func (v transactionView) FindOrder(id string) (Order, bool) {
	o, ok := v.state.orders[id]
	if !ok {
		return Order{}, false
	}
	return cloneOrder(o), true
}

// IsOrderLocked reports whether the order id is in the locked set.
func (v transactionView) IsOrderLocked(id string) bool {
	_, ok := v.state.locked[id]
	return ok
}

// RunInTransaction executes fn within a transactional copy of the store state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// FindUser exposes user lookup within the transaction scope.
func (tx *transaction) FindUser(id string) (User, bool) {
	u, ok := tx.state.users[id]
	return u, ok
}

// FindProduct exposes product lookup within the transaction scope.
func (tx *transaction) FindProduct(id string) (Product, bool) {
	p, ok := tx.state.products[id]
	if !ok {
		return Product{}, false
	}
	return cloneProduct(p), true
}

// FindOrder exposes order lookup within the transaction scope.
func (tx *transaction) FindOrder(id string) (Order, bool) {
	o, ok := tx.state.orders[id]
	if !ok {
		return Order{}, false
	}
	return cloneOrder(o), true
}

// CreateUser registers a new user within the transaction. The admin role is
// assigned against the transactional user count at the moment of insert so
// exactly the first registrant becomes the admin.
func (tx *transaction) CreateUser(u User) (User, error) {
	if u.ID == "" {
		u.ID = tx.store.newID()
	}
	if _, exists := tx.state.users[u.ID]; exists {
		return User{}, fmt.Errorf("user %q already exists", u.ID)
	}
	if strings.TrimSpace(u.Name) == "" {
		return User{}, errors.New("user name required")
	}
	if !phonePattern.MatchString(u.Phone) {
		return User{}, fmt.Errorf("phone number %q must be 10-13 digits", u.Phone)
	}
	for _, existing := range tx.state.users {
		if existing.Phone == u.Phone {
			return User{}, fmt.Errorf("phone number %q already registered", u.Phone)
		}
	}
	u.IsAdmin = len(tx.state.users) == 0
	u.CreatedAt = tx.now
	u.UpdatedAt = tx.now
	tx.state.users[u.ID] = u
	tx.recordChange(Change{Entity: domain.EntityUser, Action: domain.ActionCreate, After: u})
	return u, nil
}

// CreateProduct stores a new product within the transaction.
func (tx *transaction) CreateProduct(p Product) (Product, error) {
	if p.ID == "" {
		p.ID = tx.store.newID()
	}
	if _, exists := tx.state.products[p.ID]; exists {
		return Product{}, fmt.Errorf("product %q already exists", p.ID)
	}
	if strings.TrimSpace(p.Name) == "" {
		return Product{}, errors.New("product name required")
	}
	if p.Price < 0 {
		return Product{}, errors.New("product price must not be negative")
	}
	if !tx.hasPeriod(p.Period) {
		return Product{}, fmt.Errorf("period %q not found", p.Period)
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.products[p.ID] = cloneProduct(p)
	tx.recordChange(Change{Entity: domain.EntityProduct, Action: domain.ActionCreate, After: cloneProduct(p)})
	return cloneProduct(p), nil
}

// DeleteProduct removes a product. Existing orders keep their denormalized
// product name and price, so no cascade is performed.
func (tx *transaction) DeleteProduct(id string) error {
	current, ok := tx.state.products[id]
	if !ok {
		return fmt.Errorf("product %q not found", id)
	}
	delete(tx.state.products, id)
	tx.recordChange(Change{Entity: domain.EntityProduct, Action: domain.ActionDelete, Before: cloneProduct(current)})
	return nil
}

// CreateOrder stores a new draft order, copying the product price and display
// names and computing the line total.
func (tx *transaction) CreateOrder(o Order) (Order, error) {
	if o.ID == "" {
		o.ID = tx.store.newID()
	}
	if _, exists := tx.state.orders[o.ID]; exists {
		return Order{}, fmt.Errorf("order %q already exists", o.ID)
	}
	user, ok := tx.state.users[o.UserID]
	if !ok {
		return Order{}, fmt.Errorf("user %q not found", o.UserID)
	}
	if o.Period == "" {
		return Order{}, errors.New("select a period first")
	}
	if !tx.hasPeriod(o.Period) {
		return Order{}, fmt.Errorf("period %q not found", o.Period)
	}
	if o.ProductID == "" {
		return Order{}, errors.New("select a product first")
	}
	product, ok := tx.state.products[o.ProductID]
	if !ok {
		return Order{}, fmt.Errorf("product %q not found", o.ProductID)
	}
	if o.Quantity < 1 {
		return Order{}, errors.New("quantity must be at least 1")
	}
	if len(product.Sizes) > 0 && o.Size == "" {
		return Order{}, errors.New("select a size")
	}
	if len(product.Colors) > 0 && o.Color == "" {
		return Order{}, errors.New("select a color")
	}
	if o.Size == "" {
		o.Size = "-"
	}
	if o.Color == "" {
		o.Color = "-"
	}
	if o.DropshipAddress == "" {
		o.DropshipAddress = user.Address
	}
	o.UserName = user.Name
	o.ProductName = product.Name
	o.Price = product.Price
	o.Total = product.Price * float64(o.Quantity)
	o.Status = domain.OrderStatusDraft
	o.SentAt = nil
	o.CreatedAt = tx.now
	o.UpdatedAt = tx.now
	tx.state.orders[o.ID] = cloneOrder(o)
	tx.recordChange(Change{Entity: domain.EntityOrder, Action: domain.ActionCreate, After: cloneOrder(o)})
	return cloneOrder(o), nil
}

// UpdateOrder mutates an order using the provided mutator function.
func (tx *transaction) UpdateOrder(id string, mutator func(*Order) error) (Order, error) {
	current, ok := tx.state.orders[id]
	if !ok {
		return Order{}, fmt.Errorf("order %q not found", id)
	}
	before := cloneOrder(current)
	if err := mutator(&current); err != nil {
		return Order{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.orders[id] = cloneOrder(current)
	tx.recordChange(Change{Entity: domain.EntityOrder, Action: domain.ActionUpdate, Before: before, After: cloneOrder(current)})
	return cloneOrder(current), nil
}

// DeleteOrder removes an order. Locked orders are never deletable, whatever
// their status; unlocked orders may only be deleted while still drafts.
func (tx *transaction) DeleteOrder(id string) error {
	current, ok := tx.state.orders[id]
	if !ok {
		return fmt.Errorf("order %q not found", id)
	}
	if _, locked := tx.state.locked[id]; locked {
		return domain.ConflictError{Message: fmt.Sprintf("order %q is locked by the admin and cannot be deleted", id)}
	}
	if current.Status != domain.OrderStatusDraft {
		return domain.ConflictError{Message: fmt.Sprintf("order %q has been sent and cannot be deleted", id)}
	}
	delete(tx.state.orders, id)
	tx.recordChange(Change{Entity: domain.EntityOrder, Action: domain.ActionDelete, Before: cloneOrder(current)})
	return nil
}

// AddPeriod appends a new period label and marks it active.
func (tx *transaction) AddPeriod(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("period name required")
	}
	if tx.hasPeriod(name) {
		return fmt.Errorf("period %q already exists", name)
	}
	tx.state.periods = append(tx.state.periods, name)
	tx.state.activePeriod = name
	tx.recordChange(Change{Entity: domain.EntityPeriod, Action: domain.ActionCreate, After: name})
	return nil
}

// SetActivePeriod marks an existing period as the globally active one.
func (tx *transaction) SetActivePeriod(name string) error {
	if !tx.hasPeriod(name) {
		return fmt.Errorf("period %q not found", name)
	}
	before := tx.state.activePeriod
	tx.state.activePeriod = name
	tx.recordChange(Change{Entity: domain.EntityPeriod, Action: domain.ActionUpdate, Before: before, After: name})
	return nil
}

// SetOrderLock adds or removes an order id from the locked set. The set is
// independent of order status and may reference any id.
func (tx *transaction) SetOrderLock(id string, locked bool) error {
	if id == "" {
		return errors.New("order id required")
	}
	_, present := tx.state.locked[id]
	if locked == present {
		return nil
	}
	if locked {
		tx.state.locked[id] = struct{}{}
		tx.recordChange(Change{Entity: domain.EntityOrderLock, Action: domain.ActionCreate, After: id})
		return nil
	}
	delete(tx.state.locked, id)
	tx.recordChange(Change{Entity: domain.EntityOrderLock, Action: domain.ActionDelete, Before: id})
	return nil
}

// AppendNotification appends an entry to the shared notification list.
func (tx *transaction) AppendNotification(n Notification) (Notification, error) {
	if n.ID == "" {
		n.ID = tx.store.newID()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = tx.now
	}
	tx.state.notifications = append(tx.state.notifications, n)
	tx.recordChange(Change{Entity: domain.EntityNotification, Action: domain.ActionCreate, After: n})
	return n, nil
}

// ClearNotifications empties the shared notification list.
func (tx *transaction) ClearNotifications() error {
	if len(tx.state.notifications) == 0 {
		return nil
	}
	before := append([]Notification(nil), tx.state.notifications...)
	tx.state.notifications = nil
	tx.recordChange(Change{Entity: domain.EntityNotification, Action: domain.ActionDelete, Before: before})
	return nil
}

func (tx *transaction) hasPeriod(name string) bool {
	for _, p := range tx.state.periods {
		if p == name {
			return true
		}
	}
	return false
}

// GetUser returns a user by id from committed state.
func (s *Store) GetUser(id string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.state.users[id]
	return u, ok
}

// ListUsers returns all committed users ordered by creation time.
func (s *Store) ListUsers() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListUsers()
}

// GetProduct returns a product by id from committed state.
func (s *Store) GetProduct(id string) (Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.products[id]
	if !ok {
		return Product{}, false
	}
	return cloneProduct(p), true
}

// ListProducts returns all committed products ordered by creation time.
func (s *Store) ListProducts() []Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListProducts()
}

// GetOrder returns an order by id from committed state.
func (s *Store) GetOrder(id string) (Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.state.orders[id]
	if !ok {
		return Order{}, false
	}
	return cloneOrder(o), true
}

// ListOrders returns all committed orders ordered by creation time.
func (s *Store) ListOrders() []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListOrders()
}

// ListPeriods returns committed period labels in insertion order.
func (s *Store) ListPeriods() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.state.periods...)
}

// ActivePeriod returns the committed active period label.
func (s *Store) ActivePeriod() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.activePeriod
}

// LockedOrderIDs returns the committed locked order id set in stable order.
func (s *Store) LockedOrderIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).LockedOrderIDs()
}

// ListNotifications returns the committed shared notification list.
func (s *Store) ListNotifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Notification(nil), s.state.notifications...)
}
