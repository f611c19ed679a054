package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateUser(User) (User, error)
	CreateProduct(Product) (Product, error)
	DeleteProduct(id string) error
	CreateOrder(Order) (Order, error)
	UpdateOrder(id string, mutator func(*Order) error) (Order, error)
	DeleteOrder(id string) error
	AddPeriod(name string) error
	SetActivePeriod(name string) error
	SetOrderLock(id string, locked bool) error
	AppendNotification(Notification) (Notification, error)
	ClearNotifications() error
	FindUser(id string) (User, bool)
	FindProduct(id string) (Product, bool)
	FindOrder(id string) (Order, bool)
}

// TransactionView provides read-only access to snapshot data for rules and
// derived reporting views.
type TransactionView = RuleView

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetUser(id string) (User, bool)
	ListUsers() []User
	GetProduct(id string) (Product, bool)
	ListProducts() []Product
	GetOrder(id string) (Order, bool)
	ListOrders() []Order
	ListPeriods() []string
	ActivePeriod() string
	LockedOrderIDs() []string
	ListNotifications() []Notification
}
