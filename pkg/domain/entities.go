// Package domain defines the core persistent entities, value types, and
// rule evaluation primitives used by preordercore.
package domain

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityUser identifies a registered user record.
	EntityUser EntityType = "user"
	// EntityProduct identifies a product record.
	EntityProduct EntityType = "product"
	// EntityOrder identifies a pre-order record.
	EntityOrder EntityType = "order"
	// EntityPeriod identifies a pre-order period label.
	EntityPeriod EntityType = "period"
	// EntityNotification identifies a shared notification record.
	EntityNotification EntityType = "notification"
	// EntityOrderLock identifies an entry in the locked-order set.
	EntityOrderLock EntityType = "order_lock"
)

// OrderStatus represents the order lifecycle states.
type OrderStatus string

// Canonical order statuses. An order starts as a draft and is sent to the
// admin exactly once; sent is terminal.
const (
	OrderStatusDraft OrderStatus = "draft"
	OrderStatusSent  OrderStatus = "sent"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User represents a registered buyer. The first user ever registered is the
// admin; users are never updated or deleted in-app.
type User struct {
	Base
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	IsAdmin bool   `json:"isAdmin"`
}

// Product represents an orderable item scoped to a pre-order period. Sizes
// and colors are optional choice lists; empty lists mean the product has no
// such options.
type Product struct {
	Base
	Name   string   `json:"name"`
	Sizes  []string `json:"sizes"`
	Colors []string `json:"colors"`
	Price  float64  `json:"price"`
	Period string   `json:"period"`
}

// Order represents a single pre-order line. Product price and display names
// are copied at creation time so later product edits or deletions do not
// retroactively change existing orders.
type Order struct {
	Base
	UserID          string      `json:"userId"`
	UserName        string      `json:"userName"`
	ProductID       string      `json:"productId"`
	ProductName     string      `json:"productName"`
	Size            string      `json:"size"`
	Color           string      `json:"color"`
	Quantity        int         `json:"quantity"`
	Price           float64     `json:"price"`
	Total           float64     `json:"total"`
	Period          string      `json:"period"`
	DropshipAddress string      `json:"dropshipAddress"`
	Status          OrderStatus `json:"status"`
	SentAt          *time.Time  `json:"sentAt,omitempty"`
}

// Notification is an entry in the shared append-only notification list.
type Notification struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"userId,omitempty"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// ConflictError reports an operation rejected by the current state of a
// record, such as deleting a locked or sent order.
type ConflictError struct {
	Message string
}

func (e ConflictError) Error() string { return e.Message }

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
