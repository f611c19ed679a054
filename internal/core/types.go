package core

import "preordercore/pkg/domain"

type (
	EntityType         = domain.EntityType
	OrderStatus        = domain.OrderStatus
	Severity           = domain.Severity
	Base               = domain.Base
	User               = domain.User
	Product            = domain.Product
	Order              = domain.Order
	Notification       = domain.Notification
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	ConflictError      = domain.ConflictError
	RuleViolationError = domain.RuleViolationError
)

const (
	EntityUser         = domain.EntityUser
	EntityProduct      = domain.EntityProduct
	EntityOrder        = domain.EntityOrder
	EntityPeriod       = domain.EntityPeriod
	EntityNotification = domain.EntityNotification
	EntityOrderLock    = domain.EntityOrderLock
)

const (
	OrderStatusDraft = domain.OrderStatusDraft
	OrderStatusSent  = domain.OrderStatusSent
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)
