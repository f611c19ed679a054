package core

import (
	"context"
	"time"

	"preordercore/pkg/domain"
)

// Logger receives structured service log events as message plus key/value pairs.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MetricsRecorder aggregates operation timing and outcome counters.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

// Tracer starts spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan terminates a span, recording the operation error if any.
type TraceSpan interface {
	End(err error)
}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// AuditStatus marks the outcome recorded in an audit entry.
type AuditStatus string

// Audit entry outcomes.
const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry captures one service operation for the audit trail.
type AuditEntry struct {
	Operation string            `json:"operation"`
	Entity    domain.EntityType `json:"entity,omitempty"`
	Action    domain.Action     `json:"action,omitempty"`
	EntityID  string            `json:"entity_id,omitempty"`
	Status    AuditStatus       `json:"status"`
	Error     string            `json:"error,omitempty"`
	Duration  time.Duration     `json:"duration"`
	Timestamp time.Time         `json:"timestamp"`
}

// AuditRecorder receives audit entries emitted by the service.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

// auditDescriptor maps an operation name to the entity and action recorded in
// its audit entries. Operations without a descriptor are not audited.
type auditDescriptor struct {
	Entity domain.EntityType
	Action domain.Action
}

var auditDescriptors = map[string]auditDescriptor{
	"register_user":      {Entity: domain.EntityUser, Action: domain.ActionCreate},
	"create_product":     {Entity: domain.EntityProduct, Action: domain.ActionCreate},
	"delete_product":     {Entity: domain.EntityProduct, Action: domain.ActionDelete},
	"place_order":        {Entity: domain.EntityOrder, Action: domain.ActionCreate},
	"update_order":       {Entity: domain.EntityOrder, Action: domain.ActionUpdate},
	"delete_order":       {Entity: domain.EntityOrder, Action: domain.ActionDelete},
	"send_draft_orders":  {Entity: domain.EntityOrder, Action: domain.ActionUpdate},
	"add_period":         {Entity: domain.EntityPeriod, Action: domain.ActionCreate},
	"set_active_period":  {Entity: domain.EntityPeriod, Action: domain.ActionUpdate},
	"set_order_lock":     {Entity: domain.EntityOrderLock, Action: domain.ActionUpdate},
	"clear_notification": {Entity: domain.EntityNotification, Action: domain.ActionDelete},
}
