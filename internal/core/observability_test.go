package core

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type captureAuditRecorder struct {
	entries []AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	c.entries = append(c.entries, entry)
}

func (c *captureAuditRecorder) has(op string, status AuditStatus) bool {
	for _, entry := range c.entries {
		if entry.Operation == op && entry.Status == status {
			return true
		}
	}
	return false
}

type metricsCall struct {
	op      string
	success bool
}

type captureMetricsRecorder struct {
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

func TestServiceObservabilityHooks(t *testing.T) {
	ctx := context.Background()
	audit := &captureAuditRecorder{}
	metrics := &captureMetricsRecorder{}
	tracer := NewJSONTracer(nil)

	svc := newTestService(t,
		WithAuditRecorder(audit),
		WithMetricsRecorder(metrics),
		WithTracer(tracer),
	)

	user := register(t, svc, "Ayu", "081111111111")
	if !audit.has("register_user", AuditStatusSuccess) {
		t.Fatalf("expected audit entry for register_user success")
	}
	if !metrics.has("register_user", true) {
		t.Fatalf("expected metrics entry for register_user success")
	}

	if _, err := svc.DeleteOrder(ctx, "missing-order"); err == nil {
		t.Fatalf("expected delete_order error for missing id")
	}
	if !audit.has("delete_order", AuditStatusError) {
		t.Fatalf("expected audit error entry for delete_order")
	}
	if !metrics.has("delete_order", false) {
		t.Fatalf("expected metrics entry for failed delete_order")
	}

	found := false
	for _, entry := range tracer.Entries() {
		if entry.Operation == "delete_order" && entry.Status == "error" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected trace span for failed delete_order")
	}

	for _, entry := range audit.entries {
		if entry.Operation == "register_user" && entry.EntityID != user.ID {
			t.Fatalf("expected audit entity id %s, got %s", user.ID, entry.EntityID)
		}
	}
}

func TestRecordAuditUsesClockAndDescriptors(t *testing.T) {
	fixed := time.Date(2025, 10, 1, 8, 30, 0, 0, time.UTC)
	audit := &captureAuditRecorder{}
	svc := newTestService(t,
		WithAuditRecorder(audit),
		WithClock(ClockFunc(func() time.Time { return fixed })),
	)

	svc.recordAudit(context.Background(), "place_order", "order-1", 42*time.Millisecond, nil)
	if len(audit.entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(audit.entries))
	}
	entry := audit.entries[0]
	if entry.Entity != EntityOrder || entry.Action != ActionCreate {
		t.Fatalf("unexpected descriptor %s/%s", entry.Entity, entry.Action)
	}
	if entry.Duration != 42*time.Millisecond || !entry.Timestamp.Equal(fixed) {
		t.Fatalf("unexpected timing %v/%v", entry.Duration, entry.Timestamp)
	}

	svc.recordAudit(context.Background(), "unknown_operation", "x", time.Second, nil)
	if len(audit.entries) != 1 {
		t.Fatalf("expected unknown operation to be skipped, got %d entries", len(audit.entries))
	}

	svc.recordAudit(context.Background(), "delete_order", "order-1", time.Second, errors.New("boom"))
	last := audit.entries[len(audit.entries)-1]
	if last.Status != AuditStatusError || last.Error != "boom" {
		t.Fatalf("expected error entry, got %+v", last)
	}
}

func TestExpvarMetricsRecorder(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	ctx := context.Background()

	rec.Observe(ctx, "place_order", true, 20*time.Millisecond)
	rec.Observe(ctx, "place_order", true, 30*time.Millisecond)
	rec.Observe(ctx, "place_order", false, 5*time.Millisecond)
	rec.Observe(ctx, "", true, time.Second)

	snap := rec.Snapshot()
	if snap.DurationsMS["place_order"] != 55 {
		t.Fatalf("expected 55ms total, got %v", snap.DurationsMS["place_order"])
	}
	if snap.Outcomes["place_order"]["success"] != 2 || snap.Outcomes["place_order"]["error"] != 1 {
		t.Fatalf("unexpected outcome counters %v", snap.Outcomes["place_order"])
	}
	if _, ok := snap.DurationsMS[""]; ok {
		t.Fatalf("expected empty operation to be ignored")
	}
	if rec.Name() == "" {
		t.Fatalf("expected generated expvar name")
	}
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	registry := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(registry)
	if err != nil {
		t.Fatalf("register recorder: %v", err)
	}
	ctx := context.Background()

	rec.Observe(ctx, "place_order", true, 20*time.Millisecond)
	rec.Observe(ctx, "place_order", false, 5*time.Millisecond)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var sawCounter, sawHistogram bool
	for _, fam := range families {
		switch fam.GetName() {
		case "preorder_service_operations_total":
			sawCounter = true
			if len(fam.GetMetric()) != 2 {
				t.Fatalf("expected success and error series, got %d", len(fam.GetMetric()))
			}
		case "preorder_service_operation_duration_seconds":
			sawHistogram = true
		}
	}
	if !sawCounter || !sawHistogram {
		t.Fatalf("expected both collectors registered, counter=%v histogram=%v", sawCounter, sawHistogram)
	}

	if _, err := NewPrometheusMetricsRecorder(registry); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}

func TestJSONTracerWritesEntries(t *testing.T) {
	buf := &bytes.Buffer{}
	tracer := NewJSONTracer(buf)

	_, span := tracer.Start(context.Background(), "register_user")
	span.End(nil)
	_, span = tracer.Start(context.Background(), "delete_order")
	span.End(errors.New("missing"))

	entries := tracer.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(entries))
	}
	if entries[0].Status != "success" || entries[1].Status != "error" {
		t.Fatalf("unexpected statuses %v/%v", entries[0].Status, entries[1].Status)
	}
	if entries[1].Error != "missing" {
		t.Fatalf("expected error message, got %q", entries[1].Error)
	}
	if buf.Len() == 0 {
		t.Fatalf("expected JSON lines written to buffer")
	}
}

func TestNoopLogger(t *testing.T) {
	logger := noopLogger{}
	logger.Debug("msg", "k", "v")
	logger.Info("msg", "k", "v")
	logger.Warn("msg", "k", "v")
	logger.Error("msg", "k", "v")
}
