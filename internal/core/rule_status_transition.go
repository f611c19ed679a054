package core

import (
	"context"
	"fmt"

	"preordercore/pkg/domain"
)

// NewOrderStatusTransitionRule returns the rule guarding the order lifecycle.
// Drafts may only advance to sent, sent orders are immutable, and the sent
// transition must stamp a send timestamp.
func NewOrderStatusTransitionRule() domain.Rule {
	return orderStatusTransitionRule{}
}

type orderStatusTransitionRule struct{}

func (orderStatusTransitionRule) Name() string { return "order_status_transition" }

func (orderStatusTransitionRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityOrder || change.Action != domain.ActionUpdate {
			continue
		}
		before, okBefore := change.Before.(domain.Order)
		after, okAfter := change.After.(domain.Order)
		if !okBefore || !okAfter {
			continue
		}
		if !validOrderStatus(after.Status) {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "order_status_transition",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("order %s has unknown status %q", after.ID, after.Status),
				Entity:   domain.EntityOrder,
				EntityID: after.ID,
			})
			continue
		}
		if before.Status == domain.OrderStatusSent {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "order_status_transition",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("order %s has been sent and can no longer change", before.ID),
				Entity:   domain.EntityOrder,
				EntityID: before.ID,
			})
			continue
		}
		if before.Status == domain.OrderStatusDraft && after.Status == domain.OrderStatusSent && after.SentAt == nil {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "order_status_transition",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("order %s was sent without a send timestamp", after.ID),
				Entity:   domain.EntityOrder,
				EntityID: after.ID,
			})
		}
	}
	return res, nil
}

func validOrderStatus(status domain.OrderStatus) bool {
	switch status {
	case domain.OrderStatusDraft, domain.OrderStatusSent:
		return true
	}
	return false
}
