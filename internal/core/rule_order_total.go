package core

import (
	"context"
	"fmt"

	"preordercore/pkg/domain"
)

// NewOrderTotalRule returns the default in-transaction rule enforcing that
// every order total equals its unit price times quantity.
func NewOrderTotalRule() domain.Rule {
	return orderTotalRule{}
}

type orderTotalRule struct{}

func (orderTotalRule) Name() string { return "order_total" }

func (orderTotalRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, order := range view.ListOrders() {
		expected := order.Price * float64(order.Quantity)
		if order.Total != expected {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "order_total",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("order %s total %.2f does not equal %.2f x %d", order.ID, order.Total, order.Price, order.Quantity),
				Entity:   domain.EntityOrder,
				EntityID: order.ID,
			})
		}
	}
	return res, nil
}
