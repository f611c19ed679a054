package core

import (
	"context"

	"preordercore/pkg/domain"
)

// OrderFilter narrows a report to one user, product, or period. Empty fields
// match everything; set fields combine with AND.
type OrderFilter struct {
	UserID    string
	ProductID string
	Period    string
}

func (f OrderFilter) matches(o Order) bool {
	if f.UserID != "" && o.UserID != f.UserID {
		return false
	}
	if f.ProductID != "" && o.ProductID != f.ProductID {
		return false
	}
	if f.Period != "" && o.Period != f.Period {
		return false
	}
	return true
}

// Summary aggregates a set of order lines.
type Summary struct {
	Count int     `json:"count"`
	Total float64 `json:"total"`
}

func (s *Summary) add(o Order) {
	s.Count++
	s.Total += o.Total
}

// Report is the admin view over sent orders: the matching lines in creation
// order, their aggregate, and a per-period breakdown.
type Report struct {
	Orders   []Order            `json:"orders"`
	Summary  Summary            `json:"summary"`
	ByPeriod map[string]Summary `json:"byPeriod"`
}

// Report builds the sent-order report for the given filter. Draft orders are
// never part of reporting.
func (s *Service) Report(ctx context.Context, filter OrderFilter) (Report, error) {
	report := Report{
		Orders:   []Order{},
		ByPeriod: map[string]Summary{},
	}
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		for _, order := range view.ListOrders() {
			if order.Status != domain.OrderStatusSent || !filter.matches(order) {
				continue
			}
			report.Orders = append(report.Orders, order)
			report.Summary.add(order)
			perPeriod := report.ByPeriod[order.Period]
			perPeriod.add(order)
			report.ByPeriod[order.Period] = perPeriod
		}
		return nil
	})
	if err != nil {
		return Report{}, err
	}
	return report, nil
}
