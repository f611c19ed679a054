package core

import (
	"context"
	"fmt"

	"preordercore/pkg/domain"
)

// NewLockIntegrityRule returns the rule reporting locked-order entries that no
// longer reference an existing order. These are warnings, not commit blockers,
// because a stale lock only over-protects.
func NewLockIntegrityRule() domain.Rule {
	return lockIntegrityRule{}
}

type lockIntegrityRule struct{}

func (lockIntegrityRule) Name() string { return "lock_integrity" }

func (lockIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, id := range view.LockedOrderIDs() {
		if _, ok := view.FindOrder(id); !ok {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "lock_integrity",
				Severity: domain.SeverityWarn,
				Message:  fmt.Sprintf("lock references missing order %s", id),
				Entity:   domain.EntityOrderLock,
				EntityID: id,
			})
		}
	}
	return res, nil
}
