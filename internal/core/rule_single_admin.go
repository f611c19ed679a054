package core

import (
	"context"
	"fmt"

	"preordercore/pkg/domain"
)

// NewSingleAdminRule returns the rule enforcing that exactly one user is the
// admin and that the admin is the earliest registered user.
func NewSingleAdminRule() domain.Rule {
	return singleAdminRule{}
}

type singleAdminRule struct{}

func (singleAdminRule) Name() string { return "single_admin" }

func (singleAdminRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	users := view.ListUsers()
	if len(users) == 0 {
		return res, nil
	}
	admins := 0
	for _, u := range users {
		if u.IsAdmin {
			admins++
		}
	}
	if admins != 1 {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "single_admin",
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("expected exactly one admin, found %d", admins),
			Entity:   domain.EntityUser,
		})
		return res, nil
	}
	// ListUsers is ordered by creation time, so the first entry must be the admin.
	if !users[0].IsAdmin {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "single_admin",
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("admin role does not belong to the first registered user %s", users[0].ID),
			Entity:   domain.EntityUser,
			EntityID: users[0].ID,
		})
	}
	return res, nil
}
