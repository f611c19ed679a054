package core

import "preordercore/pkg/domain"

// Rule defines an evaluation executed within a transaction boundary.
type Rule = domain.Rule

// RulesEngine orchestrates rule evaluation.
type RulesEngine = domain.RulesEngine

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewOrderTotalRule())
	engine.Register(NewOrderStatusTransitionRule())
	engine.Register(NewSingleAdminRule())
	engine.Register(NewLockIntegrityRule())
	return engine
}
