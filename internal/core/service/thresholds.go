package service

import (
	"github.com/shopspring/decimal"

	"github.com/Siva2k2k/ES-TM-sub002/internal/core/domain"
)

// ApprovalThresholds are the amount ceilings per approver tier. Anything
// above BoardLimit needs board sign-off outside this system.
type ApprovalThresholds struct {
	ManagerLimit    decimal.Decimal
	ManagementLimit decimal.Decimal
	BoardLimit      decimal.Decimal
}

// DefaultThresholds returns the global defaults: 10,000 / 25,000 / 100,000.
func DefaultThresholds() ApprovalThresholds {
	return ApprovalThresholds{
		ManagerLimit:    decimal.NewFromInt(10000),
		ManagementLimit: decimal.NewFromInt(25000),
		BoardLimit:      decimal.NewFromInt(100000),
	}
}

// CanApprove reports whether a role may unilaterally approve the amount.
// Super admins are unlimited; roles without approval authority always fail.
func (t ApprovalThresholds) CanApprove(role string, amount decimal.Decimal) bool {
	switch role {
	case domain.RoleSuperAdmin:
		return true
	case domain.RoleManagement:
		return amount.LessThanOrEqual(t.ManagementLimit)
	case domain.RoleManager:
		return amount.LessThanOrEqual(t.ManagerLimit)
	}
	return false
}

// ApprovalThresholdPolicy resolves the thresholds applying to a client.
// Per-client overrides fall back to the global defaults.
type ApprovalThresholdPolicy struct {
	global    ApprovalThresholds
	perClient map[string]ApprovalThresholds
}

// NewApprovalThresholdPolicy builds a policy from a global default and
// optional per-client overrides (may be nil).
func NewApprovalThresholdPolicy(global ApprovalThresholds, perClient map[string]ApprovalThresholds) *ApprovalThresholdPolicy {
	return &ApprovalThresholdPolicy{global: global, perClient: perClient}
}

// For returns the thresholds for a client, falling back to the global
// defaults when no override exists.
func (p *ApprovalThresholdPolicy) For(clientID string) ApprovalThresholds {
	if t, ok := p.perClient[clientID]; ok {
		return t
	}
	return p.global
}
