package service

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Siva2k2k/ES-TM-sub002/internal/core/domain"
)

func TestCanApprove(t *testing.T) {
	thresholds := DefaultThresholds()

	cases := []struct {
		role   string
		amount string
		want   bool
	}{
		{domain.RoleManager, "10000", true},
		{domain.RoleManager, "10000.01", false},
		{domain.RoleManagement, "25000", true},
		{domain.RoleManagement, "25000.01", false},
		{domain.RoleSuperAdmin, "9999999", true},
		{domain.RoleEmployee, "1", false},
		{"unknown_role", "1", false},
	}
	for _, tc := range cases {
		amount, err := decimal.NewFromString(tc.amount)
		if err != nil {
			t.Fatal(err)
		}
		if got := thresholds.CanApprove(tc.role, amount); got != tc.want {
			t.Errorf("CanApprove(%s, %s) = %v, want %v", tc.role, tc.amount, got, tc.want)
		}
	}
}

func TestThresholdPolicy_PerClientOverride(t *testing.T) {
	strict := ApprovalThresholds{
		ManagerLimit:    decimal.NewFromInt(1000),
		ManagementLimit: decimal.NewFromInt(5000),
		BoardLimit:      decimal.NewFromInt(20000),
	}
	policy := NewApprovalThresholdPolicy(DefaultThresholds(), map[string]ApprovalThresholds{
		"client_strict": strict,
	})

	if got := policy.For("client_strict"); !got.ManagerLimit.Equal(strict.ManagerLimit) {
		t.Errorf("expected override manager limit 1000, got %s", got.ManagerLimit)
	}
	if got := policy.For("client_other"); !got.ManagerLimit.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("expected default manager limit 10000, got %s", got.ManagerLimit)
	}
}

func TestThresholdPolicy_NilOverrides(t *testing.T) {
	policy := NewApprovalThresholdPolicy(DefaultThresholds(), nil)
	if got := policy.For("any"); !got.ManagementLimit.Equal(decimal.NewFromInt(25000)) {
		t.Errorf("expected default management limit, got %s", got.ManagementLimit)
	}
}
