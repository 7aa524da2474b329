package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksbdigital/be-spend-approvals/internal/apperrors"
)

func TestParseRoleNormalizes(t *testing.T) {
	tests := []struct {
		raw  string
		want Role
	}{
		{"initiator", RoleInitiator},
		{"Initiator", RoleInitiator},
		{" HOD ", RoleHOD},
		{"FINANCE", RoleFinance},
		{"Regional_Approver", RoleRegionalApprover},
	}
	for _, tc := range tests {
		got, err := ParseRole(tc.raw)
		require.NoError(t, err, "raw %q", tc.raw)
		assert.Equal(t, tc.want, got)
	}
}

func TestParseRoleRejectsUnknown(t *testing.T) {
	for _, raw := range []string{"", "superuser", "hod finance"} {
		_, err := ParseRole(raw)
		require.Error(t, err, "raw %q", raw)
		assert.Equal(t, apperrors.CodeInvalidInput, apperrors.CodeOf(err))
	}
}

func TestParseFormType(t *testing.T) {
	got, err := ParseFormType(" Petty_Cash ")
	require.NoError(t, err)
	assert.Equal(t, FormPettyCash, got)

	_, err = ParseFormType("invoice")
	require.Error(t, err)
}

func TestParseAction(t *testing.T) {
	got, err := ParseAction("APPROVE")
	require.NoError(t, err)
	assert.Equal(t, ActionApprove, got)

	_, err = ParseAction("escalate")
	require.Error(t, err)
}

func TestStatusSetsPerFormType(t *testing.T) {
	// Requisitions pass through the HOD and procurement stages and end in
	// completed; the finance-first forms end in approved.
	assert.True(t, ValidStatus(FormPurchaseRequisition, StatusPendingHOD))
	assert.True(t, ValidStatus(FormPurchaseRequisition, StatusPendingProcurement))
	assert.True(t, ValidStatus(FormPurchaseRequisition, StatusCompleted))
	assert.False(t, ValidStatus(FormPurchaseRequisition, StatusApproved))

	for _, f := range []FormType{FormEFT, FormPettyCash, FormExpenseClaim} {
		assert.False(t, ValidStatus(f, StatusPendingHOD), "%s", f)
		assert.False(t, ValidStatus(f, StatusPendingProcurement), "%s", f)
		assert.False(t, ValidStatus(f, StatusCompleted), "%s", f)
		assert.True(t, ValidStatus(f, StatusApproved), "%s", f)
		assert.True(t, ValidStatus(f, StatusRejected), "%s", f)
	}
}

func TestTerminalStatuses(t *testing.T) {
	assert.True(t, StatusRejected.Terminal())
	assert.True(t, StatusApproved.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.False(t, StatusDraft.Terminal())
	assert.False(t, StatusPendingFinance.Terminal())
}

func TestStageFor(t *testing.T) {
	stage, ok := StageFor(StatusPendingHOD)
	require.True(t, ok)
	assert.Equal(t, StageHOD, stage)

	stage, ok = StageFor(StatusPendingProcurement)
	require.True(t, ok)
	assert.Equal(t, StageProcurement, stage)

	for _, s := range []Status{StatusDraft, StatusApproved, StatusCompleted, StatusRejected} {
		_, ok := StageFor(s)
		assert.False(t, ok, "%s has no pending stage", s)
	}
}

func TestStageApproverRoles(t *testing.T) {
	assert.Equal(t, RoleHOD, StageHOD.ApproverRole())
	assert.Equal(t, RoleFinance, StageFinance.ApproverRole())
	assert.Equal(t, RoleMD, StageMD.ApproverRole())
	assert.Equal(t, RoleProcurement, StageProcurement.ApproverRole())
}

func TestRegionalAssignmentCoversExactly(t *testing.T) {
	a := &RegionalApproverAssignment{Departments: []string{"Lusaka", "Solwezi"}}
	assert.True(t, a.Covers("Lusaka"))
	assert.False(t, a.Covers("lusaka"))
	assert.False(t, a.Covers("Lusaka "))
	assert.False(t, a.Covers("Kitwe"))
}
