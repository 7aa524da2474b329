package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksbdigital/be-spend-approvals/internal/model"
)

func ids(requests []*model.Request) []string {
	out := make([]string, 0, len(requests))
	for _, r := range requests {
		out = append(out, r.ID)
	}
	return out
}

func TestVisibilityHOD(t *testing.T) {
	filter := NewVisibilityFilter(&fakeRegional{})
	hod := user("hod-ops", model.RoleHOD, "Operations")

	own := request("own", model.FormPurchaseRequisition, "hod-ops", "Operations", model.StatusDraft)
	deptPending := request("dept", model.FormPurchaseRequisition, "init-1", "Operations", model.StatusPendingHOD)
	deptLater := request("later", model.FormPurchaseRequisition, "init-1", "Operations", model.StatusPendingFinance)
	otherDept := request("other", model.FormPurchaseRequisition, "init-2", "Sales", model.StatusPendingHOD)
	pinned := request("pinned", model.FormPurchaseRequisition, "init-3", "Sales", model.StatusPendingHOD)
	hodID := hod.ID
	pinned.AssignedHODID = &hodID

	visible, err := filter.Filter(context.Background(), hod,
		[]*model.Request{own, deptPending, deptLater, otherDept, pinned})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"own", "dept", "pinned"}, ids(visible))
}

func TestVisibilityHODNeverSeesForeignDepartments(t *testing.T) {
	filter := NewVisibilityFilter(&fakeRegional{})
	hod := user("hod-ops", model.RoleHOD, "Operations")

	foreign := request("f1", model.FormPurchaseRequisition, "init-9", "Sales", model.StatusPendingHOD)

	visible, err := filter.Filter(context.Background(), hod, []*model.Request{foreign})
	require.NoError(t, err)
	assert.Empty(t, visible)
}

func TestVisibilityDepartmentMatchingIsExact(t *testing.T) {
	filter := NewVisibilityFilter(&fakeRegional{})
	hod := user("hod-ops", model.RoleHOD, "Operations")

	// Trailing whitespace is a distinct department on purpose.
	padded := request("padded", model.FormPurchaseRequisition, "init-1", "Operations ", model.StatusPendingHOD)

	visible, err := filter.Filter(context.Background(), hod, []*model.Request{padded})
	require.NoError(t, err)
	assert.Empty(t, visible)
}

func TestVisibilityInitiatorSeesOwnOnly(t *testing.T) {
	filter := NewVisibilityFilter(&fakeRegional{})
	initiator := user("init-1", model.RoleInitiator, "Operations")

	own := request("own", model.FormEFT, "init-1", "Operations", model.StatusPendingFinance)
	foreign := request("foreign", model.FormEFT, "init-2", "Operations", model.StatusPendingFinance)

	visible, err := filter.Filter(context.Background(), initiator, []*model.Request{own, foreign})
	require.NoError(t, err)
	assert.Equal(t, []string{"own"}, ids(visible))
}

func TestVisibilityFinanceSeesAtOrPastItsStage(t *testing.T) {
	filter := NewVisibilityFilter(&fakeRegional{})
	finance := user("fin-1", model.RoleFinance, "Finance")

	draft := request("draft", model.FormPurchaseRequisition, "init-1", "Operations", model.StatusDraft)
	atHOD := request("hod", model.FormPurchaseRequisition, "init-1", "Operations", model.StatusPendingHOD)
	atFinance := request("fin", model.FormPurchaseRequisition, "init-1", "Operations", model.StatusPendingFinance)
	atMD := request("md", model.FormPurchaseRequisition, "init-1", "Sales", model.StatusPendingMD)
	done := request("done", model.FormPurchaseRequisition, "init-1", "Sales", model.StatusCompleted)
	rejected := request("rej", model.FormPurchaseRequisition, "init-1", "Sales", model.StatusRejected)

	visible, err := filter.Filter(context.Background(), finance,
		[]*model.Request{draft, atHOD, atFinance, atMD, done, rejected})
	require.NoError(t, err)

	// Organization-wide from pending_finance onward; no department restriction.
	assert.ElementsMatch(t, []string{"fin", "md", "done", "rej"}, ids(visible))
}

func TestVisibilityMDSeesAtOrPastItsStage(t *testing.T) {
	filter := NewVisibilityFilter(&fakeRegional{})
	md := user("md-1", model.RoleMD, "Executive")

	atFinance := request("fin", model.FormEFT, "init-1", "Operations", model.StatusPendingFinance)
	atMD := request("md", model.FormEFT, "init-1", "Operations", model.StatusPendingMD)
	approved := request("ok", model.FormEFT, "init-1", "Operations", model.StatusApproved)

	visible, err := filter.Filter(context.Background(), md,
		[]*model.Request{atFinance, atMD, approved})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"md", "ok"}, ids(visible))
}

func TestVisibilityRegionalApprover(t *testing.T) {
	regional := &fakeRegional{assignments: []*model.RegionalApproverAssignment{
		{ID: "a1", UserID: "reg-1", Departments: []string{"Lusaka", "Solwezi"}},
	}}
	filter := NewVisibilityFilter(regional)
	approver := user("reg-1", model.RoleRegionalApprover, "Lusaka")

	inRegion := request("in", model.FormExpenseClaim, "init-1", "Lusaka", model.StatusPendingFinance)
	outRegion := request("out", model.FormExpenseClaim, "init-2", "Kitwe", model.StatusPendingFinance)
	wrongForm := request("eft", model.FormEFT, "init-3", "Lusaka", model.StatusPendingFinance)
	pastStage := request("past", model.FormExpenseClaim, "init-4", "Lusaka", model.StatusPendingMD)
	own := request("own", model.FormExpenseClaim, "reg-1", "Lusaka", model.StatusPendingMD)

	visible, err := filter.Filter(context.Background(), approver,
		[]*model.Request{inRegion, outRegion, wrongForm, pastStage, own})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"in", "own"}, ids(visible))
}

func TestVisibilityProcurement(t *testing.T) {
	filter := NewVisibilityFilter(&fakeRegional{})
	proc := user("proc-1", model.RoleProcurement, "Procurement")

	early := request("early", model.FormPurchaseRequisition, "init-1", "Operations", model.StatusPendingFinance)
	atProc := request("proc", model.FormPurchaseRequisition, "init-1", "Operations", model.StatusPendingProcurement)
	eft := request("eft", model.FormEFT, "init-1", "Operations", model.StatusPendingFinance)

	visible, err := filter.Filter(context.Background(), proc,
		[]*model.Request{early, atProc, eft})
	require.NoError(t, err)
	assert.Equal(t, []string{"proc"}, ids(visible))
}

func TestVisibilityAdminSeesEverything(t *testing.T) {
	filter := NewVisibilityFilter(&fakeRegional{})
	admin := user("adm-1", model.RoleAdmin, "IT")

	reqs := []*model.Request{
		request("a", model.FormPurchaseRequisition, "init-1", "Operations", model.StatusDraft),
		request("b", model.FormEFT, "init-2", "Sales", model.StatusRejected),
	}

	visible, err := filter.Filter(context.Background(), admin, reqs)
	require.NoError(t, err)
	assert.Len(t, visible, 2)
}
