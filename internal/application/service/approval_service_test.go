package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/receipt-approval/internal/domain/apperr"
	"github.com/garyjia/receipt-approval/internal/domain/entity"
	"github.com/garyjia/receipt-approval/internal/domain/event"
	"github.com/garyjia/receipt-approval/internal/domain/view"
	"github.com/garyjia/receipt-approval/internal/domain/workflow"
)

func TestApprovalService_CuttingScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	r := f.createReceipt(t, "Fabric invoice", f.cutting)
	assert.Equal(t, entity.StatusPendingManagerApproval, r.Status)
	assert.Equal(t, entity.RoleManager, r.CurrentApproverRole)

	pending, err := f.receiptSvc.Pending(ctx, f.cuttingMgr, portOpts())
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	pending, err = f.receiptSvc.Pending(ctx, f.sewingMgr, portOpts())
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = f.approval.Transition(ctx, r.ID, f.sewingMgr, workflow.ActionApprove, "")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	r, err = f.approval.Transition(ctx, r.ID, f.cuttingMgr, workflow.ActionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApprovedByManagerPendingDGM, r.Status)
	assert.Equal(t, entity.RoleDGM, r.CurrentApproverRole)
	assert.Equal(t, f.cuttingMgr.Username, r.ActionBy(entity.RoleManager).ActorUsername)

	_, err = f.approval.Transition(ctx, r.ID, f.gm, workflow.ActionApprove, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	r, err = f.approval.Transition(ctx, r.ID, f.dgm, workflow.ActionReject, "Blurry image")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusRejectedByDGM, r.Status)
	assert.Equal(t, entity.Role(""), r.CurrentApproverRole)
	assert.Equal(t, "Blurry image", r.RejectionReason)

	history, err := f.receiptSvc.History(ctx, f.dgm, portOpts())
	require.NoError(t, err)
	assert.Len(t, history, 1)

	history, err = f.receiptSvc.History(ctx, f.gm, portOpts())
	require.NoError(t, err)
	assert.Empty(t, history)

	hrPending, err := f.receiptSvc.Pending(ctx, f.hr, portOpts())
	require.NoError(t, err)
	require.Len(t, hrPending, 1)
	assert.Equal(t, entity.StatusRejectedByDGM, hrPending[0].Status)

	_, err = f.approval.Transition(ctx, r.ID, f.gm, workflow.ActionApprove, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	stored := f.receipts.stored(r.ID)
	require.Len(t, stored.Actions, 2)
	assert.Equal(t, entity.RoleManager, stored.Actions[0].StageRole)
	assert.Equal(t, entity.RoleDGM, stored.Actions[1].StageRole)
	assert.Equal(t, "Blurry image", stored.Actions[1].Reason)

	sent := f.mailer.Sent()
	require.Len(t, sent, 3)
	assert.Equal(t, []string{"cutting@example.com"}, sent[0].To)
	assert.Equal(t, "New Receipt Submitted: Fabric invoice", sent[0].Subject)
	assert.Equal(t, []string{"dgm@example.com"}, sent[1].To)
	assert.Equal(t, "Receipt Approved by Manager: Fabric invoice", sent[1].Subject)
	assert.Equal(t, []string{"hr@example.com"}, sent[2].To)
	assert.Equal(t, "Receipt Rejected by DGM: Fabric invoice", sent[2].Subject)
	assert.Contains(t, sent[2].HTML, "Blurry image")
	assert.Contains(t, sent[2].HTML, "https://receipts.example.com/receipts/1")
}

func TestApprovalService_FullApproval(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.createReceipt(t, "Thread purchase", f.sewing)

	var err error
	for _, actor := range []entity.Identity{f.sewingMgr, f.dgm, f.gm} {
		r, err = f.approval.Transition(ctx, r.ID, actor, workflow.ActionApprove, "")
		require.NoError(t, err)
	}

	assert.Equal(t, entity.StatusApprovedFinal, r.Status)
	assert.Empty(t, r.CurrentApproverRole)
	assert.Equal(t, entity.RoleGM, r.LastActionByRole)

	secPending, err := f.receiptSvc.Pending(ctx, f.security, portOpts())
	require.NoError(t, err)
	assert.Len(t, secPending, 1)

	events := f.dispatcher.Events()
	require.Len(t, events, 4)
	assert.Equal(t, event.TypeReceiptCreated, events[0].Type)
	for _, e := range events[1:] {
		assert.Equal(t, event.TypeReceiptApproved, e.Type)
	}
	assert.Equal(t, entity.StatusApprovedFinal, events[3].Directive().NewStatus)
}

func TestApprovalService_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.createReceipt(t, "Cab fare", f.cutting)

	tests := []struct {
		name    string
		id      int64
		actor   entity.Identity
		action  workflow.Action
		wantErr error
	}{
		{"missing receipt", 999, f.cuttingMgr, workflow.ActionApprove, apperr.ErrNotFound},
		{"hr", r.ID, f.hr, workflow.ActionApprove, apperr.ErrForbidden},
		{"security", r.ID, f.security, workflow.ActionReject, apperr.ErrForbidden},
		{"other section manager", r.ID, f.sewingMgr, workflow.ActionApprove, apperr.ErrForbidden},
		{"dgm out of turn", r.ID, f.dgm, workflow.ActionApprove, apperr.ErrInvalidState},
		{"unknown action", r.ID, f.cuttingMgr, workflow.Action("escalate"), apperr.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.approval.Transition(ctx, tt.id, tt.actor, tt.action, "")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	stored := f.receipts.stored(r.ID)
	assert.Equal(t, entity.StatusPendingManagerApproval, stored.Status)
	assert.Empty(t, stored.Actions)
}

func TestApprovalService_DefaultAndRequiredReason(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t)
	r := f.createReceipt(t, "Lunch", f.cutting)
	r, err := f.approval.Transition(ctx, r.ID, f.cuttingMgr, workflow.ActionReject, "  ")
	require.NoError(t, err)
	assert.Equal(t, "Rejected by Manager", r.RejectionReason)
	assert.Equal(t, entity.StatusRejectedByManager, r.Status)

	strict := newFixtureWithOptions(t, workflow.Options{RequireRejectionReason: true}, view.Options{})
	r2 := strict.createReceipt(t, "Lunch", strict.cutting)
	_, err = strict.approval.Transition(ctx, r2.ID, strict.cuttingMgr, workflow.ActionReject, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestApprovalService_ConcurrentApprovals(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.createReceipt(t, "Buttons", f.cutting)

	var ready sync.WaitGroup
	ready.Add(2)
	f.receipts.afterGet = func() {
		ready.Done()
		ready.Wait()
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.approval.Transition(ctx, r.ID, f.cuttingMgr, workflow.ActionApprove, "")
		}(i)
	}
	wg.Wait()
	f.receipts.afterGet = nil

	successes, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case assert.ErrorIs(t, err, apperr.ErrConflict):
			conflicts++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, conflicts)

	stored := f.receipts.stored(r.ID)
	assert.Equal(t, entity.StatusApprovedByManagerPendingDGM, stored.Status)
	assert.Len(t, stored.Actions, 1)
}

func TestApprovalService_PersistFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.createReceipt(t, "Needles", f.cutting)

	f.approval = NewApprovalService(f.receipts, &mockTxManager{
		withTransactionFunc: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return apperr.Infrastructure("begin transaction", errBoom)
		},
	}, workflow.NewPolicy(workflow.Options{}), f.dispatcher, f.logger)

	before := len(f.dispatcher.Events())
	_, err := f.approval.Transition(ctx, r.ID, f.cuttingMgr, workflow.ActionApprove, "")
	assert.ErrorIs(t, err, apperr.ErrInfrastructure)
	assert.Len(t, f.dispatcher.Events(), before)
	assert.Equal(t, entity.StatusPendingManagerApproval, f.receipts.stored(r.ID).Status)
}

func TestApprovalService_NotificationFailureDoesNotFailTransition(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.createReceipt(t, "Zippers", f.cutting)
	f.mailer.err = errBoom

	updated, err := f.approval.Transition(ctx, r.ID, f.cuttingMgr, workflow.ActionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApprovedByManagerPendingDGM, updated.Status)
	assert.Positive(t, f.logger.ErrorCount())
}
