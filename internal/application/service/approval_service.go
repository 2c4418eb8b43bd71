package service

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/receipt-approval/internal/application/dispatcher"
	"github.com/garyjia/receipt-approval/internal/application/port"
	"github.com/garyjia/receipt-approval/internal/domain/apperr"
	"github.com/garyjia/receipt-approval/internal/domain/entity"
	"github.com/garyjia/receipt-approval/internal/domain/event"
	"github.com/garyjia/receipt-approval/internal/domain/workflow"
)

// ApprovalService moves receipts through the approval chain
type ApprovalService interface {
	// Transition applies an approve or reject action by the actor. The change
	// and its audit entry are committed together only if no other transition
	// changed the receipt since it was read; otherwise apperr.ErrConflict.
	Transition(ctx context.Context, receiptID int64, actor entity.Identity, action workflow.Action, reason string) (*entity.Receipt, error)
}

type approvalServiceImpl struct {
	receiptRepo port.ReceiptRepository
	txManager   port.TransactionManager
	policy      *workflow.Policy
	dispatcher  dispatcher.Dispatcher
	logger      Logger
	now         func() time.Time
}

// NewApprovalService creates a new ApprovalService
func NewApprovalService(
	receiptRepo port.ReceiptRepository,
	txManager port.TransactionManager,
	policy *workflow.Policy,
	dispatcher dispatcher.Dispatcher,
	logger Logger,
) ApprovalService {
	return &approvalServiceImpl{
		receiptRepo: receiptRepo,
		txManager:   txManager,
		policy:      policy,
		dispatcher:  dispatcher,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *approvalServiceImpl) Transition(ctx context.Context, receiptID int64, actor entity.Identity, action workflow.Action, reason string) (*entity.Receipt, error) {
	receipt, err := s.receiptRepo.GetByID(ctx, receiptID)
	if err != nil {
		return nil, err
	}

	decision, err := s.policy.Decide(receipt, actor, action, reason)
	if err != nil {
		s.logger.Info("Transition refused",
			"receipt_id", receiptID,
			"user_id", actor.UserID,
			"role", actor.Role,
			"action", action,
			"status", receipt.Status,
			"error", err,
		)
		return nil, err
	}

	expected := receipt.Status
	entry := decision.Apply(receipt, actor, s.now())

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.receiptRepo.UpdateConditional(txCtx, receipt.ID, expected, port.PatchFrom(receipt)); err != nil {
			return err
		}
		return s.receiptRepo.AppendAction(txCtx, &entry)
	})
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			s.logger.Info("Transition lost race",
				"receipt_id", receiptID,
				"expected_status", expected,
				"user_id", actor.UserID,
			)
		} else {
			s.logger.Error("Failed to persist transition",
				"receipt_id", receiptID,
				"error", err,
			)
		}
		return nil, err
	}
	receipt.Actions[len(receipt.Actions)-1] = entry

	s.logger.Info("Receipt transitioned",
		"receipt_id", receipt.ID,
		"from", decision.From,
		"to", decision.To,
		"next_approver", decision.NextApprover,
		"user_id", actor.UserID,
	)

	evtType := event.TypeReceiptApproved
	if decision.Action == workflow.ActionReject {
		evtType = event.TypeReceiptRejected
	}
	s.dispatcher.DispatchAsync(ctx, event.FromDirective(evtType, entity.NotificationDirective{
		ReceiptID:   receipt.ID,
		Title:       receipt.Title,
		SectionID:   receipt.SectionID,
		WrittenByID: receipt.WrittenByID,
		NewStatus:   receipt.Status,
		ActingRole:  actor.Role,
		ActorName:   actor.Username,
		Reason:      decision.Reason,
	}))

	return receipt, nil
}
