package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/receipt-approval/internal/application/dispatcher"
	"github.com/garyjia/receipt-approval/internal/application/port"
	"github.com/garyjia/receipt-approval/internal/domain/apperr"
	"github.com/garyjia/receipt-approval/internal/domain/entity"
	"github.com/garyjia/receipt-approval/internal/domain/event"
	"github.com/garyjia/receipt-approval/internal/domain/view"
	"github.com/garyjia/receipt-approval/internal/domain/workflow"
	"github.com/garyjia/receipt-approval/pkg/utils"
)

// CreateReceiptInput is the data HR submits for a new receipt
type CreateReceiptInput struct {
	Title       string
	Description string
	SectionID   int64
	Filename    string
	Image       []byte
}

// ReceiptDetail is a receipt together with what the viewer may do to it
type ReceiptDetail struct {
	*entity.Receipt
	PermittedActions []workflow.Action `json:"permitted_actions"`
}

// MarshalJSON keeps the permitted actions next to the receipt fields
func (d ReceiptDetail) MarshalJSON() ([]byte, error) {
	type plain entity.Receipt
	var receipt plain
	var stages entity.StageActions
	if d.Receipt != nil {
		receipt = plain(*d.Receipt)
		stages = d.Receipt.StageActions()
	}
	return json.Marshal(struct {
		plain
		entity.StageActions
		PermittedActions []workflow.Action `json:"permitted_actions"`
	}{receipt, stages, d.PermittedActions})
}

// ReceiptService manages receipt creation, retrieval, listing and deletion
type ReceiptService interface {
	Create(ctx context.Context, actor entity.Identity, in CreateReceiptInput) (*entity.Receipt, error)
	Get(ctx context.Context, actor entity.Identity, id int64) (*ReceiptDetail, error)
	Delete(ctx context.Context, actor entity.Identity, id int64) error
	Pending(ctx context.Context, actor entity.Identity, opts port.ListOptions) ([]*entity.Receipt, error)
	History(ctx context.Context, actor entity.Identity, opts port.ListOptions) ([]*entity.Receipt, error)

	// ExportHistory renders the actor's history view as a workbook
	ExportHistory(ctx context.Context, actor entity.Identity) ([]byte, error)
}

// ReceiptServiceDeps groups the collaborators of the receipt service
type ReceiptServiceDeps struct {
	Receipts   port.ReceiptRepository
	Sections   port.SectionRepository
	Blobs      port.BlobStore
	Normalizer port.ImageNormalizer
	Exporter   port.ReceiptExporter
	Policy     *workflow.Policy
	Dispatcher dispatcher.Dispatcher
	View       view.Options
	Logger     Logger
}

type receiptServiceImpl struct {
	deps ReceiptServiceDeps
	now  func() time.Time
}

// NewReceiptService creates a new ReceiptService
func NewReceiptService(deps ReceiptServiceDeps) ReceiptService {
	return &receiptServiceImpl{deps: deps, now: time.Now}
}

func (s *receiptServiceImpl) Create(ctx context.Context, actor entity.Identity, in CreateReceiptInput) (*entity.Receipt, error) {
	if actor.Role != entity.RoleHR {
		return nil, apperr.Forbidden("only HR can create receipts")
	}

	title := strings.TrimSpace(utils.SanitizeString(in.Title))
	if title == "" {
		return nil, apperr.Validation("title is required")
	}
	if in.SectionID <= 0 {
		return nil, apperr.Validation("section is required")
	}
	if len(in.Image) == 0 {
		return nil, apperr.Validation("image is required")
	}

	section, err := s.deps.Sections.GetByID(ctx, in.SectionID)
	if err != nil {
		return nil, err
	}

	img, err := s.deps.Normalizer.Normalize(in.Filename, in.Image)
	if err != nil {
		return nil, err
	}

	url, err := s.deps.Blobs.Store(ctx, in.Filename, img.ContentType, img.Data)
	if err != nil {
		s.deps.Logger.Error("Failed to store receipt image", "filename", in.Filename, "error", err)
		return nil, err
	}

	now := s.now()
	receipt := &entity.Receipt{
		Title:               title,
		Description:         strings.TrimSpace(utils.SanitizeString(in.Description)),
		ImageURL:            url,
		SectionID:           section.ID,
		WrittenByID:         actor.UserID,
		CreatedAt:           now,
		Status:              entity.InitialStatus,
		CurrentApproverRole: workflow.ApproverFor(entity.InitialStatus),
		UpdatedAt:           now,
		Actions:             []entity.ReceiptAction{},
	}

	if err := s.deps.Receipts.Create(ctx, receipt); err != nil {
		s.deps.Logger.Error("Failed to create receipt, removing stored image", "image_url", url, "error", err)
		if delErr := s.deps.Blobs.Delete(ctx, url); delErr != nil {
			s.deps.Logger.Error("Failed to remove orphaned image", "image_url", url, "error", delErr)
		}
		return nil, err
	}

	s.deps.Logger.Info("Receipt created",
		"receipt_id", receipt.ID,
		"section_id", receipt.SectionID,
		"user_id", actor.UserID,
	)

	s.deps.Dispatcher.DispatchAsync(ctx, event.FromDirective(event.TypeReceiptCreated, entity.NotificationDirective{
		ReceiptID:   receipt.ID,
		Title:       receipt.Title,
		SectionID:   receipt.SectionID,
		WrittenByID: receipt.WrittenByID,
		NewStatus:   receipt.Status,
		ActingRole:  actor.Role,
		ActorName:   actor.Username,
	}))

	return receipt, nil
}

func (s *receiptServiceImpl) Get(ctx context.Context, actor entity.Identity, id int64) (*ReceiptDetail, error) {
	receipt, err := s.deps.Receipts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !view.Visible(actor, receipt, s.deps.View) {
		return nil, apperr.Forbidden("receipt %d is not visible to %s", id, actor.Role)
	}

	return &ReceiptDetail{
		Receipt:          receipt,
		PermittedActions: s.deps.Policy.PermittedActions(receipt, actor),
	}, nil
}

func (s *receiptServiceImpl) Delete(ctx context.Context, actor entity.Identity, id int64) error {
	receipt, err := s.deps.Receipts.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if actor.Role != entity.RoleHR {
		return apperr.Forbidden("only HR can delete receipts")
	}
	if receipt.Status != entity.InitialStatus {
		return apperr.Forbidden("receipt %d can no longer be deleted (status %s)", id, receipt.Status)
	}

	// Blob first, then record. Blob failures are logged and ignored.
	if err := s.deps.Blobs.Delete(ctx, receipt.ImageURL); err != nil {
		s.deps.Logger.Error("Failed to delete receipt image", "receipt_id", id, "image_url", receipt.ImageURL, "error", err)
	}

	if err := s.deps.Receipts.DeleteConditional(ctx, id, entity.InitialStatus); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			s.deps.Logger.Info("Receipt acted on during deletion", "receipt_id", id)
		}
		return err
	}

	s.deps.Logger.Info("Receipt deleted", "receipt_id", id, "user_id", actor.UserID)
	s.deps.Dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeReceiptDeleted, id, map[string]interface{}{
		event.KeyTitle:     receipt.Title,
		event.KeyActorName: actor.Username,
	}))
	return nil
}

func (s *receiptServiceImpl) Pending(ctx context.Context, actor entity.Identity, opts port.ListOptions) ([]*entity.Receipt, error) {
	return s.list(ctx, view.PendingFor(actor), opts)
}

func (s *receiptServiceImpl) History(ctx context.Context, actor entity.Identity, opts port.ListOptions) ([]*entity.Receipt, error) {
	return s.list(ctx, view.HistoryFor(actor, s.deps.View), opts)
}

func (s *receiptServiceImpl) list(ctx context.Context, f view.Filter, opts port.ListOptions) ([]*entity.Receipt, error) {
	if opts.Status != nil {
		if !opts.Status.IsValid() {
			return nil, apperr.Validation("unknown status %q", *opts.Status)
		}
		f = f.WithStatus(*opts.Status)
		opts.Status = nil
	}
	if f.None {
		return []*entity.Receipt{}, nil
	}
	if opts.Limit < 0 || opts.Offset < 0 {
		return nil, apperr.Validation("limit and offset must not be negative")
	}
	return s.deps.Receipts.List(ctx, f, opts)
}

func (s *receiptServiceImpl) ExportHistory(ctx context.Context, actor entity.Identity) ([]byte, error) {
	receipts, err := s.History(ctx, actor, port.ListOptions{})
	if err != nil {
		return nil, err
	}

	sections, err := s.deps.Sections.List(ctx)
	if err != nil {
		return nil, err
	}
	sectionNames := make(map[int64]string, len(sections))
	for _, sec := range sections {
		sectionNames[sec.ID] = sec.Name
	}

	sheet := port.ReceiptSheet{
		Title: "History",
		Headers: []string{
			"ID", "Title", "Section", "Status", "Category", "Manager", "DGM", "GM",
			"Rejection Reason", "Created At", "Updated At",
		},
		Rows: make([][]interface{}, 0, len(receipts)),
	}
	for _, r := range receipts {
		sheet.Rows = append(sheet.Rows, []interface{}{
			r.ID,
			r.Title,
			sectionNames[r.SectionID],
			r.Status.String(),
			string(r.Status.Category()),
			actorName(r, entity.RoleManager),
			actorName(r, entity.RoleDGM),
			actorName(r, entity.RoleGM),
			r.RejectionReason,
			r.CreatedAt.Format(time.RFC3339),
			r.UpdatedAt.Format(time.RFC3339),
		})
	}

	data, err := s.deps.Exporter.Export(sheet)
	if err != nil {
		return nil, fmt.Errorf("export history: %w", err)
	}
	s.deps.Logger.Info("History exported", "user_id", actor.UserID, "rows", len(sheet.Rows))
	return data, nil
}

func actorName(r *entity.Receipt, stage entity.Role) string {
	if a := r.ActionBy(stage); a != nil {
		return a.ActorUsername
	}
	return ""
}
