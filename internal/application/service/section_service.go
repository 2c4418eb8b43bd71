package service

import (
	"context"
	"strings"
	"time"

	"github.com/garyjia/receipt-approval/internal/application/port"
	"github.com/garyjia/receipt-approval/internal/domain/apperr"
	"github.com/garyjia/receipt-approval/internal/domain/entity"
)

// SectionService manages the section registry. Only HR may change it.
type SectionService interface {
	List(ctx context.Context) ([]*entity.Section, error)
	Create(ctx context.Context, actor entity.Identity, name string) (*entity.Section, error)
	Rename(ctx context.Context, actor entity.Identity, id int64, name string) (*entity.Section, error)

	// Delete fails with apperr.ErrConflict while users or receipts reference the section
	Delete(ctx context.Context, actor entity.Identity, id int64) error
}

type sectionServiceImpl struct {
	sectionRepo port.SectionRepository
	userRepo    port.UserRepository
	receiptRepo port.ReceiptRepository
	logger      Logger
}

// NewSectionService creates a new SectionService
func NewSectionService(
	sectionRepo port.SectionRepository,
	userRepo port.UserRepository,
	receiptRepo port.ReceiptRepository,
	logger Logger,
) SectionService {
	return &sectionServiceImpl{
		sectionRepo: sectionRepo,
		userRepo:    userRepo,
		receiptRepo: receiptRepo,
		logger:      logger,
	}
}

func (s *sectionServiceImpl) List(ctx context.Context) ([]*entity.Section, error) {
	return s.sectionRepo.List(ctx)
}

func (s *sectionServiceImpl) Create(ctx context.Context, actor entity.Identity, name string) (*entity.Section, error) {
	if actor.Role != entity.RoleHR {
		return nil, apperr.Forbidden("only HR can manage sections")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("section name is required")
	}

	section := &entity.Section{Name: name, CreatedAt: time.Now()}
	if err := s.sectionRepo.Create(ctx, section); err != nil {
		return nil, err
	}
	s.logger.Info("Section created", "section_id", section.ID, "name", section.Name)
	return section, nil
}

func (s *sectionServiceImpl) Rename(ctx context.Context, actor entity.Identity, id int64, name string) (*entity.Section, error) {
	if actor.Role != entity.RoleHR {
		return nil, apperr.Forbidden("only HR can manage sections")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("section name is required")
	}

	section, err := s.sectionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	section.Name = name
	if err := s.sectionRepo.Update(ctx, section); err != nil {
		return nil, err
	}
	s.logger.Info("Section renamed", "section_id", id, "name", name)
	return section, nil
}

func (s *sectionServiceImpl) Delete(ctx context.Context, actor entity.Identity, id int64) error {
	if actor.Role != entity.RoleHR {
		return apperr.Forbidden("only HR can manage sections")
	}
	if _, err := s.sectionRepo.GetByID(ctx, id); err != nil {
		return err
	}

	hasUsers, err := s.userRepo.ExistsBySection(ctx, id)
	if err != nil {
		return err
	}
	hasReceipts, err := s.receiptRepo.ExistsBySection(ctx, id)
	if err != nil {
		return err
	}
	if hasUsers || hasReceipts {
		return apperr.Conflict("section %d is still referenced by users or receipts", id)
	}

	if err := s.sectionRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Section deleted", "section_id", id)
	return nil
}
