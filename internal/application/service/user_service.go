package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/garyjia/receipt-approval/internal/application/port"
	"github.com/garyjia/receipt-approval/internal/domain/apperr"
	"github.com/garyjia/receipt-approval/internal/domain/entity"
	"github.com/garyjia/receipt-approval/pkg/utils"
)

// RegisterUserInput holds the fields for a new account
type RegisterUserInput struct {
	Username  string
	Email     string
	Password  string
	Role      entity.Role
	SectionID *int64
}

// UpdateUserInput holds the admin-editable fields; nil leaves a field unchanged
type UpdateUserInput struct {
	Email     *string
	Role      *entity.Role
	SectionID *int64
}

// UpdateProfileInput holds self-service changes. Any change requires the current password.
type UpdateProfileInput struct {
	Email           *string
	NewPassword     *string
	CurrentPassword string
}

// UserService manages accounts. Administration is restricted to HR.
type UserService interface {
	Register(ctx context.Context, actor entity.Identity, in RegisterUserInput) (*entity.User, error)
	List(ctx context.Context, actor entity.Identity, role *entity.Role) ([]*entity.User, error)
	Update(ctx context.Context, actor entity.Identity, id int64, in UpdateUserInput) (*entity.User, error)
	Delete(ctx context.Context, actor entity.Identity, id int64) error
	Profile(ctx context.Context, actor entity.Identity) (*entity.User, error)
	UpdateProfile(ctx context.Context, actor entity.Identity, in UpdateProfileInput) (*entity.User, error)
}

type userServiceImpl struct {
	userRepo    port.UserRepository
	sectionRepo port.SectionRepository
	receiptRepo port.ReceiptRepository
	hasher      port.PasswordHasher
	logger      Logger
	now         func() time.Time
}

// NewUserService creates a new UserService
func NewUserService(
	userRepo port.UserRepository,
	sectionRepo port.SectionRepository,
	receiptRepo port.ReceiptRepository,
	hasher port.PasswordHasher,
	logger Logger,
) UserService {
	return &userServiceImpl{
		userRepo:    userRepo,
		sectionRepo: sectionRepo,
		receiptRepo: receiptRepo,
		hasher:      hasher,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *userServiceImpl) Register(ctx context.Context, actor entity.Identity, in RegisterUserInput) (*entity.User, error) {
	if actor.Role != entity.RoleHR {
		return nil, apperr.Forbidden("only HR can register users")
	}

	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if username == "" || email == "" || in.Password == "" || in.Role == "" {
		return nil, apperr.Validation("username, password, role and email are required")
	}
	if err := utils.ValidateUsername(username); err != nil {
		return nil, apperr.Validation("%v", err)
	}
	if err := utils.ValidateEmail(email); err != nil {
		return nil, apperr.Validation("%v", err)
	}
	if err := utils.ValidatePassword(in.Password); err != nil {
		return nil, apperr.Validation("%v", err)
	}
	if !in.Role.IsValid() {
		return nil, apperr.Validation("unknown role %q", in.Role)
	}

	sectionID, err := s.sectionFor(ctx, in.Role, in.SectionID)
	if err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &entity.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         in.Role,
		SectionID:    sectionID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("User registered", "user_id", user.ID, "role", user.Role, "by", actor.UserID)
	return user, nil
}

func (s *userServiceImpl) List(ctx context.Context, actor entity.Identity, role *entity.Role) ([]*entity.User, error) {
	if actor.Role != entity.RoleHR {
		return nil, apperr.Forbidden("only HR can list users")
	}
	if role != nil {
		if !role.IsValid() {
			return nil, apperr.Validation("unknown role %q", *role)
		}
		return s.userRepo.ListByRole(ctx, *role, nil)
	}
	return s.userRepo.List(ctx)
}

func (s *userServiceImpl) Update(ctx context.Context, actor entity.Identity, id int64, in UpdateUserInput) (*entity.User, error) {
	if actor.Role != entity.RoleHR {
		return nil, apperr.Forbidden("only HR can edit users")
	}
	if in.Email == nil && in.Role == nil && in.SectionID == nil {
		return nil, apperr.Validation("no valid fields provided for update")
	}
	if actor.UserID == id && (in.Role != nil || in.SectionID != nil) {
		return nil, apperr.Forbidden("cannot change your own role or section")
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if err := utils.ValidateEmail(email); err != nil {
			return nil, apperr.Validation("%v", err)
		}
		user.Email = email
	}

	role := user.Role
	if in.Role != nil {
		if !in.Role.IsValid() {
			return nil, apperr.Validation("unknown role %q", *in.Role)
		}
		role = *in.Role
	}

	requested := in.SectionID
	if requested == nil && in.Role == nil {
		requested = user.SectionID
	}
	if in.SectionID != nil && role != entity.RoleManager {
		return nil, apperr.Validation("only managers belong to a section")
	}
	sectionID, err := s.sectionFor(ctx, role, requested)
	if err != nil {
		return nil, err
	}
	user.Role = role
	user.SectionID = sectionID
	user.UpdatedAt = s.now()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("User updated", "user_id", user.ID, "role", user.Role, "by", actor.UserID)
	return user, nil
}

func (s *userServiceImpl) Delete(ctx context.Context, actor entity.Identity, id int64) error {
	if actor.UserID == id {
		return apperr.Validation("cannot delete your own account")
	}

	if _, err := s.userRepo.GetByID(ctx, id); err != nil {
		return err
	}

	if actor.Role != entity.RoleHR {
		return apperr.Forbidden("only HR can delete users")
	}

	referenced, err := s.receiptRepo.ExistsByUser(ctx, id)
	if err != nil {
		return err
	}
	if referenced {
		return apperr.Conflict("cannot delete user %d: associated with existing receipts", id)
	}

	if err := s.userRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("User deleted", "user_id", id, "by", actor.UserID)
	return nil
}

func (s *userServiceImpl) Profile(ctx context.Context, actor entity.Identity) (*entity.User, error) {
	return s.userRepo.GetByID(ctx, actor.UserID)
}

func (s *userServiceImpl) UpdateProfile(ctx context.Context, actor entity.Identity, in UpdateProfileInput) (*entity.User, error) {
	if in.Email == nil && in.NewPassword == nil {
		return nil, apperr.Validation("nothing to update")
	}
	if in.CurrentPassword == "" {
		return nil, apperr.Validation("current password is required")
	}

	user, err := s.userRepo.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.hasher.Compare(user.PasswordHash, in.CurrentPassword); err != nil {
		return nil, err
	}

	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if err := utils.ValidateEmail(email); err != nil {
			return nil, apperr.Validation("%v", err)
		}
		if email != user.Email {
			existing, err := s.userRepo.GetByEmail(ctx, email)
			if err != nil && !errors.Is(err, apperr.ErrNotFound) {
				return nil, err
			}
			if existing != nil {
				return nil, apperr.Conflict("email already in use")
			}
		}
		user.Email = email
	}

	if in.NewPassword != nil {
		if err := utils.ValidatePassword(*in.NewPassword); err != nil {
			return nil, apperr.Validation("%v", err)
		}
		hash, err := s.hasher.Hash(*in.NewPassword)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	user.UpdatedAt = s.now()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("Profile updated", "user_id", user.ID)
	return user, nil
}

// sectionFor enforces that exactly managers carry an existing section
func (s *userServiceImpl) sectionFor(ctx context.Context, role entity.Role, sectionID *int64) (*int64, error) {
	if role != entity.RoleManager {
		return nil, nil
	}
	if sectionID == nil {
		return nil, apperr.Validation("section is required for Manager role")
	}
	if _, err := s.sectionRepo.GetByID(ctx, *sectionID); err != nil {
		return nil, err
	}
	id := *sectionID
	return &id, nil
}
