package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/receipt-approval/internal/domain/apperr"
	"github.com/garyjia/receipt-approval/internal/domain/entity"
	"github.com/garyjia/receipt-approval/internal/domain/workflow"
)

func newUserService(f *fixture) UserService {
	return NewUserService(f.users, f.sections, f.receipts, mockHasher{}, f.logger)
}

func strPtr(s string) *string { return &s }

func rolePtr(r entity.Role) *entity.Role { return &r }

func TestUserService_Register(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := newUserService(f)
	sewing := f.sewing
	missing := int64(99)

	tests := []struct {
		name    string
		actor   entity.Identity
		in      RegisterUserInput
		wantErr error
	}{
		{"non hr", f.dgm, RegisterUserInput{Username: "newbie", Email: "n@example.com", Password: "secret1", Role: entity.RoleGM}, apperr.ErrForbidden},
		{"missing fields", f.hr, RegisterUserInput{Username: "newbie", Role: entity.RoleGM}, apperr.ErrValidation},
		{"bad email", f.hr, RegisterUserInput{Username: "newbie", Email: "nope", Password: "secret1", Role: entity.RoleGM}, apperr.ErrValidation},
		{"short password", f.hr, RegisterUserInput{Username: "newbie", Email: "n@example.com", Password: "abc", Role: entity.RoleGM}, apperr.ErrValidation},
		{"bad username", f.hr, RegisterUserInput{Username: "new_bie", Email: "n@example.com", Password: "secret1", Role: entity.RoleGM}, apperr.ErrValidation},
		{"unknown role", f.hr, RegisterUserInput{Username: "newbie", Email: "n@example.com", Password: "secret1", Role: "CEO"}, apperr.ErrValidation},
		{"manager without section", f.hr, RegisterUserInput{Username: "newbie", Email: "n@example.com", Password: "secret1", Role: entity.RoleManager}, apperr.ErrValidation},
		{"manager unknown section", f.hr, RegisterUserInput{Username: "newbie", Email: "n@example.com", Password: "secret1", Role: entity.RoleManager, SectionID: &missing}, apperr.ErrNotFound},
		{"duplicate username", f.hr, RegisterUserInput{Username: "dgmuser", Email: "n@example.com", Password: "secret1", Role: entity.RoleDGM}, apperr.ErrConflict},
		{"duplicate email", f.hr, RegisterUserInput{Username: "newbie", Email: "GM@example.com", Password: "secret1", Role: entity.RoleDGM}, apperr.ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.actor, tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	u, err := svc.Register(ctx, f.hr, RegisterUserInput{
		Username: "finishinglead", Email: "Lead@Example.com", Password: "secret1",
		Role: entity.RoleManager, SectionID: &sewing,
	})
	require.NoError(t, err)
	assert.Equal(t, "lead@example.com", u.Email)
	assert.Equal(t, "hashed:secret1", u.PasswordHash)
	require.NotNil(t, u.SectionID)
	assert.Equal(t, sewing, *u.SectionID)

	gm, err := svc.Register(ctx, f.hr, RegisterUserInput{
		Username: "gm2", Email: "gm2@example.com", Password: "secret1",
		Role: entity.RoleGM, SectionID: &sewing,
	})
	require.NoError(t, err)
	assert.Nil(t, gm.SectionID)
}

func TestUserService_Update(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := newUserService(f)
	sewing := f.sewing

	_, err := svc.Update(ctx, f.dgm, f.gm.UserID, UpdateUserInput{Email: strPtr("x@example.com")})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = svc.Update(ctx, f.hr, f.gm.UserID, UpdateUserInput{})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	u, err := svc.Update(ctx, f.hr, f.cuttingMgr.UserID, UpdateUserInput{Role: rolePtr(entity.RoleDGM)})
	require.NoError(t, err)
	assert.Equal(t, entity.RoleDGM, u.Role)
	assert.Nil(t, u.SectionID)

	_, err = svc.Update(ctx, f.hr, f.gm.UserID, UpdateUserInput{Role: rolePtr(entity.RoleManager)})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	u, err = svc.Update(ctx, f.hr, f.gm.UserID, UpdateUserInput{Role: rolePtr(entity.RoleManager), SectionID: &sewing})
	require.NoError(t, err)
	assert.Equal(t, sewing, *u.SectionID)

	_, err = svc.Update(ctx, f.hr, f.security.UserID, UpdateUserInput{SectionID: &sewing})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	u, err = svc.Update(ctx, f.hr, f.sewingMgr.UserID, UpdateUserInput{Email: strPtr("new-sewing@example.com")})
	require.NoError(t, err)
	assert.Equal(t, "new-sewing@example.com", u.Email)
	assert.Equal(t, sewing, *u.SectionID)

	_, err = svc.Update(ctx, f.hr, f.sewingMgr.UserID, UpdateUserInput{Email: strPtr("dgm@example.com")})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = svc.Update(ctx, f.hr, f.gm.UserID, UpdateUserInput{Role: rolePtr(entity.RoleDGM), SectionID: &sewing})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestUserService_UpdateSelf(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := newUserService(f)
	sewing := f.sewing

	_, err := svc.Update(ctx, f.hr, f.hr.UserID, UpdateUserInput{Role: rolePtr(entity.RoleGM)})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = svc.Update(ctx, f.hr, f.hr.UserID, UpdateUserInput{Role: rolePtr(entity.RoleManager), SectionID: &sewing})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = svc.Update(ctx, f.hr, f.hr.UserID, UpdateUserInput{SectionID: &sewing})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	stored, err := f.users.GetByID(ctx, f.hr.UserID)
	require.NoError(t, err)
	assert.Equal(t, entity.RoleHR, stored.Role)
	assert.Nil(t, stored.SectionID)

	u, err := svc.Update(ctx, f.hr, f.hr.UserID, UpdateUserInput{Email: strPtr("hr-desk@example.com")})
	require.NoError(t, err)
	assert.Equal(t, "hr-desk@example.com", u.Email)
	assert.Equal(t, entity.RoleHR, u.Role)
}

func TestUserService_Delete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := newUserService(f)

	assert.ErrorIs(t, svc.Delete(ctx, f.hr, f.hr.UserID), apperr.ErrValidation)
	assert.ErrorIs(t, svc.Delete(ctx, f.hr, 999), apperr.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, f.dgm, f.gm.UserID), apperr.ErrForbidden)

	r := f.createReceipt(t, "Fabric", f.cutting)
	_, err := f.approval.Transition(ctx, r.ID, f.cuttingMgr, workflow.ActionApprove, "")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, f.otherHR, f.hr.UserID), apperr.ErrConflict)
	assert.ErrorIs(t, svc.Delete(ctx, f.hr, f.cuttingMgr.UserID), apperr.ErrConflict)

	require.NoError(t, svc.Delete(ctx, f.hr, f.security.UserID))
	_, err = f.users.GetByID(ctx, f.security.UserID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUserService_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := newUserService(f)

	me := f.users.add(&entity.User{Username: "selfie", Email: "selfie@example.com", PasswordHash: "hashed:oldpass", Role: entity.RoleGM}).Identity()

	_, err := svc.UpdateProfile(ctx, me, UpdateProfileInput{})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.UpdateProfile(ctx, me, UpdateProfileInput{Email: strPtr("s@example.com")})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.UpdateProfile(ctx, me, UpdateProfileInput{Email: strPtr("s@example.com"), CurrentPassword: "wrong"})
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	_, err = svc.UpdateProfile(ctx, me, UpdateProfileInput{Email: strPtr("hr@example.com"), CurrentPassword: "oldpass"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	u, err := svc.UpdateProfile(ctx, me, UpdateProfileInput{
		Email:           strPtr("me@example.com"),
		NewPassword:     strPtr("newpass1"),
		CurrentPassword: "oldpass",
	})
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", u.Email)
	assert.Equal(t, "hashed:newpass1", u.PasswordHash)
	assert.Equal(t, entity.RoleGM, u.Role)

	profile, err := svc.Profile(ctx, me)
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", profile.Email)
}

func TestUserService_List(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := newUserService(f)

	all, err := svc.List(ctx, f.hr, nil)
	require.NoError(t, err)
	assert.Len(t, all, 7)

	managers, err := svc.List(ctx, f.hr, rolePtr(entity.RoleManager))
	require.NoError(t, err)
	assert.Len(t, managers, 2)

	_, err = svc.List(ctx, f.gm, nil)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}
