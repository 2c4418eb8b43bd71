package http

import (
	"context"
	"sync"

	"github.com/garyjia/receipt-approval/internal/application/port"
	"github.com/garyjia/receipt-approval/internal/application/service"
	"github.com/garyjia/receipt-approval/internal/domain/apperr"
	"github.com/garyjia/receipt-approval/internal/domain/entity"
	"github.com/garyjia/receipt-approval/internal/domain/workflow"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

// fakeAuth maps tokens to identities
type fakeAuth struct {
	tokens map[string]entity.Identity
}

func (f *fakeAuth) Login(ctx context.Context, username, password string) (*service.Session, error) {
	if username == "hruser" && password == "testpassword" {
		return &service.Session{Token: "hr-token", User: &entity.User{ID: 1, Username: "hruser", Role: entity.RoleHR}}, nil
	}
	return nil, apperr.Unauthenticated("invalid credentials")
}

func (f *fakeAuth) Authenticate(ctx context.Context, token string) (entity.Identity, error) {
	id, ok := f.tokens[token]
	if !ok {
		return entity.Identity{}, apperr.Unauthenticated("invalid token")
	}
	return id, nil
}

type fakeReceipts struct {
	mu       sync.Mutex
	created  []service.CreateReceiptInput
	lastOpts port.ListOptions
	actor    entity.Identity
	err      error
	detail   *service.ReceiptDetail
	export   []byte
}

func (f *fakeReceipts) Create(ctx context.Context, actor entity.Identity, in service.CreateReceiptInput) (*entity.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.actor = actor
	f.created = append(f.created, in)
	return &entity.Receipt{ID: 11, Title: in.Title, SectionID: in.SectionID, Status: entity.StatusPendingManagerApproval}, nil
}

func (f *fakeReceipts) Get(ctx context.Context, actor entity.Identity, id int64) (*service.ReceiptDetail, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.detail, nil
}

func (f *fakeReceipts) Delete(ctx context.Context, actor entity.Identity, id int64) error {
	return f.err
}

func (f *fakeReceipts) Pending(ctx context.Context, actor entity.Identity, opts port.ListOptions) ([]*entity.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actor = actor
	f.lastOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return []*entity.Receipt{{ID: 1, Title: "Taxi"}}, nil
}

func (f *fakeReceipts) History(ctx context.Context, actor entity.Identity, opts port.ListOptions) ([]*entity.Receipt, error) {
	return f.Pending(ctx, actor, opts)
}

func (f *fakeReceipts) ExportHistory(ctx context.Context, actor entity.Identity) ([]byte, error) {
	return f.export, f.err
}

type transitionCall struct {
	id     int64
	actor  entity.Identity
	action workflow.Action
	reason string
}

type fakeApprovals struct {
	calls []transitionCall
	err   error
}

func (f *fakeApprovals) Transition(ctx context.Context, receiptID int64, actor entity.Identity, action workflow.Action, reason string) (*entity.Receipt, error) {
	f.calls = append(f.calls, transitionCall{receiptID, actor, action, reason})
	if f.err != nil {
		return nil, f.err
	}
	return &entity.Receipt{ID: receiptID, Status: entity.StatusApprovedByManagerPendingDGM, CurrentApproverRole: entity.RoleDGM}, nil
}

type fakeUsers struct {
	registered []service.RegisterUserInput
	updated    []service.UpdateUserInput
	listRole   *entity.Role
	err        error
}

func (f *fakeUsers) Register(ctx context.Context, actor entity.Identity, in service.RegisterUserInput) (*entity.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.registered = append(f.registered, in)
	return &entity.User{ID: 20, Username: in.Username, Email: in.Email, Role: in.Role, SectionID: in.SectionID, PasswordHash: "secret-hash"}, nil
}

func (f *fakeUsers) List(ctx context.Context, actor entity.Identity, role *entity.Role) ([]*entity.User, error) {
	f.listRole = role
	return []*entity.User{}, f.err
}

func (f *fakeUsers) Update(ctx context.Context, actor entity.Identity, id int64, in service.UpdateUserInput) (*entity.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.updated = append(f.updated, in)
	return &entity.User{ID: id}, nil
}

func (f *fakeUsers) Delete(ctx context.Context, actor entity.Identity, id int64) error {
	return f.err
}

func (f *fakeUsers) Profile(ctx context.Context, actor entity.Identity) (*entity.User, error) {
	return &entity.User{ID: actor.UserID, Username: actor.Username, Role: actor.Role}, f.err
}

func (f *fakeUsers) UpdateProfile(ctx context.Context, actor entity.Identity, in service.UpdateProfileInput) (*entity.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &entity.User{ID: actor.UserID}, nil
}

type fakeSections struct {
	err error
}

func (f *fakeSections) List(ctx context.Context) ([]*entity.Section, error) {
	return []*entity.Section{{ID: 1, Name: "Cutting"}, {ID: 2, Name: "Sewing"}}, f.err
}

func (f *fakeSections) Create(ctx context.Context, actor entity.Identity, name string) (*entity.Section, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &entity.Section{ID: 3, Name: name}, nil
}

func (f *fakeSections) Rename(ctx context.Context, actor entity.Identity, id int64, name string) (*entity.Section, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &entity.Section{ID: id, Name: name}, nil
}

func (f *fakeSections) Delete(ctx context.Context, actor entity.Identity, id int64) error {
	return f.err
}

type fakeHealth struct {
	healthy bool
}

func (f fakeHealth) CheckHealth(ctx context.Context) (bool, interface{}) {
	return f.healthy, map[string]bool{"database": f.healthy}
}
