package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/garyjia/receipt-approval/internal/application/port"
	"github.com/garyjia/receipt-approval/internal/domain/apperr"
	"github.com/garyjia/receipt-approval/internal/domain/entity"
	"github.com/garyjia/receipt-approval/internal/domain/view"
)

type mockLogger struct {
	mu     sync.Mutex
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

// memReceiptRepo is an in-memory ReceiptRepository with compare-and-swap updates
type memReceiptRepo struct {
	mu       sync.Mutex
	nextID   int64
	receipts map[int64]*entity.Receipt

	// afterGet runs after every GetByID, outside the lock
	afterGet  func()
	createErr error
}

func newMemReceiptRepo() *memReceiptRepo {
	return &memReceiptRepo{receipts: make(map[int64]*entity.Receipt)}
}

func cloneReceipt(r *entity.Receipt) *entity.Receipt {
	c := *r
	c.Actions = append([]entity.ReceiptAction{}, r.Actions...)
	return &c
}

func (m *memReceiptRepo) Create(ctx context.Context, r *entity.Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.nextID++
	r.ID = m.nextID
	m.receipts[r.ID] = cloneReceipt(r)
	return nil
}

func (m *memReceiptRepo) GetByID(ctx context.Context, id int64) (*entity.Receipt, error) {
	m.mu.Lock()
	r, ok := m.receipts[id]
	var out *entity.Receipt
	if ok {
		out = cloneReceipt(r)
	}
	m.mu.Unlock()

	if m.afterGet != nil {
		m.afterGet()
	}
	if !ok {
		return nil, apperr.NotFound("receipt %d", id)
	}
	return out, nil
}

func (m *memReceiptRepo) UpdateConditional(ctx context.Context, id int64, expected entity.Status, patch port.ReceiptPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.receipts[id]
	if !ok {
		return apperr.NotFound("receipt %d", id)
	}
	if r.Status != expected {
		return apperr.Conflict("receipt %d changed", id)
	}
	r.Status = patch.Status
	r.CurrentApproverRole = patch.CurrentApproverRole
	r.LastActionByRole = patch.LastActionByRole
	r.RejectionReason = patch.RejectionReason
	r.UpdatedAt = patch.UpdatedAt
	return nil
}

func (m *memReceiptRepo) AppendAction(ctx context.Context, a *entity.ReceiptAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.receipts[a.ReceiptID]
	if !ok {
		return apperr.NotFound("receipt %d", a.ReceiptID)
	}
	a.ID = int64(len(r.Actions) + 1)
	r.Actions = append(r.Actions, *a)
	return nil
}

func (m *memReceiptRepo) DeleteConditional(ctx context.Context, id int64, expected entity.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.receipts[id]
	if !ok {
		return apperr.NotFound("receipt %d", id)
	}
	if r.Status != expected {
		return apperr.Conflict("receipt %d changed", id)
	}
	delete(m.receipts, id)
	return nil
}

func (m *memReceiptRepo) List(ctx context.Context, f view.Filter, opts port.ListOptions) ([]*entity.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entity.Receipt, 0)
	for _, r := range m.receipts {
		if f.Match(r) && (opts.Status == nil || r.Status == *opts.Status) {
			out = append(out, cloneReceipt(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return []*entity.Receipt{}, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *memReceiptRepo) ExistsBySection(ctx context.Context, sectionID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.receipts {
		if r.SectionID == sectionID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memReceiptRepo) ExistsByUser(ctx context.Context, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.receipts {
		if r.WrittenByID == userID || r.ActedBy(userID) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memReceiptRepo) stored(id int64) *entity.Receipt {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.receipts[id]; ok {
		return cloneReceipt(r)
	}
	return nil
}

type memUserRepo struct {
	mu      sync.Mutex
	nextID  int64
	users   map[int64]*entity.User
	listErr error
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[int64]*entity.User)}
}

func (m *memUserRepo) add(u *entity.User) *entity.User {
	if err := m.Create(context.Background(), u); err != nil {
		panic(err)
	}
	return u
}

func (m *memUserRepo) Create(ctx context.Context, u *entity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == u.Username {
			return apperr.Conflict("username %s already exists", u.Username)
		}
		if existing.Email == u.Email {
			return apperr.Conflict("email %s already exists", u.Email)
		}
	}
	m.nextID++
	u.ID = m.nextID
	c := *u
	m.users[u.ID] = &c
	return nil
}

func (m *memUserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.NotFound("user %d", id)
	}
	c := *u
	return &c, nil
}

func (m *memUserRepo) find(match func(*entity.User) bool, what string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			c := *u
			return &c, nil
		}
	}
	return nil, apperr.NotFound("user %s", what)
}

func (m *memUserRepo) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	return m.find(func(u *entity.User) bool { return u.Username == username }, username)
}

func (m *memUserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return m.find(func(u *entity.User) bool { return strings.EqualFold(u.Email, email) }, email)
}

func (m *memUserRepo) List(ctx context.Context) ([]*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entity.User, 0, len(m.users))
	for _, u := range m.users {
		c := *u
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memUserRepo) ListByRole(ctx context.Context, role entity.Role, sectionID *int64) ([]*entity.User, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	all, _ := m.List(ctx)
	out := make([]*entity.User, 0)
	for _, u := range all {
		if u.Role != role {
			continue
		}
		if sectionID != nil && (u.SectionID == nil || *u.SectionID != *sectionID) {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (m *memUserRepo) Update(ctx context.Context, u *entity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return apperr.NotFound("user %d", u.ID)
	}
	for _, existing := range m.users {
		if existing.ID != u.ID && existing.Email == u.Email {
			return apperr.Conflict("email %s already exists", u.Email)
		}
	}
	c := *u
	m.users[u.ID] = &c
	return nil
}

func (m *memUserRepo) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return apperr.NotFound("user %d", id)
	}
	delete(m.users, id)
	return nil
}

func (m *memUserRepo) ExistsBySection(ctx context.Context, sectionID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.SectionID != nil && *u.SectionID == sectionID {
			return true, nil
		}
	}
	return false, nil
}

type memSectionRepo struct {
	mu       sync.Mutex
	nextID   int64
	sections map[int64]*entity.Section
}

func newMemSectionRepo(names ...string) *memSectionRepo {
	m := &memSectionRepo{sections: make(map[int64]*entity.Section)}
	for _, n := range names {
		_ = m.Create(context.Background(), &entity.Section{Name: n})
	}
	return m
}

func (m *memSectionRepo) Create(ctx context.Context, s *entity.Section) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.sections {
		if existing.Name == s.Name {
			return apperr.Conflict("section %s already exists", s.Name)
		}
	}
	m.nextID++
	s.ID = m.nextID
	c := *s
	m.sections[s.ID] = &c
	return nil
}

func (m *memSectionRepo) GetByID(ctx context.Context, id int64) (*entity.Section, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sections[id]
	if !ok {
		return nil, apperr.NotFound("section %d", id)
	}
	c := *s
	return &c, nil
}

func (m *memSectionRepo) List(ctx context.Context) ([]*entity.Section, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entity.Section, 0, len(m.sections))
	for _, s := range m.sections {
		c := *s
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memSectionRepo) Update(ctx context.Context, s *entity.Section) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.sections {
		if existing.ID != s.ID && existing.Name == s.Name {
			return apperr.Conflict("section %s already exists", s.Name)
		}
	}
	c := *s
	m.sections[s.ID] = &c
	return nil
}

func (m *memSectionRepo) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sections, id)
	return nil
}

type mockTxManager struct {
	withTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.withTransactionFunc != nil {
		return m.withTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

type mockBlobStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	storeErr  error
	deleteErr error
	deleted   []string
}

func newMockBlobStore() *mockBlobStore {
	return &mockBlobStore{objects: make(map[string][]byte)}
}

func (m *mockBlobStore) Store(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storeErr != nil {
		return "", m.storeErr
	}
	url := fmt.Sprintf("/uploads/%d-%s", len(m.objects)+1, filename)
	m.objects[url] = data
	return url, nil
}

func (m *mockBlobStore) Delete(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, url)
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.objects, url)
	return nil
}

type mockNormalizer struct {
	err error
}

func (m *mockNormalizer) Normalize(filename string, data []byte) (*port.NormalizedImage, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &port.NormalizedImage{Data: data, ContentType: "image/jpeg", Extension: ".jpg"}, nil
}

type mockExporter struct {
	sheet port.ReceiptSheet
}

func (m *mockExporter) Export(sheet port.ReceiptSheet) ([]byte, error) {
	m.sheet = sheet
	return []byte("xlsx"), nil
}

type sentMail struct {
	To      []string
	Subject string
	HTML    string
}

type mockMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *mockMailer) Send(ctx context.Context, to []string, subject, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{To: append([]string{}, to...), Subject: subject, HTML: html})
	return nil
}

func (m *mockMailer) Sent() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail{}, m.sent...)
}

type mockHasher struct{}

func (mockHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }

func (mockHasher) Compare(hash, password string) error {
	if hash != "hashed:"+password {
		return apperr.Unauthenticated("password mismatch")
	}
	return nil
}

type mockTokens struct{}

func (mockTokens) Issue(id entity.Identity) (string, error) {
	return fmt.Sprintf("token-%d", id.UserID), nil
}

func (mockTokens) Parse(token string) (int64, error) {
	var id int64
	if _, err := fmt.Sscanf(token, "token-%d", &id); err != nil {
		return 0, apperr.Unauthenticated("bad token")
	}
	return id, nil
}

var errBoom = errors.New("boom")
