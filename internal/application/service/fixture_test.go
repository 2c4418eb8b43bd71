package service

import (
	"context"
	"sync"
	"testing"

	"github.com/garyjia/receipt-approval/internal/application/dispatcher"
	"github.com/garyjia/receipt-approval/internal/application/port"
	"github.com/garyjia/receipt-approval/internal/domain/entity"
	"github.com/garyjia/receipt-approval/internal/domain/event"
	"github.com/garyjia/receipt-approval/internal/domain/view"
	"github.com/garyjia/receipt-approval/internal/domain/workflow"
)

// syncDispatcher runs handlers inline so tests can assert on their effects immediately
type syncDispatcher struct {
	mu       sync.Mutex
	handlers map[event.Type][]dispatcher.Handler
	events   []*event.Event
}

func newSyncDispatcher() *syncDispatcher {
	return &syncDispatcher{handlers: make(map[event.Type][]dispatcher.Handler)}
}

func (d *syncDispatcher) Subscribe(name string, h dispatcher.Handler, types ...event.Type) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range types {
		d.handlers[t] = append(d.handlers[t], h)
	}
}

func (d *syncDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	d.mu.Lock()
	d.events = append(d.events, evt)
	handlers := append([]dispatcher.Handler{}, d.handlers[evt.Type]...)
	d.mu.Unlock()
	for _, h := range handlers {
		if err := h(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

func (d *syncDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	_ = d.Dispatch(context.WithoutCancel(ctx), evt)
}

func (d *syncDispatcher) ListHandlers(event.Type) []dispatcher.HandlerInfo { return nil }
func (d *syncDispatcher) InFlight() int64                                   { return 0 }
func (d *syncDispatcher) Close() error                                      { return nil }

func (d *syncDispatcher) Events() []*event.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*event.Event{}, d.events...)
}

type fixture struct {
	receipts   *memReceiptRepo
	users      *memUserRepo
	sections   *memSectionRepo
	blobs      *mockBlobStore
	mailer     *mockMailer
	exporter   *mockExporter
	normalizer *mockNormalizer
	dispatcher *syncDispatcher
	logger     *mockLogger

	approval      ApprovalService
	receiptSvc    ReceiptService
	notifications NotificationService

	cutting, sewing int64

	hr, otherHR, cuttingMgr, sewingMgr, dgm, gm, security entity.Identity
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithOptions(t, workflow.Options{}, view.Options{})
}

func newFixtureWithOptions(t *testing.T, wf workflow.Options, vw view.Options) *fixture {
	t.Helper()

	f := &fixture{
		receipts:   newMemReceiptRepo(),
		users:      newMemUserRepo(),
		sections:   newMemSectionRepo("Cutting", "Sewing"),
		blobs:      newMockBlobStore(),
		mailer:     &mockMailer{},
		exporter:   &mockExporter{},
		normalizer: &mockNormalizer{},
		dispatcher: newSyncDispatcher(),
		logger:     &mockLogger{},
		cutting:    1,
		sewing:     2,
	}

	cutting, sewing := f.cutting, f.sewing
	f.hr = f.users.add(&entity.User{Username: "hruser", Email: "hr@example.com", Role: entity.RoleHR}).Identity()
	f.otherHR = f.users.add(&entity.User{Username: "hruser2", Email: "hr2@example.com", Role: entity.RoleHR}).Identity()
	f.cuttingMgr = f.users.add(&entity.User{Username: "cutting_manager", Email: "cutting@example.com", Role: entity.RoleManager, SectionID: &cutting}).Identity()
	f.sewingMgr = f.users.add(&entity.User{Username: "sewing_manager", Email: "sewing@example.com", Role: entity.RoleManager, SectionID: &sewing}).Identity()
	f.dgm = f.users.add(&entity.User{Username: "dgmuser", Email: "dgm@example.com", Role: entity.RoleDGM}).Identity()
	f.gm = f.users.add(&entity.User{Username: "gmuser", Email: "gm@example.com", Role: entity.RoleGM}).Identity()
	f.security = f.users.add(&entity.User{Username: "securityuser", Email: "security@example.com", Role: entity.RoleSecurity}).Identity()

	policy := workflow.NewPolicy(wf)
	f.approval = NewApprovalService(f.receipts, &mockTxManager{}, policy, f.dispatcher, f.logger)
	f.receiptSvc = NewReceiptService(ReceiptServiceDeps{
		Receipts:   f.receipts,
		Sections:   f.sections,
		Blobs:      f.blobs,
		Normalizer: f.normalizer,
		Exporter:   f.exporter,
		Policy:     policy,
		Dispatcher: f.dispatcher,
		View:       vw,
		Logger:     f.logger,
	})
	f.notifications = NewNotificationService(f.users, f.mailer, "https://receipts.example.com/", f.logger)
	f.dispatcher.Subscribe("notifications", f.notifications.HandleEvent,
		event.TypeReceiptCreated, event.TypeReceiptApproved, event.TypeReceiptRejected)

	return f
}

func (f *fixture) createReceipt(t *testing.T, title string, sectionID int64) *entity.Receipt {
	t.Helper()
	r, err := f.receiptSvc.Create(context.Background(), f.hr, CreateReceiptInput{
		Title:     title,
		SectionID: sectionID,
		Filename:  "receipt.jpg",
		Image:     []byte{0xff, 0xd8, 0xff},
	})
	if err != nil {
		t.Fatalf("create receipt: %v", err)
	}
	return r
}

func portOpts() port.ListOptions {
	return port.ListOptions{}
}
