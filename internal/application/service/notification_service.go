package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/garyjia/receipt-approval/internal/application/port"
	"github.com/garyjia/receipt-approval/internal/domain/entity"
	"github.com/garyjia/receipt-approval/internal/domain/event"
)

// NotificationService tells the right people about receipt changes
type NotificationService interface {
	// HandleEvent is the dispatcher entry point. Delivery failures are logged, never returned.
	HandleEvent(ctx context.Context, evt *event.Event) error

	// Notify resolves the audience for the event and sends one message to it
	Notify(ctx context.Context, kind event.Type, d entity.NotificationDirective) error

	// Audience returns the deduplicated email addresses that should hear about the event
	Audience(ctx context.Context, kind event.Type, d entity.NotificationDirective) ([]string, error)
}

type notificationServiceImpl struct {
	userRepo port.UserRepository
	mailer   port.Mailer
	baseURL  string
	logger   Logger
}

// NewNotificationService creates a new NotificationService. baseURL prefixes receipt deep links.
func NewNotificationService(userRepo port.UserRepository, mailer port.Mailer, baseURL string, logger Logger) NotificationService {
	return &notificationServiceImpl{
		userRepo: userRepo,
		mailer:   mailer,
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   logger,
	}
}

var (
	newReceiptTmpl = template.Must(template.New("new_receipt").Parse(
		`<h1>New Receipt Submitted</h1>
<p>A new receipt titled <strong>{{.Title}}</strong> was submitted by {{.ActorName}} and is awaiting your approval.</p>
<p><a href="{{.Link}}">View receipt</a></p>
`))

	receiptActionTmpl = template.Must(template.New("receipt_action").Parse(
		`<h1>Receipt {{.Action}}</h1>
<p>The receipt titled <strong>{{.Title}}</strong> was {{.Verb}} by {{.ActorName}} ({{.Role}}).</p>
{{if .Reason}}<p>Reason: {{.Reason}}</p>
{{end}}<p>Current status: {{.Status}}</p>
<p><a href="{{.Link}}">View receipt</a></p>
`))
)

type messageData struct {
	Title     string
	Action    string
	Verb      string
	Role      string
	ActorName string
	Reason    string
	Status    string
	Link      string
}

func (s *notificationServiceImpl) HandleEvent(ctx context.Context, evt *event.Event) error {
	if err := s.Notify(ctx, evt.Type, evt.Directive()); err != nil {
		s.logger.Error("Notification failed",
			"event_type", evt.Type,
			"event_id", evt.ID,
			"receipt_id", evt.ReceiptID,
			"error", err,
		)
	}
	return nil
}

func (s *notificationServiceImpl) Notify(ctx context.Context, kind event.Type, d entity.NotificationDirective) error {
	recipients, err := s.Audience(ctx, kind, d)
	if err != nil {
		return fmt.Errorf("resolve audience: %w", err)
	}
	if len(recipients) == 0 {
		s.logger.Info("No recipients for notification", "event_type", kind, "receipt_id", d.ReceiptID)
		return nil
	}

	subject, body, err := s.render(kind, d)
	if err != nil {
		return err
	}

	if err := s.mailer.Send(ctx, recipients, subject, body); err != nil {
		return fmt.Errorf("send %q: %w", subject, err)
	}

	s.logger.Info("Notification sent",
		"event_type", kind,
		"receipt_id", d.ReceiptID,
		"recipient_count", len(recipients),
	)
	return nil
}

func (s *notificationServiceImpl) Audience(ctx context.Context, kind event.Type, d entity.NotificationDirective) ([]string, error) {
	var groups [][]*entity.User

	switch kind {
	case event.TypeReceiptCreated:
		managers, err := s.userRepo.ListByRole(ctx, entity.RoleManager, &d.SectionID)
		if err != nil {
			return nil, err
		}
		groups = append(groups, managers)

	case event.TypeReceiptApproved:
		switch d.ActingRole {
		case entity.RoleManager:
			dgms, err := s.userRepo.ListByRole(ctx, entity.RoleDGM, nil)
			if err != nil {
				return nil, err
			}
			groups = append(groups, dgms)
		case entity.RoleDGM:
			gms, err := s.userRepo.ListByRole(ctx, entity.RoleGM, nil)
			if err != nil {
				return nil, err
			}
			author, err := s.author(ctx, d)
			if err != nil {
				return nil, err
			}
			groups = append(groups, gms, author)
		case entity.RoleGM:
			author, err := s.author(ctx, d)
			if err != nil {
				return nil, err
			}
			groups = append(groups, author)
		}

	case event.TypeReceiptRejected:
		author, err := s.author(ctx, d)
		if err != nil {
			return nil, err
		}
		groups = append(groups, author)
	}

	seen := make(map[string]bool)
	emails := make([]string, 0)
	for _, group := range groups {
		for _, u := range group {
			addr := strings.ToLower(strings.TrimSpace(u.Email))
			if addr == "" || seen[addr] {
				continue
			}
			seen[addr] = true
			emails = append(emails, addr)
		}
	}
	return emails, nil
}

func (s *notificationServiceImpl) author(ctx context.Context, d entity.NotificationDirective) ([]*entity.User, error) {
	u, err := s.userRepo.GetByID(ctx, d.WrittenByID)
	if err != nil {
		return nil, fmt.Errorf("load author %d: %w", d.WrittenByID, err)
	}
	return []*entity.User{u}, nil
}

func (s *notificationServiceImpl) render(kind event.Type, d entity.NotificationDirective) (string, string, error) {
	data := messageData{
		Title:     d.Title,
		Role:      d.ActingRole.DisplayName(),
		ActorName: d.ActorName,
		Reason:    d.Reason,
		Status:    d.NewStatus.String(),
		Link:      fmt.Sprintf("%s/receipts/%d", s.baseURL, d.ReceiptID),
	}

	var subject string
	tmpl := receiptActionTmpl
	switch kind {
	case event.TypeReceiptCreated:
		subject = "New Receipt Submitted: " + d.Title
		tmpl = newReceiptTmpl
	case event.TypeReceiptApproved:
		data.Action, data.Verb = "Approved", "approved"
		subject = fmt.Sprintf("Receipt Approved by %s: %s", data.Role, d.Title)
	case event.TypeReceiptRejected:
		data.Action, data.Verb = "Rejected", "rejected"
		subject = fmt.Sprintf("Receipt Rejected by %s: %s", data.Role, d.Title)
	default:
		return "", "", fmt.Errorf("no template for event type %s", kind)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render %s message: %w", kind, err)
	}
	return subject, buf.String(), nil
}
