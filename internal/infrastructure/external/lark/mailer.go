package lark

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/garyjia/receipt-approval/internal/application/port"
	"github.com/garyjia/receipt-approval/internal/domain/apperr"
)

// messageCreator is the slice of the IM API the mailer needs
type messageCreator interface {
	Create(ctx context.Context, req *larkim.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error)
}

// messageSender sends one built message body to a receiver
type messageSender interface {
	Send(ctx context.Context, receiveIDType string, body *larkim.CreateMessageReqBody) (*larkim.CreateMessageResp, error)
}

// imMessages wraps the body into a create request for the IM API
type imMessages struct {
	messages messageCreator
}

func (s imMessages) Send(ctx context.Context, receiveIDType string, body *larkim.CreateMessageReqBody) (*larkim.CreateMessageResp, error) {
	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDType).
		Body(body).
		Build()
	return s.messages.Create(ctx, req)
}

// Mailer implements port.Mailer by sending a Lark "post" message to each
// recipient, addressed by email.
type Mailer struct {
	messages messageSender
	logger   *zap.Logger
}

// NewMailer creates a new Lark mailer
func NewMailer(sdkClient *SDKClient, logger *zap.Logger) *Mailer {
	return newMailer(imMessages{messages: sdkClient.GetClient().Im.Message}, logger)
}

func newMailer(messages messageSender, logger *zap.Logger) *Mailer {
	return &Mailer{
		messages: messages,
		logger:   logger,
	}
}

// Send delivers the message to every recipient; failures are collected and returned together
func (m *Mailer) Send(ctx context.Context, to []string, subject, html string) error {
	if len(to) == 0 {
		return nil
	}

	content, err := PostContent(subject, html)
	if err != nil {
		return apperr.Infrastructure("render lark post", err)
	}

	var errs []error
	for _, email := range to {
		if err := m.sendOne(ctx, email, content); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return apperr.Infrastructure("send lark message", errors.Join(errs...))
	}
	return nil
}

func (m *Mailer) sendOne(ctx context.Context, email, content string) error {
	body := larkim.NewCreateMessageReqBodyBuilder().
		ReceiveId(email).
		MsgType("post").
		Content(content).
		Uuid(uuid.NewString()).
		Build()

	resp, err := m.messages.Send(ctx, larkim.ReceiveIdTypeEmail, body)
	if err != nil {
		m.logger.Error("Failed to send message",
			zap.String("receive_id", email),
			zap.Error(err))
		return fmt.Errorf("send to %s: %w", email, err)
	}

	if !resp.Success() {
		m.logger.Error("API returned failure",
			zap.String("receive_id", email),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("send to %s: code=%d, msg=%s", email, resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}

	m.logger.Info("Message sent successfully",
		zap.String("message_id", messageID),
		zap.String("receive_id", email))
	return nil
}

var _ port.Mailer = (*Mailer)(nil)
