package dispatch

import (
	"context"
	"errors"
	"net/http"

	"github.com/smallbiznis/crm/internal/serviceclient"
)

const emailPath = "/api/notifications/email"

// Sender performs one delivery attempt.
type Sender interface {
	Send(ctx context.Context, to, subject, bodyHTML string) error
}

type emailRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// HTTPSender posts to the notification service.
type HTTPSender struct {
	client *serviceclient.Client
}

func NewHTTPSender(client *serviceclient.Client) *HTTPSender {
	return &HTTPSender{client: client}
}

func (s *HTTPSender) Send(ctx context.Context, to, subject, bodyHTML string) error {
	if s == nil || s.client == nil {
		return errors.New("notification client not configured")
	}
	return s.client.Do(ctx, http.MethodPost, emailPath, emailRequest{
		To:      to,
		Subject: subject,
		Message: bodyHTML,
	}, nil)
}

// ContactDirectory resolves a contact id to an email address. An empty
// address with a nil error means the contact has none.
type ContactDirectory interface {
	Email(ctx context.Context, contactID string) (string, error)
}

type ContactService struct {
	client *serviceclient.Client
}

func NewContactService(client *serviceclient.Client) *ContactService {
	return &ContactService{client: client}
}

func (c *ContactService) Email(ctx context.Context, contactID string) (string, error) {
	record, err := c.client.Get(ctx, "/api/contacts", contactID)
	if err != nil {
		return "", err
	}
	return record.String("email"), nil
}
