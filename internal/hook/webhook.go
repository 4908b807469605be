package hook

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/iurnickita/poscashup/internal/hook/config"
	"github.com/iurnickita/poscashup/internal/model"
)

const (
	EventMovementRecorded = "cashup.movement.recorded"
	EventCashupClosed     = "cashup.closed"
)

// JSON уведомления
type WebhookEvent struct {
	Event          string             `json:"event"`
	CashupID       string             `json:"cashupId"`
	TerminalID     string             `json:"terminalId"`
	OrganizationID string             `json:"organizationId"`
	UserID         string             `json:"userId"`
	TransactionID  string             `json:"transactionId,omitempty"`
	PaymentMethod  string             `json:"paymentMethodId,omitempty"`
	Direction      string             `json:"type,omitempty"`
	Amount         *decimal.Decimal   `json:"amount,omitempty"`
	CloseResult    *model.CloseResult `json:"closeResult,omitempty"`
	SentAt         time.Time          `json:"sentAt"`
}

// Webhook отправляет события движения и закрытия смены на внешний адрес.
type Webhook struct {
	client *resty.Client
	url    string
}

func NewWebhook(cfg config.Config) *Webhook {
	client := resty.New()
	if cfg.WebhookTimeout > 0 {
		client.SetTimeout(cfg.WebhookTimeout)
	}
	client.SetHeader("Content-Type", "application/json")
	return &Webhook{client: client, url: cfg.WebhookURL}
}

func (w *Webhook) OnMovementRecorded(ctx context.Context, rc model.RequestContext, movement model.CashMovement) error {
	amount := movement.Amount()
	return w.send(ctx, WebhookEvent{
		Event:          EventMovementRecorded,
		CashupID:       movement.CashupID,
		TerminalID:     rc.TerminalID,
		OrganizationID: rc.OrganizationID,
		UserID:         rc.UserID,
		TransactionID:  movement.ID,
		PaymentMethod:  movement.PaymentMethodID,
		Direction:      string(movement.Direction),
		Amount:         &amount,
	})
}

func (w *Webhook) OnCashupClosed(ctx context.Context, rc model.RequestContext, cashup model.Cashup, outcome model.CloseOutcome) error {
	return w.send(ctx, WebhookEvent{
		Event:          EventCashupClosed,
		CashupID:       cashup.ID,
		TerminalID:     cashup.TerminalID,
		OrganizationID: cashup.OrganizationID,
		UserID:         rc.UserID,
		CloseResult:    &outcome.CloseResult,
	})
}

func (w *Webhook) send(ctx context.Context, event WebhookEvent) error {
	event.SentAt = time.Now().UTC()

	setreq := w.client.R().SetContext(ctx).SetBody(event)
	setreq.Method = http.MethodPost
	setreq.URL = w.url
	setresp, err := setreq.Send()
	if err != nil {
		return err
	}

	if setresp.IsError() {
		return fmt.Errorf("webhook %s status: %d", event.Event, setresp.StatusCode())
	}
	return nil
}
