package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/lumora-sms/lumora/internal/ledger"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskInvoiceGenerated notifies students/guardians about new invoices.
	TaskInvoiceGenerated = "billing:invoice-generated"
	// TaskPaymentReceived notifies the payer that a payment was recorded.
	TaskPaymentReceived = "billing:payment-received"
	// TaskPaymentReminder nudges students with an outstanding balance.
	TaskPaymentReminder = "billing:payment-reminder"
	// TaskMirrorPayment copies a fee payment into the general ledger.
	TaskMirrorPayment = "ledger:mirror-payment"
)

// InvoiceGeneratedPayload carries the invoices created by one generation run.
type InvoiceGeneratedPayload struct {
	InvoiceIDs []int64 `json:"invoice_ids"`
	StudentIDs []int64 `json:"student_ids"`
}

// PaymentReceivedPayload describes a recorded payment.
type PaymentReceivedPayload struct {
	InvoiceID int64   `json:"invoice_id"`
	StudentID int64   `json:"student_id"`
	Amount    float64 `json:"amount"`
}

// PaymentReminderPayload describes an outstanding balance reminder.
type PaymentReminderPayload struct {
	InvoiceID int64   `json:"invoice_id"`
	StudentID int64   `json:"student_id"`
	Balance   float64 `json:"balance"`
}

// MirrorPaymentPayload describes a payment to mirror into the ledger.
type MirrorPaymentPayload struct {
	PaymentID   int64     `json:"payment_id"`
	Amount      float64   `json:"amount"`
	Method      string    `json:"method"`
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
}

func newTask(taskType string, payload any) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, data), nil
}

// NewNotificationHandler returns the handler for all notification task types.
// Delivery itself (push, SMS, email) is owned by the notification gateway;
// this handler hands the event over and reports the outcome.
func NewNotificationHandler(logger *slog.Logger, gateway NotificationGateway) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		switch t.Type() {
		case TaskInvoiceGenerated:
			var p InvoiceGeneratedPayload
			if err := json.Unmarshal(t.Payload(), &p); err != nil {
				return asynq.SkipRetry
			}
			return gateway.Send(ctx, Notification{
				Event:      "invoice_generated",
				InvoiceIDs: p.InvoiceIDs,
				StudentIDs: p.StudentIDs,
			})
		case TaskPaymentReceived:
			var p PaymentReceivedPayload
			if err := json.Unmarshal(t.Payload(), &p); err != nil {
				return asynq.SkipRetry
			}
			return gateway.Send(ctx, Notification{
				Event:      "payment_received",
				InvoiceIDs: []int64{p.InvoiceID},
				StudentIDs: []int64{p.StudentID},
				Amount:     p.Amount,
			})
		case TaskPaymentReminder:
			var p PaymentReminderPayload
			if err := json.Unmarshal(t.Payload(), &p); err != nil {
				return asynq.SkipRetry
			}
			return gateway.Send(ctx, Notification{
				Event:      "payment_reminder",
				InvoiceIDs: []int64{p.InvoiceID},
				StudentIDs: []int64{p.StudentID},
				Amount:     p.Balance,
			})
		default:
			logger.Warn("unknown notification task", slog.String("type", t.Type()))
			return asynq.SkipRetry
		}
	}
}

// NewMirrorPaymentHandler returns the handler mirroring payments into the ledger.
func NewMirrorPaymentHandler(logger *slog.Logger, ledgerSvc *ledger.Service) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var p MirrorPaymentPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return asynq.SkipRetry
		}
		_, err := ledgerSvc.RecordIncome(ctx, ledger.IncomeInput{
			Date:        p.Date,
			Amount:      p.Amount,
			Category:    ledger.CategoryFees,
			Account:     ledger.AccountForMethod(p.Method),
			Description: p.Description,
			SourceType:  ledger.SourceFeePayment,
			SourceID:    p.PaymentID,
		})
		if err != nil {
			if errors.Is(err, ledger.ErrSourceAlreadyLinked) {
				// Retried task that already landed. Nothing to do.
				return nil
			}
			logger.Error("mirror payment", slog.Int64("payment_id", p.PaymentID), slog.Any("error", err))
			return err
		}
		return nil
	}
}

// Notification is the event handed to the notification gateway.
type Notification struct {
	Event      string
	InvoiceIDs []int64
	StudentIDs []int64
	Amount     float64
}

// NotificationGateway delivers notifications to students and guardians.
type NotificationGateway interface {
	Send(ctx context.Context, n Notification) error
}

// LogGateway is the default gateway used until a real push/SMS provider is
// configured: it records the event and succeeds.
type LogGateway struct {
	Logger *slog.Logger
}

// Send logs the notification event.
func (g LogGateway) Send(ctx context.Context, n Notification) error {
	g.Logger.Info("notification dispatched",
		slog.String("event", n.Event),
		slog.Any("invoice_ids", n.InvoiceIDs),
		slog.Any("student_ids", n.StudentIDs),
		slog.Float64("amount", n.Amount),
	)
	return nil
}
