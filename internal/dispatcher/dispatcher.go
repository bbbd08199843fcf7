// internal/dispatcher/dispatcher.go

// Package dispatcher polls pending notifications and performs actual
// delivery: email via SES, SMS via SNS for session reminders, and the
// calendar workflow trigger. Rows whose delivery succeeded (or can
// never succeed, such as a missing recipient) are acknowledged with
// one batched mark-sent; failed rows stay pending and are retried on
// the next poll.
package dispatcher

import (
	"context"
	"database/sql"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"

	"studybuddy-backend/internal/common/config"
	"studybuddy-backend/internal/common/logger"
	"studybuddy-backend/internal/common/metrics"
	"studybuddy-backend/internal/common/observability"
	"studybuddy-backend/internal/common/workflow"
	"studybuddy-backend/internal/models"
)

// Interfaces for mocking the external services.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type WorkflowService interface {
	Trigger(ctx context.Context, payload *workflow.TriggerPayload) error
}

type DeliveryIndexer interface {
	Index(ctx context.Context, index, docID string, doc interface{}) error
}

// PendingStore is the slice of the record store the dispatcher uses.
type PendingStore interface {
	ListPending(ctx context.Context, limit int) ([]models.Notification, error)
	MarkSent(ctx context.Context, ids []int64) (int64, error)
}

// Dispatcher drains pending notifications on an interval.
type Dispatcher struct {
	cfg      config.NotificationConfig
	dispatch config.DispatcherConfig
	store    PendingStore
	db       *sql.DB
	logger   logger.Logger
	obs      *observability.Observability

	sesClient      SESService
	snsClient      SNSService
	workflowClient WorkflowService
	indexer        DeliveryIndexer
	indexName      string
}

// New wires a Dispatcher. Any of sesClient, snsClient, workflowClient,
// or indexer may be nil; the corresponding channel is skipped.
func New(
	cfg config.NotificationConfig,
	dispatch config.DispatcherConfig,
	st PendingStore,
	db *sql.DB,
	sesClient SESService,
	snsClient SNSService,
	workflowClient WorkflowService,
	indexer DeliveryIndexer,
	indexName string,
	obs *observability.Observability,
	log logger.Logger,
) *Dispatcher {
	return &Dispatcher{
		cfg:            cfg,
		dispatch:       dispatch,
		store:          st,
		db:             db,
		sesClient:      sesClient,
		snsClient:      snsClient,
		workflowClient: workflowClient,
		indexer:        indexer,
		indexName:      indexName,
		obs:            obs,
		logger:         log.WithFields(map[string]interface{}{"component": "dispatcher"}),
	}
}

// Run polls until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	interval := config.GetDuration(d.dispatch.PollInterval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.logger.Info("dispatcher started", map[string]interface{}{
		"pollInterval": interval.String(),
		"batchSize":    d.dispatch.BatchSize,
	})

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopping", nil)
			return
		case <-ticker.C:
			d.RunOnce(ctx)
		}
	}
}

// RunOnce processes one batch of pending notifications and returns the
// number acknowledged. Errors are logged; the next poll retries.
func (d *Dispatcher) RunOnce(ctx context.Context) int {
	started := time.Now()

	pending, err := d.store.ListPending(ctx, d.dispatch.BatchSize)
	if err != nil {
		d.recordJob(ctx, "failed", started)
		d.logger.WithError(err).Error("pending poll failed", nil)
		return 0
	}
	if len(pending) == 0 {
		d.recordJob(ctx, "completed", started)
		return 0
	}

	delivered := make([]int64, 0, len(pending))
	for i := range pending {
		if d.deliver(ctx, &pending[i]) {
			delivered = append(delivered, pending[i].ID)
		}
	}

	if len(delivered) > 0 {
		affected, err := d.store.MarkSent(ctx, delivered)
		if err != nil {
			// Rows stay pending; the de-duplication on the consumer
			// side is the recipient's inbox, so a re-send is possible
			// here. Acceptable for reminder traffic.
			d.logger.WithError(err).Error("mark-sent failed", map[string]interface{}{
				"ids": delivered,
			})
		} else {
			d.logger.Info("batch dispatched", map[string]interface{}{
				"pending":   len(pending),
				"delivered": len(delivered),
				"marked":    affected,
			})
		}
	}

	d.recordJob(ctx, "completed", started)
	return len(delivered)
}

// deliver attempts every applicable channel for one notification and
// reports whether the row should be acknowledged.
func (d *Dispatcher) deliver(ctx context.Context, n *models.Notification) bool {
	email, phone, err := d.recipientContact(ctx, n.UserID)
	if err == sql.ErrNoRows {
		// The recipient no longer exists; this row can never become
		// deliverable, so acknowledge it instead of repolling forever.
		d.logger.Warn("recipient not found, acknowledging", map[string]interface{}{
			"notificationId": n.ID,
			"userId":         n.UserID,
		})
		return true
	}
	if err != nil {
		d.logger.WithError(err).Error("recipient lookup failed", map[string]interface{}{
			"notificationId": n.ID,
		})
		return false
	}

	subject, body := renderNotification(n)
	deliveryID := uuid.New().String()
	channels := []string{}

	if d.cfg.Email.Enabled && d.sesClient != nil && email != "" {
		if err := d.sendEmail(ctx, email, subject, body); err != nil {
			metrics.DispatchAttempts.WithLabelValues("email", "failed").Inc()
			d.logger.WithError(err).Error("email send failed", map[string]interface{}{
				"notificationId": n.ID,
			})
			return false
		}
		metrics.DispatchAttempts.WithLabelValues("email", "sent").Inc()
		channels = append(channels, "email")
	}

	// SMS is reserved for time-critical reminders.
	if d.cfg.SMS.Enabled && d.snsClient != nil && phone != "" && n.Type == models.TypeSessionReminder {
		if err := d.sendSMS(ctx, phone, body); err != nil {
			metrics.DispatchAttempts.WithLabelValues("sms", "failed").Inc()
			d.logger.WithError(err).Error("SMS send failed", map[string]interface{}{
				"notificationId": n.ID,
			})
			return false
		}
		metrics.DispatchAttempts.WithLabelValues("sms", "sent").Inc()
		channels = append(channels, "sms")
	}

	// Calendar workflow is best-effort: a trigger failure does not hold
	// the row pending, because email/SMS already went out.
	if d.cfg.Workflow.Enabled && d.workflowClient != nil && n.Type == models.TypeSessionReminder {
		if err := d.triggerWorkflow(ctx, n); err != nil {
			metrics.DispatchAttempts.WithLabelValues("workflow", "failed").Inc()
			d.logger.WithError(err).Warn("workflow trigger failed", map[string]interface{}{
				"notificationId": n.ID,
			})
		} else {
			metrics.DispatchAttempts.WithLabelValues("workflow", "sent").Inc()
			channels = append(channels, "workflow")
		}
	}

	d.indexDelivery(ctx, n, deliveryID, channels)
	return true
}

func (d *Dispatcher) recipientContact(ctx context.Context, userID string) (string, string, error) {
	var email, phone sql.NullString
	query := `SELECT email, phone FROM users WHERE user_id = $1`
	err := d.db.QueryRowContext(ctx, query, userID).Scan(&email, &phone)
	return email.String, phone.String, err
}

func (d *Dispatcher) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := d.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
				Html: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(d.cfg.Email.FromEmail),
	})
	return err
}

func (d *Dispatcher) sendSMS(ctx context.Context, to, message string) error {
	_, err := d.snsClient.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	})
	return err
}

func (d *Dispatcher) triggerWorkflow(ctx context.Context, n *models.Notification) error {
	return d.workflowClient.Trigger(ctx, &workflow.TriggerPayload{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Type:           n.Type,
		Title:          n.Title,
		Message:        n.Message,
		Metadata:       n.Metadata,
		TriggeredAt:    time.Now().UTC().Format(time.RFC3339),
	})
}

// deliveryRecord is the ops-search document indexed per acknowledged row.
type deliveryRecord struct {
	DeliveryID     string   `json:"delivery_id"`
	NotificationID int64    `json:"notification_id"`
	UserID         string   `json:"user_id"`
	Type           string   `json:"notification_type"`
	Channels       []string `json:"channels"`
	DeliveredAt    string   `json:"delivered_at"`
}

func (d *Dispatcher) indexDelivery(ctx context.Context, n *models.Notification, deliveryID string, channels []string) {
	if d.indexer == nil {
		return
	}
	doc := deliveryRecord{
		DeliveryID:     deliveryID,
		NotificationID: n.ID,
		UserID:         n.UserID,
		Type:           n.Type,
		Channels:       channels,
		DeliveredAt:    time.Now().UTC().Format(time.RFC3339),
	}
	if err := d.indexer.Index(ctx, d.indexName, deliveryID, doc); err != nil {
		d.logger.WithError(err).Warn("delivery record indexing failed", map[string]interface{}{
			"notificationId": n.ID,
		})
	}
}

func (d *Dispatcher) recordJob(ctx context.Context, status string, started time.Time) {
	if d.obs == nil {
		return
	}
	d.obs.RecordJobProcessed(ctx, "dispatch-poll", status)
	d.obs.RecordJobDuration(ctx, "dispatch-poll", time.Since(started))
}
