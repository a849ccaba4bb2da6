// internal/dispatcher/dispatcher.go
package dispatcher

import (
	"context"
	"fmt"
	"time"

	apperrors "cityreport-notifications/internal/common/errors"
	"cityreport-notifications/internal/common/logger"
	"cityreport-notifications/internal/common/metrics"
	"cityreport-notifications/internal/common/observability"
	"cityreport-notifications/internal/models"
	"cityreport-notifications/internal/resolver"
)

// Snapshots is the read-only problem lookup the dispatcher consumes.
type Snapshots interface {
	Problem(ctx context.Context, id string) (*models.ProblemSnapshot, error)
}

// Store is the batch-write surface of the notification store.
type Store interface {
	CreateBatch(ctx context.Context, batch []models.Notification) ([]models.Notification, error)
}

// DispatchResult summarizes one completed fan-out.
type DispatchResult struct {
	NotificationsCreated int `json:"notifications_created"`
	RecipientsNotified   int `json:"recipients_notified"`
}

// Dispatcher expands one change event into persisted notification records.
// It is stateless and safe to run concurrently; concurrent dispatches for the
// same problem may race on the snapshot read, which is accepted. It never
// retries internally; retry policy belongs to the caller.
type Dispatcher struct {
	snapshots Snapshots
	resolver  *resolver.Resolver
	store     Store
	logger    logger.Logger
	obs       *observability.Observability
}

func New(snapshots Snapshots, res *resolver.Resolver, store Store, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		snapshots: snapshots,
		resolver:  res,
		store:     store,
		logger:    log.WithFields(map[string]interface{}{"component": "dispatcher"}),
	}
}

// WithObservability attaches the OpenTelemetry recorder. Without it only the
// Prometheus counters are emitted.
func (d *Dispatcher) WithObservability(obs *observability.Observability) *Dispatcher {
	d.obs = obs
	return d
}

// Dispatch resolves recipients for the event, builds one notification per
// recipient and writes them in one all-or-nothing batch. A failed batch write
// fails the whole dispatch; no partial-success state is exposed.
func (d *Dispatcher) Dispatch(ctx context.Context, event models.ChangeEvent) (*DispatchResult, error) {
	started := time.Now()

	result, err := d.dispatch(ctx, event)
	if err != nil {
		metrics.DispatchFailures.WithLabelValues(string(event.Kind), string(apperrors.CodeOf(err))).Inc()
		if d.obs != nil {
			d.obs.RecordDispatch(ctx, "error")
		}
		return nil, err
	}

	metrics.DispatchDuration.WithLabelValues(string(event.Kind)).Observe(time.Since(started).Seconds())
	metrics.NotificationsCreated.WithLabelValues(string(event.Kind)).Add(float64(result.NotificationsCreated))
	if d.obs != nil {
		d.obs.RecordDispatch(ctx, "success")
		d.obs.RecordDispatchDuration(ctx, time.Since(started), "success")
	}
	return result, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, event models.ChangeEvent) (*DispatchResult, error) {
	if event.SubjectID == "" {
		return nil, apperrors.NewValidationError("subject_id is required")
	}
	if event.Kind == "" {
		return nil, apperrors.NewValidationError("kind is required")
	}

	snapshot, err := d.snapshots.Problem(ctx, event.SubjectID)
	if err != nil {
		return nil, err
	}

	recipients, err := d.resolver.Resolve(ctx, event, snapshot)
	if err != nil {
		return nil, err
	}

	if len(recipients) == 0 {
		d.logger.Info("no recipients resolved", map[string]interface{}{
			"subjectId": event.SubjectID,
			"kind":      event.Kind,
		})
		return &DispatchResult{}, nil
	}

	msg := buildMessage(event.Kind, snapshot)
	now := time.Now().UTC()

	batch := make([]models.Notification, 0, len(recipients))
	for _, recipientID := range recipients {
		batch = append(batch, models.Notification{
			RecipientID: recipientID,
			Title:       msg.Title,
			Body:        msg.Body,
			Severity:    msg.Severity,
			Read:        false,
			CreatedAt:   now,
			Link:        fmt.Sprintf("/problems/%s", snapshot.ID),
		})
	}

	created, err := d.store.CreateBatch(ctx, batch)
	if err != nil {
		d.logger.WithError(err).Error("batch write failed", map[string]interface{}{
			"subjectId":  event.SubjectID,
			"kind":       event.Kind,
			"recipients": len(recipients),
		})
		if apperrors.IsCode(err, apperrors.ErrCodeStoreUnavailable) {
			return nil, err
		}
		return nil, apperrors.NewStoreWriteFailedError(err)
	}

	d.logger.Info("dispatch complete", map[string]interface{}{
		"subjectId":            event.SubjectID,
		"kind":                 event.Kind,
		"notificationsCreated": len(created),
	})

	return &DispatchResult{
		NotificationsCreated: len(created),
		RecipientsNotified:   len(recipients),
	}, nil
}
