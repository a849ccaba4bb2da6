// internal/server/handlers.go
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	apperrors "cityreport-notifications/internal/common/errors"
	"cityreport-notifications/internal/common/validation"
	"cityreport-notifications/internal/models"
	"cityreport-notifications/internal/session"
	"cityreport-notifications/internal/stream"
	"cityreport-notifications/pkg/timefmt"

	"github.com/gin-gonic/gin"
)

// handleDispatch triggers the fan-out for one committed problem mutation.
func (s *Server) handleDispatch(c *gin.Context) {
	raw, ok := s.bindValidated(c, dispatchSchema)
	if !ok {
		return
	}

	event := models.ChangeEvent{
		SubjectID: stringField(raw, "subject_id"),
		Kind:      models.ChangeKind(stringField(raw, "kind")),
		ActorID:   stringField(raw, "actor_id"),
	}

	result, err := s.dispatcher.Dispatch(c.Request.Context(), event)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// handleCreate persists one notification directly, outside the fan-out path.
func (s *Server) handleCreate(c *gin.Context) {
	raw, ok := s.bindValidated(c, createSchema)
	if !ok {
		return
	}

	severity := models.Severity(stringField(raw, "severity"))
	if severity == "" {
		severity = models.SeverityInfo
	}

	created, err := s.store.CreateBatch(c.Request.Context(), []models.Notification{{
		RecipientID: stringField(raw, "recipient_id"),
		Title:       stringField(raw, "title"),
		Body:        stringField(raw, "body"),
		Severity:    severity,
		Link:        stringField(raw, "link"),
	}})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "notification": created[0]})
}

func (s *Server) handleList(c *gin.Context) {
	recipientID := c.Query("recipient_id")
	if recipientID == "" {
		s.writeError(c, apperrors.NewValidationError("recipient_id is required"))
		return
	}

	limit := s.listLimit
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			s.writeError(c, apperrors.NewValidationError("limit must be a positive integer"))
			return
		}
		if parsed < limit {
			limit = parsed
		}
	}

	items, err := s.store.ListForRecipient(c.Request.Context(), recipientID, limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if items == nil {
		items = []models.Notification{}
	}

	c.JSON(http.StatusOK, gin.H{"notifications": items})
}

func (s *Server) handleMarkRead(c *gin.Context) {
	n, err := s.store.MarkRead(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notification": n})
}

func (s *Server) handleMarkAllRead(c *gin.Context) {
	recipientID := c.Query("recipient_id")
	if recipientID == "" {
		s.writeError(c, apperrors.NewValidationError("recipient_id is required"))
		return
	}

	count, err := s.store.MarkAllRead(c.Request.Context(), recipientID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (s *Server) handleDelete(c *gin.Context) {
	if err := s.store.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDepartments(c *gin.Context) {
	departments, err := s.departments.ListDepartments(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	if departments == nil {
		departments = []models.Department{}
	}
	c.JSON(http.StatusOK, gin.H{"departments": departments})
}

// streamFrame is one SSE data payload: the triggering row event plus the
// session's reconciled view after applying it.
type streamFrame struct {
	Kind         stream.EventKind    `json:"kind"`
	Notification models.Notification `json:"notification"`
	Age          string              `json:"age"`
	UnreadCount  int                 `json:"unread_count"`
}

// snapshotFrame is the initial SSE payload carrying the bulk load result.
type snapshotFrame struct {
	Items       []models.Notification `json:"items"`
	UnreadCount int                   `json:"unread_count"`
}

// handleStream serves the per-recipient realtime view over SSE. One session
// state machine lives for the duration of the connection: the handler owns
// the event loop, so the bulk load, every row event and the session's
// counter updates flow through the session's single serialized apply path.
func (s *Server) handleStream(c *gin.Context) {
	recipientID := c.Query("recipient_id")
	if recipientID == "" {
		s.writeError(c, apperrors.NewValidationError("recipient_id is required"))
		return
	}

	ch, unsubscribe := s.subscriber.Subscribe(recipientID)
	defer unsubscribe()

	// The stream outlives the server-wide write timeout; clear the deadline
	// for this connection so the configured timeout only bounds the regular
	// endpoints. Recorders used in tests do not support deadlines.
	if err := http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.logger.Warn("could not clear write deadline for stream", map[string]interface{}{"error": err.Error()})
	}

	sess := session.New(recipientID, s.store, nil, s.listLimit, s.logger)
	sess.Load(c.Request.Context())

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	items := sess.Items()
	if items == nil {
		items = []models.Notification{}
	}
	c.SSEvent("snapshot", snapshotFrame{Items: items, UnreadCount: sess.UnreadCount()})
	c.Writer.Flush()

	clientGone := c.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			sess.Apply(ev)
			c.SSEvent("row", streamFrame{
				Kind:         ev.Kind,
				Notification: ev.Notification,
				Age:          timefmt.Relative(ev.Notification.CreatedAt, time.Now().UTC()),
				UnreadCount:  sess.UnreadCount(),
			})
			c.Writer.Flush()
		}
	}
}

// bindValidated decodes the JSON body and checks it against the schema,
// answering 400 on failure. Validation happens before any side effect.
func (s *Server) bindValidated(c *gin.Context, schema validation.JSONSchema) (map[string]interface{}, bool) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		s.writeError(c, apperrors.NewValidationError("unreadable request body"))
		return nil, false
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		s.writeError(c, apperrors.NewValidationError("request body must be a JSON object"))
		return nil, false
	}

	if result := validation.ValidateInput(raw, schema); !result.Valid {
		s.writeError(c, apperrors.NewValidationError(result.Summary()))
		return nil, false
	}
	return raw, true
}

func (s *Server) writeError(c *gin.Context, err error) {
	stdErr := apperrors.Normalize(err)
	status := apperrors.HTTPStatus(stdErr)

	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).Error("request failed", map[string]interface{}{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"code":   stdErr.Code,
		})
	}

	msg := stdErr.Message
	if stdErr.Details != "" {
		msg += ": " + stdErr.Details
	}
	c.JSON(status, gin.H{"error": msg})
}

func stringField(raw map[string]interface{}, key string) string {
	if v, ok := raw[key].(string); ok {
		return v
	}
	return ""
}
