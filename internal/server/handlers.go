// internal/server/handlers.go
package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	apperrors "studybuddy-backend/internal/common/errors"
	"studybuddy-backend/internal/common/logger"
	"studybuddy-backend/internal/common/validation"
	"studybuddy-backend/internal/models"
	"studybuddy-backend/internal/scheduler"
	"studybuddy-backend/internal/store"
)

// Handler carries the notification endpoints' dependencies.
type Handler struct {
	store     *store.Store
	scheduler *scheduler.Scheduler
	logger    logger.Logger
}

// NewHandler creates the endpoint handler set.
func NewHandler(st *store.Store, sched *scheduler.Scheduler, log logger.Logger) *Handler {
	return &Handler{
		store:     st,
		scheduler: sched,
		logger:    log.WithFields(map[string]interface{}{"component": "http"}),
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// List handles GET /.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := UserFromContext(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "auth required"})
		return
	}

	q := r.URL.Query()
	opts := store.ListOptions{
		UnreadOnly: q.Get("unreadOnly") == "true",
		Type:       q.Get("type"),
	}
	opts.Limit, _ = strconv.Atoi(q.Get("limit"))
	opts.Offset, _ = strconv.Atoi(q.Get("offset"))

	notifications, err := h.store.List(r.Context(), userID, opts)
	if err != nil {
		apperrors.WriteHTTP(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, notifications)
}

// Counts handles GET /counts.
func (h *Handler) Counts(w http.ResponseWriter, r *http.Request) {
	userID, err := UserFromContext(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "auth required"})
		return
	}

	counts, err := h.store.Counts(r.Context(), userID)
	if err != nil {
		apperrors.WriteHTTP(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// MarkRead handles PUT /{id}/read.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, err := UserFromContext(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "auth required"})
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		apperrors.WriteHTTP(w, h.logger, apperrors.NewValidationError("invalid notification id"))
		return
	}

	n, err := h.store.MarkRead(r.Context(), userID, id)
	if err != nil {
		apperrors.WriteHTTP(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// MarkAllRead handles PUT /read-all.
func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, err := UserFromContext(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "auth required"})
		return
	}

	affected, err := h.store.MarkAllRead(r.Context(), userID)
	if err != nil {
		apperrors.WriteHTTP(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": fmt.Sprintf("%d notifications marked as read", affected),
		"updated": affected,
	})
}

// Delete handles DELETE /{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := UserFromContext(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "auth required"})
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		apperrors.WriteHTTP(w, h.logger, apperrors.NewValidationError("invalid notification id"))
		return
	}

	if err := h.store.Delete(r.Context(), userID, id); err != nil {
		apperrors.WriteHTTP(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Notification deleted"})
}

type createRequest struct {
	UserID       interface{}            `json:"user_id"`
	Type         string                 `json:"notification_type"`
	Title        string                 `json:"title"`
	Message      string                 `json:"message"`
	Metadata     map[string]interface{} `json:"metadata"`
	ScheduledFor *string                `json:"scheduled_for"`
}

// Create handles POST /. This is the system/admin creation path; the
// scheduler writes through the store directly.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		apperrors.WriteHTTP(w, h.logger, apperrors.NewValidationError("unreadable body"))
		return
	}

	if err := validation.ValidateJSON(validation.CreateNotificationSchema, body); err != nil {
		apperrors.WriteHTTP(w, h.logger, apperrors.NewValidationError(err.Error()))
		return
	}

	var req createRequest
	if err := json.Unmarshal(body, &req); err != nil {
		apperrors.WriteHTTP(w, h.logger, apperrors.NewValidationError("invalid JSON body"))
		return
	}

	if !models.IsValidNotificationType(req.Type) {
		apperrors.WriteHTTP(w, h.logger, apperrors.NewInvalidNotificationTypeError(req.Type))
		return
	}

	var scheduledFor *time.Time
	if req.ScheduledFor != nil && *req.ScheduledFor != "" {
		t, err := time.Parse(time.RFC3339, *req.ScheduledFor)
		if err != nil {
			apperrors.WriteHTTP(w, h.logger, apperrors.NewValidationError("scheduled_for must be RFC3339"))
			return
		}
		scheduledFor = &t
	}

	n, err := h.store.Create(r.Context(), store.CreateParams{
		UserID:       coerceUserID(req.UserID),
		Type:         req.Type,
		Title:        req.Title,
		Message:      req.Message,
		Metadata:     req.Metadata,
		ScheduledFor: scheduledFor,
		Source:       "api",
	})
	if err != nil {
		apperrors.WriteHTTP(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

type groupNotifyRequest struct {
	Type     string                 `json:"notification_type"`
	Title    string                 `json:"title"`
	Message  string                 `json:"message"`
	Metadata map[string]interface{} `json:"metadata"`
}

// GroupNotify handles POST /group/{groupId}/notify: fan-out to every
// active member of the group except the sender. Only the group's
// creator or an active admin may broadcast.
func (h *Handler) GroupNotify(w http.ResponseWriter, r *http.Request) {
	userID, err := UserFromContext(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "auth required"})
		return
	}

	groupID, err := pathID(r, "groupId")
	if err != nil {
		apperrors.WriteHTTP(w, h.logger, apperrors.NewValidationError("invalid group id"))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		apperrors.WriteHTTP(w, h.logger, apperrors.NewValidationError("unreadable body"))
		return
	}
	if err := validation.ValidateJSON(validation.GroupNotifySchema, body); err != nil {
		apperrors.WriteHTTP(w, h.logger, apperrors.NewValidationError(err.Error()))
		return
	}

	var req groupNotifyRequest
	if err := json.Unmarshal(body, &req); err != nil {
		apperrors.WriteHTTP(w, h.logger, apperrors.NewValidationError("invalid JSON body"))
		return
	}
	if req.Type == "" {
		req.Type = models.TypeGroupInvite
	}
	if !models.IsValidNotificationType(req.Type) {
		apperrors.WriteHTTP(w, h.logger, apperrors.NewInvalidNotificationTypeError(req.Type))
		return
	}

	group, err := h.store.GetGroup(r.Context(), groupID)
	if err != nil {
		apperrors.WriteHTTP(w, h.logger, err)
		return
	}

	isAdmin, err := h.store.IsGroupAdmin(r.Context(), groupID, userID)
	if err != nil {
		apperrors.WriteHTTP(w, h.logger, err)
		return
	}
	if !isAdmin {
		apperrors.WriteHTTP(w, h.logger, apperrors.NewForbiddenError("Only the group creator or an admin can send group notifications"))
		return
	}

	memberIDs, err := h.store.ListActiveMemberIDs(r.Context(), groupID, userID)
	if err != nil {
		apperrors.WriteHTTP(w, h.logger, err)
		return
	}

	metadata := map[string]interface{}{"group_id": group.ID}
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	created := 0
	for _, memberID := range memberIDs {
		_, err := h.store.Create(r.Context(), store.CreateParams{
			UserID:   memberID,
			Type:     req.Type,
			Title:    req.Title,
			Message:  req.Message,
			Metadata: metadata,
			Source:   "group-notify",
		})
		if err != nil {
			h.logger.WithError(err).Error("group fan-out create failed", map[string]interface{}{
				"groupId": groupID,
				"userId":  memberID,
			})
			continue
		}
		created++
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":       fmt.Sprintf("Notified %d group members", created),
		"notifications": created,
	})
}

// ListPending handles GET /pending (service-token only).
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	pending, err := h.store.ListPending(r.Context(), limit)
	if err != nil {
		apperrors.WriteHTTP(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

type markSentRequest struct {
	NotificationIDs []interface{} `json:"notification_ids"`
}

// MarkSent handles PUT /mark-sent (service-token only). Non-numeric
// entries in the id list are dropped before the query, not rejected as
// a whole-request error; an empty post-filter list is a 400.
func (h *Handler) MarkSent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		apperrors.WriteHTTP(w, h.logger, apperrors.NewValidationError("unreadable body"))
		return
	}
	if err := validation.ValidateJSON(validation.MarkSentSchema, body); err != nil {
		apperrors.WriteHTTP(w, h.logger, apperrors.NewValidationError(err.Error()))
		return
	}

	var req markSentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		apperrors.WriteHTTP(w, h.logger, apperrors.NewValidationError("invalid JSON body"))
		return
	}

	ids := normalizeIDList(req.NotificationIDs)
	if len(ids) == 0 {
		apperrors.WriteHTTP(w, h.logger, apperrors.NewInvalidIDListError())
		return
	}

	affected, err := h.store.MarkSent(r.Context(), ids)
	if err != nil {
		apperrors.WriteHTTP(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": fmt.Sprintf("%d notifications marked as sent", affected),
		"updated": affected,
	})
}

// ScheduleTwentyFourHour handles POST /sessions/{sessionId}/schedule-24h
// (service-token only).
func (h *Handler) ScheduleTwentyFourHour(w http.ResponseWriter, r *http.Request) {
	sessionID, err := pathID(r, "sessionId")
	if err != nil {
		apperrors.WriteHTTP(w, h.logger, apperrors.NewValidationError("invalid session id"))
		return
	}

	created, err := h.scheduler.ScheduleTwentyFourHour(r.Context(), sessionID)
	if err != nil {
		apperrors.WriteHTTP(w, h.logger, apperrors.NewQueryExecutionFailedError("schedule-24h", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": fmt.Sprintf("Scheduled %d reminders", created),
		"created": created,
	})
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return id, nil
}

// normalizeIDList keeps only positive whole JSON numbers.
func normalizeIDList(raw []interface{}) []int64 {
	ids := make([]int64, 0, len(raw))
	for _, v := range raw {
		f, ok := v.(float64)
		if !ok || f != float64(int64(f)) || f <= 0 {
			continue
		}
		ids = append(ids, int64(f))
	}
	return ids
}

func coerceUserID(v interface{}) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatInt(int64(id), 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}
