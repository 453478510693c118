// Package api exposes HTTP handlers for the club activity service.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"example.com/clubhub/internal/auth"
	"example.com/clubhub/internal/domain"
	"example.com/clubhub/internal/realtime"
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service       *domain.Service
	notifications domain.NotificationRepository
	hub           *realtime.Hub
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, notifications domain.NotificationRepository, hub *realtime.Hub) *Handler {
	return &Handler{service: service, notifications: notifications, hub: hub}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/clubs/{clubID}/activities", h.createActivity)
	mux.HandleFunc("GET /v1/clubs/{clubID}/activities", h.listClubActivities)
	mux.HandleFunc("GET /v1/activities/{id}", h.getActivity)
	mux.HandleFunc("PATCH /v1/activities/{id}/status", h.setActivityStatus)
	mux.HandleFunc("PATCH /v1/activities/{id}/details", h.patchActivity)
	mux.HandleFunc("GET /v1/activities/{id}/manage", h.manageActivity)
	mux.HandleFunc("POST /v1/activities/{id}/register", h.register)
	mux.HandleFunc("POST /v1/activities/{id}/unregister", h.unregister)
	mux.HandleFunc("POST /v1/activities/checkin/{regID}", h.checkIn)
	mux.HandleFunc("GET /v1/notifications", h.listNotifications)
	mux.HandleFunc("POST /v1/notifications/{id}/read", h.markNotificationRead)
	mux.HandleFunc("GET /v1/notifications/stream", h.streamNotifications)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeActivitiesManage)
	if !ok {
		return
	}

	var req CreateActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	activity, err := h.service.CreateActivity(r.Context(), claims.Subject, r.PathValue("clubID"), domain.CreateActivityInput{
		Title:       req.Title,
		Subtitle:    req.Subtitle,
		Description: req.Description,
		Location:    req.Location,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Capacity:    req.Capacity,
		Images:      req.Images,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]ActivityView{"activity": toActivityView(*activity)})
}

func (h *Handler) listClubActivities(w http.ResponseWriter, r *http.Request) {
	if _, ok := authenticated(w, r); !ok {
		return
	}
	activities, err := h.service.ListClubActivities(r.Context(), r.PathValue("clubID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	views := make([]ActivityView, 0, len(activities))
	for _, activity := range activities {
		views = append(views, toActivityView(activity))
	}
	writeJSON(w, http.StatusOK, map[string][]ActivityView{"activities": views})
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request) {
	if _, ok := authenticated(w, r); !ok {
		return
	}
	activity, err := h.service.GetActivity(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]ActivityView{"activity": toActivityView(*activity)})
}

func (h *Handler) setActivityStatus(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeActivitiesManage)
	if !ok {
		return
	}

	var req SetStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	activity, err := h.service.SetActivityStatus(r.Context(), r.PathValue("id"), claims.Subject, domain.ActivityStatus(req.Status))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]ActivityView{"activity": toActivityView(*activity)})
}

func (h *Handler) patchActivity(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeActivitiesManage)
	if !ok {
		return
	}

	var req PatchActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	activity, err := h.service.PatchActivity(r.Context(), r.PathValue("id"), claims.Subject, domain.ActivityPatch{
		Title:       req.Title,
		Subtitle:    req.Subtitle,
		Description: req.Description,
		Location:    req.Location,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Capacity:    req.Capacity,
		Images:      req.Images,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]ActivityView{"activity": toActivityView(*activity)})
}

func (h *Handler) manageActivity(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeActivitiesManage)
	if !ok {
		return
	}

	view, err := h.service.ManageActivity(r.Context(), r.PathValue("id"), claims.Subject)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	regs := make([]RegistrationView, 0, len(view.Registrations))
	for _, reg := range view.Registrations {
		regs = append(regs, toRegistrationView(reg))
	}
	writeJSON(w, http.StatusOK, ManageResponse{
		Activity:        toActivityView(view.Activity),
		RegisteredCount: view.ActiveCount,
		Registrations:   regs,
	})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeActivitiesRegister)
	if !ok {
		return
	}

	reg, err := h.service.Register(r.Context(), claims.Subject, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]RegistrationView{"registration": toRegistrationView(*reg)})
}

func (h *Handler) unregister(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeActivitiesRegister)
	if !ok {
		return
	}

	reg, err := h.service.Unregister(r.Context(), claims.Subject, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]RegistrationView{"registration": toRegistrationView(*reg)})
}

func (h *Handler) checkIn(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeActivitiesManage)
	if !ok {
		return
	}

	reg, err := h.service.CheckIn(r.Context(), r.PathValue("regID"), claims.Subject)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]RegistrationView{"registration": toRegistrationView(*reg)})
}

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeNotificationsRead)
	if !ok {
		return
	}

	limit := 50
	items, err := h.notifications.ListByUser(r.Context(), claims.Subject, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	unread, err := h.notifications.CountUnread(r.Context(), claims.Subject)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	views := make([]NotificationView, 0, len(items))
	for _, n := range items {
		views = append(views, toNotificationView(n))
	}
	writeJSON(w, http.StatusOK, NotificationsResponse{Notifications: views, UnreadCount: unread})
}

func (h *Handler) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeNotificationsRead)
	if !ok {
		return
	}

	if err := h.notifications.MarkRead(r.Context(), r.PathValue("id"), claims.Subject); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// streamNotifications serves the realtime channel over SSE. Delivery here is
// best effort; clients reconcile against GET /v1/notifications.
func (h *Handler) streamNotifications(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeNotificationsRead)
	if !ok {
		return
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		writeError(w, http.StatusInternalServerError, "server_error", "streaming unsupported")
		return
	}

	events, cancel := h.hub.Subscribe(claims.Subject)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case n, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(toNotificationView(n))
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: notification\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

func authenticated(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	return claims, true
}

func requireScope(w http.ResponseWriter, r *http.Request, scope string) (*auth.Claims, bool) {
	claims, ok := authenticated(w, r)
	if !ok {
		return nil, false
	}
	if !claims.HasScope(scope) {
		writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
		return nil, false
	}
	return claims, true
}

// CreateActivityRequest is the payload for POST /v1/clubs/{clubID}/activities.
type CreateActivityRequest struct {
	Title       string     `json:"title"`
	Subtitle    string     `json:"subtitle"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	Capacity    int        `json:"capacity"`
	Images      []string   `json:"images"`
}

// Validate ensures request correctness.
func (r CreateActivityRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return errors.New("title is required")
	}
	if r.StartTime.IsZero() {
		return errors.New("start_time is required")
	}
	if r.Capacity < 1 {
		return errors.New("capacity must be >= 1")
	}
	if r.EndTime != nil && r.EndTime.Before(r.StartTime) {
		return errors.New("end_time must not precede start_time")
	}
	return nil
}

// PatchActivityRequest is a partial update; absent fields stay untouched and
// images are appended to the stored list.
type PatchActivityRequest struct {
	Title       *string    `json:"title"`
	Subtitle    *string    `json:"subtitle"`
	Description *string    `json:"description"`
	Location    *string    `json:"location"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	Capacity    *int       `json:"capacity"`
	Images      []string   `json:"images"`
}

// SetStatusRequest carries the requested lifecycle transition.
type SetStatusRequest struct {
	Status string `json:"status"`
}

// ActivityView exposes full details about an activity.
type ActivityView struct {
	ActivityID  string     `json:"activity_id"`
	ClubID      string     `json:"club_id"`
	Title       string     `json:"title"`
	Subtitle    string     `json:"subtitle,omitempty"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Capacity    int        `json:"capacity"`
	Images      []string   `json:"images"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// RegistrationView exposes one ledger row.
type RegistrationView struct {
	RegistrationID string     `json:"registration_id"`
	ActivityID     string     `json:"activity_id"`
	UserID         string     `json:"user_id"`
	Status         string     `json:"status"`
	CheckinAt      *time.Time `json:"checkin_at,omitempty"`
	CancelledAt    *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ManageResponse is the staff view of an activity and its ledger.
type ManageResponse struct {
	Activity        ActivityView       `json:"activity"`
	RegisteredCount int                `json:"registered_count"`
	Registrations   []RegistrationView `json:"registrations"`
}

// NotificationView exposes one notification row.
type NotificationView struct {
	NotificationID string    `json:"notification_id"`
	Type           string    `json:"type"`
	Title          string    `json:"title"`
	Body           string    `json:"body,omitempty"`
	LinkURL        string    `json:"link_url,omitempty"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
}

// NotificationsResponse packages the recipient's notification list.
type NotificationsResponse struct {
	Notifications []NotificationView `json:"notifications"`
	UnreadCount   int                `json:"unread_count"`
}

func toActivityView(activity domain.Activity) ActivityView {
	images := activity.Images
	if images == nil {
		images = []string{}
	}
	return ActivityView{
		ActivityID:  activity.ID,
		ClubID:      activity.ClubID,
		Title:       activity.Title,
		Subtitle:    activity.Subtitle,
		Description: activity.Description,
		Location:    activity.Location,
		StartTime:   activity.StartTime,
		EndTime:     activity.EndTime,
		Capacity:    activity.Capacity,
		Images:      images,
		Status:      string(activity.Status),
		CreatedAt:   activity.CreatedAt,
		UpdatedAt:   activity.UpdatedAt,
	}
}

func toRegistrationView(reg domain.Registration) RegistrationView {
	return RegistrationView{
		RegistrationID: reg.ID,
		ActivityID:     reg.ActivityID,
		UserID:         reg.UserID,
		Status:         string(reg.Status),
		CheckinAt:      reg.CheckinAt,
		CancelledAt:    reg.CancelledAt,
		CreatedAt:      reg.CreatedAt,
	}
}

func toNotificationView(n domain.Notification) NotificationView {
	return NotificationView{
		NotificationID: n.ID,
		Type:           n.Type,
		Title:          n.Title,
		Body:           n.Body,
		LinkURL:        n.LinkURL,
		IsRead:         n.IsRead,
		CreatedAt:      n.CreatedAt,
	}
}

// writeDomainError maps the typed domain failures onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrActivityNotFound),
		errors.Is(err, domain.ErrRegistrationNotFound),
		errors.Is(err, domain.ErrNotificationNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, domain.ErrRegistrationClosed):
		writeError(w, http.StatusConflict, "registration_closed", err.Error())
	case errors.Is(err, domain.ErrAlreadyRegistered):
		writeError(w, http.StatusConflict, "already_registered", err.Error())
	case errors.Is(err, domain.ErrPermanentlyLocked):
		writeError(w, http.StatusConflict, "permanently_locked", err.Error())
	case errors.Is(err, domain.ErrActivityFull):
		writeError(w, http.StatusConflict, "activity_full", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
