package http

import (
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/service"
	"github.com/aussiebroadwan/vaultgate/pkg/httpx"
	"github.com/aussiebroadwan/vaultgate/pkg/vaultsdk"
)

// NotificationsHandler serves the in-app inbox.
type NotificationsHandler struct {
	Inbox *service.InboxService
}

// HandleList handles GET /v1/notifications
//
//	@Summary		List notifications
//	@Description	Returns the caller's inbox, newest first.
//	@Tags			Notifications
//	@Security		SessionAuth
//	@Produce		json
//	@Param			limit	query		int	false	"Maximum entries (1-100)"
//	@Success		200		{object}	vaultsdk.NotificationsResponse
//	@Router			/v1/notifications [get].
func (h *NotificationsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	info, ok := authInfo(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	list, err := h.Inbox.List(r.Context(), info.UserID, limit)
	if err != nil {
		writeError(w, r, err, "")
		return
	}

	out := make([]vaultsdk.Notification, 0, len(list))
	for _, n := range list {
		out = append(out, vaultsdk.Notification{
			ID:        n.ID.String(),
			Title:     n.Title,
			Body:      n.Body,
			ReadAt:    n.ReadAt,
			CreatedAt: n.CreatedAt,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, vaultsdk.NotificationsResponse{Success: true, Notifications: out})
}

// HandleMarkRead handles POST /v1/notifications/{id}/read
//
//	@Summary		Mark a notification read
//	@Tags			Notifications
//	@Security		SessionAuth
//	@Produce		json
//	@Param			id	path		string	true	"Notification ID"
//	@Success		200	{object}	vaultsdk.MessageResponse
//	@Failure		422	{object}	vaultsdk.ErrorResponse	"Unknown notification"
//	@Router			/v1/notifications/{id}/read [post].
func (h *NotificationsHandler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	info, ok := authInfo(w, r)
	if !ok {
		return
	}
	if err := h.Inbox.MarkRead(r.Context(), info.UserID, r.PathValue("id")); err != nil {
		writeError(w, r, err, "")
		return
	}
	httpx.WriteMessage(w, http.StatusOK, true, "Notification marked as read.")
}
