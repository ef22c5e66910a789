package api

import (
	"net/http"
	"strconv"

	"github.com/medibook/slot-booking/internal/auth"
	"github.com/medibook/slot-booking/internal/notify"
)

func (h *Handlers) listNotifications(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	inbox, err := h.notifications.Inbox(r.Context(), ident.UID, limit)
	if err != nil {
		h.handleBookingError(w, err)
		return
	}

	if inbox == nil {
		inbox = []notify.Notification{}
	}

	writeJSON(w, http.StatusOK, inbox)
}

func (h *Handlers) clearNotifications(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}

	if err := h.notifications.ClearInbox(r.Context(), ident.UID); err != nil {
		h.handleBookingError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
