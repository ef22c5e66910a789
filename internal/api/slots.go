package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medibook/slot-booking/internal/auth"
	"github.com/medibook/slot-booking/internal/booking"
)

func (h *Handlers) listSlots(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorID must be a valid UUID")
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		writeError(w, http.StatusBadRequest, "missing_date", "date query parameter is required")
		return
	}

	slots, err := h.booking.ListSlots(r.Context(), doctorID, date)
	if err != nil {
		h.handleBookingError(w, err)
		return
	}

	resp := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		resp = append(resp, toSlotResponse(s))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) defineSlot(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}

	doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorID must be a valid UUID")
		return
	}

	var req DefineSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	slots, err := h.booking.DefineSlot(r.Context(), ident, doctorID, req.Date, req.Time, req.Recurring)
	if err != nil {
		h.handleBookingError(w, err)
		return
	}

	resp := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		resp = append(resp, toSlotResponse(s))
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handlers) deleteSlot(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}

	doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorID must be a valid UUID")
		return
	}

	slotID, err := uuid.Parse(chi.URLParam(r, "slotID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_slot_id", "slotID must be a valid UUID")
		return
	}

	if err := h.booking.DeleteSlot(r.Context(), ident, doctorID, slotID); err != nil {
		h.handleBookingError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// watchSlots streams slot-change events over a websocket until the client
// disconnects. The subscription is closed on the way out; nothing is
// delivered after teardown.
func (h *Handlers) watchSlots(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorID must be a valid UUID")
		return
	}

	date := r.URL.Query().Get("date")
	if _, err := booking.ParseDate(date); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date query parameter must be a calendar day")
		return
	}

	sub, err := h.hub.Watch(r.Context(), doctorID, date)
	if err != nil {
		h.log.Error("failed to open slot watch", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "could not open watch")
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return
	}
	defer conn.Close()

	if h.collector != nil {
		h.collector.WatchSubscribers.Inc()
		defer h.collector.WatchSubscribers.Dec()
	}

	// Read pump: we never expect client messages, but reading is how we
	// notice the peer going away.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-clientGone:
			return
		case <-r.Context().Done():
			return
		case change, ok := <-sub.C():
			if !ok {
				return
			}
			if err := conn.WriteJSON(change); err != nil {
				return
			}
		}
	}
}
