package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/postbox/pkg/delivery"
	"github.com/dmitrymomot/postbox/pkg/reminder"
	"github.com/dmitrymomot/postbox/pkg/validator"
)

// Request body limits. Delivery requests carry base64 attachments.
const (
	maxDeliveryBody = 32 << 20
	maxReminderBody = 1 << 20
	maxWebhookBody  = 1 << 20
)

func (s *Server) enqueueDelivery(w http.ResponseWriter, r *http.Request) error {
	var req delivery.Request
	if err := decodeJSON(w, r, maxDeliveryBody, &req); err != nil {
		return err
	}

	res, err := s.deliveries.Enqueue(r.Context(), req)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusAccepted, res)
	return nil
}

func (s *Server) getDelivery(w http.ResponseWriter, r *http.Request) error {
	details, err := s.query.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, details)
	return nil
}

func (s *Server) listDeliveries(w http.ResponseWriter, r *http.Request) error {
	f, err := historyFilter(r.URL.Query())
	if err != nil {
		return err
	}

	page, err := s.query.History(r.Context(), f)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, page)
	return nil
}

// historyFilter parses recipient, documentType, status, from, to, limit and
// offset. Dates are RFC 3339 or YYYY-MM-DD; a bare "to" date covers the whole day.
func historyFilter(q url.Values) (delivery.HistoryFilter, error) {
	f := delivery.HistoryFilter{
		Recipient:    q.Get("recipient"),
		DocumentType: delivery.DocumentType(q.Get("documentType")),
		Status:       delivery.Status(q.Get("status")),
	}

	var fields validator.Errors
	if v := q.Get("from"); v != "" {
		t, _, err := parseTime(v)
		if err != nil {
			fields = append(fields, validator.FieldError{Field: "from", Message: "must be an RFC 3339 timestamp or YYYY-MM-DD"})
		} else {
			f.From = &t
		}
	}
	if v := q.Get("to"); v != "" {
		t, dateOnly, err := parseTime(v)
		if err != nil {
			fields = append(fields, validator.FieldError{Field: "to", Message: "must be an RFC 3339 timestamp or YYYY-MM-DD"})
		} else {
			if dateOnly {
				t = t.Add(24*time.Hour - time.Nanosecond)
			}
			f.To = &t
		}
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fields = append(fields, validator.FieldError{Field: "limit", Message: "must be an integer"})
		}
		f.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fields = append(fields, validator.FieldError{Field: "offset", Message: "must be an integer"})
		}
		f.Offset = n
	}

	if len(fields) > 0 {
		return f, errors.Join(delivery.ErrInvalidRequest, fields)
	}
	return f, nil
}

func parseTime(v string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), false, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	return t, true, err
}

func (s *Server) scheduleReminder(w http.ResponseWriter, r *http.Request) error {
	var req reminder.Request
	if err := decodeJSON(w, r, maxReminderBody, &req); err != nil {
		return err
	}

	rem, err := s.reminders.Schedule(r.Context(), req)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, map[string]string{"scheduledId": rem.ID})
	return nil
}

func (s *Server) getReminder(w http.ResponseWriter, r *http.Request) error {
	rem, err := s.reminders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, rem)
	return nil
}

func (s *Server) cancelReminder(w http.ResponseWriter, r *http.Request) error {
	if err := s.reminders.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// receiveWebhook acknowledges provider events with 204. Events that cannot
// be recorded because of a store failure return 500 so the provider retries.
func (s *Server) receiveWebhook(w http.ResponseWriter, r *http.Request) error {
	provider := chi.URLParam(r, "provider")
	adapter, ok := s.webhooks[provider]
	if !ok {
		return ErrNotFound("unknown webhook provider")
	}

	body, err := readBody(w, r, maxWebhookBody)
	if err != nil {
		return err
	}

	events, err := adapter.ParseWebhook(r.Header, body)
	if err != nil {
		return err
	}

	if err := s.events.RecordEvents(r.Context(), events); err != nil {
		if errors.Is(err, delivery.ErrStore) {
			return err
		}
		s.logger.WarnContext(r.Context(), "webhook events skipped",
			slog.String("provider", provider),
			slog.Any("error", err),
		)
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}
