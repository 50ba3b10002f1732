package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/mind-engage/labeld/internal/dataset"
	syncx "github.com/mind-engage/labeld/internal/sync"
)

const maxEventsPage = 500

// GET /admin/events?after=<seq>&limit=<n>
//
// Pages through the audit log oldest first. Clients pass the last seq they
// saw as after.
func (s *Server) eventsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		after, err := queryInt(r, "after", 0)
		if err != nil {
			fail(w, r, err)
			return
		}
		limit, err := queryInt(r, "limit", 100)
		if err != nil {
			fail(w, r, err)
			return
		}
		if limit <= 0 || limit > maxEventsPage {
			limit = maxEventsPage
		}
		evs, err := s.Events.Since(r.Context(), after, int(limit))
		if err != nil {
			fail(w, r, err)
			return
		}
		if evs == nil {
			evs = []syncx.Event{}
		}
		next := after
		if len(evs) > 0 {
			next = evs[len(evs)-1].Seq
		}
		writeJSON(w, http.StatusOK, map[string]any{"events": evs, "next": next})
	}
}

func queryInt(r *http.Request, name string, def int64) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", dataset.ErrValidation, name)
	}
	return n, nil
}
