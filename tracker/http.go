package tracker

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/coursewatch/kit"
)

// RegisterHTTP mounts the status API on r.
//
//	GET  /health
//	GET  /api/assignments?course=CODE
//	GET  /api/summary
//	GET  /api/cycles?limit=N
//	GET  /api/channels
//	POST /api/check
func (s *Service) RegisterHTTP(r chi.Router) {
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		kit.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok", "courses": s.reg.Len()})
	})
	r.Route("/api", func(r chi.Router) {
		r.Get("/assignments", kit.HTTPHandler(s.endpoint("list_assignments", s.listAssignments), decodeListRequest))
		r.Get("/summary", kit.HTTPHandler(s.endpoint("summary", s.summary), kit.NoRequest))
		r.Get("/cycles", kit.HTTPHandler(s.endpoint("recent_cycles", s.recentCycles), decodeCyclesRequest))
		r.Get("/channels", kit.HTTPHandler(s.endpoint("list_channels", s.listChannels), kit.NoRequest))
		r.Post("/check", kit.HTTPHandler(s.endpoint("check_now", s.checkNow), kit.NoRequest))
	})
}

func decodeListRequest(r *http.Request) (any, error) {
	return &listRequest{Course: r.URL.Query().Get("course")}, nil
}

func decodeCyclesRequest(r *http.Request) (any, error) {
	req := &cyclesRequest{}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, errors.New("limit must be a positive integer")
		}
		req.Limit = n
	}
	return req, nil
}
