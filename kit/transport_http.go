package kit

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
)

// StatusCoder lets an endpoint error choose its HTTP status.
type StatusCoder interface {
	StatusCode() int
}

// HTTPHandler serves an Endpoint as JSON. decode builds the request from
// the HTTP request; a decode error answers 400. Endpoint errors answer 500
// unless they implement StatusCoder.
func HTTPHandler(endpoint Endpoint, decode func(*http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.Must(uuid.NewV7()).String()
		}
		w.Header().Set("X-Request-ID", reqID)
		ctx := WithRequestID(WithTransport(r.Context(), "http"), reqID)

		req, err := decode(r)
		if err != nil {
			WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		resp, err := endpoint(ctx, req)
		if err != nil {
			status := http.StatusInternalServerError
			var sc StatusCoder
			if errors.As(err, &sc) {
				status = sc.StatusCode()
			}
			WriteJSON(w, status, map[string]string{"error": err.Error()})
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// NoRequest is a decode function for endpoints without input.
func NoRequest(*http.Request) (any, error) { return nil, nil }
