package shield

import (
	"net/http"
	"strconv"
)

// HeadAsGet answers HEAD on routes registered for GET only. The handler
// runs on a clone of the request whose method is GET. The body it writes is
// counted and dropped, and its length becomes Content-Length unless the
// handler set one.
func HeadAsGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		get := r.Clone(r.Context())
		get.Method = http.MethodGet
		hw := &headWriter{ResponseWriter: w}
		next.ServeHTTP(hw, get)
		hw.finish()
	})
}

// headWriter holds back the status line until the handler returns so the
// counted body length can still be announced.
type headWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (h *headWriter) WriteHeader(code int) {
	if h.status == 0 {
		h.status = code
	}
}

func (h *headWriter) Write(p []byte) (int, error) {
	if h.status == 0 {
		h.status = http.StatusOK
	}
	h.size += len(p)
	return len(p), nil
}

func (h *headWriter) finish() {
	if h.status == 0 {
		h.status = http.StatusOK
	}
	hdr := h.ResponseWriter.Header()
	if hdr.Get("Content-Length") == "" && h.size > 0 {
		hdr.Set("Content-Length", strconv.Itoa(h.size))
	}
	h.ResponseWriter.WriteHeader(h.status)
}
