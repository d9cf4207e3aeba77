package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/dmorgan81/pixelgen/internal/log"
)

const maxBodyBytes = 1 << 20

// ServeHTTP exposes the generate route over net/http.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req := fromHTTP(r)
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		log.FromContextOrDiscard(r.Context()).Warn("unreadable request body", "error", err)
		req.BodyErr = err
	}
	req.Body = body
	writeHTTP(w, h.Generate(r.Context(), req))
}

func (h *Handler) ServePage(w http.ResponseWriter, r *http.Request) {
	writeHTTP(w, h.Page(r.Context(), fromHTTP(r)))
}

func fromHTTP(r *http.Request) Request {
	headers := make(map[string]string, len(r.Header))
	for k := range r.Header {
		headers[strings.ToLower(k)] = r.Header.Get(k)
	}
	return Request{
		Method:    r.Method,
		Path:      r.URL.Path,
		Headers:   headers,
		RequestID: r.Header.Get("X-Request-ID"),
	}
}

func writeHTTP(w http.ResponseWriter, resp Response) {
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	if len(resp.Body) > 0 {
		_, _ = w.Write(resp.Body)
	}
}
