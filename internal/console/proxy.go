package console

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"algoshield.org/console/internal/obs"
)

// newProxy forwards /api/* to the backend unchanged. The request id minted
// by RequestID travels upstream so both sides log the same id.
func newProxy(backend string) (http.Handler, error) {
	if backend == "" {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, r, http.StatusBadGateway, "API backend is not configured")
		}), nil
	}
	target, err := url.Parse(backend)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid backend url %q", backend)
	}

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			pr.Out.Host = target.Host
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			obs.Warn("proxy error", map[string]any{
				"request_id": RequestIDFromContext(r.Context()),
				"path":       r.URL.Path,
				"error":      err.Error(),
			})
			writeError(w, r, http.StatusBadGateway, "API server is not available. Please ensure the API server is running.")
		},
	}, nil
}
