package console

import (
	"encoding/json"
	"maps"
	"net/http"
	"time"

	"algoshield.org/console/internal/branding"
)

const keepAliveEvery = 25 * time.Second

var _ branding.Chrome = (*Server)(nil)

// Apply re-renders the entry document with t and, when t differs from the
// previous theme, pushes it to every open /events stream.
func (s *Server) Apply(t branding.Theme) {
	s.shell.Apply(t)

	s.themeMu.Lock()
	changed := !s.hasTheme || !sameTheme(s.theme, t)
	s.theme, s.hasTheme = t, true
	s.themeMu.Unlock()

	if changed {
		s.hub.Publish(t)
	}
}

// Close ends all open event streams so a graceful shutdown is not held up
// by them.
func (s *Server) Close() { s.hub.Close() }

func sameTheme(a, b branding.Theme) bool {
	return a.Title == b.Title && a.FaviconURL == b.FaviconURL && maps.Equal(a.Vars, b.Vars)
}

type themeEvent struct {
	Title   string            `json:"title"`
	Vars    map[string]string `json:"vars"`
	Favicon string            `json:"favicon,omitempty"`
}

// events streams branding changes as Server-Sent Events so open tabs can
// restyle without a reload. The current theme is sent first.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// The stream outlives the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ch := s.hub.Subscribe(r.Context())

	if err := writeTheme(w, s.shell.Theme()); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		return
	}

	ping := time.NewTicker(keepAliveEvery)
	defer ping.Stop()
	for {
		select {
		case t, ok := <-ch:
			if !ok {
				return
			}
			if err := writeTheme(w, t); err != nil {
				return
			}
		case <-ping.C:
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeTheme(w http.ResponseWriter, t branding.Theme) error {
	payload, err := json.Marshal(themeEvent{Title: t.Title, Vars: t.Vars, Favicon: t.FaviconURL})
	if err != nil {
		return err
	}
	_, err = w.Write([]byte("event: branding\ndata: " + string(payload) + "\n\n"))
	return err
}
