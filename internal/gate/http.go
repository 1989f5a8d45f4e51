package gate

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// UserHeader carries the caller's identity.
const UserHeader = "X-User-Email"

const (
	filesPrefix  = "/api/files/"
	maxBodyBytes = 64 << 20
)

// Router exposes the gate over HTTP:
//
//	*    /api/files/{path}            file access, any method
//	GET  /api/deliveries              caller's pending deliveries
//	POST /api/deliveries/confirm      {"path": "..."} confirms arrival
//	POST /api/deliveries/redeliver    bumps and lists pending deliveries
func (g *Gate) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.HandleFunc(filesPrefix+"*", g.serveFile)
	// chi rejects methods it does not know before routing. File access must
	// still reach the gate so the attempt is logged.
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, filesPrefix) {
			g.serveFile(w, r)
			return
		}
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	})
	r.Get("/api/deliveries", g.servePending)
	r.Post("/api/deliveries/confirm", g.serveConfirm)
	r.Post("/api/deliveries/redeliver", g.serveRedeliver)
	return r
}

func (g *Gate) serveFile(w http.ResponseWriter, r *http.Request) {
	req := Request{
		User:       strings.TrimSpace(r.Header.Get(UserHeader)),
		Path:       strings.TrimPrefix(r.URL.Path, filesPrefix),
		Method:     r.Method,
		IP:         clientIP(r),
		UserAgent:  r.UserAgent(),
		Recipients: r.URL.Query()["recipient"],
	}
	switch strings.ToUpper(r.Method) {
	case "PUT", "POST", "PATCH":
		req.Body, req.bodyErr = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	}

	resp, err := g.Handle(r.Context(), req)
	if err != nil {
		writeError(w, StatusCode(err), err)
		return
	}

	switch {
	case resp.StatusCode == http.StatusNoContent:
		w.WriteHeader(http.StatusNoContent)
	case req.Method == http.MethodGet:
		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(resp.StatusCode)
		_, _ = w.Write(resp.Body)
	case req.Method == http.MethodHead:
		w.WriteHeader(resp.StatusCode)
	default:
		writeJSON(w, resp.StatusCode, map[string]any{
			"path":       req.Path,
			"recipients": resp.Recipients,
		})
	}
}

func (g *Gate) servePending(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deliveries": nonNil(g.deliveries.Pending(user))})
}

func (g *Gate) serveRedeliver(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deliveries": nonNil(g.deliveries.Redeliver(user))})
}

func (g *Gate) serveConfirm(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var body struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&body); err != nil || body.Path == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "expected {\"path\": \"...\"}"})
		return
	}

	d, err := g.deliveries.Confirm(body.Path, user)
	if err != nil {
		writeError(w, StatusCode(err), err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	user := strings.TrimSpace(r.Header.Get(UserHeader))
	if user == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": UserHeader + " header is required"})
		return "", false
	}
	return user, true
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// connection's remote address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func nonNil(d []Delivery) []Delivery {
	if d == nil {
		return []Delivery{}
	}
	return d
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
