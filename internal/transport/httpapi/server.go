// Package httpapi serves profile documents over plain HTTP: load, save and
// reset, each partitioned by profile.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"bigharvest.farm/internal/persistence/gateway"
	"bigharvest.farm/internal/persistence/journal"
	"bigharvest.farm/internal/protocol"
	"bigharvest.farm/internal/sim/farm"
	"bigharvest.farm/internal/sim/session"
)

const maxBodyBytes = 4 << 20

type Config struct {
	Gateway *gateway.Gateway
	Schemas *protocol.Schemas
	Logger  *log.Logger

	// DataDir receives reset journal entries when set.
	DataDir string

	// Sessions routes resets of a profile with a live session through that
	// session. Nil resets the stored document directly.
	Sessions *session.Registry

	PerSecond float64
	Burst     int
}

type Server struct {
	gw       *gateway.Gateway
	schemas  *protocol.Schemas
	dataDir  string
	sessions *session.Registry
	log      *log.Logger

	perSecond rate.Limit
	burst     int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewServer(cfg Config) *Server {
	return &Server{
		gw:        cfg.Gateway,
		schemas:   cfg.Schemas,
		dataDir:   cfg.DataDir,
		sessions:  cfg.Sessions,
		log:       cfg.Logger,
		perSecond: rate.Limit(cfg.PerSecond),
		burst:     cfg.Burst,
		limiters:  map[string]*rate.Limiter{},
	}
}

// Register mounts the /api routes on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/health", s.limit(s.handleHealth))
	mux.HandleFunc("/api/state", s.limit(s.handleState))
	mux.HandleFunc("/api/reset", s.limit(s.handleReset))
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

// Profile resolves the partition key: ?profile= first, then X-Profile.
func Profile(r *http.Request) string {
	p := r.URL.Query().Get("profile")
	if p == "" {
		p = r.Header.Get("X-Profile")
	}
	return gateway.SanitizeProfile(p)
}

func (s *Server) handleHealth(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleState(rw http.ResponseWriter, r *http.Request) {
	profile := Profile(r)
	switch r.Method {
	case http.MethodGet:
		st, err := s.gw.Load(profile)
		if err != nil {
			writeJSON(rw, http.StatusInternalServerError, map[string]any{"status": "error", "error": "storage unavailable"})
			return
		}
		raw, err := farm.Encode(st)
		if err != nil {
			writeJSON(rw, http.StatusInternalServerError, map[string]any{"status": "error", "error": err.Error()})
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_, _ = rw.Write(raw)
	case http.MethodPost, http.MethodPut:
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			writeJSON(rw, http.StatusBadRequest, map[string]any{"status": "error", "error": err.Error()})
			return
		}
		if !json.Valid(body) {
			writeJSON(rw, http.StatusBadRequest, map[string]any{"status": "error", "error": "invalid JSON"})
			return
		}
		if s.schemas != nil {
			if err := s.schemas.ValidateState(body); err != nil {
				writeJSON(rw, http.StatusBadRequest, map[string]any{"status": "error", "error": err.Error()})
				return
			}
		}
		if s.sessions != nil {
			if !s.sessions.Reserve(profile) {
				writeJSON(rw, http.StatusConflict, map[string]any{"status": "error", "error": "profile has an open session"})
				return
			}
			defer s.sessions.Release(profile)
		}
		if _, err := s.gw.Import(profile, body); err != nil {
			writeJSON(rw, http.StatusBadRequest, map[string]any{"status": "error", "error": err.Error()})
			return
		}
		writeJSON(rw, http.StatusOK, map[string]any{"status": "ok"})
	default:
		rw.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleReset(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	profile := Profile(r)
	if s.sessions != nil {
		if !s.sessions.Reserve(profile) {
			s.resetLive(rw, r, profile)
			return
		}
		defer s.sessions.Release(profile)
	}
	st, archived, err := s.gw.Reset(profile)
	if err != nil {
		writeJSON(rw, http.StatusInternalServerError, map[string]any{"status": "error", "error": "storage unavailable"})
		return
	}
	if s.dataDir != "" {
		j := journal.Open(s.dataDir, profile)
		if err := j.Write(journal.Entry{Kind: journal.KindReset, OK: true, Message: archived}); err != nil && s.log != nil {
			s.log.Printf("reset %s: journal: %v", profile, err)
		}
		_ = j.Close()
	}
	writeJSON(rw, http.StatusOK, map[string]any{"status": "ok", "state": st})
}

// resetLive resets through the profile's running session, which owns both the
// document and the journal while it is open.
func (s *Server) resetLive(rw http.ResponseWriter, r *http.Request, profile string) {
	sess := s.sessions.Live(profile)
	if sess == nil {
		writeJSON(rw, http.StatusConflict, map[string]any{"status": "error", "error": "profile is busy, retry"})
		return
	}
	st, _, err := sess.Reset(r.Context())
	switch {
	case errors.Is(err, session.ErrClosed):
		writeJSON(rw, http.StatusConflict, map[string]any{"status": "error", "error": "profile is busy, retry"})
	case err != nil:
		writeJSON(rw, http.StatusInternalServerError, map[string]any{"status": "error", "error": "storage unavailable"})
	default:
		writeJSON(rw, http.StatusOK, map[string]any{"status": "ok", "state": st})
	}
}

func (s *Server) limit(next http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if s.perSecond > 0 && !s.limiter(remoteIP(r.RemoteAddr)).Allow() {
			writeJSON(rw, http.StatusTooManyRequests, map[string]any{"status": "error", "error": "rate limited"})
			return
		}
		next(rw, r)
	}
}

func (s *Server) limiter(ip string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[ip]
	if !ok {
		l = rate.NewLimiter(s.perSecond, s.burst)
		s.limiters[ip] = l
	}
	return l
}

func remoteIP(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}
