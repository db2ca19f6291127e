package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"bigharvest.farm/internal/persistence/gateway"
	"bigharvest.farm/internal/persistence/journal"
	"bigharvest.farm/internal/protocol"
	"bigharvest.farm/internal/sim/session"
	"bigharvest.farm/internal/sim/tuning"
)

type Config struct {
	Gateway *gateway.Gateway
	Tuning  tuning.Tuning
	Schemas *protocol.Schemas
	Index   session.ActionIndex
	Logger  *log.Logger

	// DataDir holds per-profile journals; empty disables journaling.
	DataDir string

	// Context parents every session. Cancelling it ends them all; each
	// flushes its save before Shutdown returns.
	Context context.Context

	// Sessions is shared with anything else that touches profile documents.
	Sessions *session.Registry
}

type Server struct {
	cfg      Config
	log      *log.Logger
	base     context.Context
	sessions *session.Registry

	upgrader websocket.Upgrader

	mu      sync.Mutex
	closing bool
	conns   sync.WaitGroup
}

func NewServer(cfg Config) *Server {
	if cfg.Context == nil {
		cfg.Context = context.Background()
	}
	if cfg.Sessions == nil {
		cfg.Sessions = session.NewRegistry()
	}
	return &Server{
		cfg:      cfg,
		log:      cfg.Logger,
		base:     cfg.Context,
		sessions: cfg.Sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// Shutdown refuses new connections and waits until every open session has
// stopped and saved. Sessions stop when the configured Context is cancelled.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.conns.Add(1)
	return true
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.track() {
			http.Error(rw, "server is shutting down", http.StatusServiceUnavailable)
			return
		}
		defer s.conns.Done()

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess, j := s.handshake(conn)
		if sess == nil {
			return
		}
		defer s.sessions.Release(sess.Profile())
		defer j.Close()

		ctx, cancel := context.WithCancel(s.base)
		defer cancel()

		runDone := make(chan struct{})
		go func() {
			defer close(runDone)
			_ = sess.Run(ctx)
		}()

		errs := make(chan []byte, 8)

		// Writer goroutine. Closing the conn on cancel unblocks the reader.
		go func() {
			for {
				var b []byte
				select {
				case <-ctx.Done():
					_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "session ended"), time.Now().Add(time.Second))
					_ = conn.Close()
					return
				case b = <-sess.Out():
				case b = <-errs:
				}
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					cancel()
					_ = conn.Close()
					return
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeAct {
				sendErr(errs, protocol.ErrProtoBadRequest, "expected ACT")
				continue
			}
			if base.ProtocolVersion != protocol.Version {
				sendErr(errs, protocol.ErrProtoBadRequest, "bad protocol_version")
				continue
			}
			if s.cfg.Schemas != nil {
				if err := s.cfg.Schemas.ValidateAct(msg); err != nil {
					sendErr(errs, protocol.ErrBadRequest, err.Error())
					continue
				}
			}
			var act protocol.ActMsg
			if err := json.Unmarshal(msg, &act); err != nil {
				sendErr(errs, protocol.ErrBadRequest, err.Error())
				continue
			}
			if _, err := sess.Submit(ctx, act); err != nil {
				break
			}
		}

		// Cleanup: stop the session and wait for its final save.
		cancel()
		<-runDone
		if s.log != nil && s.base.Err() != nil {
			s.log.Printf("session %s closed for shutdown", sess.ID())
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) (*session.Session, *journal.Journal) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return nil, nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil, nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return nil, nil
	}

	profile := gateway.SanitizeProfile(hello.Profile)
	if !s.sessions.Reserve(profile) {
		_ = writeJSON(conn, errorMsg(protocol.ErrConflict, "profile already has an open session"))
		return nil, nil
	}

	var j *journal.Journal
	if s.cfg.DataDir != "" {
		j = journal.Open(s.cfg.DataDir, profile)
	}
	sess, err := session.Open(session.Config{
		Profile: profile,
		Gateway: s.cfg.Gateway,
		Tuning:  s.cfg.Tuning,
		Journal: j,
		Index:   s.cfg.Index,
		Logger:  s.log,
		Seed:    time.Now().UnixNano(),
	})
	if err != nil {
		s.sessions.Release(profile)
		_ = j.Close()
		_ = writeJSON(conn, errorMsg(protocol.ErrInternal, "profile could not be loaded, retry later"))
		return nil, nil
	}
	if s.log != nil {
		s.log.Printf("session %s opened for %s (%s)", sess.ID(), profile, hello.ClientName)
	}

	if err := writeJSON(conn, sess.Welcome()); err != nil {
		// Nothing ran yet; a Run that exits immediately still flushes the save.
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_ = sess.Run(ctx)
		s.sessions.Release(profile)
		_ = j.Close()
		return nil, nil
	}
	s.sessions.Attach(sess)
	return sess, j
}

func errorMsg(code, message string) protocol.ErrorMsg {
	return protocol.ErrorMsg{Type: protocol.TypeError, ProtocolVersion: protocol.Version, Code: code, Message: message}
}

func sendErr(ch chan<- []byte, code, message string) {
	b, err := json.Marshal(errorMsg(code, message))
	if err != nil {
		return
	}
	select {
	case ch <- b:
	default:
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
