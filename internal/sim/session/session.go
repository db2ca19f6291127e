// Package session runs one profile's engine on a single goroutine, feeding it
// player actions and periodic ticks and persisting the result.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"bigharvest.farm/internal/persistence/gateway"
	"bigharvest.farm/internal/persistence/journal"
	"bigharvest.farm/internal/persistence/saver"
	"bigharvest.farm/internal/protocol"
	"bigharvest.farm/internal/sim/engine"
	"bigharvest.farm/internal/sim/farm"
	"bigharvest.farm/internal/sim/logic/leveling"
	"bigharvest.farm/internal/sim/tuning"
)

var ErrClosed = errors.New("session closed")

// ActionIndex receives a copy of every journaled action.
type ActionIndex interface {
	RecordAction(e journal.Entry)
}

type Config struct {
	Profile string
	Gateway *gateway.Gateway
	Tuning  tuning.Tuning
	Journal *journal.Journal
	Index   ActionIndex
	Logger  *log.Logger
	Seed    int64

	// Now defaults to time.Now.
	Now func() time.Time

	// OutQueue bounds the outgoing message buffer.
	OutQueue int
}

type actReq struct {
	act  protocol.ActMsg
	resp chan protocol.ActResultMsg
}

type snapshotReq struct {
	resp chan *farm.State
}

type resetResult struct {
	state    *farm.State
	archived string
	err      error
}

type resetReq struct {
	resp chan resetResult
}

type Session struct {
	id      string
	profile string
	tune    tuning.Tuning

	eng     *engine.Engine
	gw      *gateway.Gateway
	saver   *saver.Debouncer
	journal *journal.Journal
	index   ActionIndex
	logger  *log.Logger
	limiter *rate.Limiter
	now     func() time.Time
	seed    int64

	welcome protocol.WelcomeMsg

	inbox    chan actReq
	snapshot chan snapshotReq
	resets   chan resetReq
	out      chan []byte
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Open loads the profile, credits idle earnings once and catches the
// periodic subsystems up to now. A storage failure is returned so the caller
// can retry; missing or malformed documents start fresh.
func Open(cfg Config) (*Session, error) {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.OutQueue <= 0 {
		cfg.OutQueue = 64
	}
	st, err := cfg.Gateway.Load(cfg.Profile)
	if err != nil {
		return nil, err
	}
	shaper := cfg.Gateway.Shaper()
	s := &Session{
		id:       uuid.NewString(),
		profile:  cfg.Profile,
		tune:     cfg.Tuning,
		eng:      engine.New(shaper.Catalogs(), cfg.Tuning, st, cfg.Seed),
		gw:       cfg.Gateway,
		journal:  cfg.Journal,
		index:    cfg.Index,
		logger:   cfg.Logger,
		limiter:  rate.NewLimiter(rate.Limit(cfg.Tuning.RateLimits.ActionsPerSecond), cfg.Tuning.RateLimits.ActionsBurst),
		now:      cfg.Now,
		seed:     cfg.Seed,
		inbox:    make(chan actReq, 64),
		snapshot: make(chan snapshotReq),
		resets:   make(chan resetReq),
		out:      make(chan []byte, cfg.OutQueue),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	profile := cfg.Profile
	s.saver = saver.New(time.Duration(cfg.Tuning.SaveDebounceMs)*time.Millisecond, func(doc []byte) error {
		return s.gw.SaveRaw(profile, doc)
	}, cfg.Logger)

	now := s.nowMs()
	idle := s.eng.ReconcileIdle(now)
	s.eng.Step(now)
	events := s.eng.Drain()
	s.record(journal.Entry{Time: now, Kind: journal.KindSession, Message: "open", Events: events})
	s.scheduleSave()

	raw, _ := farm.Encode(s.eng.State())
	cats := shaper.Catalogs()
	s.welcome = protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       s.id,
		Profile:         profile,
		IdleGain:        idle,
		Level:           levelInfo(s.eng.Level()),
		Catalogs: protocol.CatalogDigests{
			CropsDigest:     cats.Crops.Digest,
			BuildingsDigest: cats.Buildings.Digest,
			ItemsDigest:     cats.Items.Digest,
			QuestsDigest:    cats.Quests.Digest,
			OrdersDigest:    cats.Orders.Digest,
			SeasonsDigest:   cats.Seasons.Digest,
		},
		State: raw,
	}
	return s, nil
}

func (s *Session) ID() string      { return s.id }
func (s *Session) Profile() string { return s.profile }

// Welcome is the greeting built when the session was opened.
func (s *Session) Welcome() protocol.WelcomeMsg { return s.welcome }

// Out carries encoded ACT_RESULT and STATE messages. Messages are dropped
// when the reader falls behind.
func (s *Session) Out() <-chan []byte { return s.out }

// Submit queues an action and waits for its result.
func (s *Session) Submit(ctx context.Context, act protocol.ActMsg) (protocol.ActResultMsg, error) {
	req := actReq{act: act, resp: make(chan protocol.ActResultMsg, 1)}
	select {
	case s.inbox <- req:
	case <-s.done:
		return protocol.ActResultMsg{}, ErrClosed
	case <-ctx.Done():
		return protocol.ActResultMsg{}, ctx.Err()
	}
	select {
	case res := <-req.resp:
		return res, nil
	case <-s.done:
		return protocol.ActResultMsg{}, ErrClosed
	case <-ctx.Done():
		return protocol.ActResultMsg{}, ctx.Err()
	}
}

// Snapshot returns a copy of the current document.
func (s *Session) Snapshot(ctx context.Context) (*farm.State, error) {
	req := snapshotReq{resp: make(chan *farm.State, 1)}
	select {
	case s.snapshot <- req:
	case <-s.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case st := <-req.resp:
		return st, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Reset archives the profile's document and restarts this session on a fresh
// farm. The reset is journaled here and the new state is pushed to the client.
func (s *Session) Reset(ctx context.Context) (*farm.State, string, error) {
	req := resetReq{resp: make(chan resetResult, 1)}
	select {
	case s.resets <- req:
	case <-s.done:
		return nil, "", ErrClosed
	case <-ctx.Done():
		return nil, "", ctx.Err()
	}
	select {
	case res := <-req.resp:
		return res.state, res.archived, res.err
	case <-ctx.Done():
		return nil, "", ctx.Err()
	}
}

// Close stops Run and waits for the final save.
func (s *Session) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

// Run owns the engine until ctx is cancelled or Close is called. The pending
// save is flushed before it returns.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)
	defer s.shutdown()

	ticker := time.NewTicker(time.Duration(s.tune.TickIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stop:
			return nil
		case req := <-s.inbox:
			req.resp <- s.handleAct(req.act)
		case req := <-s.snapshot:
			req.resp <- s.eng.State().Clone()
		case req := <-s.resets:
			req.resp <- s.handleReset()
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Session) handleAct(act protocol.ActMsg) protocol.ActResultMsg {
	now := s.now()
	res := protocol.ActResultMsg{
		Type:            protocol.TypeActResult,
		ProtocolVersion: protocol.Version,
		ActID:           act.ActID,
		Action:          act.Action,
	}
	if !s.limiter.AllowN(now, 1) {
		res.Code = protocol.ErrRateLimit
		res.Message = "too many actions"
		s.push(res)
		return res
	}

	err := s.eng.Apply(now.UnixMilli(), engine.ActionFromMsg(act))
	events := s.eng.Drain()
	res.Events = events
	switch {
	case err == nil:
		res.OK = true
	default:
		var rej *engine.Reject
		if errors.As(err, &rej) {
			res.Code = rej.Code
			res.Message = rej.Reason
		} else {
			res.Code = protocol.ErrInternal
			res.Message = err.Error()
		}
	}

	s.record(journal.Entry{
		Time:    now.UnixMilli(),
		Kind:    journal.KindAct,
		Action:  act.Action,
		OK:      res.OK,
		Code:    res.Code,
		Message: res.Message,
		Events:  events,
	})
	// Rejected actions may still have advanced the periodic subsystems.
	s.scheduleSave()
	s.push(res)
	s.pushState(now.UnixMilli(), nil)
	return res
}

// handleReset writes out the pending save so the archive holds the latest
// document, then swaps in the fresh farm the gateway stored.
func (s *Session) handleReset() resetResult {
	s.scheduleSave()
	if err := s.saver.Flush(); err != nil {
		return resetResult{err: err}
	}
	st, archived, err := s.gw.Reset(s.profile)
	if err != nil {
		return resetResult{err: err}
	}
	now := s.nowMs()
	s.eng = engine.New(s.gw.Shaper().Catalogs(), s.tune, st, s.seed)
	s.eng.Step(now)
	events := s.eng.Drain()
	s.record(journal.Entry{Time: now, Kind: journal.KindReset, OK: true, Message: archived, Events: events})
	s.scheduleSave()
	s.pushState(now, events)
	s.logf("session %s: reset %s (archive %q)", s.id, s.profile, archived)
	return resetResult{state: s.eng.State().Clone(), archived: archived}
}

func (s *Session) tick() {
	now := s.nowMs()
	s.eng.Step(now)
	events := s.eng.Drain()
	if len(events) > 0 {
		s.record(journal.Entry{Time: now, Kind: journal.KindEvent, Events: events})
		s.scheduleSave()
	}
	s.pushState(now, events)
}

func (s *Session) shutdown() {
	s.scheduleSave()
	if err := s.saver.Flush(); err != nil {
		s.logf("session %s: final save failed: %v", s.id, err)
	}
	s.record(journal.Entry{Time: s.nowMs(), Kind: journal.KindSession, Message: "close"})
}

func (s *Session) scheduleSave() {
	doc, err := farm.Encode(s.eng.State())
	if err != nil {
		s.logf("session %s: encode: %v", s.id, err)
		return
	}
	s.saver.Schedule(doc)
}

func (s *Session) pushState(now int64, events []protocol.Event) {
	raw, err := farm.Encode(s.eng.State())
	if err != nil {
		return
	}
	s.push(protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		ServerTime:      now,
		Level:           levelInfo(s.eng.Level()),
		Events:          events,
		State:           raw,
	})
}

func (s *Session) push(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case s.out <- b:
	default:
	}
}

func (s *Session) record(e journal.Entry) {
	e.Profile = s.profile
	e.SessionID = s.id
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if err := s.journal.Write(e); err != nil {
		s.logf("session %s: journal: %v", s.id, err)
	}
	if s.index != nil && e.Kind == journal.KindAct {
		s.index.RecordAction(e)
	}
}

func (s *Session) nowMs() int64 { return s.now().UnixMilli() }

func (s *Session) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

func levelInfo(i leveling.Info) protocol.LevelInfo {
	return protocol.LevelInfo{Level: i.Level, CurrentLevelXP: i.CurrentLevelXP, NextLevelXP: i.NextLevelXP}
}
