// Package session runs one actor per logged in user. The actor owns the GRID
// tokens of the login and the progress of its sync runs, and fans progress
// snapshots out to the websocket clients watching it.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/DoyleJ11/scrim-review/internal/grid"
	"github.com/DoyleJ11/scrim-review/internal/syncer"
)

var (
	ErrSyncRunning = errors.New("session: sync already running")
	ErrClosed      = errors.New("session: closed")
)

// SyncFunc runs one sync and reports progress through rep.
type SyncFunc func(ctx context.Context, rep syncer.Reporter) (syncer.Status, error)

type Msg interface{ isSessionMsg() }

type Join struct {
	ClientID string
	Outbox   chan Snapshot // where this client wants to receive snapshots
}

func (Join) isSessionMsg() {}

type Leave struct{ ClientID string }

func (Leave) isSessionMsg() {}

// Progress carries a status from the running sync.
type Progress struct{ Status syncer.Status }

func (Progress) isSessionMsg() {}

// StartSync asks for a sync run. Reply, when set, gets nil or ErrSyncRunning.
type StartSync struct{ Reply chan error }

func (StartSync) isSessionMsg() {}

type Shutdown struct{}

func (Shutdown) isSessionMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isSessionMsg() {}

type syncDone struct{}

func (syncDone) isSessionMsg() {}

// timerFired is sent by the resync timer. Gen lets the loop ignore timers that
// were replaced or stopped after they fired.
type timerFired struct{ Gen uint64 }

func (timerFired) isSessionMsg() {}

type Snapshot struct {
	Version int
	Status  syncer.Status
}

type View struct {
	Version    int
	NumClients int
	Syncing    bool
	Status     syncer.Status
}

type Config struct {
	Tokens grid.Tokens
	Client *grid.Client
	Sync   SyncFunc
	// Interval re-runs the sync after each finished run. Zero disables it.
	Interval time.Duration
}

type Session struct {
	inbox   chan Msg
	tokens  grid.Tokens
	client  *grid.Client
	sync    SyncFunc
	every   time.Duration
	status  syncer.Status
	version int
	syncing bool
	clients map[string]chan Snapshot

	timer    *time.Timer
	timerGen uint64

	ctx    context.Context
	cancel context.CancelFunc
}

func New(parent context.Context, cfg Config) *Session {
	ctx, cancel := context.WithCancel(parent)

	s := &Session{
		inbox:   make(chan Msg, 64),
		tokens:  cfg.Tokens,
		client:  cfg.Client,
		sync:    cfg.Sync,
		every:   cfg.Interval,
		status:  syncer.Status{State: syncer.StateIdle},
		clients: make(map[string]chan Snapshot),
		ctx:     ctx,
		cancel:  cancel,
	}

	go s.loop()
	return s
}

// Tokens and Client are fixed for the life of the session.
func (s *Session) Tokens() grid.Tokens   { return s.tokens }
func (s *Session) Client() *grid.Client { return s.client }

// Done is closed once the session stopped.
func (s *Session) Done() <-chan struct{} { return s.ctx.Done() }

func (s *Session) loop() {
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case Join:
				// Register client + send current snapshot immediately
				s.clients[msg.ClientID] = msg.Outbox
				msg.Outbox <- Snapshot{Version: s.version, Status: s.status}

			case Leave:
				if ch, ok := s.clients[msg.ClientID]; ok {
					close(ch)
					delete(s.clients, msg.ClientID)
				}

			case StartSync:
				err := s.startSync()
				if msg.Reply != nil {
					msg.Reply <- err
				}

			case Progress:
				s.status = msg.Status
				s.version++
				s.broadcast(Snapshot{Version: s.version, Status: s.status})

			case syncDone:
				s.syncing = false
				s.armTimer()

			case timerFired:
				if msg.Gen != s.timerGen {
					break
				}
				_ = s.startSync()

			case GetState:
				msg.Reply <- View{
					Version:    s.version,
					NumClients: len(s.clients),
					Syncing:    s.syncing,
					Status:     s.status,
				}

			case Shutdown:
				s.shutdown()
				return
			}
		}
	}
}

func (s *Session) startSync() error {
	if s.syncing {
		return ErrSyncRunning
	}
	if s.sync == nil {
		return errors.New("session: no sync configured")
	}
	s.stopTimer()
	s.syncing = true

	go func() {
		_, _ = s.sync(s.ctx, syncer.ReporterFunc(func(st syncer.Status) {
			s.send(Progress{Status: st})
		}))
		s.send(syncDone{})
	}()
	return nil
}

// send delivers a message from a helper goroutine unless the session is gone.
func (s *Session) send(m Msg) {
	select {
	case s.inbox <- m:
	case <-s.ctx.Done():
	}
}

func (s *Session) armTimer() {
	if s.every <= 0 {
		return
	}
	s.stopTimer()
	gen := s.timerGen
	s.timer = time.AfterFunc(s.every, func() {
		s.send(timerFired{Gen: gen})
	})
}

func (s *Session) stopTimer() {
	s.timerGen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) shutdown() {
	s.stopTimer()
	for id, ch := range s.clients {
		close(ch) // Tell client no more snapshots
		delete(s.clients, id)
	}
	s.cancel()
}

func (s *Session) broadcast(snap Snapshot) {
	for id, ch := range s.clients {
		select {
		case ch <- snap:
			//ok
		default:
			// Client is slow/full - drop them.
			close(ch)
			delete(s.clients, id)
		}
	}
}

// Inbox exposes the mailbox so the websocket and HTTP layers can send messages.
func (s *Session) Inbox() chan<- Msg { return s.inbox }

// Request sends StartSync and waits for the answer.
func (s *Session) Request(ctx context.Context) error {
	reply := make(chan error, 1)
	select {
	case s.inbox <- StartSync{Reply: reply}:
	case <-s.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-s.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State asks the loop for a View.
func (s *Session) State(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	select {
	case s.inbox <- GetState{Reply: reply}:
	case <-s.Done():
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
	select {
	case v := <-reply:
		return v, nil
	case <-s.Done():
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}
