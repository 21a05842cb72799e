// Package hub keeps the live sessions, keyed by the short code handed to the
// client at login.
package hub

import (
	"context"

	"github.com/DoyleJ11/scrim-review/internal/session"
)

type HubMsg interface{ isHubMsg() }

// CreateSession starts a session under Code. If the code is taken Reply gets
// nil and nothing is started.
type CreateSession struct {
	Code   string
	Config session.Config
	Reply  chan *session.Session
}

type GetSession struct {
	Code  string
	Reply chan *session.Session
}

// RemoveSession shuts the session down and forgets the code.
type RemoveSession struct {
	Code string
}

type ShutdownHub struct{}

type Hub struct {
	inbox    chan HubMsg
	sessions map[string]*session.Session
	ctx      context.Context
	cancel   context.CancelFunc
}

func (CreateSession) isHubMsg() {}
func (GetSession) isHubMsg()    {}
func (RemoveSession) isHubMsg() {}
func (ShutdownHub) isHubMsg()   {}

func NewHub(parent context.Context) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		sessions: make(map[string]*session.Session),
		ctx:      ctx,
		cancel:   cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Done is closed once the hub stopped.
func (h *Hub) Done() <-chan struct{} { return h.ctx.Done() }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateSession:
				if h.sessions[msg.Code] != nil {
					msg.Reply <- nil
					break
				}
				s := session.New(h.ctx, msg.Config)
				h.sessions[msg.Code] = s
				msg.Reply <- s

			case GetSession:
				msg.Reply <- h.sessions[msg.Code] // May be nil

			case RemoveSession:
				if s := h.sessions[msg.Code]; s != nil {
					stop(s)
					delete(h.sessions, msg.Code)
				}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for _, s := range h.sessions {
		stop(s)
	}
	clear(h.sessions)
	h.cancel()
}

func stop(s *session.Session) {
	select {
	case s.Inbox() <- session.Shutdown{}:
	case <-s.Done():
	}
}

// Get looks a session up. It returns nil for unknown codes or a stopped hub.
func (h *Hub) Get(ctx context.Context, code string) *session.Session {
	reply := make(chan *session.Session, 1)
	select {
	case h.inbox <- GetSession{Code: code, Reply: reply}:
	case <-h.ctx.Done():
		return nil
	case <-ctx.Done():
		return nil
	}
	select {
	case s := <-reply:
		return s
	case <-h.ctx.Done():
		return nil
	case <-ctx.Done():
		return nil
	}
}

// Create starts a session under code. It returns nil when the code is taken
// or the hub stopped.
func (h *Hub) Create(ctx context.Context, code string, cfg session.Config) *session.Session {
	reply := make(chan *session.Session, 1)
	select {
	case h.inbox <- CreateSession{Code: code, Config: cfg, Reply: reply}:
	case <-h.ctx.Done():
		return nil
	case <-ctx.Done():
		return nil
	}
	select {
	case s := <-reply:
		return s
	case <-h.ctx.Done():
		return nil
	case <-ctx.Done():
		return nil
	}
}

func (h *Hub) Remove(code string) {
	select {
	case h.inbox <- RemoveSession{Code: code}:
	case <-h.ctx.Done():
	}
}
