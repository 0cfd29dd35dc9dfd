package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/marcus-crane/soloist/events"
	"github.com/marcus-crane/soloist/models"
	"github.com/marcus-crane/soloist/playback"
	"github.com/marcus-crane/soloist/shared"
)

// Server synchronises canonical media state with extension clients over a
// persistent WebSocket connection and routes their control and browser
// activity messages into the engine.
type Server struct {
	engine   *playback.Engine
	clock    clockwork.Clock
	upgrader websocket.Upgrader
	cooldown time.Duration
	grace    time.Duration

	mu           sync.Mutex
	clients      map[*client]struct{}
	controlUntil time.Time

	shutdownOnce sync.Once
	done         chan struct{}
}

type Options struct {
	Clock clockwork.Clock
	// Cooldown is how long client play events are ignored after a control
	// command, breaking the feedback loop where our own pause is observed
	// and re-reported as a fresh play.
	Cooldown time.Duration
	// Grace is how long to wait after a successful control command before
	// re-reading state so clients observe the effect.
	Grace time.Duration
}

func New(engine *playback.Engine, opts Options) *Server {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = time.Second
	}
	if opts.Grace <= 0 {
		opts.Grace = 200 * time.Millisecond
	}
	return &Server{
		engine: engine,
		clock:  opts.Clock,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Extensions connect from arbitrary origins on loopback
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		cooldown: opts.Cooldown,
		grace:    opts.Grace,
		clients:  make(map[*client]struct{}),
		done:     make(chan struct{}),
	}
}

func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// ServeHTTP upgrades the connection and pumps inbound messages until the
// client goes away.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case <-s.done:
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection", slog.String("stack", err.Error()))
		return
	}

	c := newClient(conn)
	s.register(c)
	defer s.unregister(c)

	slog.Info("Client connected",
		slog.String("client_id", c.id),
		slog.String("remote", r.RemoteAddr),
	)

	// New clients receive a full snapshot straight away
	s.sendState(c)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			slog.Debug("Client read ended",
				slog.String("client_id", c.id),
				slog.String("stack", err.Error()),
			)
			return
		}
		s.handleMessage(c, raw)
	}
}

// Shutdown closes every client connection with an explicit going-away
// status. Safe to invoke more than once.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		for c := range s.clients {
			c.closeWith(websocket.CloseGoingAway, "server shutting down")
		}
		s.clients = make(map[*client]struct{})
		s.mu.Unlock()
		slog.Info("Sync server stopped")
	})
}

// BroadcastState pushes the current canonical state to every client and
// mirrors it onto the SSE stream. A send failure drops only that client.
func (s *Server) BroadcastState() {
	state := s.engine.State()
	data, err := json.Marshal(state)
	if err != nil {
		slog.Error("Failed to encode state", slog.String("stack", err.Error()))
		return
	}
	events.PublishState(data)
	payload, err := json.Marshal(models.Envelope{Type: shared.MSG_DESKTOP_STATE, Data: data})
	if err != nil {
		slog.Error("Failed to encode state envelope", slog.String("stack", err.Error()))
		return
	}

	s.mu.Lock()
	targets := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		targets = append(targets, c)
	}
	s.mu.Unlock()

	for _, c := range targets {
		if !c.trySend(payload) {
			slog.Warn("Disconnecting slow client", slog.String("client_id", c.id))
			s.unregister(c)
		}
	}
}

func (s *Server) register(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c] = struct{}{}
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	_, present := s.clients[c]
	delete(s.clients, c)
	s.mu.Unlock()
	if present {
		c.stop()
		slog.Info("Client disconnected", slog.String("client_id", c.id))
	}
}

func (s *Server) handleMessage(c *client, raw []byte) {
	var msg models.Envelope
	if err := json.Unmarshal(raw, &msg); err != nil {
		// Malformed payloads never cost the client its connection
		slog.Warn("Invalid JSON received", slog.String("client_id", c.id))
		return
	}

	slog.Debug("Received message",
		slog.String("client_id", c.id),
		slog.String("type", msg.Type),
	)

	switch msg.Type {
	case shared.MSG_PING:
		s.sendEnvelope(c, models.Envelope{Type: shared.MSG_PONG})
	case shared.MSG_GET_DESKTOP_STATE:
		s.sendState(c)
	case shared.MSG_CONTROL:
		s.handleControl(c, msg.Data)
	case shared.MSG_REGISTER_BROWSER:
		s.handleRegisterBrowser(c, msg.Data)
	case shared.MSG_MEDIA_PLAY:
		s.handleBrowserPlay(msg.Data)
	case shared.MSG_MEDIA_PAUSE, shared.MSG_MEDIA_ENDED:
		s.handleBrowserStopped(msg.Data)
	default:
		slog.Debug("Ignoring unknown message type", slog.String("type", msg.Type))
	}
}

func (s *Server) handleControl(c *client, data json.RawMessage) {
	var req models.ControlRequest
	if err := json.Unmarshal(data, &req); err != nil {
		slog.Warn("Malformed control payload", slog.String("client_id", c.id))
		return
	}
	if !strings.HasPrefix(req.MediaID, shared.MEDIA_ID_PREFIX) {
		slog.Warn("Control addressed to non-desktop media", slog.String("media_id", req.MediaID))
		return
	}

	// Arm the cooldown before dispatching: the client may observe and
	// re-report the effect of this command within milliseconds.
	s.armCooldown()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.engine.HandleControl(ctx, req.Action, req.MediaID); err != nil {
		slog.Error("Control command failed",
			slog.String("action", req.Action),
			slog.String("media_id", req.MediaID),
			slog.String("stack", err.Error()),
		)
		result, _ := json.Marshal(models.ControlResult{
			Action:  req.Action,
			MediaID: req.MediaID,
			Success: false,
		})
		s.sendEnvelope(c, models.Envelope{Type: shared.MSG_CONTROL_RESULT, Data: result})
		return
	}

	// Give the OS a moment to apply the command, then let every client
	// observe the effect.
	s.clock.Sleep(s.grace)
	s.BroadcastState()
}

func (s *Server) handleRegisterBrowser(c *client, data json.RawMessage) {
	var reg models.BrowserRegistration
	if err := json.Unmarshal(data, &reg); err != nil {
		slog.Warn("Malformed browser registration", slog.String("client_id", c.id))
		return
	}
	s.engine.RegisterBrowser(reg.Browser, reg.UserAgent)
}

func (s *Server) handleBrowserPlay(data json.RawMessage) {
	if s.cooldownActive() {
		slog.Debug("Ignoring MEDIA_PLAY during control cooldown")
		return
	}

	var event models.BrowserMediaEvent
	if err := json.Unmarshal(data, &event); err != nil {
		slog.Warn("Malformed browser media event")
		return
	}
	if event.Title != "" {
		s.engine.UpdateBrowserMedia(event.Title, true)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.engine.PauseAllExcept(ctx, "")
	slog.Info("Browser media started, paused desktop media")
	s.BroadcastState()
}

func (s *Server) handleBrowserStopped(data json.RawMessage) {
	var event models.BrowserMediaEvent
	if err := json.Unmarshal(data, &event); err != nil {
		slog.Warn("Malformed browser media event")
		return
	}
	if event.Title != "" {
		s.engine.UpdateBrowserMedia(event.Title, false)
	}
}

func (s *Server) armCooldown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controlUntil = s.clock.Now().Add(s.cooldown)
}

func (s *Server) cooldownActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock.Now().Before(s.controlUntil)
}

func (s *Server) sendState(c *client) {
	data, err := json.Marshal(s.engine.State())
	if err != nil {
		slog.Error("Failed to encode state", slog.String("stack", err.Error()))
		return
	}
	s.sendEnvelope(c, models.Envelope{Type: shared.MSG_DESKTOP_STATE, Data: data})
}

func (s *Server) sendEnvelope(c *client, env models.Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		slog.Error("Failed to encode message", slog.String("stack", err.Error()))
		return
	}
	if !c.trySend(payload) {
		slog.Warn("Disconnecting slow client", slog.String("client_id", c.id))
		s.unregister(c)
	}
}
