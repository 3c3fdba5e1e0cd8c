package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/emofusion/internal/adapter/metrics"
	"github.com/pscheid92/emofusion/internal/domain"
)

const (
	commandTimeout = 5 * time.Second
	stopTimeout    = 10 * time.Second
	commandBuffer  = 256

	sessionEndedReason = "Session ended"
)

// ErrBroadcasterStopped is returned for commands sent after Stop.
var ErrBroadcasterStopped = errors.New("broadcaster stopped")

var _ domain.SessionCloser = (*Broadcaster)(nil)

type sessionClients map[*websocket.Conn]*clientWriter

type broadcasterCmd interface{ isBroadcasterCmd() }

type baseBroadcasterCmd struct{}

func (baseBroadcasterCmd) isBroadcasterCmd() {}

type registerCmd struct {
	baseBroadcasterCmd
	session    uuid.UUID
	connection *websocket.Conn
	errCh      chan error
}

type unregisterCmd struct {
	baseBroadcasterCmd
	session    uuid.UUID
	connection *websocket.Conn
}

type clientCountCmd struct {
	baseBroadcasterCmd
	session uuid.UUID
	replyCh chan int
}

type publishCmd struct {
	baseBroadcasterCmd
	session uuid.UUID
	data    []byte
}

type closeSessionCmd struct {
	baseBroadcasterCmd
	session uuid.UUID
	doneCh  chan struct{}
}

type stopCmd struct {
	baseBroadcasterCmd
}

// Broadcaster pushes fusion output to raw WebSocket clients, grouped by session.
// All client bookkeeping happens on a single goroutine fed by a command channel.
// It satisfies domain.Publisher and domain.SessionCloser.
type Broadcaster struct {
	cmdCh                chan broadcasterCmd
	clock                clockwork.Clock
	activeClients        map[uuid.UUID]sessionClients
	done                 chan struct{}
	stopped              chan struct{}
	stopOnce             sync.Once
	maxClientsPerSession int
	wsMetrics            *metrics.WebSocketMetrics
}

// NewBroadcaster starts the broadcaster goroutine. wsMetrics may be nil.
func NewBroadcaster(clock clockwork.Clock, maxClientsPerSession int, wsMetrics *metrics.WebSocketMetrics) *Broadcaster {
	b := &Broadcaster{
		cmdCh:                make(chan broadcasterCmd, commandBuffer),
		clock:                clock,
		activeClients:        make(map[uuid.UUID]sessionClients),
		done:                 make(chan struct{}),
		stopped:              make(chan struct{}),
		maxClientsPerSession: maxClientsPerSession,
		wsMetrics:            wsMetrics,
	}
	go b.run()
	return b
}

func (b *Broadcaster) send(cmd broadcasterCmd) bool {
	select {
	case <-b.stopped:
		return false
	default:
	}
	select {
	case b.cmdCh <- cmd:
		return true
	case <-b.stopped:
		return false
	}
}

// Register adds a client to a session.
// It fails when the session is full; the connection is closed in that case.
func (b *Broadcaster) Register(session uuid.UUID, conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	if !b.send(registerCmd{session: session, connection: conn, errCh: errCh}) {
		return ErrBroadcasterStopped
	}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-timer.Chan():
		return fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

// Unregister removes a client from a session.
func (b *Broadcaster) Unregister(session uuid.UUID, conn *websocket.Conn) {
	b.send(unregisterCmd{session: session, connection: conn})
}

// ClientCount returns the number of connected clients for a session, or -1 on timeout.
func (b *Broadcaster) ClientCount(session uuid.UUID) int {
	replyCh := make(chan int, 1)
	if !b.send(clientCountCmd{session: session, replyCh: replyCh}) {
		return 0
	}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case n := <-replyCh:
		return n
	case <-timer.Chan():
		slog.Warn("ClientCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// Serve registers conn, discards inbound frames until the peer goes away, then unregisters it.
// Reading is required for gorilla to process pong and close frames.
func (b *Broadcaster) Serve(ctx context.Context, session uuid.UUID, conn *websocket.Conn) error {
	if err := b.Register(session, conn); err != nil {
		return err
	}
	defer b.Unregister(session, conn)

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}

// Publish queues data for every client of a session.
func (b *Broadcaster) Publish(session uuid.UUID, data []byte) error {
	if !b.send(publishCmd{session: session, data: data}) {
		return ErrBroadcasterStopped
	}
	return nil
}

func (b *Broadcaster) PublishFusion(_ context.Context, update domain.FusionUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("marshal fusion update: %w", err)
	}
	return b.Publish(update.Session, data)
}

func (b *Broadcaster) PublishAlert(_ context.Context, session uuid.UUID, alert domain.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	return b.Publish(session, data)
}

// SessionClosed sends every client of session a close frame and drops them.
func (b *Broadcaster) SessionClosed(ctx context.Context, session uuid.UUID) error {
	doneCh := make(chan struct{})
	if !b.send(closeSessionCmd{session: session, doneCh: doneCh}) {
		return ErrBroadcasterStopped
	}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case <-doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Chan():
		return fmt.Errorf("close session command timed out after %v", commandTimeout)
	}
}

// Stop closes every client and waits for the broadcaster goroutine to exit.
// Calling Stop more than once is safe.
func (b *Broadcaster) Stop() {
	if !b.send(stopCmd{}) {
		return
	}

	timeout := b.clock.NewTimer(stopTimeout)
	defer timeout.Stop()

	select {
	case <-b.done:
		slog.Info("Broadcaster stopped gracefully")
	case <-timeout.Chan():
		slog.Warn("Broadcaster stop timeout exceeded", "timeout", stopTimeout)
	}
}

func (b *Broadcaster) run() {
	defer close(b.done)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Broadcaster panic recovered", "panic", r)
			b.markStopped()
			b.closeAllClients("broadcaster panic")
		}
	}()

	for cmd := range b.cmdCh {
		switch c := cmd.(type) {
		case registerCmd:
			b.handleRegister(c)
		case unregisterCmd:
			b.handleUnregister(c.session, c.connection)
		case clientCountCmd:
			c.replyCh <- len(b.activeClients[c.session])
		case publishCmd:
			b.handlePublish(c)
		case closeSessionCmd:
			b.closeSession(c.session, sessionEndedReason)
			close(c.doneCh)
		case stopCmd:
			b.markStopped()
			b.handleStop()
			return
		default:
			slog.Warn("Broadcaster received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
		}
	}
}

func (b *Broadcaster) markStopped() {
	b.stopOnce.Do(func() { close(b.stopped) })
}

func (b *Broadcaster) handleRegister(c registerCmd) {
	clients, exists := b.activeClients[c.session]
	if !exists {
		clients = make(sessionClients)
	}

	if len(clients) >= b.maxClientsPerSession {
		slog.Warn("Rejecting client: max clients reached", "session", c.session.String(), "max_clients", b.maxClientsPerSession)
		if b.wsMetrics != nil {
			b.wsMetrics.Rejected.WithLabelValues("session_full").Inc()
		}
		_ = c.connection.Close()
		c.errCh <- fmt.Errorf("max clients per session (%d) reached", b.maxClientsPerSession)
		return
	}

	clients[c.connection] = newClientWriter(c.connection, b.clock)
	b.activeClients[c.session] = clients
	if b.wsMetrics != nil {
		b.wsMetrics.ActiveConnections.Inc()
	}

	slog.Debug("Client registered", "session", c.session.String(), "total_clients", len(clients))
	c.errCh <- nil
}

func (b *Broadcaster) handleUnregister(session uuid.UUID, conn *websocket.Conn) {
	clients, exists := b.activeClients[session]
	if !exists {
		return
	}
	cw, exists := clients[conn]
	if !exists {
		return
	}

	cw.stop()
	delete(clients, conn)
	if b.wsMetrics != nil {
		b.wsMetrics.ActiveConnections.Dec()
	}

	if len(clients) == 0 {
		delete(b.activeClients, session)
		slog.Debug("Last client disconnected", "session", session.String())
	}
}

func (b *Broadcaster) handlePublish(c publishCmd) {
	clients := b.activeClients[c.session]
	if len(clients) == 0 {
		return
	}

	var slow []*websocket.Conn
	for conn, writer := range clients {
		select {
		case writer.sendChannel <- c.data:
		default:
			slow = append(slow, conn)
		}
	}

	for _, conn := range slow {
		slog.Warn("Disconnecting slow client", "session", c.session.String())
		if b.wsMetrics != nil {
			b.wsMetrics.SlowClients.Inc()
		}
		b.handleUnregister(c.session, conn)
	}

	if b.wsMetrics != nil {
		b.wsMetrics.MessagesPublished.WithLabelValues("websocket").Inc()
	}
}

func (b *Broadcaster) handleStop() {
	total := 0
	for _, clients := range b.activeClients {
		total += len(clients)
	}
	slog.Info("Broadcaster shutting down", "sessions", len(b.activeClients), "total_clients", total)
	b.closeAllClients("Server shutting down")
}

func (b *Broadcaster) closeAllClients(reason string) {
	for session := range b.activeClients {
		b.closeSession(session, reason)
	}
}

func (b *Broadcaster) closeSession(session uuid.UUID, reason string) {
	clients := b.activeClients[session]
	for _, cw := range clients {
		cw.stopGraceful(reason)
		if b.wsMetrics != nil {
			b.wsMetrics.ActiveConnections.Dec()
		}
	}
	delete(b.activeClients, session)
	if len(clients) > 0 {
		slog.Debug("Session clients closed", "session", session.String(), "clients", len(clients), "reason", reason)
	}
}
