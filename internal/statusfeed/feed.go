// ABOUTME: HTTP status feed pushing stream statuses to websocket clients
// ABOUTME: Also serves Prometheus metrics and accepts remote control requests
package statusfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/teamclouday/androidmic-host/internal/transport"
)

const (
	writeDeadline = 10 * time.Second
	pingInterval  = 30 * time.Second
	clientBuffer  = 32
)

// Config holds feed configuration
type Config struct {
	Addr    string
	Metrics http.Handler
	Logger  *zap.Logger
}

// Request is a control message sent by a client
type Request struct {
	ClientID  string `json:"-"`
	Command   string `json:"command"`
	Transport string `json:"transport,omitempty"`

	// Output settings for the "output" command
	Format     string `json:"format,omitempty"`
	Channels   int    `json:"channels,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Device     string `json:"device,omitempty"`
}

type hello struct {
	Kind     string `json:"kind"`
	ClientID string `json:"client_id"`
}

type client struct {
	id       string
	conn     *websocket.Conn
	sendChan chan []byte
}

// Feed fans statuses out to websocket clients
type Feed struct {
	config   Config
	logger   *zap.Logger
	upgrader websocket.Upgrader
	mux      *http.ServeMux
	requests chan Request

	mu      sync.RWMutex
	clients map[string]*client
	last    []byte
}

// New creates a feed
func New(config Config) *Feed {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	f := &Feed{
		config: config,
		logger: logger.Named("statusfeed"),
		upgrader: websocket.Upgrader{
			// local network tool, any origin may watch
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		mux:      http.NewServeMux(),
		requests: make(chan Request, 16),
		clients:  make(map[string]*client),
	}

	f.mux.HandleFunc("/ws", f.handleWebSocket)
	if config.Metrics != nil {
		f.mux.Handle("/metrics", config.Metrics)
	}
	return f
}

// Handler returns the HTTP handler
func (f *Feed) Handler() http.Handler {
	return f.mux
}

// Requests returns control requests from clients
func (f *Feed) Requests() <-chan Request {
	return f.requests
}

// Clients returns the number of connected clients
func (f *Feed) Clients() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.clients)
}

// Publish sends st to every client. Slow clients drop messages.
func (f *Feed) Publish(st transport.Status) {
	data, err := json.Marshal(st)
	if err != nil {
		f.logger.Error("marshal status", zap.Error(err))
		return
	}

	f.mu.Lock()
	if st.Kind != transport.StatusPreviewSample {
		f.last = data
	}
	clients := make([]*client, 0, len(f.clients))
	for _, c := range f.clients {
		clients = append(clients, c)
	}
	f.mu.Unlock()

	for _, c := range clients {
		select {
		case c.sendChan <- data:
		default:
			f.logger.Debug("dropping status for slow client", zap.String("client", c.id))
		}
	}
}

// Run serves HTTP on the configured address until ctx ends
func (f *Feed) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", f.config.Addr)
	if err != nil {
		return fmt.Errorf("status feed listen: %w", err)
	}
	return f.Serve(ctx, ln)
}

// Serve serves HTTP on ln until ctx ends
func (f *Feed) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: f.mux}

	errChan := make(chan error, 1)
	go func() {
		f.logger.Info("status feed listening", zap.String("addr", ln.Addr().String()))
		errChan <- srv.Serve(ln)
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("status feed failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		f.logger.Warn("status feed shutdown", zap.Error(err))
	}
	if err := <-errChan; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	f.mu.Lock()
	for id, c := range f.clients {
		c.conn.Close()
		delete(f.clients, id)
	}
	f.mu.Unlock()
	return nil
}

func (f *Feed) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Warn("websocket upgrade error", zap.Error(err))
		return
	}

	c := &client{
		id:       uuid.New().String(),
		conn:     conn,
		sendChan: make(chan []byte, clientBuffer),
	}

	greeting, _ := json.Marshal(hello{Kind: "hello", ClientID: c.id})
	c.sendChan <- greeting

	f.mu.Lock()
	if f.last != nil {
		c.sendChan <- f.last
	}
	f.clients[c.id] = c
	f.mu.Unlock()

	f.logger.Info("status client connected",
		zap.String("client", c.id),
		zap.String("remote", r.RemoteAddr))

	done := make(chan struct{})
	go f.clientWriter(c, done)

	f.readLoop(c)

	f.mu.Lock()
	delete(f.clients, c.id)
	f.mu.Unlock()
	close(done)
	conn.Close()

	f.logger.Info("status client disconnected", zap.String("client", c.id))
}

func (f *Feed) readLoop(c *client) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				f.logger.Warn("websocket error", zap.Error(err))
			}
			return
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			f.logger.Warn("invalid request", zap.String("client", c.id), zap.Error(err))
			continue
		}
		req.ClientID = c.id

		select {
		case f.requests <- req:
		default:
			f.logger.Warn("dropping request", zap.String("command", req.Command))
		}
	}
}

func (f *Feed) clientWriter(c *client, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return

		case data := <-c.sendChan:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				f.logger.Debug("write failed", zap.String("client", c.id), zap.Error(err))
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeDeadline)); err != nil {
				return
			}
		}
	}
}
