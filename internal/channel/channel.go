package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"import_panel/internal/ckan"
	"import_panel/internal/logger"
	"import_panel/internal/metrics"
	"import_panel/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Synthetic lifecycle events delivered on Events() alongside server frames.
const (
	EventConnected    = "$connected"
	EventDisconnected = "$disconnected"
)

// Keepalive and sizing, same budget as the dashboard's downstream socket.
const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxFrameSize     = 1 << 20 // 1 MB; job_status snapshots can be large
	eventsBuffer     = 256
	tokenMargin      = 5 * time.Second
	defaultRedialGap = 2 * time.Second
	defaultBurst     = 1
)

var (
	// ErrClosed is returned by operations on a closed connection.
	ErrClosed = errors.New("channel: closed")
	// ErrDisconnected is returned while the transport is down, and to
	// requests that were in flight when it dropped.
	ErrDisconnected = errors.New("channel: disconnected")
)

// TokenFunc fetches a fresh channel token (cudc_import_ws_token).
type TokenFunc func(ctx context.Context) (string, error)

// Options configures Dial.
type Options struct {
	// URL is the namespace endpoint, e.g. wss://ckan.example.org/admin-dashboard.
	URL   string
	Token TokenFunc
	// RedialEvery throttles reconnect attempts; zero means 2s.
	RedialEvery time.Duration
	Dialer      *websocket.Dialer
	Log         *logger.Logger
}

// Conn is one logical event-channel session. The underlying websocket is
// replaced transparently on reconnect.
type Conn struct {
	opts    Options
	log     *logger.Logger
	limiter *rate.Limiter

	writeMu sync.Mutex
	mu      sync.Mutex
	ws      *websocket.Conn
	token   string
	pending map[string]struct{}

	events    chan models.Frame
	closed    chan struct{}
	closeOnce sync.Once
	done      chan struct{}
}

// Dial exchanges a token and opens the channel. A token or dial failure is
// returned as-is; no retry is attempted for the first connection.
func Dial(ctx context.Context, opts Options) (*Conn, error) {
	if opts.Token == nil {
		return nil, errors.New("channel: token source is required")
	}
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment}
	}
	gap := opts.RedialEvery
	if gap <= 0 {
		gap = defaultRedialGap
	}
	c := &Conn{
		opts:    opts,
		log:     logger.OrNop(opts.Log).With("channel", opts.URL),
		limiter: rate.NewLimiter(rate.Every(gap), defaultBurst),
		pending: make(map[string]struct{}),
		events:  make(chan models.Frame, eventsBuffer),
		closed:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	ws, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	// The initial dial counts against the limiter, so a socket that drops
	// right away is not redialled in a tight loop.
	c.limiter.Allow()
	c.setConn(ws)
	c.events <- models.Frame{Event: EventConnected}
	go c.run(ws)
	return c, nil
}

// Events delivers server frames and lifecycle events in transport order.
// The channel is closed after Close.
func (c *Conn) Events() <-chan models.Frame {
	return c.events
}

// Emit sends a named event. It fails fast while disconnected.
func (c *Conn) Emit(event string, data any) error {
	return c.write(models.Frame{Event: event}, data)
}

// Request sends a named event tagged with a fresh request id. The reply is
// not split off the stream: it arrives on Events() between the frames the
// server sent before and after it. Replies to unknown, cancelled or already
// answered ids are dropped.
func (c *Conn) Request(event string, data any) (*Call, error) {
	id := uuid.NewString()

	c.mu.Lock()
	if c.isClosed() {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.pending[id] = struct{}{}
	c.mu.Unlock()

	if err := c.write(models.Frame{Event: event, RequestID: id}, data); err != nil {
		c.forget(id)
		return nil, err
	}
	return &Call{id: id, conn: c}, nil
}

// Close tears down the connection unconditionally. Safe to call twice.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.mu.Lock()
		ws := c.ws
		c.ws = nil
		c.mu.Unlock()
		if ws != nil {
			c.writeMu.Lock()
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			c.writeMu.Unlock()
			_ = ws.Close()
		}
	})
	<-c.done
	return nil
}

func (c *Conn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *Conn) write(f models.Frame, data any) error {
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("encode %s: %w", f.Event, err)
		}
		f.Data = raw
	}
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if c.isClosed() {
		return ErrClosed
	}
	if ws == nil {
		return ErrDisconnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ws.WriteJSON(f); err != nil {
		return fmt.Errorf("write %s: %w", f.Event, err)
	}
	return nil
}

// setConn installs ws unless Close already ran; it reports whether it did.
func (c *Conn) setConn(ws *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isClosed() {
		return false
	}
	c.ws = ws
	return true
}

func (c *Conn) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// failPending forgets every in-flight request. Callers learn about it from
// the EventDisconnected that follows.
func (c *Conn) failPending() {
	c.mu.Lock()
	clear(c.pending)
	c.mu.Unlock()
}

// connect obtains a usable token (cached when not about to expire) and dials.
func (c *Conn) connect(ctx context.Context) (*websocket.Conn, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	if !ckan.TokenUsable(token, time.Now(), tokenMargin) {
		t, err := c.opts.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("channel token: %w", err)
		}
		token = t
		c.mu.Lock()
		c.token = t
		c.mu.Unlock()
	}

	u, err := url.Parse(c.opts.URL)
	if err != nil {
		return nil, fmt.Errorf("channel url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer "+token)
	ws, resp, err := c.opts.Dialer.DialContext(ctx, u.String(), hdr)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			// Force a new token on the next attempt.
			c.mu.Lock()
			c.token = ""
			c.mu.Unlock()
		}
		return nil, fmt.Errorf("dial %s: %w", c.opts.URL, err)
	}
	ws.SetReadLimit(maxFrameSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	return ws, nil
}

// run reads from ws until it fails, then redials until Close.
func (c *Conn) run(ws *websocket.Conn) {
	defer close(c.done)
	defer close(c.events)
	defer c.failPending()

	for {
		c.readLoop(ws)
		if c.isClosed() {
			return
		}
		c.mu.Lock()
		if c.ws == ws {
			c.ws = nil
		}
		c.mu.Unlock()
		_ = ws.Close()
		c.failPending()
		if !c.deliver(models.Frame{Event: EventDisconnected}) {
			return
		}

		next, ok := c.redial()
		if !ok {
			return
		}
		ws = next
		if !c.setConn(ws) {
			_ = ws.Close()
			return
		}
		if !c.deliver(models.Frame{Event: EventConnected}) {
			return
		}
	}
}

// redial blocks until a new websocket is open or the Conn is closed.
func (c *Conn) redial() (*websocket.Conn, bool) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-c.closed:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, false
		}
		metrics.ChannelReconnect()
		ws, err := c.connect(ctx)
		if err == nil {
			c.log.Infow("channel_reconnected")
			return ws, true
		}
		if c.isClosed() {
			return nil, false
		}
		c.log.Warnw("channel_redial_failed", "err", err)
	}
}

func (c *Conn) readLoop(ws *websocket.Conn) {
	stopPing := make(chan struct{})
	defer close(stopPing)
	go c.pingLoop(ws, stopPing)

	for {
		var f models.Frame
		if err := ws.ReadJSON(&f); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				// One malformed frame does not poison the stream.
				c.log.Warnw("channel_bad_frame", "err", err)
				continue
			}
			if !c.isClosed() {
				c.log.Infow("channel_read_closed", "err", err)
			}
			return
		}
		metrics.ChannelEvent(f.Event)

		if f.RequestID != "" && !c.claim(f.RequestID) {
			c.log.Debugw("channel_stale_response", "event", f.Event, "request_id", f.RequestID)
			continue
		}
		if !c.deliver(f) {
			return
		}
	}
}

// claim consumes the pending request id, reporting whether it was pending.
func (c *Conn) claim(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[id]; !ok {
		return false
	}
	delete(c.pending, id)
	return true
}

func (c *Conn) deliver(f models.Frame) bool {
	select {
	case c.events <- f:
		return true
	case <-c.closed:
		return false
	}
}

func (c *Conn) pingLoop(ws *websocket.Conn, stop <-chan struct{}) {
	t := time.NewTicker(pingPeriod)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			c.writeMu.Lock()
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			err := ws.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				c.log.Infow("channel_ping_failed", "err", err)
				return
			}
		}
	}
}
