package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"import_panel/internal/panel"
	"import_panel/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Send/receive timing configuration and message size limits.
const (
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = (pongWait * 9) / 10
	maxMsgSize    = 1 << 12 // 4 KB
	defaultBuffer = 256
	maxBuffer     = 4096
)

// Messages the browser sends on the panel stream.
const (
	clientViewport = "viewport"
)

// Envelope used for WebSocket messages.
type wsEnvelope struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// wsClientMessage is {"type":"viewport","scroll_top":..,"scroll_height":..,"client_height":..}.
type wsClientMessage struct {
	Type string `json:"type"`
	panel.ScrollMetrics
}

// TODO: restrict origins once the dashboard host is configurable.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// @Summary      Panel update stream
// @Description  WebSocket. Sends a snapshot, then one message per state change, progress update, log flush and finished record. Send {"type":"viewport",...} scroll metrics to drive autoscroll.
// @Tags         panels
// @Param        id      path   string  true   "panel id"
// @Param        buffer  query  int     false  "update queue size before the stream is dropped"
// @Router       /api/v1/panels/{id}/ws [get]
func (h *Handler) panelStream(c *gin.Context) {
	p := currentPanel(c)
	updates, snap, stop, err := p.Watch(h.parseBuffer(c))
	if err != nil {
		code, msg := panelError(err)
		c.JSON(code, gin.H{"error": msg})
		return
	}
	defer stop()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go h.startReader(conn, p, done)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	if err := writeEnvelope(conn, wsEnvelope{Type: "snapshot", Data: snap}); err != nil {
		if h.log != nil {
			h.log.Infow("ws_write_failed_initial", "err", err)
		}
		return
	}

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if h.log != nil {
					h.log.Infow("ws_ping_failed", "err", err)
				}
				return
			}
		case u, ok := <-updates:
			if !ok {
				// Unmounted, or this stream fell behind; the client resyncs.
				_ = writeEnvelope(conn, wsEnvelope{Type: "closed"})
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := writeEnvelope(conn, wsEnvelope{Type: u.Type, Data: u}); err != nil {
				if h.log != nil {
					h.log.Infow("ws_write_failed", "err", err)
				}
				return
			}
		}
	}
}

// parseBuffer reads ?buffer=N within bounds.
func (h *Handler) parseBuffer(c *gin.Context) int {
	if s := c.Query("buffer"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 && v <= maxBuffer {
			return v
		}
	}
	return defaultBuffer
}

// startReader applies viewport reports and detects closure.
func (h *Handler) startReader(conn *websocket.Conn, p service.PanelHandle, done chan<- struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if h.log != nil {
				h.log.Infow("ws_read_closed", "err", err)
			}
			return
		}
		var msg wsClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			if h.log != nil {
				h.log.Debugw("ws_bad_client_message", "err", err)
			}
			continue
		}
		if msg.Type == clientViewport {
			p.ReportViewport(msg.ScrollMetrics)
		}
	}
}

func writeEnvelope(conn *websocket.Conn, env wsEnvelope) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(env)
}
