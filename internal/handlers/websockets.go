package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"battery_scheduler/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMsgSize       = 1 << 12
	defaultInterval  = 1 * time.Second
	maxInterval      = 10 * time.Second
	maxIntervalMilli = 10_000
	wsBatch          = 100
)

const wsTypeEvents = "events"

// wsEnvelope is one WebSocket message. Seq is the last audit sequence sent.
type wsEnvelope struct {
	Type  string      `json:"type"`
	Seq   int64       `json:"seq"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// @Summary      Stream audit events
// @Description  WebSocket. Sends events appended after ?after=<seq> (default 0), then polls every ?interval.
// @Tags         logs
// @Param        after     query  int     false  "Resume after this sequence number"
// @Param        interval  query  string  false  "Poll interval, e.g. 2s (max 10s)"
// @Router       /ws [get]
func (h *Handler) wsConnect(c *gin.Context) {
	interval := h.parseInterval(c)
	cursor := parseCursor(c)

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

	// the reader only services control frames and notices the close
	done := make(chan struct{})
	go h.startReader(conn, done)

	ticker := time.NewTicker(interval)
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ping.Stop()
	}()

	// The first message is always sent, even when there is no backlog.
	if err := h.sendEvents(c.Request.Context(), conn, &cursor, true); err != nil {
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
		case <-ticker.C:
			if err := h.sendEvents(c.Request.Context(), conn, &cursor, false); err != nil {
				if h.log != nil {
					h.log.Infow("ws_write_failed", "err", err)
				}
				return
			}
		}
	}
}

// parseInterval reads ?interval=2s or ?interval_ms=2000, falling back to 1s.
func (h *Handler) parseInterval(c *gin.Context) time.Duration {
	interval := defaultInterval

	if s := c.Query("interval"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 && d <= maxInterval {
			return d
		}
	}

	if ms := c.Query("interval_ms"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v > 0 && v <= maxIntervalMilli {
			return time.Duration(v) * time.Millisecond
		}
	}

	return interval
}

func (h *Handler) startReader(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if h.log != nil {
				h.log.Infow("ws_read_closed", "err", err)
			}
			return
		}
	}
}

// parseCursor reads ?after=<seq>; invalid or negative values mean 0.
func parseCursor(c *gin.Context) int64 {
	v, err := strconv.ParseInt(c.Query("after"), 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// sendEvents drains events after *cursor in batches and advances it. Empty
// polls write nothing unless always is set.
func (h *Handler) sendEvents(ctx context.Context, conn *websocket.Conn, cursor *int64, always bool) error {
	for {
		events, err := h.services.EventLog.Since(ctx, *cursor, wsBatch)
		if err != nil {
			if h.log != nil {
				h.log.Errorw("ws_events_load_failed", "err", err, "after", *cursor)
			}
			return err
		}
		if len(events) == 0 && !always {
			return nil
		}
		if len(events) > 0 {
			*cursor = events[len(events)-1].Seq
		} else {
			events = []models.ScheduleEvent{}
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(wsEnvelope{Type: wsTypeEvents, Seq: *cursor, Data: events}); err != nil {
			return err
		}
		if len(events) < wsBatch {
			return nil
		}
		always = false
	}
}
