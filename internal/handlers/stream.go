package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jwebster45206/verse-engine/internal/events"
	"github.com/jwebster45206/verse-engine/pkg/session"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// Command is a visitor input sent over the stream
type Command struct {
	Type     string `json:"type"` // present, mode, work, complete, action
	SiteID   string `json:"site_id,omitempty"`
	View     string `json:"view,omitempty"`
	PlotID   string `json:"plot_id,omitempty"`
	Tool     string `json:"tool,omitempty"`
	ActionID string `json:"action_id,omitempty"`
}

// CommandResult answers a Command
type CommandResult struct {
	Type  string `json:"type"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// StreamMessage is one frame sent to the client
type StreamMessage struct {
	Event  *events.Event  `json:"event,omitempty"`
	Result *CommandResult `json:"result,omitempty"`
}

// StreamHandler upgrades to a websocket that carries world events down and
// visitor commands up
// GET /v1/stream
type StreamHandler struct {
	world      WorldService
	subscriber events.Subscriber
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

func NewStreamHandler(world WorldService, subscriber events.Subscriber, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{
		world:      world,
		subscriber: subscriber,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", "error", err)
		return
	}

	ctx := r.Context()
	eventChan, cancel, err := h.subscriber.Subscribe(ctx, h.world.ID())
	if err != nil {
		h.logger.Error("Failed to subscribe to world events", "error", err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "event stream unavailable"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}
	defer cancel()

	h.logger.Info("Websocket connection established", "remote_addr", r.RemoteAddr)

	results := make(chan CommandResult, 16)
	readDone := make(chan struct{})
	writeDone := make(chan struct{})
	go h.readPump(conn, results, readDone, writeDone)
	h.writePump(conn, eventChan, results, readDone)
	close(writeDone)
	h.logger.Info("Websocket client disconnected", "remote_addr", r.RemoteAddr)
}

// readPump runs commands from the peer and queues their results. It stops
// once writeDone closes, since nobody drains results after that.
func (h *StreamHandler) readPump(conn *websocket.Conn, results chan<- CommandResult, done chan<- struct{}, writeDone <-chan struct{}) {
	defer close(done)
	send := func(res CommandResult) bool {
		select {
		case results <- res:
			return true
		case <-writeDone:
			return false
		}
	}
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("Websocket read error", "error", err)
			}
			return
		}

		var cmd Command
		if err := json.Unmarshal(message, &cmd); err != nil {
			h.logger.Warn("Failed to parse stream command", "error", err)
			if !send(CommandResult{Type: "invalid", Error: "malformed command"}) {
				return
			}
			continue
		}
		if !send(h.run(cmd)) {
			return
		}
	}
}

// writePump owns every write to the connection
func (h *StreamHandler) writePump(conn *websocket.Conn, eventChan <-chan events.Event, results <-chan CommandResult, readDone <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	write := func(msg StreamMessage) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			h.logger.Debug("Websocket write failed", "error", err)
			return false
		}
		return true
	}

	for {
		select {
		case <-readDone:
			return
		case event, ok := <-eventChan:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait))
				return
			}
			if !write(StreamMessage{Event: &event}) {
				return
			}
		case res := <-results:
			if !write(StreamMessage{Result: &res}) {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *StreamHandler) run(cmd Command) CommandResult {
	res := CommandResult{Type: cmd.Type}
	if !h.world.Leading() {
		res.Error = "replica on standby"
		return res
	}
	var err error
	switch cmd.Type {
	case "present":
		res.OK, err = h.world.RequestPresentation(cmd.SiteID)
	case "mode":
		var view session.View
		view, err = session.ParseView(cmd.View)
		if err == nil {
			res.OK = h.world.RequestModeSwitch(view)
		}
	case "work":
		_, err = h.world.WorkPlot(cmd.PlotID, cmd.Tool)
		res.OK = err == nil
	case "complete":
		res.OK = h.world.NotifyPlotCompleted(cmd.PlotID)
	case "action":
		res.OK, err = h.world.RequestAction(cmd.ActionID)
	default:
		res.Error = "unknown command"
		return res
	}
	if err != nil {
		res.OK = false
		res.Error = err.Error()
	}
	return res
}
