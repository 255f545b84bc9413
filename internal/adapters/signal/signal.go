// Package signal is the websocket transport of the sync core: it turns
// client JSON ops into session calls and session events into pushed frames.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Bagerca/XOXO-Messenger-sub000/internal/app"
	"github.com/Bagerca/XOXO-Messenger-sub000/internal/config"
	"github.com/Bagerca/XOXO-Messenger-sub000/internal/core"
	"github.com/Bagerca/XOXO-Messenger-sub000/internal/domain"
	"github.com/Bagerca/XOXO-Messenger-sub000/internal/metrics"
)

var ErrBackpressure = errors.New("backpressure")

type Controller struct {
	Orch *app.Orchestrator
	Cfg  *config.Config
}

func NewController(orch *app.Orchestrator, cfg *config.Config) *Controller {
	return &Controller{Orch: orch, Cfg: cfg}
}

// WsConn is one client socket with a bounded outbound queue. A full queue
// drops the frame rather than blocking a fanout.
type WsConn struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func (c *WsConn) TrySend(b []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- b:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWS upgrades the request, opens a session for the client token and
// bridges session topics onto the socket until the client disconnects.
func (ctl *Controller) HandleWS(ctx context.Context, c *gin.Context) {
	token := c.GetString("client_token")
	nameHint := c.Query("name")
	log.Info().Str("module", "signal").Str("token", token).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := &WsConn{
		conn: ws,
		send: make(chan []byte, 64),
	}
	if ctl.Cfg.ReadLimit > 0 {
		ws.SetReadLimit(ctl.Cfg.ReadLimit)
	}

	sess, err := ctl.Orch.OpenSession(ctx, domain.UserID(token), nameHint)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("token", token).Msg("open session")
		_ = ws.Close()
		return
	}
	ctl.Orch.Registry.Bind(token, sess)
	metrics.WsConnections.Inc()

	unhook := ctl.hookEvents(sess, conn)
	ctx, cancel := context.WithCancel(ctx)

	go ctl.writePump(ctx, conn)
	go func() {
		defer func() {
			cancel()
			unhook()
			ctl.Orch.Registry.Unbind(token, sess)
			metrics.WsConnections.Dec()
		}()
		ctl.readPump(ctx, token, sess, conn)
	}()
}

// hookEvents forwards every session topic to the socket as JSON frames.
func (ctl *Controller) hookEvents(sess *app.Session, conn *WsConn) func() {
	cancels := []func(){
		sess.Events.Entered.Subscribe(func(e app.RoomEntered) {
			ctl.sendJSON(conn, enteredFrame(e))
		}),
		sess.Events.Rooms.Subscribe(func(rooms []*domain.Room) {
			ctl.sendJSON(conn, roomsFrame(rooms))
		}),
		sess.Events.Categories.Subscribe(func(cats []*domain.Category) {
			ctl.sendJSON(conn, categoriesFrame(cats))
		}),
		sess.Events.Messages.Subscribe(func(events []core.MessageEvent) {
			ctl.sendJSON(conn, messagesFrame(events))
		}),
		sess.Events.Members.Subscribe(func(members []domain.Profile) {
			ctl.sendJSON(conn, membersFrame(members))
		}),
		sess.Events.Media.Subscribe(func(item app.MediaItem) {
			ctl.sendJSON(conn, mediaFrame(item))
		}),
	}
	return func() {
		for _, fn := range cancels {
			fn()
		}
	}
}
