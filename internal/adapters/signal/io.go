package signal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Bagerca/XOXO-Messenger-sub000/internal/app"
	"github.com/Bagerca/XOXO-Messenger-sub000/internal/domain"
)

func (ctl *Controller) writePump(ctx context.Context, c *WsConn) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, token string, sess *app.Session, c *WsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("token", token).Msg("readPump closing")
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Warn().Err(err).Str("module", "signal").Str("token", token).Msg("readPump read error")
				}
				return
			}
			ctl.handleOp(ctx, sess, c, data)
		}
	}
}

func (ctl *Controller) sendJSON(c *WsConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

// sendError maps the core taxonomy onto stable wire codes.
func (ctl *Controller) sendError(c *WsConn, op string, err error) {
	code := "internal"
	switch {
	case errors.Is(err, domain.ErrValidation):
		code = "validation"
	case errors.Is(err, domain.ErrAuthorization):
		code = "unauthorized"
	case errors.Is(err, domain.ErrNotFound):
		code = "not_found"
	case errors.Is(err, domain.ErrStoreUnavailable):
		code = "unavailable"
	}
	ctl.sendJSON(c, map[string]any{
		"type":  "error",
		"op":    op,
		"code":  code,
		"error": err.Error(),
	})
}
