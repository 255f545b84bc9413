package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/Bagerca/XOXO-Messenger-sub000/internal/app"
	"github.com/Bagerca/XOXO-Messenger-sub000/internal/core"
	"github.com/Bagerca/XOXO-Messenger-sub000/internal/domain"
	"github.com/Bagerca/XOXO-Messenger-sub000/internal/metrics"
)

// op is the inbound envelope; fields beyond Type are op-specific and
// simply absent when unused.
type op struct {
	Type       string `json:"type"`
	RoomID     string `json:"room_id"`
	UserID     string `json:"user_id"`
	MessageID  string `json:"message_id"`
	CategoryID string `json:"category_id"`
	Name       string `json:"name"`
	RoomType   string `json:"room_type"`
	Password   string `json:"password"`
	Text       string `json:"text"`
	Kind       string `json:"kind"`
	Avatar     string `json:"avatar"`
	Order      *int64  `json:"order"`
	SetName    *string `json:"set_name"`
	SetPass    *string `json:"set_password"`
	SetCat     *string `json:"set_category"`
	SetAvatar  *string `json:"set_avatar"`
}

func (ctl *Controller) handleOp(ctx context.Context, sess *app.Session, c *WsConn, data []byte) {
	var env op
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	var err error
	switch env.Type {
	case "ping":
		ctl.sendJSON(c, map[string]any{"type": "pong"})
	case "whoami":
		ctl.sendJSON(c, map[string]any{"type": "whoami", "profile": toProfileDTO(sess.Profile())})
	case "rename":
		err = sess.Rename(ctx, env.Name)
	case "join":
		if err = sess.EnterRoom(ctx, domain.RoomID(env.RoomID), env.Password); err == nil {
			metrics.RoomSwitches.Inc()
		}
	case "leave":
		err = sess.LeaveRoom(ctx, domain.RoomID(env.RoomID))
	case "direct":
		_, err = sess.OpenDirect(ctx, domain.UserID(env.UserID))
	case "send":
		var msg *domain.Message
		if msg, err = sess.Send(ctx, env.Text); err == nil && msg != nil {
			metrics.MessagesSent.Inc()
		}
	case "reply":
		err = sess.StageReply(ctx, domain.MessageID(env.MessageID))
	case "edit":
		if _, err = sess.StageEdit(ctx, domain.MessageID(env.MessageID)); err == nil {
			_, err = sess.Send(ctx, env.Text)
		}
	case "delete":
		err = sess.DeleteMessage(ctx, domain.MessageID(env.MessageID))
	case "react":
		err = sess.React(ctx, domain.MessageID(env.MessageID), env.Kind)
	case "create_room":
		var room *domain.Room
		room, err = sess.CreateRoom(ctx, core.RoomSpec{
			Name:       env.Name,
			Type:       domain.RoomType(env.RoomType),
			Password:   env.Password,
			CategoryID: domain.CategoryID(env.CategoryID),
			Avatar:     env.Avatar,
		})
		if err == nil {
			metrics.RoomsCreated.Inc()
			ctl.sendJSON(c, map[string]any{"type": "room_created", "room": toRoomDTO(room)})
		}
	case "update_room":
		err = sess.UpdateRoom(ctx, domain.RoomID(env.RoomID), roomPatch(env))
	case "delete_room":
		err = sess.DeleteRoom(ctx, domain.RoomID(env.RoomID))
	case "create_category":
		var cat *domain.Category
		if cat, err = ctl.Orch.Directory.CreateCategory(ctx, env.Name); err == nil {
			ctl.sendJSON(c, map[string]any{"type": "category_created", "category": categoryDTO{ID: string(cat.ID), Name: cat.Name, Order: cat.Order}})
		}
	case "update_category":
		err = ctl.Orch.Directory.UpdateCategory(ctx, domain.CategoryID(env.CategoryID), core.CategoryPatch{Name: env.SetName, Order: env.Order})
	case "delete_category":
		err = ctl.Orch.Directory.DeleteCategory(ctx, domain.CategoryID(env.CategoryID))
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown op")
		return
	}

	if err != nil {
		ctl.sendError(c, env.Type, err)
	}
}

func roomPatch(env op) core.RoomPatch {
	patch := core.RoomPatch{
		Name:     env.SetName,
		Password: env.SetPass,
		Avatar:   env.SetAvatar,
	}
	if env.SetCat != nil {
		cat := domain.CategoryID(*env.SetCat)
		patch.CategoryID = &cat
	}
	return patch
}
