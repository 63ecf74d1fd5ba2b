package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/MahiaRaniNatarajan/smartlearn/internal/config"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/domain"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/hub"
	"github.com/MahiaRaniNatarajan/smartlearn/internal/service"
	"github.com/MahiaRaniNatarajan/smartlearn/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSHandler struct {
	service service.ChatService
	wsCfg   config.WebSocketConfig
}

func NewWSHandler(svc service.ChatService, wsCfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		service: svc,
		wsCfg:   wsCfg,
	}
}

func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	l := log.Ctx(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), conn, h.wsCfg)

	// The request context ends with this handler; the connection outlives it.
	ctx := log.With(context.WithoutCancel(r.Context()), log.FieldClientID, client.ID)
	l = log.Ctx(ctx)
	l.Debug().Msg("client connected")

	go client.WritePump()
	go client.ReadPump(ctx, h.handleMessage, func(c *hub.Client) {
		if err := h.service.HandleDisconnect(ctx, c); err != nil {
			l.Warn().Err(err).Msg("disconnect handling failed")
		}
		l.Debug().Msg("client disconnected")
	})
}

func (h *WSHandler) handleMessage(ctx context.Context, client *hub.Client, message []byte) {
	l := log.Ctx(ctx)

	frame, err := domain.ParseFrame(message)
	if err != nil {
		l.Warn().Err(err).Msg("dropping malformed frame")
		return
	}

	// Only auth is accepted before the handshake; everything else is dropped.
	if _, isAuth := frame.(*domain.AuthFrame); !isAuth && !client.Session.IsAuthenticated() {
		l.Debug().Str(log.FieldFrameType, frame.FrameType()).Msg("discarding frame before handshake")
		return
	}

	switch f := frame.(type) {
	case *domain.PingFrame:
		data, _ := json.Marshal(&domain.PongMessage{Type: domain.MsgTypePong})
		client.Enqueue(data)

	case *domain.AuthFrame:
		err := h.service.HandleAuth(ctx, client, f.Token)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrAlreadyAuthenticated):
			l.Debug().Msg("ignoring auth frame on authenticated connection")
		default:
			l.Warn().Err(err).Msg("auth failed")
		}

	case *domain.ChatFrame:
		if err := h.service.HandleChat(ctx, client, f); err != nil {
			identity, _ := client.Session.Identity()
			l.Warn().Err(err).Int64(log.FieldUserID, identity.UserID).Msg("chat message failed")
		}
	}
}

// RegisterRoutes serves the socket on /ws and /chat/ws, and on / for
// upgrade requests so clients that connect to the bare host work too.
func (h *WSHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/ws", h.HandleWebSocket).Methods("GET")
	router.HandleFunc("/chat/ws", h.HandleWebSocket).Methods("GET")
	router.HandleFunc("/", h.HandleWebSocket).Methods("GET").MatcherFunc(UpgradeRequest)
}

// UpgradeRequest matches WebSocket upgrade requests.
func UpgradeRequest(r *http.Request, _ *mux.RouteMatch) bool {
	return websocket.IsWebSocketUpgrade(r)
}
