package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"resumeBuilder/internal/api/middleware"
	"resumeBuilder/internal/notify"
)

const (
	wsAuthTimeout  = 10 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 5 * time.Second
)

// EventSubscriber 按用户订阅简历事件，由 notify.Subscriber 实现。
type EventSubscriber interface {
	Subscribe(ctx context.Context, userID uint) (<-chan notify.Message, error)
}

// WsHandler 推送当前用户的简历事件。
// 连接建立后第一条消息必须是 {"type":"auth","token":...}。
type WsHandler struct {
	identities middleware.IdentityResolver
	events     EventSubscriber
	logger     *slog.Logger
	upgrader   websocket.Upgrader
}

// NewWsHandler 构造 WebSocket 处理器。allowedOrigins 为空时只接受同源连接。
func NewWsHandler(identities middleware.IdentityResolver, events EventSubscriber, logger *slog.Logger, allowedOrigins []string) *WsHandler {
	return &WsHandler{
		identities: identities,
		events:     events,
		logger:     logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowedOrigins []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if len(allowedOrigins) == 0 {
			u, err := url.Parse(origin)
			return err == nil && strings.EqualFold(u.Host, r.Host)
		}
		for _, allowed := range allowedOrigins {
			if origin == allowed {
				return true
			}
		}
		return false
	}
}

type wsAuthMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

var errWsAuth = errors.New("websocket auth rejected")

// HandleConnection 完成握手鉴权，然后把 resume.saved 等已知事件转发给客户端。
func (h *WsHandler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("upgrade websocket failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	log := h.logger.With(slog.String("client_ip", c.ClientIP()))

	userID, err := h.authenticate(conn)
	if err != nil {
		log.Info("websocket authentication failed", slog.Any("error", err))
		writeClose(conn, websocket.ClosePolicyViolation, "unauthorized")
		return
	}
	log = log.With(slog.Uint64("user_id", uint64(userID)))

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	events, err := h.events.Subscribe(ctx, userID)
	if err != nil {
		log.Error("subscribe resume events failed", slog.Any("error", err))
		writeClose(conn, websocket.CloseInternalServerErr, "subscription unavailable")
		return
	}

	// 客户端不再发送业务消息；持续读取只为处理控制帧并感知断开。
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	log.Info("websocket subscribed")
	forwarded := 0
	defer func() {
		log.Info("websocket closed", slog.Int("forwarded", forwarded))
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-events:
			if !ok {
				writeClose(conn, websocket.CloseGoingAway, "subscription ended")
				return
			}
			if !notify.IsKnownEvent(msg.Type) {
				log.Debug("dropping unknown event", slog.String("type", msg.Type))
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				log.Info("write event failed", slog.Any("error", err))
				return
			}
			forwarded++
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		}
	}
}

func (h *WsHandler) authenticate(conn *websocket.Conn) (uint, error) {
	_ = conn.SetReadDeadline(time.Now().Add(wsAuthTimeout))
	defer conn.SetReadDeadline(time.Time{})

	_, raw, err := conn.ReadMessage()
	if err != nil {
		return 0, err
	}

	var msg wsAuthMessage
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Type != "auth" || msg.Token == "" {
		return 0, errWsAuth
	}
	return h.identities.ResolveIdentity(msg.Token)
}

func writeClose(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(wsWriteTimeout))
}
