package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"
	"sync"

	"studyroom-api/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// PresenceHub は部屋ごとのWebSocket接続を管理します
// スレッドセーフな実装により、複数のgoroutineから同時にアクセス可能です
type PresenceHub struct {
	rooms map[string]*presenceRoom // ルームコードをキーとしたルームのマップ
	mu    sync.RWMutex
}

// presenceRoom は1つの部屋のWebSocket接続を管理します
type presenceRoom struct {
	code    string
	clients map[string]*presenceClient // ユーザーIDをキーとしたクライアントのマップ
	mu      sync.RWMutex
}

// presenceClient は1つのWebSocket接続を表します
type presenceClient struct {
	userID string
	conn   *websocket.Conn
	room   *presenceRoom
}

// PresenceMessage はWebSocketで送受信するメッセージの構造
type PresenceMessage struct {
	Type    string `json:"type"`              // メッセージタイプ (例: "user_joined", "user_left")
	UserID  string `json:"userId,omitempty"`  // 対象ユーザーのID
	Message string `json:"message,omitempty"` // 補足メッセージ
}

// WebSocketHandler はルーム在席のWebSocket接続を処理するハンドラー
// 切断を検知すると信頼チャネル経由で退室を記録し、
// 全員の切断（放置）を検知するとルーム自体を削除します
type WebSocketHandler struct {
	svc          *service.RoomService
	hub          *PresenceHub
	upgrader     websocket.Upgrader
	socketSecret string // 信頼チャネルの共有シークレット（同一プロセス内の呼び出しにも同じ経路を使う）
}

func NewWebSocketHandler(s *service.RoomService, socketSecret string) *WebSocketHandler {
	return &WebSocketHandler{
		svc:          s,
		hub:          &PresenceHub{rooms: make(map[string]*presenceRoom)},
		socketSecret: socketSecret,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// オリジンの制限はCORSミドルウェア側の設定に合わせて運用します
				return true
			},
		},
	}
}

// HandleWebSocket はWebSocket接続を処理します
// 接続はルーム作成時に発行されたソケットトークンで認可されます
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	code := normalizeID(chi.URLParam(r, "code"))
	userID := normalizeID(r.URL.Query().Get("userId"))
	token := normalizeID(r.URL.Query().Get("token"))

	if err := validateRoomCode(code); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if userID == "" {
		http.Error(w, "userId required", http.StatusBadRequest)
		return
	}

	room, err := h.svc.GetRoom(r.Context(), code)
	if err != nil {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	// アップグレード前にトークンを照合する
	if subtle.ConstantTimeCompare([]byte(token), []byte(room.RealtimeToken)) != 1 {
		http.Error(w, "invalid realtime token", http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Error("websocket upgrade error")
		return
	}

	client := h.hub.register(code, userID, conn)
	defer func() {
		empty := h.hub.unregister(client)

		// 切断＝退室として信頼チャネル経由でカウンタを減らす
		if _, err := h.svc.LeaveRoomTrusted(context.Background(), h.socketSecret, code); err != nil {
			logrus.WithFields(logrus.Fields{"room_code": code, "user_id": userID}).WithError(err).Error("auto-leave on disconnect failed")
		}
		h.hub.broadcast(client.room, PresenceMessage{Type: "user_left", UserID: userID}, userID)

		// 全員が切断したら放置とみなしてルームを削除する
		if empty {
			if _, err := h.svc.DeleteRoomTrusted(context.Background(), h.socketSecret, code); err != nil {
				logrus.WithField("room_code", code).WithError(err).Error("abandonment delete failed")
			}
		}

		conn.Close()
	}()

	logrus.WithFields(logrus.Fields{"room_code": code, "user_id": userID}).Info("websocket connected")

	for {
		var msg PresenceMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithError(err).Warn("websocket read error")
			}
			return
		}

		switch msg.Type {
		case "ping":
			// ping/pongで接続を維持
			if err := conn.WriteJSON(PresenceMessage{Type: "pong"}); err != nil {
				logrus.WithError(err).Warn("failed to send pong")
				return
			}
		default:
			logrus.WithField("type", msg.Type).Debug("ignoring unknown presence message")
		}
	}
}

// register はクライアントを登録し、既存の参加者に参加を通知します
// ルームのハブが存在しない場合は新規作成します
func (hub *PresenceHub) register(code, userID string, conn *websocket.Conn) *presenceClient {
	hub.mu.Lock()
	room, exists := hub.rooms[code]
	if !exists {
		room = &presenceRoom{code: code, clients: make(map[string]*presenceClient)}
		hub.rooms[code] = room
	}
	hub.mu.Unlock()

	client := &presenceClient{userID: userID, conn: conn, room: room}

	room.mu.Lock()
	room.clients[userID] = client
	room.mu.Unlock()

	hub.broadcast(room, PresenceMessage{Type: "user_joined", UserID: userID}, userID)
	return client
}

// unregister はクライアントの登録を解除します
// ルームが空になった場合は true を返し、ハブからルームを取り除きます
func (hub *PresenceHub) unregister(client *presenceClient) bool {
	room := client.room
	room.mu.Lock()
	delete(room.clients, client.userID)
	isEmpty := len(room.clients) == 0
	room.mu.Unlock()

	if isEmpty {
		hub.mu.Lock()
		delete(hub.rooms, room.code)
		hub.mu.Unlock()
	}
	return isEmpty
}

// broadcast は部屋内の全クライアントにメッセージを送信します（送信者を除く）
func (hub *PresenceHub) broadcast(room *presenceRoom, msg PresenceMessage, excludeUserID string) {
	room.mu.RLock()
	defer room.mu.RUnlock()

	for userID, client := range room.clients {
		if userID == excludeUserID {
			continue
		}
		if err := client.conn.WriteJSON(msg); err != nil {
			logrus.WithField("user_id", userID).WithError(err).Warn("failed to send presence message")
		}
	}
}
