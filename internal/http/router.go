package http

import (
	"net/http"

	"studyroom-api/internal/handlers"
	mw "studyroom-api/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter はAPIのルーティングを構築します
// ユーザーチャネルはJWTミドルウェアの内側、信頼チャネル（/rooms/socket/...）は外側に置きます
func NewRouter(h *handlers.RoomHandler, sh *handlers.SocketHandler, wsHandler *handlers.WebSocketHandler, jwtSecret string, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)

	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Socket-Secret"},
			ExposedHeaders:   []string{"Link"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Route("/rooms", func(r chi.Router) {
		// 信頼チャネル: ソケットサーバーからの切断・放置通知
		r.Post("/socket/leave/{code}", sh.Leave)
		r.Delete("/socket/{code}", sh.Delete)

		// 在席WebSocket（ルームのソケットトークンで認可）
		r.Get("/{code}/ws", wsHandler.HandleWebSocket)

		// ユーザーチャネル
		r.Group(func(r chi.Router) {
			r.Use(mw.JWTAuth(jwtSecret))

			r.Get("/", h.List)
			r.Post("/", h.Create)
			r.Get("/records", h.History)
			r.Post("/image", h.UploadImage)
			r.Get("/image/{ref}", h.GetImage)
			r.Get("/{code}", h.Get)
			r.Post("/{code}/join", h.Join)
			r.Post("/{code}/leave", h.Leave)
			r.Delete("/{code}", h.Delete)
		})
	})

	return r
}
