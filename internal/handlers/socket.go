package handlers

import (
	"net/http"

	"studyroom-api/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// socketSecretHeader は信頼チャネルの共有シークレットを運ぶヘッダーです
const socketSecretHeader = "X-Socket-Secret"

// SocketHandler はソケットサーバー向けの信頼チャネルを処理します
// 認可はユーザートークンではなく共有シークレットで行い、
// 不一致の場合もHTTP 200で {result: false} を返します
// （未認証の呼び出し元にシークレットやルームの存在を悟らせないため）
type SocketHandler struct {
	svc *service.RoomService
}

func NewSocketHandler(s *service.RoomService) *SocketHandler { return &SocketHandler{svc: s} }

func (h *SocketHandler) Leave(w http.ResponseWriter, r *http.Request) {
	code := normalizeID(chi.URLParam(r, "code"))
	if err := validateRoomCode(code); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	left, err := h.svc.LeaveRoomTrusted(r.Context(), r.Header.Get(socketSecretHeader), code)
	if err != nil {
		logrus.WithField("room_code", code).WithError(err).Error("trusted leave error")
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"result": left})
}

func (h *SocketHandler) Delete(w http.ResponseWriter, r *http.Request) {
	code := normalizeID(chi.URLParam(r, "code"))
	if err := validateRoomCode(code); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	deleted, err := h.svc.DeleteRoomTrusted(r.Context(), r.Header.Get(socketSecretHeader), code)
	if err != nil {
		logrus.WithField("room_code", code).WithError(err).Error("trusted delete error")
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"result": deleted})
}
