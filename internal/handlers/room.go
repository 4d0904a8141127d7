package handlers

import (
	"errors"
	"io"
	"net/http"

	"studyroom-api/internal/middleware"
	"studyroom-api/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// maxThumbnailBytes はサムネイルアップロードの上限サイズです
const maxThumbnailBytes = 5 << 20 // 5MB

type RoomHandler struct {
	svc *service.RoomService
}

func NewRoomHandler(s *service.RoomService) *RoomHandler { return &RoomHandler{svc: s} }

type leaveRequest struct {
	CheckInAt          int64 `json:"checkInAt"`
	CheckOutAt         int64 `json:"checkOutAt"`
	AccumulatedSeconds int64 `json:"accumulatedSeconds"`
}

func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.svc.ListRooms(r.Context())
	if err != nil {
		logrus.WithError(err).Error("list rooms error")
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := r.ParseMultipartForm(maxThumbnailBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	title := normalizeID(r.FormValue("title"))

	thumbnail := readFilePart(r, "thumbnail")
	room, err := h.svc.CreateRoom(r.Context(), ownerID, title, thumbnail)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, room)
}

func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	code := normalizeID(chi.URLParam(r, "code"))
	if err := validateRoomCode(code); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	room, err := h.svc.GetRoom(r.Context(), code)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, room)
}

func (h *RoomHandler) Join(w http.ResponseWriter, r *http.Request) {
	code := normalizeID(chi.URLParam(r, "code"))
	if err := validateRoomCode(code); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	joined, err := h.svc.JoinRoom(r.Context(), code)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"result": joined})
}

func (h *RoomHandler) Leave(w http.ResponseWriter, r *http.Request) {
	code := normalizeID(chi.URLParam(r, "code"))
	if err := validateRoomCode(code); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var in leaveRequest
	if !decodeJSON(w, r, &in) {
		return
	}

	left, record, err := h.svc.LeaveRoom(r.Context(), code, userID, in.CheckInAt, in.CheckOutAt, in.AccumulatedSeconds)
	if err != nil {
		logrus.WithFields(logrus.Fields{"room_code": code, "user_id": userID}).WithError(err).Warn("leave room error")
		h.writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"isLeaveRoom": left, "record": record})
}

func (h *RoomHandler) Delete(w http.ResponseWriter, r *http.Request) {
	code := normalizeID(chi.URLParam(r, "code"))
	if err := validateRoomCode(code); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	deleted, err := h.svc.DeleteRoom(r.Context(), userID, code)
	if err != nil {
		logrus.WithFields(logrus.Fields{"room_code": code, "user_id": userID}).WithError(err).Warn("delete room error")
		h.writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"result": deleted})
}

func (h *RoomHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := r.ParseMultipartForm(maxThumbnailBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	data := readFilePart(r, "image")
	ref, err := h.svc.UploadThumbnail(r.Context(), userID, data)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"message": "image uploaded", "ref": ref})
}

func (h *RoomHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	ref := normalizeID(chi.URLParam(r, "ref"))
	if err := validateImageRef(ref); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	data, err := h.svc.GetThumbnail(r.Context(), ref)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logrus.WithError(err).Error("failed to write image response")
	}
}

func (h *RoomHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	records, err := h.svc.StudyHistory(r.Context(), userID)
	if err != nil {
		logrus.WithField("user_id", userID).WithError(err).Error("study history error")
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"records": records})
}

// readFilePart はmultipartフォームからファイルの中身を読み出します
// パートが存在しない場合はnilを返します（必須チェックはサービス層で行う）
func readFilePart(r *http.Request, field string) []byte {
	file, _, err := r.FormFile(field)
	if err != nil {
		return nil
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxThumbnailBytes))
	if err != nil {
		return nil
	}
	return data
}

func (h *RoomHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotRoomOwner):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrRoomNotFound), errors.Is(err, service.ErrImageNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrThumbnailRequired), errors.Is(err, service.ErrInvalidTimeRange):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUploadFailed):
		respondError(w, http.StatusBadGateway, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
