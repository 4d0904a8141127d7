// Package service はビジネスロジックを担当します
// ルームの作成・管理・入退室・学習記録の処理を提供します
package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"studyroom-api/internal/idgen"
	"studyroom-api/internal/models"
	"studyroom-api/internal/repo"

	"github.com/sirupsen/logrus"
)

// RoomService はルーム管理のビジネスロジックを提供します
// ユーザーチャネル（JWT認証）と信頼チャネル（共有シークレット）の
// 2系統の認可をここで束ねます
type RoomService struct {
	rooms        repo.RoomRepo
	images       repo.ImageRepo
	occupancy    *OccupancyManager
	recorder     *SessionRecorder
	socketSecret []byte // 信頼チャネルの共有シークレット（起動時に注入、以降不変）
}

func NewRoomService(rooms repo.RoomRepo, images repo.ImageRepo, occ *OccupancyManager, rec *SessionRecorder, socketSecret string) *RoomService {
	return &RoomService{
		rooms:        rooms,
		images:       images,
		occupancy:    occ,
		recorder:     rec,
		socketSecret: []byte(socketSecret),
	}
}

// CreateRoom は新しいルームを作成します
// 処理の流れ:
// 1. サムネイルの存在チェック（サムネイルのないルームは作成不可）
// 2. 画像をアップロード（失敗した場合はルームを作成しない）
// 3. ルームコードとソケットトークンを発行して保存
func (s *RoomService) CreateRoom(ctx context.Context, ownerID, title string, thumbnail []byte) (models.Room, error) {
	if len(thumbnail) == 0 {
		return models.Room{}, ErrThumbnailRequired
	}

	ref, err := s.images.SaveImage(ctx, ownerID, thumbnail)
	if err != nil {
		logrus.WithField("owner_id", ownerID).WithError(err).Error("thumbnail upload failed, room not created")
		return models.Room{}, ErrUploadFailed
	}

	room := models.Room{
		ID:            idgen.NewULID(),
		Code:          idgen.NewRoomCode(),
		OwnerID:       ownerID,
		Title:         title,
		ThumbnailRef:  ref,
		RealtimeToken: idgen.NewULID(),
		CreatedAt:     time.Now().Unix(),
	}
	if err := s.rooms.CreateRoom(ctx, room); err != nil {
		logrus.WithFields(logrus.Fields{"owner_id": ownerID, "room_code": room.Code}).WithError(err).Error("failed to persist room")
		return models.Room{}, err
	}

	logrus.WithFields(logrus.Fields{"owner_id": ownerID, "room_code": room.Code}).Info("room created")
	return room, nil
}

// ListRooms は全ルームの一覧を作成順で返します（ソケットトークンを含む）
func (s *RoomService) ListRooms(ctx context.Context) ([]models.Room, error) {
	return s.rooms.ListRooms(ctx)
}

// GetRoom はルームコードでルームを取得します
func (s *RoomService) GetRoom(ctx context.Context, code string) (models.Room, error) {
	room, exists, err := s.rooms.GetRoom(ctx, code)
	if err != nil {
		return models.Room{}, err
	}
	if !exists {
		return models.Room{}, ErrRoomNotFound
	}
	return room, nil
}

// JoinRoom はルームへの入室を記録します
func (s *RoomService) JoinRoom(ctx context.Context, code string) (bool, error) {
	return s.occupancy.Join(ctx, code)
}

// LeaveRoom は退室を記録し、学習記録を保存します
// カウンタの減算と記録の保存は別々のステップであり、ルーム照会が
// 古くなっていても（既に削除されていても）学習記録は必ず保存を試みます
func (s *RoomService) LeaveRoom(ctx context.Context, code, userID string, checkInAt, checkOutAt, reportedSeconds int64) (bool, models.StudyRecord, error) {
	left, leaveErr := s.occupancy.Leave(ctx, code)
	if leaveErr != nil && !errors.Is(leaveErr, ErrRoomNotFound) {
		// ストレージ障害でも記録の保存は試みる
		logrus.WithFields(logrus.Fields{"room_code": code, "user_id": userID}).WithError(leaveErr).Error("leave counter update failed")
	}

	rec, recErr := s.recorder.RecordCheckout(ctx, code, userID, checkInAt, checkOutAt, reportedSeconds)
	if recErr != nil {
		return left, models.StudyRecord{}, recErr
	}
	if leaveErr != nil && !errors.Is(leaveErr, ErrRoomNotFound) {
		return false, rec, leaveErr
	}
	return left, rec, nil
}

// DeleteRoom はルームを削除します（オーナーのみ実行可能）
func (s *RoomService) DeleteRoom(ctx context.Context, requesterID, code string) (bool, error) {
	deleted, err := s.occupancy.Delete(ctx, requesterID, code)
	if err != nil {
		return false, err
	}
	logrus.WithFields(logrus.Fields{"room_code": code, "requester_id": requesterID}).Info("room deleted by owner")
	return deleted, nil
}

// LeaveRoomTrusted は信頼チャネル経由の退室通知を処理します
// シークレット不一致・ルーム不存在のどちらも false を返すだけで
// エラーにはしません（呼び出し元に存在情報を漏らさないため）
func (s *RoomService) LeaveRoomTrusted(ctx context.Context, presentedSecret, code string) (bool, error) {
	if !s.trustedSecretOK(presentedSecret) {
		logrus.WithField("room_code", code).Warn("trusted leave denied: secret mismatch")
		return false, nil
	}

	left, err := s.occupancy.Leave(ctx, code)
	if errors.Is(err, ErrRoomNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return left, nil
}

// DeleteRoomTrusted は信頼チャネル経由のルーム削除を処理します
// ソケットサーバーが全員切断を検知した際に呼び出されます
func (s *RoomService) DeleteRoomTrusted(ctx context.Context, presentedSecret, code string) (bool, error) {
	if !s.trustedSecretOK(presentedSecret) {
		logrus.WithField("room_code", code).Warn("trusted delete denied: secret mismatch")
		return false, nil
	}

	deleted, err := s.occupancy.DeleteTrusted(ctx, code)
	if errors.Is(err, ErrRoomNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	logrus.WithField("room_code", code).Info("room deleted via trusted channel")
	return deleted, nil
}

// UploadThumbnail はサムネイル画像を保存して参照を返します
// ストレージ側のエラー詳細は呼び出し元に見せません
func (s *RoomService) UploadThumbnail(ctx context.Context, userID string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrThumbnailRequired
	}
	ref, err := s.images.SaveImage(ctx, userID, data)
	if err != nil {
		logrus.WithField("user_id", userID).WithError(err).Error("image upload failed")
		return "", ErrUploadFailed
	}
	return ref, nil
}

// GetThumbnail は保存済みのサムネイル画像を取得します
func (s *RoomService) GetThumbnail(ctx context.Context, ref string) ([]byte, error) {
	data, exists, err := s.images.GetImage(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrImageNotFound
	}
	return data, nil
}

// StudyHistory はユーザー自身の学習記録一覧を返します
func (s *RoomService) StudyHistory(ctx context.Context, userID string) ([]models.StudyRecord, error) {
	return s.recorder.ListByUser(ctx, userID)
}

// trustedSecretOK は提示されたシークレットを定数時間で照合します
// シークレットが未設定の場合は常に拒否します
func (s *RoomService) trustedSecretOK(presented string) bool {
	if len(s.socketSecret) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), s.socketSecret) == 1
}
