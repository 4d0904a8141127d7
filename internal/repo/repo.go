package repo

import (
	"context"
	"errors"

	"studyroom-api/internal/models"
)

var ErrRoomAlreadyExists = errors.New("room already exists")

// RoomRepo はルームの永続化を担当します
// 入退室カウンタの増減と条件付き削除はストア側でアトミックに行われます
type RoomRepo interface {
	CreateRoom(ctx context.Context, room models.Room) error
	GetRoom(ctx context.Context, code string) (models.Room, bool, error)
	ListRooms(ctx context.Context) ([]models.Room, error)

	// IncrementOccupancy は参加者数と累計入室回数を1ずつ増やします
	// ルームが存在しない場合は false を返します
	IncrementOccupancy(ctx context.Context, code string) (bool, error)
	// DecrementOccupancy は参加者数を1減らします（下限は0）
	// ルームが存在しない場合は false を返します
	DecrementOccupancy(ctx context.Context, code string) (bool, error)
	// DeleteRoom はルームを削除します
	// ルームが存在しない場合は false を返します
	DeleteRoom(ctx context.Context, code string) (bool, error)
}

// StudyRecordRepo は学習記録の永続化を担当します
type StudyRecordRepo interface {
	// SaveRecord は (room_code, user_id, check_in_at) をキーに upsert します
	// 同一キーへの再保存は上書きとなり、重複行は作られません
	SaveRecord(ctx context.Context, rec models.StudyRecord) error
	ListRecordsByUser(ctx context.Context, userID string) ([]models.StudyRecord, error)
}

// ImageRepo はサムネイル画像の保存を担当します
type ImageRepo interface {
	// SaveImage は画像バイト列を保存し、取得用の参照を返します
	SaveImage(ctx context.Context, ownerID string, data []byte) (string, error)
	GetImage(ctx context.Context, ref string) ([]byte, bool, error)
}
