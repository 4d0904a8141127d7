package service

import (
	"context"

	"studyroom-api/internal/models"
	"studyroom-api/internal/repo"

	"github.com/sirupsen/logrus"
)

// SessionRecorder はチェックアウト報告から学習記録を作成・保存します
// 同一セッション (roomCode, userId, checkInAt) の再報告は上書きとなり、
// 記録が二重計上されることはありません
type SessionRecorder struct {
	repo     repo.StudyRecordRepo
	slackSec int64 // クライアントタイマーのずれとして許容する秒数
}

func NewSessionRecorder(r repo.StudyRecordRepo, slackSec int) *SessionRecorder {
	if slackSec < 0 {
		slackSec = 0
	}
	return &SessionRecorder{repo: r, slackSec: int64(slackSec)}
}

// RecordCheckout はチェックアウトを検証して学習記録を保存します
// checkOutAt < checkInAt の場合は ErrInvalidTimeRange を返します
// 申告された累計秒数は [0, 経過秒数+許容誤差] にクランプされます
// （クライアントのタイマーはずれることがあるため、補正して受け入れます）
func (sr *SessionRecorder) RecordCheckout(ctx context.Context, roomCode, userID string, checkInAt, checkOutAt, reportedSeconds int64) (models.StudyRecord, error) {
	if checkOutAt < checkInAt {
		return models.StudyRecord{}, ErrInvalidTimeRange
	}

	accumulated := clampSeconds(reportedSeconds, checkOutAt-checkInAt+sr.slackSec)
	if accumulated != reportedSeconds {
		logrus.WithFields(logrus.Fields{
			"room_code": roomCode,
			"user_id":   userID,
			"reported":  reportedSeconds,
			"stored":    accumulated,
		}).Warn("reported study time out of range, clamped")
	}

	rec := models.StudyRecord{
		RoomCode:           roomCode,
		UserID:             userID,
		CheckInAt:          checkInAt,
		CheckOutAt:         checkOutAt,
		AccumulatedSeconds: accumulated,
	}
	if err := sr.repo.SaveRecord(ctx, rec); err != nil {
		return models.StudyRecord{}, err
	}
	return rec, nil
}

// ListByUser はユーザーの学習記録一覧をチェックイン順で返します
func (sr *SessionRecorder) ListByUser(ctx context.Context, userID string) ([]models.StudyRecord, error) {
	return sr.repo.ListRecordsByUser(ctx, userID)
}

func clampSeconds(v, max int64) int64 {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
