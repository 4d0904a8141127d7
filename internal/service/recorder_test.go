package service_test

import (
	"context"
	"sync"
	"testing"

	"studyroom-api/internal/models"
	"studyroom-api/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRecordRepo はテスト用のインメモリStudyRecordRepo実装です
// 実装と同じく (room_code, user_id, check_in_at) をキーに upsert します
type memRecordRepo struct {
	mu      sync.Mutex
	records map[recordKey]models.StudyRecord
}

type recordKey struct {
	roomCode  string
	userID    string
	checkInAt int64
}

func newMemRecordRepo() *memRecordRepo {
	return &memRecordRepo{records: make(map[recordKey]models.StudyRecord)}
}

func (m *memRecordRepo) SaveRecord(_ context.Context, rec models.StudyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[recordKey{rec.RoomCode, rec.UserID, rec.CheckInAt}] = rec
	return nil
}

func (m *memRecordRepo) ListRecordsByUser(_ context.Context, userID string) ([]models.StudyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := []models.StudyRecord{}
	for _, rec := range m.records {
		if rec.UserID == userID {
			res = append(res, rec)
		}
	}
	return res, nil
}

func (m *memRecordRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func TestSessionRecorder_InvalidTimeRange(t *testing.T) {
	store := newMemRecordRepo()
	rec := service.NewSessionRecorder(store, 2)

	_, err := rec.RecordCheckout(context.Background(), "room-a", "user-1", 1000, 999, 60)
	assert.ErrorIs(t, err, service.ErrInvalidTimeRange)
	assert.Equal(t, 0, store.count(), "invalid checkout must not be persisted")
}

func TestSessionRecorder_ClampsNegativeToZero(t *testing.T) {
	store := newMemRecordRepo()
	rec := service.NewSessionRecorder(store, 2)

	saved, err := rec.RecordCheckout(context.Background(), "room-a", "user-1", 1000, 1600, -30)
	require.NoError(t, err)
	assert.Equal(t, int64(0), saved.AccumulatedSeconds)
}

func TestSessionRecorder_ClampsAboveElapsedPlusSlack(t *testing.T) {
	store := newMemRecordRepo()
	rec := service.NewSessionRecorder(store, 2)

	// 経過時間600秒 + 許容誤差2秒を超える申告は602秒に補正される（拒否はしない）
	saved, err := rec.RecordCheckout(context.Background(), "room-a", "user-1", 1000, 1600, 100000)
	require.NoError(t, err)
	assert.Equal(t, int64(602), saved.AccumulatedSeconds)
}

func TestSessionRecorder_KeepsValueWithinRange(t *testing.T) {
	store := newMemRecordRepo()
	rec := service.NewSessionRecorder(store, 2)

	saved, err := rec.RecordCheckout(context.Background(), "room-a", "user-1", 1000, 1600, 600)
	require.NoError(t, err)
	assert.Equal(t, int64(600), saved.AccumulatedSeconds)
}

func TestSessionRecorder_ZeroLengthSessionIsValid(t *testing.T) {
	store := newMemRecordRepo()
	rec := service.NewSessionRecorder(store, 0)

	saved, err := rec.RecordCheckout(context.Background(), "room-a", "user-1", 1000, 1000, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), saved.AccumulatedSeconds)
}

func TestSessionRecorder_DoubleCheckoutOverwrites(t *testing.T) {
	store := newMemRecordRepo()
	rec := service.NewSessionRecorder(store, 2)
	ctx := context.Background()

	_, err := rec.RecordCheckout(ctx, "room-a", "user-1", 1000, 1300, 300)
	require.NoError(t, err)

	// 同一チェックインに対する再報告は上書きされ、行は増えない
	saved, err := rec.RecordCheckout(ctx, "room-a", "user-1", 1000, 1600, 550)
	require.NoError(t, err)

	assert.Equal(t, 1, store.count(), "at most one record per check-in session")
	assert.Equal(t, int64(550), saved.AccumulatedSeconds)

	records, err := rec.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(1600), records[0].CheckOutAt, "stored record reflects the latest report")
}

func TestSessionRecorder_DistinctCheckInsKeepSeparateRecords(t *testing.T) {
	store := newMemRecordRepo()
	rec := service.NewSessionRecorder(store, 2)
	ctx := context.Background()

	_, err := rec.RecordCheckout(ctx, "room-a", "user-1", 1000, 1300, 300)
	require.NoError(t, err)
	_, err = rec.RecordCheckout(ctx, "room-a", "user-1", 2000, 2300, 300)
	require.NoError(t, err)

	assert.Equal(t, 2, store.count())
}
