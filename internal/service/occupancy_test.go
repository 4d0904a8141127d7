package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"studyroom-api/internal/models"
	"studyroom-api/internal/repo"
	"studyroom-api/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRoomRepo はテスト用のインメモリRoomRepo実装です
// 実ストアと同様に、各操作は単体でアトミックに振る舞います
type memRoomRepo struct {
	mu    sync.Mutex
	rooms map[string]*models.Room
	order []string
}

func newMemRoomRepo() *memRoomRepo {
	return &memRoomRepo{rooms: make(map[string]*models.Room)}
}

func (m *memRoomRepo) CreateRoom(_ context.Context, room models.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[room.Code]; ok {
		return repo.ErrRoomAlreadyExists
	}
	r := room
	m.rooms[room.Code] = &r
	m.order = append(m.order, room.Code)
	return nil
}

func (m *memRoomRepo) GetRoom(_ context.Context, code string) (models.Room, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[code]
	if !ok {
		return models.Room{}, false, nil
	}
	return *r, true, nil
}

func (m *memRoomRepo) ListRooms(_ context.Context) ([]models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]models.Room, 0, len(m.order))
	for _, code := range m.order {
		if r, ok := m.rooms[code]; ok {
			res = append(res, *r)
		}
	}
	return res, nil
}

func (m *memRoomRepo) IncrementOccupancy(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[code]
	if !ok {
		return false, nil
	}
	r.ParticipantCount++
	r.ViewCount++
	return true, nil
}

func (m *memRoomRepo) DecrementOccupancy(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[code]
	if !ok {
		return false, nil
	}
	if r.ParticipantCount > 0 {
		r.ParticipantCount--
	}
	return true, nil
}

func (m *memRoomRepo) DeleteRoom(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[code]; !ok {
		return false, nil
	}
	delete(m.rooms, code)
	return true, nil
}

func seedRoom(t *testing.T, rr *memRoomRepo, code, ownerID string) {
	t.Helper()
	err := rr.CreateRoom(context.Background(), models.Room{Code: code, OwnerID: ownerID})
	require.NoError(t, err)
}

func TestOccupancyManager_ConcurrentJoins(t *testing.T) {
	rr := newMemRoomRepo()
	seedRoom(t, rr, "room-a", "owner-1")
	occ := service.NewOccupancyManager(rr)
	ctx := context.Background()

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			joined, err := occ.Join(ctx, "room-a")
			assert.NoError(t, err)
			assert.True(t, joined)
		}()
	}
	wg.Wait()

	room, ok, err := rr.GetRoom(ctx, "room-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(n), room.ParticipantCount, "every concurrent join must be counted exactly once")
	assert.Equal(t, int64(n), room.ViewCount)
}

func TestOccupancyManager_LeaveFloorsAtZero(t *testing.T) {
	rr := newMemRoomRepo()
	seedRoom(t, rr, "room-a", "owner-1")
	occ := service.NewOccupancyManager(rr)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := occ.Join(ctx, "room-a")
		require.NoError(t, err)
	}

	// 参加者数を超える退室（切断の重複通知）もすべて成功し、カウンタは0で止まる
	for i := 0; i < 5; i++ {
		left, err := occ.Leave(ctx, "room-a")
		assert.NoError(t, err)
		assert.True(t, left)
	}

	room, _, err := rr.GetRoom(ctx, "room-a")
	require.NoError(t, err)
	assert.Equal(t, int64(0), room.ParticipantCount)
	assert.Equal(t, int64(2), room.ViewCount, "view count never decreases")
}

func TestOccupancyManager_JoinMissingRoom(t *testing.T) {
	occ := service.NewOccupancyManager(newMemRoomRepo())

	joined, err := occ.Join(context.Background(), "no-such-room")
	assert.False(t, joined)
	assert.ErrorIs(t, err, service.ErrRoomNotFound)
}

func TestOccupancyManager_LeaveMissingRoom(t *testing.T) {
	occ := service.NewOccupancyManager(newMemRoomRepo())

	left, err := occ.Leave(context.Background(), "no-such-room")
	assert.False(t, left)
	assert.ErrorIs(t, err, service.ErrRoomNotFound)
}

func TestOccupancyManager_DeleteByNonOwner(t *testing.T) {
	rr := newMemRoomRepo()
	seedRoom(t, rr, "room-a", "owner-1")
	occ := service.NewOccupancyManager(rr)
	ctx := context.Background()

	deleted, err := occ.Delete(ctx, "intruder", "room-a")
	assert.False(t, deleted)
	assert.ErrorIs(t, err, service.ErrNotRoomOwner)

	// ルームは無傷のまま残っている
	_, ok, err := rr.GetRoom(ctx, "room-a")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOccupancyManager_DeleteByOwner(t *testing.T) {
	rr := newMemRoomRepo()
	seedRoom(t, rr, "room-a", "owner-1")
	occ := service.NewOccupancyManager(rr)
	ctx := context.Background()

	deleted, err := occ.Delete(ctx, "owner-1", "room-a")
	require.NoError(t, err)
	assert.True(t, deleted)

	// 削除は終端状態: 以降の照会・入室はすべてNotFound
	_, ok, err := rr.GetRoom(ctx, "room-a")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = occ.Join(ctx, "room-a")
	assert.ErrorIs(t, err, service.ErrRoomNotFound)
}

func TestOccupancyManager_DeleteTrustedMissingRoom(t *testing.T) {
	occ := service.NewOccupancyManager(newMemRoomRepo())

	deleted, err := occ.DeleteTrusted(context.Background(), "no-such-room")
	assert.False(t, deleted)
	assert.ErrorIs(t, err, service.ErrRoomNotFound)
}

func TestOccupancyManager_JoinRacingDelete(t *testing.T) {
	rr := newMemRoomRepo()
	seedRoom(t, rr, "room-a", "owner-1")
	occ := service.NewOccupancyManager(rr)
	ctx := context.Background()

	const joiners = 50
	var wg sync.WaitGroup
	var succeeded, notFound int64
	var cntMu sync.Mutex

	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := occ.Join(ctx, "room-a")
			cntMu.Lock()
			defer cntMu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, service.ErrRoomNotFound):
				notFound++
			default:
				t.Errorf("unexpected join error: %v", err)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := occ.DeleteTrusted(ctx, "room-a"); err != nil && !errors.Is(err, service.ErrRoomNotFound) {
			t.Errorf("unexpected delete error: %v", err)
		}
	}()
	wg.Wait()

	// どの入室も「削除前に数えられた」か「NotFoundで失敗した」かのどちらかであり、
	// 削除済みルームが復活することはない
	assert.Equal(t, int64(joiners), succeeded+notFound)
	_, ok, err := rr.GetRoom(ctx, "room-a")
	require.NoError(t, err)
	assert.False(t, ok, "deleted room must not be resurrected")
}

// blockingRoomRepo は特定ルームの操作を合図があるまでブロックします
// ルーム間の独立性（別ルームがブロックされないこと）の検証用です
type blockingRoomRepo struct {
	*memRoomRepo
	blockCode string
	release   chan struct{}
	entered   chan struct{}
}

func (b *blockingRoomRepo) IncrementOccupancy(ctx context.Context, code string) (bool, error) {
	if code == b.blockCode {
		b.entered <- struct{}{}
		<-b.release
	}
	return b.memRoomRepo.IncrementOccupancy(ctx, code)
}

func TestOccupancyManager_RoomsDoNotBlockEachOther(t *testing.T) {
	inner := newMemRoomRepo()
	seedRoom(t, inner, "slow-room", "owner-1")
	seedRoom(t, inner, "fast-room", "owner-2")
	rr := &blockingRoomRepo{
		memRoomRepo: inner,
		blockCode:   "slow-room",
		release:     make(chan struct{}),
		entered:     make(chan struct{}),
	}
	occ := service.NewOccupancyManager(rr)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = occ.Join(ctx, "slow-room")
	}()
	<-rr.entered // slow-roomのロックが保持されている状態にする

	// 別ルームの操作はブロックされずに完了する
	joined, err := occ.Join(ctx, "fast-room")
	require.NoError(t, err)
	assert.True(t, joined)

	close(rr.release)
	<-done
}

// failingRoomRepo は常にストレージ障害を返します
type failingRoomRepo struct{ *memRoomRepo }

var errStorage = errors.New("storage timeout")

func (f *failingRoomRepo) IncrementOccupancy(context.Context, string) (bool, error) {
	return false, errStorage
}

func TestOccupancyManager_LockReleasedOnStorageError(t *testing.T) {
	inner := newMemRoomRepo()
	seedRoom(t, inner, "room-a", "owner-1")
	occ := service.NewOccupancyManager(&failingRoomRepo{inner})
	ctx := context.Background()

	_, err := occ.Join(ctx, "room-a")
	require.ErrorIs(t, err, errStorage)

	// 障害後もロックが解放されていれば後続の操作は進む
	left, err := occ.Leave(ctx, "room-a")
	require.NoError(t, err)
	assert.True(t, left)
}
