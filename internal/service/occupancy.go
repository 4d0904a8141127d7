package service

import (
	"context"
	"sync"

	"studyroom-api/internal/repo"
)

// OccupancyManager はルームの入退室・削除の状態遷移を一元管理します
// 同一ルームに対する変更操作はルーム単位のロックで直列化され、
// 異なるルーム同士の操作は互いにブロックしません
type OccupancyManager struct {
	repo  repo.RoomRepo
	mu    sync.Mutex
	locks map[string]*roomLock
}

// roomLock は1ルーム分の排他ロックです
// 参照カウントが0になった時点でマップから取り除かれます
type roomLock struct {
	mu   sync.Mutex
	refs int
}

func NewOccupancyManager(r repo.RoomRepo) *OccupancyManager {
	return &OccupancyManager{
		repo:  r,
		locks: make(map[string]*roomLock),
	}
}

// lockRoom は指定ルームのロックを獲得し、解放用の関数を返します
// 解放関数はすべての復帰経路で必ず呼び出してください（deferを推奨）
func (m *OccupancyManager) lockRoom(code string) func() {
	m.mu.Lock()
	l, ok := m.locks[code]
	if !ok {
		l = &roomLock{}
		m.locks[code] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, code)
		}
		m.mu.Unlock()
	}
}

// Join はルームへの入室を記録します
// 参加者数と累計入室回数を1ずつ増やします
// ルームが存在しない場合は ErrRoomNotFound を返します
func (m *OccupancyManager) Join(ctx context.Context, code string) (bool, error) {
	unlock := m.lockRoom(code)
	defer unlock()

	ok, err := m.repo.IncrementOccupancy(ctx, code)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, ErrRoomNotFound
	}
	return true, nil
}

// Leave はルームからの退室を記録します
// 参加者数を1減らします。すでに0の場合はカウンタを変えずに成功とします
// （切断検知の重複・遅延通知を許容するため）
func (m *OccupancyManager) Leave(ctx context.Context, code string) (bool, error) {
	unlock := m.lockRoom(code)
	defer unlock()

	ok, err := m.repo.DecrementOccupancy(ctx, code)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, ErrRoomNotFound
	}
	return true, nil
}

// Delete はルームを削除します（オーナーのみ実行可能）
// 削除は終端状態であり、以降の入退室は ErrRoomNotFound になります
func (m *OccupancyManager) Delete(ctx context.Context, requesterID, code string) (bool, error) {
	unlock := m.lockRoom(code)
	defer unlock()

	room, exists, err := m.repo.GetRoom(ctx, code)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, ErrRoomNotFound
	}
	if room.OwnerID != requesterID {
		return false, ErrNotRoomOwner
	}

	deleted, err := m.repo.DeleteRoom(ctx, code)
	if err != nil {
		return false, err
	}
	if !deleted {
		return false, ErrRoomNotFound
	}
	return true, nil
}

// DeleteTrusted はオーナー確認なしでルームを削除します
// 信頼チャネル（ソケットサーバーの放置検知）専用です
func (m *OccupancyManager) DeleteTrusted(ctx context.Context, code string) (bool, error) {
	unlock := m.lockRoom(code)
	defer unlock()

	deleted, err := m.repo.DeleteRoom(ctx, code)
	if err != nil {
		return false, err
	}
	if !deleted {
		return false, ErrRoomNotFound
	}
	return true, nil
}
