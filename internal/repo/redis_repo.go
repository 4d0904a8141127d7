package repo

import (
	"context"
	"fmt"
	"strconv"

	"studyroom-api/internal/models"

	"github.com/redis/go-redis/v9"
)

type RedisRoomRepo struct{ rdb *redis.Client }

func NewRedisRoomRepo(rdb *redis.Client) *RedisRoomRepo {
	return &RedisRoomRepo{rdb: rdb}
}

func roomKey(code string) string {
	return fmt.Sprintf("rooms:%s", code)
}

// indexKey は作成順のルームコード一覧を保持するリストのキーです
const indexKey = "rooms:index"

func (rr *RedisRoomRepo) CreateRoom(ctx context.Context, room models.Room) error {
	exists, err := rr.rdb.Exists(ctx, roomKey(room.Code)).Result()
	if err != nil {
		return err
	}
	if exists == 1 {
		return ErrRoomAlreadyExists
	}

	pipe := rr.rdb.TxPipeline()
	pipe.HSet(ctx, roomKey(room.Code), map[string]any{
		"id":                room.ID,
		"code":              room.Code,
		"owner_id":          room.OwnerID,
		"title":             room.Title,
		"thumbnail_ref":     room.ThumbnailRef,
		"participant_count": room.ParticipantCount,
		"view_count":        room.ViewCount,
		"realtime_token":    room.RealtimeToken,
		"created_at":        room.CreatedAt,
	})
	pipe.RPush(ctx, indexKey, room.Code)
	_, err = pipe.Exec(ctx)
	return err
}

func (rr *RedisRoomRepo) GetRoom(ctx context.Context, code string) (models.Room, bool, error) {
	vals, err := rr.rdb.HGetAll(ctx, roomKey(code)).Result()
	if err != nil {
		return models.Room{}, false, err
	}
	if len(vals) == 0 { // データがない
		return models.Room{}, false, nil
	}
	return roomFromHash(vals), true, nil
}

func (rr *RedisRoomRepo) ListRooms(ctx context.Context) ([]models.Room, error) {
	codes, err := rr.rdb.LRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(codes) == 0 {
		return []models.Room{}, nil
	}

	pipe := rr.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(codes))
	for i, code := range codes {
		cmds[i] = pipe.HGetAll(ctx, roomKey(code))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	res := make([]models.Room, 0, len(codes))
	for _, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil || len(vals) == 0 {
			// 削除直後のルームはインデックスに残っていることがあるので読み飛ばす
			continue
		}
		res = append(res, roomFromHash(vals))
	}
	return res, nil
}

func (rr *RedisRoomRepo) IncrementOccupancy(ctx context.Context, code string) (bool, error) {
	// 存在確認とカウンタ更新をLuaスクリプトでアトミックに処理
	script := `
		if redis.call('EXISTS', KEYS[1]) == 0 then
			return 0
		end
		redis.call('HINCRBY', KEYS[1], 'participant_count', 1)
		redis.call('HINCRBY', KEYS[1], 'view_count', 1)
		return 1
	`
	n, err := rr.rdb.Eval(ctx, script, []string{roomKey(code)}).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (rr *RedisRoomRepo) DecrementOccupancy(ctx context.Context, code string) (bool, error) {
	// 参加者数は0未満にしない（切断の重複通知を許容するため）
	script := `
		if redis.call('EXISTS', KEYS[1]) == 0 then
			return 0
		end
		local c = tonumber(redis.call('HGET', KEYS[1], 'participant_count') or '0')
		if c > 0 then
			redis.call('HINCRBY', KEYS[1], 'participant_count', -1)
		end
		return 1
	`
	n, err := rr.rdb.Eval(ctx, script, []string{roomKey(code)}).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (rr *RedisRoomRepo) DeleteRoom(ctx context.Context, code string) (bool, error) {
	// 本体の削除とインデックスからの除去をLuaスクリプトでアトミックに処理
	script := `
		if redis.call('EXISTS', KEYS[1]) == 0 then
			return 0
		end
		redis.call('DEL', KEYS[1])
		redis.call('LREM', KEYS[2], 1, ARGV[1])
		return 1
	`
	n, err := rr.rdb.Eval(ctx, script, []string{roomKey(code), indexKey}, code).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func roomFromHash(vals map[string]string) models.Room {
	pc, _ := strconv.ParseInt(vals["participant_count"], 10, 64)
	vc, _ := strconv.ParseInt(vals["view_count"], 10, 64)
	ca, _ := strconv.ParseInt(vals["created_at"], 10, 64)
	return models.Room{
		ID:               vals["id"],
		Code:             vals["code"],
		OwnerID:          vals["owner_id"],
		Title:            vals["title"],
		ThumbnailRef:     vals["thumbnail_ref"],
		ParticipantCount: pc,
		ViewCount:        vc,
		RealtimeToken:    vals["realtime_token"],
		CreatedAt:        ca,
	}
}
