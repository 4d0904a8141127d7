// Package models はアプリケーションで使用するデータ構造を定義します
package models

// Room は学習ルームの情報を表します
type Room struct {
	ID               string `json:"id"`               // 内部識別子
	Code             string `json:"code"`             // クライアント向けのルームコード（UUID、不変）
	OwnerID          string `json:"ownerId"`          // ルームのオーナー（作成者）のユーザーID
	Title            string `json:"title"`            // ルームのタイトル（表示用）
	ThumbnailRef     string `json:"thumbnailRef"`     // サムネイル画像への参照
	ParticipantCount int64  `json:"participantCount"` // 現在の参加者数（0以上）
	ViewCount        int64  `json:"viewCount"`        // 累計入室回数（減少しない）
	RealtimeToken    string `json:"realtimeToken"`    // ソケット接続用トークン（作成時に一度だけ発行）
	CreatedAt        int64  `json:"createdAt"`        // ルーム作成日時（Unixタイムスタンプ）
}

// StudyRecord は1回のチェックイン〜チェックアウトの学習記録を表します
// (room_code, user_id, check_in_at) ごとに高々1件だけ保存されます
type StudyRecord struct {
	RoomCode           string `json:"roomCode" bson:"room_code"`
	UserID             string `json:"userId" bson:"user_id"`
	CheckInAt          int64  `json:"checkInAt" bson:"check_in_at"`                  // チェックイン日時（Unixタイムスタンプ）
	CheckOutAt         int64  `json:"checkOutAt" bson:"check_out_at"`                // チェックアウト日時（Unixタイムスタンプ）
	AccumulatedSeconds int64  `json:"accumulatedSeconds" bson:"accumulated_seconds"` // クライアント申告の累計学習秒数（クランプ済み）
}
