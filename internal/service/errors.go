package service

import "errors"

// カスタムエラー定義
var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrNotRoomOwner      = errors.New("forbidden: not room owner")
	ErrThumbnailRequired = errors.New("thumbnail image is required")
	ErrInvalidTimeRange  = errors.New("check-out time must not be before check-in time")
	ErrUploadFailed      = errors.New("failed to upload image")
	ErrImageNotFound     = errors.New("image not found")
)
