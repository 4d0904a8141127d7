// Package mocks はrepoインターフェースのテスト用モックを提供します
package mocks

import (
	"context"

	"studyroom-api/internal/models"

	"github.com/stretchr/testify/mock"
)

type RoomRepo struct{ mock.Mock }

func (m *RoomRepo) CreateRoom(ctx context.Context, room models.Room) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

func (m *RoomRepo) GetRoom(ctx context.Context, code string) (models.Room, bool, error) {
	args := m.Called(ctx, code)
	return args.Get(0).(models.Room), args.Bool(1), args.Error(2)
}

func (m *RoomRepo) ListRooms(ctx context.Context) ([]models.Room, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Room), args.Error(1)
}

func (m *RoomRepo) IncrementOccupancy(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *RoomRepo) DecrementOccupancy(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *RoomRepo) DeleteRoom(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

type StudyRecordRepo struct{ mock.Mock }

func (m *StudyRecordRepo) SaveRecord(ctx context.Context, rec models.StudyRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *StudyRecordRepo) ListRecordsByUser(ctx context.Context, userID string) ([]models.StudyRecord, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.StudyRecord), args.Error(1)
}

type ImageRepo struct{ mock.Mock }

func (m *ImageRepo) SaveImage(ctx context.Context, ownerID string, data []byte) (string, error) {
	args := m.Called(ctx, ownerID, data)
	return args.String(0), args.Error(1)
}

func (m *ImageRepo) GetImage(ctx context.Context, ref string) ([]byte, bool, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]byte), args.Bool(1), args.Error(2)
}
