package repo

import (
	"context"

	"studyroom-api/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const recordCollection = "study_records"

type MongoRecordRepo struct {
	coll *mongo.Collection
}

// NewMongoRecordRepo は学習記録リポジトリを作成します
// (room_code, user_id, check_in_at) のユニーク複合インデックスを保証します
func NewMongoRecordRepo(ctx context.Context, db *mongo.Database) (*MongoRecordRepo, error) {
	coll := db.Collection(recordCollection)

	indexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "room_code", Value: 1},
			{Key: "user_id", Value: 1},
			{Key: "check_in_at", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}
	if _, err := coll.Indexes().CreateOne(ctx, indexModel); err != nil {
		return nil, err
	}
	return &MongoRecordRepo{coll: coll}, nil
}

func (mr *MongoRecordRepo) SaveRecord(ctx context.Context, rec models.StudyRecord) error {
	filter := bson.M{
		"room_code":   rec.RoomCode,
		"user_id":     rec.UserID,
		"check_in_at": rec.CheckInAt,
	}
	// 同一セッションの再報告は上書き（重複行を作らない）
	opts := options.Replace().SetUpsert(true)
	_, err := mr.coll.ReplaceOne(ctx, filter, rec, opts)
	return err
}

func (mr *MongoRecordRepo) ListRecordsByUser(ctx context.Context, userID string) ([]models.StudyRecord, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "check_in_at", Value: 1}})
	cursor, err := mr.coll.Find(ctx, bson.M{"user_id": userID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []models.StudyRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []models.StudyRecord{}
	}
	return records, nil
}
