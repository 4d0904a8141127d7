package repo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const imageCollection = "thumbnails"

// thumbnailDoc はサムネイル画像1枚分のドキュメントです
type thumbnailDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	OwnerID   string             `bson:"owner_id"`
	Data      primitive.Binary   `bson:"data"`
	CreatedAt time.Time          `bson:"created_at"`
}

type MongoImageRepo struct {
	coll *mongo.Collection
}

func NewMongoImageRepo(db *mongo.Database) *MongoImageRepo {
	return &MongoImageRepo{coll: db.Collection(imageCollection)}
}

func (mi *MongoImageRepo) SaveImage(ctx context.Context, ownerID string, data []byte) (string, error) {
	doc := thumbnailDoc{
		OwnerID:   ownerID,
		Data:      primitive.Binary{Data: data},
		CreatedAt: time.Now(),
	}
	result, err := mi.coll.InsertOne(ctx, doc)
	if err != nil {
		return "", err
	}
	id, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", errors.New("unexpected inserted id type")
	}
	return id.Hex(), nil
}

func (mi *MongoImageRepo) GetImage(ctx context.Context, ref string) ([]byte, bool, error) {
	id, err := primitive.ObjectIDFromHex(ref)
	if err != nil {
		return nil, false, nil // 参照の形式が不正なら「存在しない」と同じ扱い
	}

	var doc thumbnailDoc
	err = mi.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return doc.Data.Data, true, nil
}
