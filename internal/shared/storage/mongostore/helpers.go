package mongostore

import (
	"context"
	"errors"

	"grocery-auth/internal/shared/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// wrapError 将 MongoDB 错误转换为领域错误
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return storage.ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return storage.ErrDuplicate
	}
	return err
}

// findOne 查找单个文档并解码到 result
// 文档不存在时返回 (nil, nil)，调用方按 nil 判断未命中
func findOne[T any](ctx context.Context, col *mongo.Collection, filter bson.D) (*T, error) {
	var result T
	err := col.FindOne(ctx, filter).Decode(&result)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, wrapError(err)
	}
	return &result, nil
}

// insertOne 插入单个文档
func insertOne(ctx context.Context, col *mongo.Collection, doc interface{}) error {
	_, err := col.InsertOne(ctx, doc)
	return wrapError(err)
}

// updateFields 按 _id 更新指定字段
func updateFields(ctx context.Context, col *mongo.Collection, id string, update bson.D) error {
	res, err := col.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, bson.D{{Key: "$set", Value: update}})
	if err != nil {
		return wrapError(err)
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}
