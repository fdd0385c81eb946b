// Package mongostore 实现基于 MongoDB 的用户存储
//
// 使用 mongo-go-driver v2，通过 bson tag 实现 model 结构体的序列化/反序列化。
// 所有 Collection 名称和索引在 ensureIndexes 中统一管理。
package mongostore

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Collection 名称常量
const (
	ColUsers = "users"
)

// Store MongoDB 存储实例
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewStore 创建 MongoDB 存储实例
//
// uri: MongoDB 连接 URI，如 "mongodb://localhost:27017"
// dbName: 数据库名称，如 "grocery_auth"
func NewStore(uri, dbName string) (*Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect failed: %w", err)
	}

	// 验证连接
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongostore: ping failed: %w", err)
	}

	db := client.Database(dbName)
	s := &Store{client: client, db: db}

	// 创建索引（邮箱唯一索引是并发注册的唯一防线，必须存在）
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("mongostore: ensure indexes failed: %w", err)
	}

	log.Printf("[mongostore] Connected to %s/%s", maskURI(uri), dbName)
	return s, nil
}

var uriCredentials = regexp.MustCompile(`(://[^:/@]+:)([^@]+)(@)`)

// maskURI 隐藏连接串中的密码，日志中不落明文凭据
func maskURI(uri string) string {
	return uriCredentials.ReplaceAllString(uri, "${1}***${3}")
}

// Close 关闭 MongoDB 连接
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// col 获取指定 Collection
func (s *Store) col(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// ensureIndexes 创建所有必要的索引
func (s *Store) ensureIndexes(ctx context.Context) error {
	type idx struct {
		col    string
		keys   bson.D
		unique bool
	}

	indexes := []idx{
		// users：邮箱唯一（并发注册同一邮箱依赖此索引拒绝）
		{ColUsers, bson.D{{Key: "email", Value: 1}}, true},
		// 验证码查找（verify-email 按 code 检索）
		{ColUsers, bson.D{{Key: "verify_code", Value: 1}}, false},
	}

	for _, i := range indexes {
		model := mongo.IndexModel{Keys: i.keys}
		if i.unique {
			model.Options = options.Index().SetUnique(true)
		}
		if _, err := s.col(i.col).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("create index on %s: %w", i.col, err)
		}
	}

	return nil
}
