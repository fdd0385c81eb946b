package mongostore

import (
	"context"
	"time"

	"grocery-auth/internal/shared/model"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ============================================================================
// UserStore
// ============================================================================

func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	return insertOne(ctx, s.col(ColUsers), user)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return findOne[model.User](ctx, s.col(ColUsers), bson.D{{Key: "email", Value: email}})
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return findOne[model.User](ctx, s.col(ColUsers), bson.D{{Key: "_id", Value: id}})
}

func (s *Store) GetUserByVerifyCode(ctx context.Context, code string) (*model.User, error) {
	return findOne[model.User](ctx, s.col(ColUsers), bson.D{{Key: "verify_code", Value: code}})
}

// MarkEmailVerified 标记邮箱已验证并清空验证码（验证码单次使用）
func (s *Store) MarkEmailVerified(ctx context.Context, id string) error {
	return updateFields(ctx, s.col(ColUsers), id, bson.D{
		{Key: "verified", Value: true},
		{Key: "verify_code", Value: ""},
		{Key: "verify_code_expiry", Value: time.Time{}},
		{Key: "updated_at", Value: time.Now()},
	})
}

// SetRefreshToken 保存刷新令牌（单会话：覆盖旧令牌；登出时传空串清除）
func (s *Store) SetRefreshToken(ctx context.Context, id, token string) error {
	return updateFields(ctx, s.col(ColUsers), id, bson.D{
		{Key: "refresh_token", Value: token},
		{Key: "updated_at", Value: time.Now()},
	})
}

// SetResetOTP 签发密码重置 OTP，同时复位 otp_verified 门闩
func (s *Store) SetResetOTP(ctx context.Context, id, otp string, expiry time.Time) error {
	return updateFields(ctx, s.col(ColUsers), id, bson.D{
		{Key: "reset_otp", Value: otp},
		{Key: "reset_otp_expiry", Value: expiry},
		{Key: "otp_verified", Value: false},
		{Key: "updated_at", Value: time.Now()},
	})
}

// MarkOTPVerified 标记 OTP 已验证（OTP 本身保留到 reset-password 才清除）
func (s *Store) MarkOTPVerified(ctx context.Context, id string) error {
	return updateFields(ctx, s.col(ColUsers), id, bson.D{
		{Key: "otp_verified", Value: true},
		{Key: "updated_at", Value: time.Now()},
	})
}

// ResetPassword 替换密码哈希并清空全部 OTP 状态
func (s *Store) ResetPassword(ctx context.Context, id, passwordHash string) error {
	return updateFields(ctx, s.col(ColUsers), id, bson.D{
		{Key: "password_hash", Value: passwordHash},
		{Key: "reset_otp", Value: ""},
		{Key: "reset_otp_expiry", Value: time.Time{}},
		{Key: "otp_verified", Value: false},
		{Key: "updated_at", Value: time.Now()},
	})
}

// SetAvatar 保存头像对象键
func (s *Store) SetAvatar(ctx context.Context, id, key string) error {
	return updateFields(ctx, s.col(ColUsers), id, bson.D{
		{Key: "avatar", Value: key},
		{Key: "updated_at", Value: time.Now()},
	})
}

// UpdateUserDetails 更新用户资料（只写入调用方给出的字段）
func (s *Store) UpdateUserDetails(ctx context.Context, id string, upd model.UserUpdate) error {
	fields := bson.D{{Key: "updated_at", Value: time.Now()}}
	if upd.Name != nil {
		fields = append(fields, bson.E{Key: "name", Value: *upd.Name})
	}
	if upd.Email != nil {
		fields = append(fields, bson.E{Key: "email", Value: *upd.Email})
	}
	if upd.Mobile != nil {
		fields = append(fields, bson.E{Key: "mobile", Value: *upd.Mobile})
	}
	if upd.PasswordHash != nil {
		fields = append(fields, bson.E{Key: "password_hash", Value: *upd.PasswordHash})
	}
	return updateFields(ctx, s.col(ColUsers), id, fields)
}
