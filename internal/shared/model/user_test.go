// Package model 定义核心数据模型的测试
package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestUser_JSONNeverLeaksCredentials 验证 User 序列化不泄露凭据字段
func TestUser_JSONNeverLeaksCredentials(t *testing.T) {
	u := User{
		ID:           "usr-001",
		Name:         "Alice",
		Email:        "a@x.com",
		PasswordHash: "$2a$12$secret",
		Role:         UserRoleUser,
		VerifyCode:   "code-123",
		ResetOTP:     "482910",
		RefreshToken: "refresh.jwt.token",
	}

	data, err := json.Marshal(u)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.NotContains(t, decoded, "password_hash")
	assert.NotContains(t, decoded, "verify_code")
	assert.NotContains(t, decoded, "reset_otp")
	assert.NotContains(t, decoded, "refresh_token")
	assert.Equal(t, "a@x.com", decoded["email"])
}

// TestUser_Summary 验证摘要只包含公开字段
func TestUser_Summary(t *testing.T) {
	u := User{
		ID:           "usr-002",
		Name:         "Bob",
		Email:        "b@x.com",
		PasswordHash: "hash",
		Avatar:       "avatars/usr-002/pic.png",
		Mobile:       "13800000000",
		Role:         UserRoleAdmin,
		Verified:     true,
		RefreshToken: "tok",
	}

	s := u.Summary()
	assert.Equal(t, u.ID, s.ID)
	assert.Equal(t, u.Email, s.Email)
	assert.Equal(t, u.Avatar, s.Avatar)
	assert.True(t, s.Verified)

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hash")
	assert.NotContains(t, string(data), "tok")
}

// TestUser_Expiry 验证验证码与 OTP 的过期判断
func TestUser_Expiry(t *testing.T) {
	now := time.Now()

	u := User{}
	// 零值过期时间视为已过期（从未签发）
	assert.True(t, u.VerifyCodeExpired(now))
	assert.True(t, u.ResetOTPExpired(now))

	u.VerifyCodeExpiry = now.Add(time.Hour)
	u.ResetOTPExpiry = now.Add(-time.Minute)
	assert.False(t, u.VerifyCodeExpired(now))
	assert.True(t, u.ResetOTPExpired(now))
}
