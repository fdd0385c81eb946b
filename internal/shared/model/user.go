// Package model 定义核心数据模型
//
// user.go 包含用户账户相关的数据模型定义：
//   - User：用户账户文档
//   - UserRole：用户角色枚举
//   - UserSummary：对外响应中的用户摘要（不含任何凭据字段）
package model

import "time"

// UserRole 用户角色
type UserRole string

const (
	UserRoleAdmin UserRole = "admin"
	UserRoleUser  UserRole = "user"
)

// User 用户账户文档
//
// 账户生命周期状态分为三组字段：
//   - 邮箱验证：Verified + VerifyCode/VerifyCodeExpiry（注册时签发，验证后清空）
//   - 密码重置：ResetOTP/ResetOTPExpiry + OTPVerified（三步状态机
//     NORMAL → OTP_ISSUED → OTP_VERIFIED，重置成功后回到 NORMAL）
//   - 会话：RefreshToken（单会话，每用户只保存一个刷新令牌）
type User struct {
	ID           string   `bson:"_id" json:"id"`
	Name         string   `bson:"name" json:"name"`
	Email        string   `bson:"email" json:"email"`
	PasswordHash string   `bson:"password_hash" json:"-"` // never expose in JSON
	Avatar       string   `bson:"avatar,omitempty" json:"avatar,omitempty"`
	Mobile       string   `bson:"mobile,omitempty" json:"mobile,omitempty"`
	Role         UserRole `bson:"role" json:"role"`

	// 邮箱验证状态
	Verified         bool      `bson:"verified" json:"verified"`
	VerifyCode       string    `bson:"verify_code,omitempty" json:"-"`
	VerifyCodeExpiry time.Time `bson:"verify_code_expiry,omitempty" json:"-"`

	// 密码重置状态
	ResetOTP       string    `bson:"reset_otp,omitempty" json:"-"`
	ResetOTPExpiry time.Time `bson:"reset_otp_expiry,omitempty" json:"-"`
	OTPVerified    bool      `bson:"otp_verified" json:"-"`

	// 会话状态（单会话：仅保存最近一次登录的刷新令牌）
	RefreshToken string `bson:"refresh_token,omitempty" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// UserSummary 对外响应中的用户摘要
type UserSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Avatar    string    `json:"avatar,omitempty"`
	Mobile    string    `json:"mobile,omitempty"`
	Role      UserRole  `json:"role"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary 返回用户摘要（剔除密码哈希、令牌、验证码等敏感字段）
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Avatar:    u.Avatar,
		Mobile:    u.Mobile,
		Role:      u.Role,
		Verified:  u.Verified,
		CreatedAt: u.CreatedAt,
	}
}

// UserUpdate 用户资料更新请求（nil 字段不修改）
type UserUpdate struct {
	Name         *string
	Email        *string
	Mobile       *string
	PasswordHash *string
}

// VerifyCodeExpired 判断邮箱验证码是否已过期
func (u *User) VerifyCodeExpired(now time.Time) bool {
	return u.VerifyCodeExpiry.IsZero() || now.After(u.VerifyCodeExpiry)
}

// ResetOTPExpired 判断密码重置 OTP 是否已过期
func (u *User) ResetOTPExpired(now time.Time) bool {
	return u.ResetOTPExpiry.IsZero() || now.After(u.ResetOTPExpiry)
}
