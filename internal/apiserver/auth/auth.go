// Package auth 用户认证：JWT 令牌管理、密码哈希、验证码/OTP 生成、HTTP 中间件
package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// contextKey context 键类型
type contextKey string

const ctxKeyAuthUser contextKey = "auth_user"

// AuthUser 从 JWT 解析出的用户信息
type AuthUser struct {
	ID    string
	Email string
	Role  string // "admin" | "user"
}

// Config 认证配置
type Config struct {
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	VerifyCodeTTL   time.Duration // 邮箱验证码有效期
	OTPTTL          time.Duration // 密码重置 OTP 有效期
	SecureCookies   bool          // 生产环境置 true（Secure + SameSite=None）
}

// DefaultConfig 返回默认认证配置
func DefaultConfig() Config {
	return Config{
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		VerifyCodeTTL:   24 * time.Hour,
		OTPTTL:          10 * time.Minute,
	}
}

// ============================================================================
// 密码哈希
// ============================================================================

// HashPassword 使用 bcrypt 哈希密码
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	return string(bytes), err
}

// CheckPassword 验证密码
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ============================================================================
// JWT Token
// ============================================================================

// Claims JWT 声明
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	Type  string `json:"type,omitempty"` // "access" | "refresh"
}

// GenerateAccessToken 生成访问令牌
func GenerateAccessToken(cfg Config, userID, email, role string) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(cfg.AccessTokenTTL)),
		},
		Email: email,
		Role:  role,
		Type:  "access",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}

// GenerateRefreshToken 生成刷新令牌
// jti 保证每次签发的令牌都不同：同一秒内重复登录时，
// 覆盖存储的新令牌才能真正使旧令牌失效（单会话语义）
func GenerateRefreshToken(cfg Config, userID string) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(cfg.RefreshTokenTTL)),
		},
		Type: "refresh",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}

// ParseToken 解析并验证 JWT
func ParseToken(cfg Config, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// ============================================================================
// 验证码 / OTP
// ============================================================================

// NewVerifyCode 生成邮箱验证码（随机 uuid，嵌入验证链接）
func NewVerifyCode() string {
	return uuid.NewString()
}

// NewOTP 生成 6 位数字 OTP
func NewOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// ============================================================================
// Context 辅助函数
// ============================================================================

// WithAuthUser 将认证用户信息注入 context
func WithAuthUser(ctx context.Context, user *AuthUser) context.Context {
	return context.WithValue(ctx, ctxKeyAuthUser, user)
}

// GetAuthUser 从 context 获取认证用户
func GetAuthUser(ctx context.Context) *AuthUser {
	user, _ := ctx.Value(ctxKeyAuthUser).(*AuthUser)
	return user
}
