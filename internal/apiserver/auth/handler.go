package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"grocery-auth/internal/shared/model"
	"grocery-auth/internal/shared/storage"
)

// UserStore 用户存储接口
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByVerifyCode(ctx context.Context, code string) (*model.User, error)
	MarkEmailVerified(ctx context.Context, id string) error
	SetRefreshToken(ctx context.Context, id, token string) error
	SetResetOTP(ctx context.Context, id, otp string, expiry time.Time) error
	MarkOTPVerified(ctx context.Context, id string) error
	ResetPassword(ctx context.Context, id, passwordHash string) error
}

// Mailer 邮件发送接口（发送失败由实现方记录日志，不向调用方传播）
type Mailer interface {
	SendVerificationEmail(ctx context.Context, to, name, code string)
	SendResetOTPEmail(ctx context.Context, to, name, otp string)
}

// Handler 认证 HTTP 处理器
type Handler struct {
	store    UserStore
	mailer   Mailer
	cfg      Config
	validate *validator.Validate
}

// NewHandler 创建认证处理器
func NewHandler(store UserStore, mailer Mailer, cfg Config) *Handler {
	return &Handler{
		store:    store,
		mailer:   mailer,
		cfg:      cfg,
		validate: validator.New(),
	}
}

// RegisterRoutes 注册认证相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/register", h.Register)
	mux.HandleFunc("POST /api/verify-email", h.VerifyEmail)
	mux.HandleFunc("POST /api/login", h.Login)
	mux.HandleFunc("GET /api/logout", h.Logout)
	mux.HandleFunc("PUT /api/forgot-password", h.ForgotPassword)
	mux.HandleFunc("PUT /api/verify-forgot-password-otp", h.VerifyForgotPasswordOTP)
	mux.HandleFunc("PUT /api/reset-password", h.ResetPassword)
	mux.HandleFunc("PUT /api/refresh-token", h.RefreshToken)
}

// ============================================================================
// 请求类型
// ============================================================================

type registerRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type verifyEmailRequest struct {
	Code string `json:"code" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type verifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required"`
}

type resetPasswordRequest struct {
	Email           string `json:"email" validate:"required,email"`
	NewPassword     string `json:"newPassword" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

type loginResponse struct {
	AccessToken string            `json:"accessToken"`
	User        model.UserSummary `json:"user"`
}

// ============================================================================
// Handlers
// ============================================================================

// Register 用户注册
//
// 创建未验证账户，签发邮箱验证码并发送验证邮件。
// 邮箱唯一冲突返回 409；验证邮件发送失败不影响注册结果。
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decodeAndValidate(w, r, &req, "name, email and password are required") {
		return
	}

	email := normalizeEmail(req.Email)

	// 检查邮箱是否已注册（唯一索引兜底并发竞争）
	existing, err := h.store.GetUserByEmail(r.Context(), email)
	if err != nil {
		log.Printf("[auth.register] GetUserByEmail error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "email already registered")
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		log.Printf("[auth.register] HashPassword error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	now := time.Now()
	user := &model.User{
		ID:               uuid.NewString(),
		Name:             req.Name,
		Email:            email,
		PasswordHash:     hash,
		Role:             model.UserRoleUser,
		Verified:         false,
		VerifyCode:       NewVerifyCode(),
		VerifyCodeExpiry: now.Add(h.cfg.VerifyCodeTTL),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := h.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		log.Printf("[auth.register] CreateUser error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	// 发送验证邮件（失败不影响注册）
	h.mailer.SendVerificationEmail(r.Context(), user.Email, user.Name, user.VerifyCode)

	registerTotal.Inc()
	log.Printf("[auth] User registered: %s (%s)", user.Email, user.ID)
	writeSuccess(w, http.StatusOK, "user registered successfully", user.Summary())
}

// VerifyEmail 邮箱验证
//
// 验证码单次使用：验证成功即清空，重放返回 404。
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if !h.decodeAndValidate(w, r, &req, "code is required") {
		return
	}

	user, err := h.store.GetUserByVerifyCode(r.Context(), req.Code)
	if err != nil {
		log.Printf("[auth.verify-email] GetUserByVerifyCode error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "invalid verification code")
		return
	}
	if user.VerifyCodeExpired(time.Now()) {
		writeError(w, http.StatusBadRequest, "verification code expired")
		return
	}

	if err := h.store.MarkEmailVerified(r.Context(), user.ID); err != nil {
		log.Printf("[auth.verify-email] MarkEmailVerified error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	log.Printf("[auth] Email verified: %s", user.Email)
	writeSuccess(w, http.StatusOK, "email verified successfully", nil)
}

// Login 用户登录
//
// 用户不存在和密码错误返回同一错误消息，避免账户枚举。
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decodeAndValidate(w, r, &req, "email and password are required") {
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), normalizeEmail(req.Email))
	if err != nil {
		log.Printf("[auth.login] GetUserByEmail error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil || !CheckPassword(req.Password, user.PasswordHash) {
		loginTotal.WithLabelValues(loginOutcomeInvalidCredentials).Inc()
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if !user.Verified {
		loginTotal.WithLabelValues(loginOutcomeUnverified).Inc()
		writeError(w, http.StatusUnauthorized, "email not verified")
		return
	}

	accessToken, err := GenerateAccessToken(h.cfg, user.ID, user.Email, string(user.Role))
	if err != nil {
		log.Printf("[auth.login] GenerateAccessToken error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	refreshToken, err := GenerateRefreshToken(h.cfg, user.ID)
	if err != nil {
		log.Printf("[auth.login] GenerateRefreshToken error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	// 单会话：覆盖旧刷新令牌
	if err := h.store.SetRefreshToken(r.Context(), user.ID, refreshToken); err != nil {
		log.Printf("[auth.login] SetRefreshToken error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.setAuthCookies(w, accessToken, refreshToken)

	loginTotal.WithLabelValues(loginOutcomeSuccess).Inc()
	log.Printf("[auth] User logged in: %s", user.Email)
	writeSuccess(w, http.StatusOK, "login successful", loginResponse{
		AccessToken: accessToken,
		User:        user.Summary(),
	})
}

// Logout 用户登出（需认证，幂等）
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	authUser := GetAuthUser(r.Context())
	if authUser == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	if err := h.store.SetRefreshToken(r.Context(), authUser.ID, ""); err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.Printf("[auth.logout] SetRefreshToken error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.clearAuthCookies(w)

	log.Printf("[auth] User logged out: %s", authUser.ID)
	writeSuccess(w, http.StatusOK, "logout successful", nil)
}

// ForgotPassword 发起密码重置：签发 OTP 并发送邮件
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !h.decodeAndValidate(w, r, &req, "email is required") {
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), normalizeEmail(req.Email))
	if err != nil {
		log.Printf("[auth.forgot-password] GetUserByEmail error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	otp, err := NewOTP()
	if err != nil {
		log.Printf("[auth.forgot-password] NewOTP error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := h.store.SetResetOTP(r.Context(), user.ID, otp, time.Now().Add(h.cfg.OTPTTL)); err != nil {
		log.Printf("[auth.forgot-password] SetResetOTP error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	// 发送 OTP 邮件（失败不影响请求结果）
	h.mailer.SendResetOTPEmail(r.Context(), user.Email, user.Name, otp)

	log.Printf("[auth] Password reset OTP issued: %s", user.Email)
	writeSuccess(w, http.StatusOK, "otp sent to your email", nil)
}

// VerifyForgotPasswordOTP 验证密码重置 OTP
//
// 验证成功只置位 otp_verified 门闩，OTP 保留到 reset-password 才清除。
func (h *Handler) VerifyForgotPasswordOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if !h.decodeAndValidate(w, r, &req, "email and otp are required") {
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), normalizeEmail(req.Email))
	if err != nil {
		log.Printf("[auth.verify-otp] GetUserByEmail error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if user.ResetOTP == "" || user.ResetOTP != req.OTP {
		writeError(w, http.StatusBadRequest, "invalid otp")
		return
	}
	if user.ResetOTPExpired(time.Now()) {
		writeError(w, http.StatusBadRequest, "otp expired")
		return
	}

	if err := h.store.MarkOTPVerified(r.Context(), user.ID); err != nil {
		log.Printf("[auth.verify-otp] MarkOTPVerified error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeSuccess(w, http.StatusOK, "otp verified successfully", nil)
}

// ResetPassword 重置密码
//
// 仅在 OTP 已验证且未过期时允许，成功后清空全部 OTP 状态。
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !h.decodeAndValidate(w, r, &req, "email, newPassword and confirmPassword are required") {
		return
	}
	if req.NewPassword != req.ConfirmPassword {
		writeError(w, http.StatusBadRequest, "passwords do not match")
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), normalizeEmail(req.Email))
	if err != nil {
		log.Printf("[auth.reset-password] GetUserByEmail error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if !user.OTPVerified {
		writeError(w, http.StatusBadRequest, "otp verification required")
		return
	}
	if user.ResetOTPExpired(time.Now()) {
		writeError(w, http.StatusBadRequest, "otp expired")
		return
	}

	hash, err := HashPassword(req.NewPassword)
	if err != nil {
		log.Printf("[auth.reset-password] HashPassword error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := h.store.ResetPassword(r.Context(), user.ID, hash); err != nil {
		log.Printf("[auth.reset-password] ResetPassword error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	passwordResetTotal.Inc()
	log.Printf("[auth] Password reset: %s", user.Email)
	writeSuccess(w, http.StatusOK, "password reset successfully", nil)
}

// RefreshToken 刷新访问令牌
//
// 刷新令牌从 Cookie 或 Authorization 头提取，必须与存储的令牌一致。
// 不轮换刷新令牌，只重新签发访问令牌。
func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	token := refreshTokenFromRequest(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "refresh token required")
		return
	}

	claims, err := ParseToken(h.cfg, token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired refresh token")
		return
	}
	if claims.Type != "refresh" {
		writeError(w, http.StatusUnauthorized, "invalid token type")
		return
	}

	user, err := h.store.GetUserByID(r.Context(), claims.Subject)
	if err != nil {
		log.Printf("[auth.refresh] GetUserByID error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	// 单会话：令牌必须与存储的一致（登出后旧令牌立即失效）
	if user == nil || user.RefreshToken == "" || user.RefreshToken != token {
		writeError(w, http.StatusUnauthorized, "refresh token revoked")
		return
	}

	accessToken, err := GenerateAccessToken(h.cfg, user.ID, user.Email, string(user.Role))
	if err != nil {
		log.Printf("[auth.refresh] GenerateAccessToken error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.setAccessCookie(w, accessToken)
	writeSuccess(w, http.StatusOK, "token refreshed", map[string]string{
		"accessToken": accessToken,
	})
}

// ============================================================================
// 工具函数
// ============================================================================

// decodeAndValidate 解析请求体并校验必填字段，失败时写出 400 并返回 false
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, req interface{}, message string) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, message)
		return false
	}
	return true
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// refreshTokenFromRequest 从 Cookie 或 Bearer 头提取刷新令牌
func refreshTokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(refreshCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return ""
}
