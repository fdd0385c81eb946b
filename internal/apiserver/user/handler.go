// Package user 用户资料接口：资料更新、头像上传、详情查询
package user

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"grocery-auth/internal/shared/model"
	"grocery-auth/internal/shared/storage"
)

// maxAvatarSize 头像上传大小上限
const maxAvatarSize = 10 << 20 // 10 MiB

// UserStore 用户存储接口
type UserStore interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateUserDetails(ctx context.Context, id string, upd model.UserUpdate) error
	SetAvatar(ctx context.Context, id, key string) error
}

// ObjectStore 头像对象存储接口
type ObjectStore interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
}

// PasswordHasher 密码哈希函数（update-user 携带新密码时使用）
type PasswordHasher func(password string) (string, error)

// Handler 用户资料 HTTP 处理器
type Handler struct {
	store    UserStore
	objects  ObjectStore
	hash     PasswordHasher
	validate *validator.Validate
}

// NewHandler 创建用户资料处理器
func NewHandler(store UserStore, objects ObjectStore, hash PasswordHasher) *Handler {
	return &Handler{
		store:    store,
		objects:  objects,
		hash:     hash,
		validate: validator.New(),
	}
}

// RegisterRoutes 注册用户资料相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("PUT /api/upload-avatar", h.UploadAvatar)
	mux.HandleFunc("PUT /api/update-user", h.UpdateDetails)
	mux.HandleFunc("POST /api/user-details", h.Details)
}

// ============================================================================
// 请求类型
// ============================================================================

type updateRequest struct {
	UserID   string  `json:"userId" validate:"required"`
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	Mobile   *string `json:"mobile,omitempty"`
	Password *string `json:"password,omitempty" validate:"omitempty"`
}

type detailsRequest struct {
	UserID string `json:"userId" validate:"required"`
}

// ============================================================================
// Handlers
// ============================================================================

// UploadAvatar 头像上传（multipart form: userId + avatar 文件）
func (h *Handler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxAvatarSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	userID := r.FormValue("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	file, header, err := r.FormFile("avatar")
	if err != nil {
		writeError(w, http.StatusBadRequest, "avatar file is required")
		return
	}
	defer file.Close()

	user, err := h.store.GetUserByID(r.Context(), userID)
	if err != nil {
		log.Printf("[user.upload-avatar] GetUserByID error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	// 对象键用随机文件名，避免同名覆盖
	key := avatarKey(userID, uuid.NewString()+filepath.Ext(header.Filename))
	contentType := header.Header.Get("Content-Type")
	if err := h.objects.Upload(r.Context(), key, file, header.Size, contentType); err != nil {
		log.Printf("[user.upload-avatar] Upload error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to store avatar")
		return
	}

	if err := h.store.SetAvatar(r.Context(), userID, key); err != nil {
		log.Printf("[user.upload-avatar] SetAvatar error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	// 清理被替换的旧头像对象（失败只记录，不影响本次上传）
	if old := user.Avatar; old != "" && old != key {
		if err := h.objects.Delete(r.Context(), old); err != nil {
			log.Printf("[user.upload-avatar] delete old avatar %s failed: %v", old, err)
		}
	}

	log.Printf("[user] Avatar uploaded: %s → %s", userID, key)
	writeSuccess(w, http.StatusOK, "avatar uploaded successfully", map[string]string{
		"avatar": key,
	})
}

// UpdateDetails 更新用户资料（只修改请求中出现的字段）
func (h *Handler) UpdateDetails(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// 校验前先归一化：带首尾空白的合法邮箱不应被 email 规则拒绝
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		req.Email = &email
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid update request")
		return
	}

	upd := model.UserUpdate{
		Name:   req.Name,
		Mobile: req.Mobile,
	}

	if req.Email != nil {
		// 换绑邮箱不得占用他人邮箱
		existing, err := h.store.GetUserByEmail(r.Context(), *req.Email)
		if err != nil {
			log.Printf("[user.update] GetUserByEmail error: %v", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if existing != nil && existing.ID != req.UserID {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		upd.Email = req.Email
	}

	if req.Password != nil {
		hash, err := h.hash(*req.Password)
		if err != nil {
			log.Printf("[user.update] hash password error: %v", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		upd.PasswordHash = &hash
	}

	if err := h.store.UpdateUserDetails(r.Context(), req.UserID, upd); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		if errors.Is(err, storage.ErrDuplicate) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		log.Printf("[user.update] UpdateUserDetails error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	user, err := h.store.GetUserByID(r.Context(), req.UserID)
	if err != nil || user == nil {
		log.Printf("[user.update] reload user error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	log.Printf("[user] Details updated: %s", req.UserID)
	writeSuccess(w, http.StatusOK, "user updated successfully", user.Summary())
}

// Details 查询用户详情
func (h *Handler) Details(w http.ResponseWriter, r *http.Request) {
	var req detailsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	user, err := h.store.GetUserByID(r.Context(), req.UserID)
	if err != nil {
		log.Printf("[user.details] GetUserByID error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	writeSuccess(w, http.StatusOK, "user details", user.Summary())
}

// ============================================================================
// 工具函数
// ============================================================================

func avatarKey(userID, filename string) string {
	return "avatars/" + userID + "/" + filename
}

// apiResponse 统一响应信封
type apiResponse struct {
	Status  bool        `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeSuccess(w http.ResponseWriter, status int, message string, data interface{}) {
	writeJSON(w, status, apiResponse{Status: true, Message: message, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiResponse{Status: false, Message: message})
}
