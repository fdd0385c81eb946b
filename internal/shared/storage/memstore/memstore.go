// Package memstore 提供内存版用户存储（测试用）
//
// 语义与 mongostore 保持一致：邮箱唯一冲突返回 storage.ErrDuplicate，
// 按 _id 更新未命中返回 storage.ErrNotFound，查询未命中返回 (nil, nil)。
package memstore

import (
	"context"
	"sync"
	"time"

	"grocery-auth/internal/shared/model"
	"grocery-auth/internal/shared/storage"
)

// Store 内存用户存储
type Store struct {
	mu    sync.RWMutex
	users map[string]*model.User // id → user
}

// NewStore 创建内存存储实例
func NewStore() *Store {
	return &Store{users: make(map[string]*model.User)}
}

func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return storage.ErrDuplicate
		}
	}
	clone := *user
	s.users[user.ID] = &clone
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[id]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, nil
}

func (s *Store) GetUserByVerifyCode(ctx context.Context, code string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if code == "" {
		return nil, nil
	}
	for _, u := range s.users {
		if u.VerifyCode == code {
			clone := *u
			return &clone, nil
		}
	}
	return nil, nil
}

func (s *Store) MarkEmailVerified(ctx context.Context, id string) error {
	return s.update(id, func(u *model.User) {
		u.Verified = true
		u.VerifyCode = ""
		u.VerifyCodeExpiry = time.Time{}
	})
}

func (s *Store) SetRefreshToken(ctx context.Context, id, token string) error {
	return s.update(id, func(u *model.User) {
		u.RefreshToken = token
	})
}

func (s *Store) SetResetOTP(ctx context.Context, id, otp string, expiry time.Time) error {
	return s.update(id, func(u *model.User) {
		u.ResetOTP = otp
		u.ResetOTPExpiry = expiry
		u.OTPVerified = false
	})
}

func (s *Store) MarkOTPVerified(ctx context.Context, id string) error {
	return s.update(id, func(u *model.User) {
		u.OTPVerified = true
	})
}

func (s *Store) ResetPassword(ctx context.Context, id, passwordHash string) error {
	return s.update(id, func(u *model.User) {
		u.PasswordHash = passwordHash
		u.ResetOTP = ""
		u.ResetOTPExpiry = time.Time{}
		u.OTPVerified = false
	})
}

func (s *Store) SetAvatar(ctx context.Context, id, key string) error {
	return s.update(id, func(u *model.User) {
		u.Avatar = key
	})
}

func (s *Store) UpdateUserDetails(ctx context.Context, id string, upd model.UserUpdate) error {
	return s.update(id, func(u *model.User) {
		if upd.Name != nil {
			u.Name = *upd.Name
		}
		if upd.Email != nil {
			u.Email = *upd.Email
		}
		if upd.Mobile != nil {
			u.Mobile = *upd.Mobile
		}
		if upd.PasswordHash != nil {
			u.PasswordHash = *upd.PasswordHash
		}
	})
}

func (s *Store) update(id string, fn func(*model.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	fn(u)
	u.UpdatedAt = time.Now()
	return nil
}
