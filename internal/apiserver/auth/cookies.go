package auth

import (
	"net/http"
	"time"
)

// Cookie 名称（前端与刷新接口依赖）
const (
	accessCookieName  = "accessToken"
	refreshCookieName = "refreshToken"
)

// newCookie 构造认证 Cookie
// 生产环境跨站携带要求 Secure + SameSite=None，开发环境退回 Lax
func (h *Handler) newCookie(name, value string, maxAge time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		MaxAge:   int(maxAge.Seconds()),
		SameSite: http.SameSiteLaxMode,
	}
	if h.cfg.SecureCookies {
		c.Secure = true
		c.SameSite = http.SameSiteNoneMode
	}
	return c
}

// setAuthCookies 登录成功后同时写入访问与刷新 Cookie
func (h *Handler) setAuthCookies(w http.ResponseWriter, accessToken, refreshToken string) {
	http.SetCookie(w, h.newCookie(accessCookieName, accessToken, h.cfg.AccessTokenTTL))
	http.SetCookie(w, h.newCookie(refreshCookieName, refreshToken, h.cfg.RefreshTokenTTL))
}

// setAccessCookie 刷新后只更新访问 Cookie
func (h *Handler) setAccessCookie(w http.ResponseWriter, accessToken string) {
	http.SetCookie(w, h.newCookie(accessCookieName, accessToken, h.cfg.AccessTokenTTL))
}

// clearAuthCookies 登出时清除两个 Cookie
func (h *Handler) clearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{accessCookieName, refreshCookieName} {
		c := h.newCookie(name, "", 0)
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}
