package auth

import (
	"log"
	"net/http"
	"strings"
)

// 免认证路由精确匹配（method + path）
// 登出以外的全部业务端点按源 API 语义公开
var publicExact = map[string]bool{
	"POST /api/register":                   true,
	"POST /api/verify-email":               true,
	"POST /api/login":                      true,
	"PUT /api/upload-avatar":               true,
	"PUT /api/update-user":                 true,
	"PUT /api/forgot-password":             true,
	"PUT /api/verify-forgot-password-otp":  true,
	"PUT /api/reset-password":              true,
	"PUT /api/refresh-token":               true,
	"POST /api/user-details":               true,
}

// 免认证路由白名单（前缀匹配）
var publicPrefixes = []string{
	"/health",
	"/metrics",
}

func isPublicRoute(method, path string) bool {
	if publicExact[method+" "+path] {
		return true
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	// CORS 预检不带凭据
	if method == http.MethodOptions {
		return true
	}
	return false
}

// Middleware 创建 JWT 认证中间件
//
// 令牌从 Authorization: Bearer 头或 accessToken Cookie 提取，
// 缺失/无效/过期一律 401。
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 公开路由：直接放行
			if isPublicRoute(r.Method, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			token := accessTokenFromRequest(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "missing access token")
				return
			}

			claims, err := ParseToken(cfg, token)
			if err != nil {
				log.Printf("[auth] token parse error: %v", err)
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			if claims.Type != "access" {
				writeError(w, http.StatusUnauthorized, "invalid token type")
				return
			}

			// 注入 auth user 到 context
			user := &AuthUser{
				ID:    claims.Subject,
				Email: claims.Email,
				Role:  claims.Role,
			}
			next.ServeHTTP(w, r.WithContext(WithAuthUser(r.Context(), user)))
		})
	}
}

// accessTokenFromRequest 从 Bearer 头或 Cookie 提取访问令牌
func accessTokenFromRequest(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}
	if c, err := r.Cookie(accessCookieName); err == nil {
		return c.Value
	}
	return ""
}
