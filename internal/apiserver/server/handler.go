// Package server 路由配置与核心基础设施
//
// 本文件定义 HTTP API 路由，将请求分发到各领域独立包：
//   - auth 包：注册 / 邮箱验证 / 登录 / 登出 / 密码重置 / 令牌刷新
//   - user 包：资料更新 / 头像上传 / 详情查询
//
// 仍保留在本包的模块：
//   - metrics.go: Prometheus 指标
//   - CORS 中间件与健康检查
package server

import (
	"net/http"

	"grocery-auth/internal/apiserver/auth"
	"grocery-auth/internal/apiserver/user"
)

// Store 聚合各 handler 包的存储接口
type Store interface {
	auth.UserStore
	user.UserStore
}

// Handler API 处理器
//
// Handler 是所有 HTTP API 的入口，负责：
//   - 路由请求到对应的处理函数
//   - 依赖注入：存储层、邮件发送、对象存储在进程启动时构造一次并传入
type Handler struct {
	store       Store
	mailer      auth.Mailer
	objects     user.ObjectStore
	authCfg     auth.Config
	frontendURL string
	metrics     *Metrics
}

// NewHandler 创建 Handler 实例
func NewHandler(store Store, mailer auth.Mailer, objects user.ObjectStore, authCfg auth.Config, frontendURL string) *Handler {
	return &Handler{
		store:       store,
		mailer:      mailer,
		objects:     objects,
		authCfg:     authCfg,
		frontendURL: frontendURL,
		metrics:     NewMetrics("grocery_auth"),
	}
}

// Router 返回配置好的 HTTP 路由
//
// 路由规则：
//
// 健康检查:
//   - GET  /health - 服务健康检查
//   - GET  /metrics - Prometheus 指标
//
// 认证 (auth 包):
//   - POST /api/register                    - 注册
//   - POST /api/verify-email                - 邮箱验证
//   - POST /api/login                       - 登录
//   - GET  /api/logout                      - 登出（需认证）
//   - PUT  /api/forgot-password             - 发起密码重置
//   - PUT  /api/verify-forgot-password-otp  - 验证重置 OTP
//   - PUT  /api/reset-password              - 重置密码
//   - PUT  /api/refresh-token               - 刷新访问令牌
//
// 用户资料 (user 包):
//   - PUT  /api/upload-avatar - 头像上传
//   - PUT  /api/update-user   - 资料更新
//   - POST /api/user-details  - 详情查询
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	// 健康检查
	mux.HandleFunc("GET /health", h.Health)

	// Prometheus 指标端点
	mux.Handle("GET /metrics", MetricsHandler())

	// Auth 接口
	authHandler := auth.NewHandler(h.store, h.mailer, h.authCfg)
	authHandler.RegisterRoutes(mux)

	// 用户资料接口
	userHandler := user.NewHandler(h.store, h.objects, auth.HashPassword)
	userHandler.RegisterRoutes(mux)

	// 应用指标中间件
	apiHandler := h.metrics.MetricsMiddleware(mux)

	// 应用认证中间件
	authedHandler := auth.Middleware(h.authCfg)(apiHandler)

	// 应用 CORS 中间件
	return h.corsMiddleware(authedHandler)
}

// Health 服务健康检查
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// corsMiddleware 添加 CORS 头
// 带凭据的跨站请求只允许配置的前端来源
func (h *Handler) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", h.frontendURL)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
