// Package main API Server 入口
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"grocery-auth/internal/apiserver/auth"
	"grocery-auth/internal/apiserver/server"
	"grocery-auth/internal/config"
	"grocery-auth/internal/shared/mailer"
	objstore "grocery-auth/internal/shared/minio"
	"grocery-auth/internal/shared/storage/mongostore"
)

func main() {
	// 加载配置（自动加载 .env，根据 APP_ENV 选择 configs/{env}.yaml）
	cfg := config.Load()

	log.Printf("Starting API Server... [env=%s]", cfg.Env)
	log.Printf("Config: %s", cfg.String())

	// 令牌签名密钥必须显式配置
	if cfg.Auth.JWTSecret == "" {
		log.Fatalf("JWT_SECRET is required")
	}

	// 初始化 MongoDB（用户持久化）
	store, err := mongostore.NewStore(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer store.Close()
	log.Println("Connected to MongoDB")

	// 初始化 MinIO（头像对象存储）
	objects, err := objstore.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("Failed to create MinIO client: %v", err)
	}
	{
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := objects.EnsureBucket(ctx); err != nil {
			log.Fatalf("Failed to ensure MinIO bucket: %v", err)
		}
	}

	// 初始化邮件发送（Resend；未配置 API Key 时进入日志模式）
	mail := mailer.NewService(cfg.Email, cfg.FrontendURL)

	authCfg := auth.Config{
		JWTSecret:       cfg.Auth.JWTSecret,
		AccessTokenTTL:  cfg.Auth.AccessTokenTTL,
		RefreshTokenTTL: cfg.Auth.RefreshTokenTTL,
		VerifyCodeTTL:   cfg.Auth.VerifyCodeTTL,
		OTPTTL:          cfg.Auth.OTPTTL,
		SecureCookies:   cfg.Env == config.EnvProduction,
	}

	h := server.NewHandler(store, mail, objects, authCfg, cfg.FrontendURL)

	srv := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      h.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 优雅关闭
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("API Server listening on :%s", cfg.APIPort)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server stopped")
}
