// Package config 统一配置管理
//
// 配置加载策略：
//  1. 从 .env 加载敏感信息（密钥、密码）和 APP_ENV
//  2. 根据 APP_ENV 加载对应的 configs/{env}.yaml 配置文件
//  3. 环境变量可覆盖 YAML 配置
//
// 凭据单一数据源：密钥只存在 .env / 环境变量中（YAML 中不存储任何密码）：
//   - JWT_SECRET：令牌签名密钥
//   - MONGO_URI：MongoDB 连接串（含密码时）
//   - RESEND_API_KEY：邮件服务 API Key
//   - MINIO_ROOT_USER / MINIO_ROOT_PASSWORD：对象存储凭据
//
// 使用方式：
//   - 开发环境: APP_ENV=dev (默认)
//   - 测试环境: APP_ENV=test
//   - 生产环境: APP_ENV=prod
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment 环境类型
type Environment string

const (
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
	EnvDevelopment Environment = "dev"
)

// YAMLConfig YAML 配置文件结构
// TTL 字段使用 time.ParseDuration 可解析的字符串（如 "15m"、"168h"）
type YAMLConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	MinIO    MinIOConfig    `yaml:"minio"`
	Email    EmailYAML      `yaml:"email"`
	Auth     AuthYAML       `yaml:"auth"`
}

type ServerConfig struct {
	Port        string `yaml:"port"`
	FrontendURL string `yaml:"frontend_url"` // CORS 允许来源 + 验证链接前缀
}

type DatabaseConfig struct {
	URI  string `yaml:"uri"` // MongoDB 连接 URI，如 mongodb://localhost:27017
	Name string `yaml:"name"`
}

// MinIOConfig MinIO 对象存储配置
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"` // 例如 localhost:9000
	AccessKey string `yaml:"-"`        // 只从 MINIO_ROOT_USER 环境变量读取
	SecretKey string `yaml:"-"`        // 只从 MINIO_ROOT_PASSWORD 环境变量读取
	UseSSL    bool   `yaml:"use_ssl"`
	Bucket    string `yaml:"bucket"`
}

// EmailYAML 邮件发送配置（YAML 部分）
type EmailYAML struct {
	From        string `yaml:"from"`         // 发件人，如 "grocery <onboarding@resend.dev>"
	SendTimeout string `yaml:"send_timeout"` // 单次发送超时，如 "10s"
}

// AuthYAML 认证配置（YAML 部分）
// JWTSecret 只从 JWT_SECRET 环境变量读取，不存储在 YAML 中
type AuthYAML struct {
	AccessTokenTTL  string `yaml:"access_token_ttl"`  // 例如 "15m"
	RefreshTokenTTL string `yaml:"refresh_token_ttl"` // 例如 "168h"
	VerifyCodeTTL   string `yaml:"verify_code_ttl"`   // 例如 "24h"
	OTPTTL          string `yaml:"otp_ttl"`           // 例如 "10m"
}

// EmailConfig 邮件发送配置（最终使用的配置）
type EmailConfig struct {
	APIKey      string
	From        string
	SendTimeout time.Duration
}

// AuthConfig 认证配置（最终使用的配置）
type AuthConfig struct {
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	VerifyCodeTTL   time.Duration
	OTPTTL          time.Duration
}

// Config 应用配置（最终使用的配置）
type Config struct {
	Env         Environment
	APIPort     string
	FrontendURL string
	MongoURI    string
	MongoDB     string
	MinIO       MinIOConfig
	Email       EmailConfig
	Auth        AuthConfig
}

var configPaths = []string{
	"configs",
	"../configs",
	"../../configs",
	"../../../configs",
}

var envPaths = []string{
	".env",
	"../.env",
	"../../.env",
	"../../../.env",
}

// Load 加载配置
// 1. 加载 .env（敏感信息 + APP_ENV）
// 2. 根据 APP_ENV 加载 configs/{env}.yaml
// 3. 环境变量覆盖，构建最终配置
func Load() *Config {
	// 加载 .env
	for _, p := range envPaths {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	// 解析环境
	env := parseEnv(getEnv("APP_ENV", "dev"))

	// 加载 YAML 配置
	yamlCfg := loadYAMLConfig(env)

	cfg := &Config{
		Env:         env,
		APIPort:     getEnv("PORT", yamlCfg.Server.Port),
		FrontendURL: getEnv("FRONTEND_URL", yamlCfg.Server.FrontendURL),
		MongoURI:    getEnv("MONGO_URI", yamlCfg.Database.URI),
		MongoDB:     getEnv("MONGO_DB", yamlCfg.Database.Name),
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", yamlCfg.MinIO.Endpoint),
			AccessKey: os.Getenv("MINIO_ROOT_USER"),
			SecretKey: os.Getenv("MINIO_ROOT_PASSWORD"),
			UseSSL:    yamlCfg.MinIO.UseSSL,
			Bucket:    yamlCfg.MinIO.Bucket,
		},
		Email: EmailConfig{
			APIKey:      os.Getenv("RESEND_API_KEY"),
			From:        yamlCfg.Email.From,
			SendTimeout: parseDuration(yamlCfg.Email.SendTimeout, 10*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret:       os.Getenv("JWT_SECRET"),
			AccessTokenTTL:  parseDuration(yamlCfg.Auth.AccessTokenTTL, 15*time.Minute),
			RefreshTokenTTL: parseDuration(yamlCfg.Auth.RefreshTokenTTL, 7*24*time.Hour),
			VerifyCodeTTL:   parseDuration(yamlCfg.Auth.VerifyCodeTTL, 24*time.Hour),
			OTPTTL:          parseDuration(yamlCfg.Auth.OTPTTL, 10*time.Minute),
		},
	}

	return cfg
}

// loadYAMLConfig 加载 YAML 配置文件
// 加载顺序：默认值 → common.yaml → {env}.yaml
func loadYAMLConfig(env Environment) *YAMLConfig {
	// 1. 初始化默认值
	cfg := &YAMLConfig{
		Server:   ServerConfig{Port: "8080", FrontendURL: "http://localhost:3000"},
		Database: DatabaseConfig{URI: "mongodb://localhost:27017", Name: "grocery_auth"},
		MinIO:    MinIOConfig{Endpoint: "localhost:9000", Bucket: "grocery-auth"},
		Email:    EmailYAML{From: "grocery <onboarding@resend.dev>", SendTimeout: "10s"},
		Auth: AuthYAML{
			AccessTokenTTL:  "15m",
			RefreshTokenTTL: "168h",
			VerifyCodeTTL:   "24h",
			OTPTTL:          "10m",
		},
	}

	// 2. 加载 common.yaml（公共配置）
	for _, base := range configPaths {
		path := filepath.Join(base, "common.yaml")
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, cfg)
			break
		}
	}

	// 3. 加载 {env}.yaml（环境特定配置，覆盖公共配置）
	filename := fmt.Sprintf("%s.yaml", env)
	for _, base := range configPaths {
		path := filepath.Join(base, filename)
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, cfg)
			break
		}
	}

	return cfg
}

func parseEnv(env string) Environment {
	switch strings.ToLower(env) {
	case "test":
		return EnvTest
	case "prod", "production":
		return EnvProduction
	default:
		return EnvDevelopment
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration 解析时长字符串，失败时返回默认值
func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// IsTest 是否为测试环境
func (c *Config) IsTest() bool {
	return c.Env == EnvTest
}

// String 返回配置摘要（隐藏密码）
func (c *Config) String() string {
	return fmt.Sprintf("Config{Env: %s, Port: %s, Mongo: %s/%s, Frontend: %s}",
		c.Env, c.APIPort, maskPassword(c.MongoURI), c.MongoDB, c.FrontendURL)
}

// maskPassword 隐藏连接串中的密码
func maskPassword(url string) string {
	re := regexp.MustCompile(`(://[^:/@]+:)([^@]+)(@)`)
	return re.ReplaceAllString(url, "${1}***${3}")
}
