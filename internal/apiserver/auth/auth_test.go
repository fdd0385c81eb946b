package auth

import (
	"strings"
	"testing"
	"time"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWTSecret = "test-secret"
	return cfg
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("pw123")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	if hash == "pw123" {
		t.Fatal("hash must not equal plaintext")
	}
	if !CheckPassword("pw123", hash) {
		t.Error("correct password rejected")
	}
	if CheckPassword("wrong", hash) {
		t.Error("wrong password accepted")
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	cfg := testConfig()

	token, err := GenerateAccessToken(cfg, "usr-1", "a@x.com", "user")
	if err != nil {
		t.Fatalf("GenerateAccessToken error: %v", err)
	}

	claims, err := ParseToken(cfg, token)
	if err != nil {
		t.Fatalf("ParseToken error: %v", err)
	}
	if claims.Subject != "usr-1" {
		t.Errorf("Subject = %q, want usr-1", claims.Subject)
	}
	if claims.Email != "a@x.com" {
		t.Errorf("Email = %q, want a@x.com", claims.Email)
	}
	if claims.Type != "access" {
		t.Errorf("Type = %q, want access", claims.Type)
	}
}

func TestRefreshTokenType(t *testing.T) {
	cfg := testConfig()

	token, err := GenerateRefreshToken(cfg, "usr-1")
	if err != nil {
		t.Fatalf("GenerateRefreshToken error: %v", err)
	}

	claims, err := ParseToken(cfg, token)
	if err != nil {
		t.Fatalf("ParseToken error: %v", err)
	}
	if claims.Type != "refresh" {
		t.Errorf("Type = %q, want refresh", claims.Type)
	}
	if claims.Email != "" {
		t.Errorf("refresh token must not carry email, got %q", claims.Email)
	}
}

func TestRefreshTokensAlwaysDistinct(t *testing.T) {
	cfg := testConfig()

	// 同一用户同一秒内连续签发也必须得到不同令牌，
	// 否则第二次登录无法通过覆盖存储令牌吊销第一个会话
	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		token, err := GenerateRefreshToken(cfg, "usr-1")
		if err != nil {
			t.Fatalf("GenerateRefreshToken error: %v", err)
		}
		if seen[token] {
			t.Fatal("identical refresh tokens issued back to back")
		}
		seen[token] = true

		claims, err := ParseToken(cfg, token)
		if err != nil {
			t.Fatalf("ParseToken error: %v", err)
		}
		if claims.ID == "" {
			t.Fatal("refresh token must carry a unique jti")
		}
	}
}

func TestParseTokenRejectsBadSignature(t *testing.T) {
	cfg := testConfig()
	token, _ := GenerateAccessToken(cfg, "usr-1", "a@x.com", "user")

	other := cfg
	other.JWTSecret = "another-secret"
	if _, err := ParseToken(other, token); err == nil {
		t.Error("token signed with different secret must be rejected")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	cfg := testConfig()
	cfg.AccessTokenTTL = -time.Minute

	token, _ := GenerateAccessToken(cfg, "usr-1", "a@x.com", "user")
	if _, err := ParseToken(cfg, token); err == nil {
		t.Error("expired token must be rejected")
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	cfg := testConfig()
	for _, bad := range []string{"", "not.a.jwt", "a.b"} {
		if _, err := ParseToken(cfg, bad); err == nil {
			t.Errorf("ParseToken(%q) must fail", bad)
		}
	}
}

func TestNewOTP(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		otp, err := NewOTP()
		if err != nil {
			t.Fatalf("NewOTP error: %v", err)
		}
		if len(otp) != 6 {
			t.Fatalf("NewOTP() = %q, want 6 digits", otp)
		}
		if strings.Trim(otp, "0123456789") != "" {
			t.Fatalf("NewOTP() = %q, contains non-digits", otp)
		}
		seen[otp] = true
	}
	// 50 次全部相同基本不可能，粗略检查随机性
	if len(seen) < 2 {
		t.Error("NewOTP produced identical values 50 times")
	}
}

func TestNewVerifyCodeUnique(t *testing.T) {
	a, b := NewVerifyCode(), NewVerifyCode()
	if a == "" || a == b {
		t.Errorf("NewVerifyCode must produce unique non-empty codes, got %q and %q", a, b)
	}
}
