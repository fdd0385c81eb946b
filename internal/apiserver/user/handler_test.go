package user

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"grocery-auth/internal/shared/model"
	"grocery-auth/internal/shared/storage/memstore"
)

// ============================================================================
// 测试基础设施
// ============================================================================

// fakeObjectStore 记录上传和删除调用
type fakeObjectStore struct {
	failUpload bool
	keys       []string
	sizes      []int64
	types      []string
	deleted    []string
}

func (f *fakeObjectStore) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	if f.failUpload {
		return errors.New("upload failed")
	}
	io.Copy(io.Discard, reader)
	f.keys = append(f.keys, key)
	f.sizes = append(f.sizes, size)
	f.types = append(f.types, contentType)
	return nil
}

func (f *fakeObjectStore) Delete(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func testHasher(password string) (string, error) {
	return "hashed:" + password, nil
}

type env struct {
	handler http.Handler
	store   *memstore.Store
	objects *fakeObjectStore
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memstore.NewStore()
	objects := &fakeObjectStore{}
	h := NewHandler(store, objects, testHasher)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	return &env{handler: mux, store: store, objects: objects}
}

// seedUser 在存储中植入已验证用户并返回其 ID
func (e *env) seedUser(t *testing.T, name, email string) string {
	t.Helper()
	id := "user-" + name
	u := &model.User{
		ID:           id,
		Name:         name,
		Email:        email,
		PasswordHash: "hashed:original",
		Role:         model.UserRoleUser,
		Verified:     true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := e.store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return id
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *env) doJSON(t *testing.T, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatalf("encode body: %v", err)
	}
	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)

	var env envelope
	json.Unmarshal(w.Body.Bytes(), &env)
	return w.Code, env
}

// doMultipart 构造 multipart 表单请求；filename 为空时不附带文件
func (e *env) doMultipart(t *testing.T, userID, filename string, content []byte) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if userID != "" {
		mw.WriteField("userId", userID)
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("avatar", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		fw.Write(content)
	}
	mw.Close()

	r := httptest.NewRequest("PUT", "/api/upload-avatar", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())

	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)

	var env envelope
	json.Unmarshal(w.Body.Bytes(), &env)
	return w.Code, env
}

// ============================================================================
// 资料更新
// ============================================================================

func TestUpdateDetailsPartial(t *testing.T) {
	e := newEnv(t)
	id := e.seedUser(t, "A", "a@x.com")

	// 只更新 name，其余字段保持不变
	code, env := e.doJSON(t, "PUT", "/api/update-user", map[string]string{
		"userId": id, "name": "Renamed",
	})
	if code != http.StatusOK {
		t.Fatalf("update name: status = %d (%s), want 200", code, env.Message)
	}

	u, _ := e.store.GetUserByID(context.Background(), id)
	if u.Name != "Renamed" {
		t.Errorf("Name = %q, want Renamed", u.Name)
	}
	if u.Email != "a@x.com" || u.PasswordHash != "hashed:original" {
		t.Error("untouched fields must not change")
	}
}

func TestUpdateDetailsPassword(t *testing.T) {
	e := newEnv(t)
	id := e.seedUser(t, "A", "a@x.com")

	code, _ := e.doJSON(t, "PUT", "/api/update-user", map[string]string{
		"userId": id, "password": "newpw456",
	})
	if code != http.StatusOK {
		t.Fatalf("update password: status = %d, want 200", code)
	}

	// 存储的永远是哈希，不是明文
	u, _ := e.store.GetUserByID(context.Background(), id)
	if u.PasswordHash != "hashed:newpw456" {
		t.Errorf("PasswordHash = %q, want hashed:newpw456", u.PasswordHash)
	}
}

func TestUpdateDetailsEmailConflict(t *testing.T) {
	e := newEnv(t)
	e.seedUser(t, "A", "a@x.com")
	idB := e.seedUser(t, "B", "b@x.com")

	// 换绑到他人邮箱冲突
	code, _ := e.doJSON(t, "PUT", "/api/update-user", map[string]string{
		"userId": idB, "email": "a@x.com",
	})
	if code != http.StatusConflict {
		t.Errorf("email conflict: status = %d, want 409", code)
	}

	// 提交自己当前的邮箱不算冲突
	code, _ = e.doJSON(t, "PUT", "/api/update-user", map[string]string{
		"userId": idB, "email": "b@x.com",
	})
	if code != http.StatusOK {
		t.Errorf("own email: status = %d, want 200", code)
	}
}

func TestUpdateDetailsEmailNormalized(t *testing.T) {
	e := newEnv(t)
	id := e.seedUser(t, "A", "a@x.com")

	code, _ := e.doJSON(t, "PUT", "/api/update-user", map[string]string{
		"userId": id, "email": "  New@X.Com  ",
	})
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}

	u, _ := e.store.GetUserByID(context.Background(), id)
	if u.Email != "new@x.com" {
		t.Errorf("Email = %q, want new@x.com", u.Email)
	}
}

func TestUpdateDetailsUnknownUser(t *testing.T) {
	e := newEnv(t)
	code, _ := e.doJSON(t, "PUT", "/api/update-user", map[string]string{
		"userId": "no-such-user", "name": "X",
	})
	if code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", code)
	}
}

func TestUpdateDetailsValidation(t *testing.T) {
	e := newEnv(t)
	id := e.seedUser(t, "A", "a@x.com")

	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing userId", map[string]string{"name": "X"}},
		{"bad email", map[string]string{"userId": id, "email": "not-an-email"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := e.doJSON(t, "PUT", "/api/update-user", tt.body)
			if code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", code)
			}
		})
	}
}

// ============================================================================
// 详情查询
// ============================================================================

func TestDetails(t *testing.T) {
	e := newEnv(t)
	id := e.seedUser(t, "A", "a@x.com")

	code, env := e.doJSON(t, "POST", "/api/user-details", map[string]string{"userId": id})
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}

	var data map[string]interface{}
	json.Unmarshal(env.Data, &data)
	if data["email"] != "a@x.com" {
		t.Errorf("email = %v, want a@x.com", data["email"])
	}
	// 摘要不得泄露凭据
	if strings.Contains(string(env.Data), "hashed:") {
		t.Errorf("details response leaks password hash: %s", env.Data)
	}
}

func TestDetailsUnknownUser(t *testing.T) {
	e := newEnv(t)
	code, _ := e.doJSON(t, "POST", "/api/user-details", map[string]string{"userId": "no-such-user"})
	if code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", code)
	}
}

// ============================================================================
// 头像上传
// ============================================================================

func TestUploadAvatar(t *testing.T) {
	e := newEnv(t)
	id := e.seedUser(t, "A", "a@x.com")

	code, env := e.doMultipart(t, id, "photo.png", []byte("fake-png-bytes"))
	if code != http.StatusOK {
		t.Fatalf("status = %d (%s), want 200", code, env.Message)
	}

	if len(e.objects.keys) != 1 {
		t.Fatalf("uploads = %d, want 1", len(e.objects.keys))
	}
	key := e.objects.keys[0]
	if !strings.HasPrefix(key, "avatars/"+id+"/") || !strings.HasSuffix(key, ".png") {
		t.Errorf("object key = %q, want avatars/%s/<random>.png", key, id)
	}

	// 存储的头像键与上传的对象一致
	u, _ := e.store.GetUserByID(context.Background(), id)
	if u.Avatar != key {
		t.Errorf("Avatar = %q, want %q", u.Avatar, key)
	}

	var data map[string]string
	json.Unmarshal(env.Data, &data)
	if data["avatar"] != key {
		t.Errorf("response avatar = %q, want %q", data["avatar"], key)
	}
}

func TestUploadAvatarRandomizedKeys(t *testing.T) {
	e := newEnv(t)
	id := e.seedUser(t, "A", "a@x.com")

	e.doMultipart(t, id, "photo.png", []byte("one"))
	e.doMultipart(t, id, "photo.png", []byte("two"))

	// 同名文件重复上传不得覆盖旧对象
	if len(e.objects.keys) != 2 || e.objects.keys[0] == e.objects.keys[1] {
		t.Errorf("keys = %v, want two distinct keys", e.objects.keys)
	}
}

func TestUploadAvatarReplacesOldObject(t *testing.T) {
	e := newEnv(t)
	id := e.seedUser(t, "A", "a@x.com")

	e.doMultipart(t, id, "first.png", []byte("one"))
	e.doMultipart(t, id, "second.png", []byte("two"))

	// 替换头像后旧对象被清理
	if len(e.objects.deleted) != 1 || e.objects.deleted[0] != e.objects.keys[0] {
		t.Errorf("deleted = %v, want [%s]", e.objects.deleted, e.objects.keys[0])
	}

	u, _ := e.store.GetUserByID(context.Background(), id)
	if u.Avatar != e.objects.keys[1] {
		t.Errorf("Avatar = %q, want %q", u.Avatar, e.objects.keys[1])
	}
}

func TestUploadAvatarMissingParts(t *testing.T) {
	e := newEnv(t)
	id := e.seedUser(t, "A", "a@x.com")

	if code, _ := e.doMultipart(t, "", "photo.png", []byte("x")); code != http.StatusBadRequest {
		t.Errorf("missing userId: status = %d, want 400", code)
	}
	if code, _ := e.doMultipart(t, id, "", nil); code != http.StatusBadRequest {
		t.Errorf("missing file: status = %d, want 400", code)
	}
}

func TestUploadAvatarUnknownUser(t *testing.T) {
	e := newEnv(t)
	code, _ := e.doMultipart(t, "no-such-user", "photo.png", []byte("x"))
	if code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", code)
	}
}

func TestUploadAvatarObjectStoreError(t *testing.T) {
	e := newEnv(t)
	id := e.seedUser(t, "A", "a@x.com")
	e.objects.failUpload = true

	code, _ := e.doMultipart(t, id, "photo.png", []byte("x"))
	if code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", code)
	}

	// 上传失败时不落库
	u, _ := e.store.GetUserByID(context.Background(), id)
	if u.Avatar != "" {
		t.Errorf("Avatar = %q, want empty after failed upload", u.Avatar)
	}
}
