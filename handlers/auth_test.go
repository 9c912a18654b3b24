package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepvoice/prepvoice/internal/config"
	"github.com/prepvoice/prepvoice/internal/models"
	"github.com/prepvoice/prepvoice/internal/sessions"
	"github.com/prepvoice/prepvoice/internal/users"
)

// fake user repo backed by a map
type fakeUserRepo struct {
	users map[string]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*models.User{}}
}

func (f *fakeUserRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	return u, nil
}

func (f *fakeUserRepo) UpsertBySub(ctx context.Context, u *models.User) (*models.User, error) {
	for _, existing := range f.users {
		if existing.Sub == u.Sub {
			existing.Email = u.Email
			existing.Name = u.Name
			existing.UpdatedAt = time.Now().UTC()
			return existing, nil
		}
	}
	return f.Create(ctx, u)
}

// fake sessions repo
type fakeSessionsRepo struct {
	store map[string]*sessions.Session
}

func (f *fakeSessionsRepo) Create(ctx context.Context, s *sessions.Session) error {
	if f.store == nil {
		f.store = map[string]*sessions.Session{}
	}
	f.store[s.RefreshToken] = s
	return nil
}

func (f *fakeSessionsRepo) GetByRefresh(ctx context.Context, refresh string) (*sessions.Session, error) {
	s, ok := f.store[refresh]
	if !ok {
		return nil, nil
	}
	return s, nil
}

func (f *fakeSessionsRepo) DeleteByRefresh(ctx context.Context, refresh string) error {
	delete(f.store, refresh)
	return nil
}

func newAuthRouter(t *testing.T) (*gin.Engine, *AuthHandler) {
	t.Helper()
	cfg := &config.Config{}
	cfg.JWT.Secret = "auth-test-secret-32-bytes-xxxxxx"
	uSvc := users.NewService(newFakeUserRepo())
	sSvc := sessions.NewService(&fakeSessionsRepo{})
	h := NewAuthHandler(cfg, uSvc, sSvc)
	r := gin.New()
	h.Register(r.Group("/"))
	return r, h
}

func postJSON(r http.Handler, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var got map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	return got
}

func TestSignUp_CreatesAccountAndIssuesTokens(t *testing.T) {
	r, _ := newAuthRouter(t)

	w := postJSON(r, "/auth/signup", `{"name":"Ada","email":"ada@example.com","password":"secret-pass"}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	got := decodeBody(t, w)
	assert.NotEmpty(t, got["accessToken"])
	assert.NotEmpty(t, got["refreshToken"])
	assert.Equal(t, float64(900), got["expiresIn"])
	user, ok := got["user"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "ada@example.com", user["email"])
	assert.NotEmpty(t, user["id"])
}

func TestSignUp_DuplicateEmailConflicts(t *testing.T) {
	r, _ := newAuthRouter(t)

	w := postJSON(r, "/auth/signup", `{"name":"Ada","email":"ada@example.com","password":"secret-pass"}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w2 := postJSON(r, "/auth/signup", `{"name":"Other","email":"ada@example.com","password":"secret-pass"}`, nil)
	assert.Equal(t, http.StatusConflict, w2.Code)
}

func TestSignUp_WeakPassword(t *testing.T) {
	r, _ := newAuthRouter(t)

	w := postJSON(r, "/auth/signup", `{"name":"Ada","email":"ada@example.com","password":"short"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSignIn_SuccessAndBadCredentials(t *testing.T) {
	r, _ := newAuthRouter(t)

	w := postJSON(r, "/auth/signup", `{"name":"Ada","email":"ada@example.com","password":"secret-pass"}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w2 := postJSON(r, "/auth/signin", `{"email":"ada@example.com","password":"secret-pass"}`, nil)
	require.Equal(t, http.StatusOK, w2.Code)
	got := decodeBody(t, w2)
	assert.NotEmpty(t, got["accessToken"])
	assert.NotEmpty(t, got["refreshToken"])

	w3 := postJSON(r, "/auth/signin", `{"email":"ada@example.com","password":"wrong-pass"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w3.Code)

	w4 := postJSON(r, "/auth/signin", `{"email":"nobody@example.com","password":"secret-pass"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w4.Code)
}

func TestRefresh_Success(t *testing.T) {
	r, _ := newAuthRouter(t)

	w := postJSON(r, "/auth/signup", `{"name":"Ada","email":"ada@example.com","password":"secret-pass"}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	rt, _ := decodeBody(t, w)["refreshToken"].(string)
	require.NotEmpty(t, rt)

	w2 := postJSON(r, "/auth/refresh", fmt.Sprintf(`{"refreshToken":%q}`, rt), nil)
	require.Equal(t, http.StatusOK, w2.Code)
	got := decodeBody(t, w2)
	if got["accessToken"] == nil {
		t.Fatalf("expected accessToken in response")
	}
}

func TestRefresh_InvalidRefresh(t *testing.T) {
	r, _ := newAuthRouter(t)

	w := postJSON(r, "/auth/refresh", `{"refreshToken":"does-not-exist"}`, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", w.Code)
	}
}

func TestLogout_BlacklistsAccessAndDeletesRefresh(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	sessions.SetBlacklistClient(client)
	defer sessions.SetBlacklistClient(nil)

	r, _ := newAuthRouter(t)

	w := postJSON(r, "/auth/signup", `{"name":"Ada","email":"ada@example.com","password":"secret-pass"}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	got := decodeBody(t, w)
	access, _ := got["accessToken"].(string)
	rt, _ := got["refreshToken"].(string)
	require.NotEmpty(t, access)
	require.NotEmpty(t, rt)

	w2 := postJSON(r, "/auth/logout", fmt.Sprintf(`{"refreshToken":%q}`, rt),
		map[string]string{"Authorization": "Bearer " + access})
	require.Equal(t, http.StatusOK, w2.Code)

	// refresh session is gone
	w3 := postJSON(r, "/auth/refresh", fmt.Sprintf(`{"refreshToken":%q}`, rt), nil)
	assert.Equal(t, http.StatusUnauthorized, w3.Code)

	// access token sits in the blacklist for its remaining TTL
	assert.True(t, m.Exists("blacklist:access:"+access))
}

func TestSSO_InsecureTokenSignsUserIn(t *testing.T) {
	_ = os.Setenv("ALLOW_INSECURE_TOKEN", "true")
	defer os.Unsetenv("ALLOW_INSECURE_TOKEN")

	r, _ := newAuthRouter(t)

	claims := map[string]interface{}{"sub": "sso-sub", "email": "sso@example.com", "name": "Grace"}
	b, _ := json.Marshal(claims)
	idToken := "hdr." + base64.RawURLEncoding.EncodeToString(b) + ".sig"

	w := postJSON(r, "/auth/sso", fmt.Sprintf(`{"idToken":%q}`, idToken), nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeBody(t, w)
	assert.NotEmpty(t, got["accessToken"])
	user, ok := got["user"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "sso@example.com", user["email"])
	assert.Equal(t, "sso-sub", user["sub"])
}

func TestMe_ReturnsCurrentUser(t *testing.T) {
	r, h := newAuthRouter(t)

	w := postJSON(r, "/auth/signup", `{"name":"Ada","email":"ada@example.com","password":"secret-pass"}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	user, _ := decodeBody(t, w)["user"].(map[string]interface{})
	uid, _ := user["id"].(string)
	require.NotEmpty(t, uid)

	// stand-in for the auth middleware: inject verified claims
	r.GET("/api/v1/me", func(c *gin.Context) {
		c.Set("claims", map[string]interface{}{"sub": uid})
	}, h.Me)

	req := httptest.NewRequest("GET", "/api/v1/me", nil)
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)
	require.Equal(t, http.StatusOK, w2.Code)
	got := decodeBody(t, w2)
	me, ok := got["user"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "ada@example.com", me["email"])
}

func TestParseExpFromJWT_VariousFormats(t *testing.T) {
	// float64 exp
	extra := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"s1","exp":1700000000}`))
	tok := "hdr." + extra + ".sig"
	expTime, err := parseExpFromJWT(tok)
	if err != nil {
		t.Fatalf("unexpected error from parseExpFromJWT: %v", err)
	}
	if expTime.Unix() != 1700000000 {
		t.Fatalf("unexpected exp time: %v", expTime.Unix())
	}

	// missing exp
	nopayload := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"s2"}`))
	notok := "hdr." + nopayload + ".sig"
	if _, err := parseExpFromJWT(notok); err == nil {
		t.Fatalf("expected error for missing exp claim")
	}

	// malformed token
	if _, err := parseExpFromJWT("not.a.jwt"); err == nil {
		t.Fatalf("expected error for malformed token")
	}
}
