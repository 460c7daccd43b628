package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"pbgui-console/internal/database"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeUsers is an in-memory UserStore and SeedRepository
type fakeUsers struct {
	users  map[string]*database.User
	codes  map[int64][]string
	nextID int64
	err    error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[string]*database.User{}, codes: map[int64][]string{}}
}

func (f *fakeUsers) GetUserByUsername(ctx context.Context, username string) (*database.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.users[username], nil
}

func (f *fakeUsers) GetAccessCodes(ctx context.Context, username string) ([]string, error) {
	user := f.users[username]
	if user == nil {
		return nil, nil
	}
	return f.codes[user.ID], nil
}

func (f *fakeUsers) CreateUser(ctx context.Context, user *database.User) error {
	f.nextID++
	user.ID = f.nextID
	f.users[user.Username] = user
	return nil
}

func (f *fakeUsers) GrantAccessCodes(ctx context.Context, userID int64, codes []string) error {
	f.codes[userID] = append(f.codes[userID], codes...)
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeUsers) {
	t.Helper()
	users := newFakeUsers()
	svc, err := NewService(users, Config{JWTSecret: "test-secret", BcryptCost: 4}, nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	err = SeedUsers(context.Background(), users, svc.GetPasswordManager(), []SeedUser{
		{Username: "admin", Password: "123456", RealName: "Admin", Roles: []string{"admin"}, HomePath: "/workspace",
			Codes: []string{"AC_100010", "AC_100020"}},
		{Username: "jack", Password: "123456", RealName: "Jack", Roles: []string{"user"}},
	})
	if err != nil {
		t.Fatalf("SeedUsers failed: %v", err)
	}
	return svc, users
}

// ============================================================================
// PASSWORDS AND TOKENS
// ============================================================================

func TestPasswordManager(t *testing.T) {
	pm := NewPasswordManager(4)

	hash, err := pm.HashPassword("123456")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if !pm.VerifyPassword("123456", hash) {
		t.Error("Expected password to verify")
	}
	if pm.VerifyPassword("654321", hash) {
		t.Error("Expected wrong password to be rejected")
	}

	long := make([]byte, MaxPasswordLength+1)
	if _, err := pm.HashPassword(string(long)); err == nil {
		t.Error("Expected error for over-long password")
	}
}

func TestJWTRoundTrip(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)
	token, err := m.GenerateAccessToken(UserClaims{UserID: 7, Username: "vben", Roles: []string{"super"}})
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	claims, err := m.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateAccessToken failed: %v", err)
	}
	if claims.Username != "vben" || claims.UserID != 7 {
		t.Errorf("Expected vben/7, got %s/%d", claims.Username, claims.UserID)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "super" {
		t.Errorf("Expected roles [super], got %v", claims.Roles)
	}
	if claims.ID == "" {
		t.Error("Expected token id to be set")
	}
}

func TestJWTRejections(t *testing.T) {
	token, _ := NewJWTManager("secret", time.Hour).GenerateAccessToken(UserClaims{Username: "vben"})
	if _, err := NewJWTManager("other", time.Hour).ValidateAccessToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for wrong secret, got %v", err)
	}

	expired, _ := NewJWTManager("secret", -time.Minute).GenerateAccessToken(UserClaims{Username: "vben"})
	if _, err := NewJWTManager("secret", time.Hour).ValidateAccessToken(expired); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Expected ErrTokenExpired, got %v", err)
	}

	if _, err := NewJWTManager("secret", time.Hour).ValidateAccessToken("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for garbage, got %v", err)
	}
}

func TestMemoryRevocationListExpires(t *testing.T) {
	now := time.Now()
	list := NewMemoryRevocationList()
	list.now = func() time.Time { return now }
	ctx := context.Background()

	if err := list.Revoke(ctx, "abc", now.Add(time.Minute)); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if revoked, _ := list.IsRevoked(ctx, "abc"); !revoked {
		t.Error("Expected token to be revoked")
	}

	now = now.Add(2 * time.Minute)
	if revoked, _ := list.IsRevoked(ctx, "abc"); revoked {
		t.Error("Expected revocation to lapse after expiry")
	}
}

// ============================================================================
// SERVICE
// ============================================================================

func TestNewServiceRequiresSecret(t *testing.T) {
	if _, err := NewService(newFakeUsers(), Config{}, nil); err == nil {
		t.Error("Expected error without JWT secret")
	}
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	resp, err := svc.Login(ctx, LoginRequest{Username: "admin", Password: "123456"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	claims, err := svc.GetJWTManager().ValidateAccessToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("Issued token does not validate: %v", err)
	}
	if claims.Username != "admin" || len(claims.Roles) != 1 || claims.Roles[0] != "admin" {
		t.Errorf("Expected admin claims, got %+v", claims.UserClaims)
	}

	tests := []struct {
		name string
		req  LoginRequest
	}{
		{"wrong password", LoginRequest{Username: "admin", Password: "nope"}},
		{"unknown user", LoginRequest{Username: "ghost", Password: "123456"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(ctx, tt.req)
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("Expected ErrInvalidCredentials, got %v", err)
			}
		})
	}
}

func TestLoginStoreFailure(t *testing.T) {
	svc, users := newTestService(t)
	users.err = errors.New("db down")

	_, err := svc.Login(context.Background(), LoginRequest{Username: "admin", Password: "123456"})
	if err == nil || errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Expected wrapped store error, got %v", err)
	}
}

func TestUserInfoAndCodes(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	info, err := svc.UserInfo(ctx, "admin")
	if err != nil {
		t.Fatalf("UserInfo failed: %v", err)
	}
	if info.RealName != "Admin" || info.HomePath != "/workspace" {
		t.Errorf("Expected Admin with /workspace, got %+v", info)
	}

	if _, err := svc.UserInfo(ctx, "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}

	codes, err := svc.AccessCodes(ctx, "admin")
	if err != nil {
		t.Fatalf("AccessCodes failed: %v", err)
	}
	if len(codes) != 2 {
		t.Errorf("Expected 2 codes, got %v", codes)
	}

	codes, err = svc.AccessCodes(ctx, "jack")
	if err != nil {
		t.Fatalf("AccessCodes failed: %v", err)
	}
	if codes == nil || len(codes) != 0 {
		t.Errorf("Expected empty non-nil codes, got %#v", codes)
	}
}

func TestSeedUsersIsIdempotent(t *testing.T) {
	svc, users := newTestService(t)
	before := users.users["admin"].PasswordHash

	err := SeedUsers(context.Background(), users, svc.GetPasswordManager(), []SeedUser{
		{Username: "admin", Password: "changed", Roles: []string{"admin"}},
	})
	if err != nil {
		t.Fatalf("SeedUsers failed: %v", err)
	}
	if users.users["admin"].PasswordHash != before {
		t.Error("Expected existing password to be kept")
	}
	if len(users.users) != 2 {
		t.Errorf("Expected 2 users, got %d", len(users.users))
	}
}

// ============================================================================
// MIDDLEWARE AND HANDLERS
// ============================================================================

func setupRouter(svc *Service) *gin.Engine {
	router := gin.New()
	h := NewHandlers(svc, nil)
	router.POST("/api/auth/login", h.Login)

	protected := router.Group("/api")
	protected.Use(Middleware(svc.GetJWTManager(), svc.GetRevocationList()))
	protected.POST("/auth/logout", h.Logout)
	protected.GET("/auth/codes", h.Codes)
	protected.GET("/user/info", h.UserInfo)
	protected.GET("/admin-only", RequireRole("admin", "super"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router
}

func login(t *testing.T, router *gin.Engine, username string) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		jsonBody(t, map[string]string{"username": username, "password": "123456"}))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200 on login, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Code int           `json:"code"`
		Data LoginResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode login response: %v", err)
	}
	if resp.Code != 0 || resp.Data.AccessToken == "" {
		t.Fatalf("Expected code 0 with a token, got %s", w.Body.String())
	}
	return resp.Data.AccessToken
}

func jsonBody(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Failed to marshal body: %v", err)
	}
	return bytes.NewReader(data)
}

func do(router *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestMiddlewareRejectsMissingOrMalformedHeader(t *testing.T) {
	svc, _ := newTestService(t)
	router := setupRouter(svc)

	w := do(router, http.MethodGet, "/api/user/info", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without header, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/user/info", nil)
	req.Header.Set("Authorization", "Token abc")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 for malformed header, got %d", w.Code)
	}
}

func TestLoginValidation(t *testing.T) {
	svc, _ := newTestService(t)
	router := setupRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", jsonBody(t, map[string]string{"username": "admin"}))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/auth/login",
		jsonBody(t, map[string]string{"username": "admin", "password": "bad"}))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
}

func TestUserInfoEndpoint(t *testing.T) {
	svc, _ := newTestService(t)
	router := setupRouter(svc)
	token := login(t, router, "admin")

	w := do(router, http.MethodGet, "/api/user/info", token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var resp struct {
		Data UserInfo `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if resp.Data.Username != "admin" || resp.Data.Roles[0] != "admin" {
		t.Errorf("Expected admin profile, got %+v", resp.Data)
	}

	// websocket clients pass the token as a query parameter
	w = do(router, http.MethodGet, "/api/user/info?token="+token, "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200 with query token, got %d", w.Code)
	}
}

func TestRequireRole(t *testing.T) {
	svc, _ := newTestService(t)
	router := setupRouter(svc)

	if w := do(router, http.MethodGet, "/api/admin-only", login(t, router, "admin")); w.Code != http.StatusOK {
		t.Errorf("Expected status 200 for admin, got %d", w.Code)
	}
	if w := do(router, http.MethodGet, "/api/admin-only", login(t, router, "jack")); w.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 for user, got %d", w.Code)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	svc, _ := newTestService(t)
	router := setupRouter(svc)
	token := login(t, router, "admin")

	if w := do(router, http.MethodPost, "/api/auth/logout", token); w.Code != http.StatusOK {
		t.Fatalf("Expected status 200 on logout, got %d", w.Code)
	}

	w := do(router, http.MethodGet, "/api/auth/codes", token)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected status 401 after logout, got %d", w.Code)
	}
	var resp map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["error"] != ErrSessionRevoked.Code {
		t.Errorf("Expected %s, got %s", ErrSessionRevoked.Code, resp["error"])
	}

	// a fresh login still works
	if w := do(router, http.MethodGet, "/api/auth/codes", login(t, router, "admin")); w.Code != http.StatusOK {
		t.Errorf("Expected status 200 for new session, got %d", w.Code)
	}
}
