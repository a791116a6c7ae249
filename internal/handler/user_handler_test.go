package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"account_service/internal/middleware"
	"account_service/internal/model"
	"account_service/internal/service"
	"account_service/internal/upload"
	"account_service/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// fakeUserService keeps accounts in memory so handler tests can exercise
// full register/login/update/delete flows without a database.
type fakeUserService struct {
	mu      sync.Mutex
	users   map[string]*model.User
	jwtUtil *utils.JWTUtil
	nextID  int
}

func newFakeUserService(jwtUtil *utils.JWTUtil) *fakeUserService {
	return &fakeUserService{users: make(map[string]*model.User), jwtUtil: jwtUtil}
}

func (s *fakeUserService) findByEmail(email string) *model.User {
	for _, u := range s.users {
		if u.Email == email {
			return u
		}
	}
	return nil
}

func (s *fakeUserService) Register(_ context.Context, req model.RegisterRequest, docs model.DocumentFilenames) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findByEmail(req.Email) != nil {
		return nil, service.ErrEmailTaken
	}
	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	s.nextID++
	u := &model.User{
		ID:           fmt.Sprintf("user-%d", s.nextID),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		PhoneNumber:  req.PhoneNumber,
		PasswordHash: hash,
		Passport:     docs.Passport,
		IDImageFront: docs.IDImageFront,
		IDImageBack:  docs.IDImageBack,
		Role:         model.RoleUser,
	}
	s.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (s *fakeUserService) Login(_ context.Context, email, password string) (*model.User, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.findByEmail(email)
	if u == nil {
		return nil, "", service.ErrUserNotFound
	}
	if !utils.CheckPasswordHash(password, u.PasswordHash) {
		return nil, "", service.ErrInvalidCredentials
	}
	token, err := s.jwtUtil.GenerateToken(u.ID, u.Role)
	if err != nil {
		return nil, "", err
	}
	cp := *u
	return &cp, token, nil
}

func (s *fakeUserService) GetProfile(_ context.Context, userID string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, service.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *fakeUserService) apply(u *model.User, req model.UpdateUserRequest, docs model.DocumentFilenames) error {
	if req.FirstName != nil {
		u.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		u.LastName = *req.LastName
	}
	if req.Email != nil {
		u.Email = *req.Email
	}
	if req.PhoneNumber != nil {
		u.PhoneNumber = *req.PhoneNumber
	}
	if req.Password != nil {
		hash, err := utils.HashPassword(*req.Password)
		if err != nil {
			return err
		}
		u.PasswordHash = hash
	}
	if docs.Passport != "" {
		u.Passport = docs.Passport
	}
	if docs.IDImageFront != "" {
		u.IDImageFront = docs.IDImageFront
	}
	if docs.IDImageBack != "" {
		u.IDImageBack = docs.IDImageBack
	}
	return nil
}

func (s *fakeUserService) UpdateSelf(_ context.Context, userID string, req model.UpdateUserRequest, docs model.DocumentFilenames) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, service.ErrUserNotFound
	}
	if err := s.apply(u, req, docs); err != nil {
		return nil, err
	}
	cp := *u
	return &cp, nil
}

func (s *fakeUserService) ListUsers(_ context.Context) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []model.User
	for _, u := range s.users {
		res = append(res, *u)
	}
	return res, nil
}

func (s *fakeUserService) UpdateUserByID(_ context.Context, userID string, req model.AdminUpdateUserRequest, docs model.DocumentFilenames) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, service.ErrUserNotFound
	}
	if err := s.apply(u, req.UpdateUserRequest, docs); err != nil {
		return nil, err
	}
	if req.Role != nil {
		u.Role = *req.Role
	}
	cp := *u
	return &cp, nil
}

func (s *fakeUserService) DeleteUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return service.ErrUserNotFound
	}
	delete(s.users, userID)
	return nil
}

var _ service.UserService = (*fakeUserService)(nil)

func setupRouter(t *testing.T, svc service.UserService, jwtUtil *utils.JWTUtil) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := upload.NewStore(t.TempDir())
	require.NoError(t, err)

	h := NewUserHandler(svc, store)
	router := gin.New()
	api := router.Group("/api/v1")
	h.RegisterUserRoutes(api,
		middleware.JWTAuthMiddleware(jwtUtil),
		middleware.AdminMiddleware(),
		middleware.RateLimitMiddleware(rate.Inf, 0),
	)
	return router
}

// multipartBody builds a multipart request body with form fields and
// optional file fields.
func multipartBody(t *testing.T, fields map[string]string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for field, filename := range files {
		fw, err := w.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte("fake image bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func doRegister(t *testing.T, router *gin.Engine, email string, files map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, map[string]string{
		"firstName":   "Jane",
		"lastName":    "Doe",
		"email":       email,
		"phoneNumber": "+100200300",
		"password":    "password123",
	}, files)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func doLogin(t *testing.T, router *gin.Engine, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	payload, _ := json.Marshal(map[string]string{"email": email, "password": password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRegister(t *testing.T) {
	jwtUtil := utils.NewJWTUtil("test-secret", 1)
	router := setupRouter(t, newFakeUserService(jwtUtil), jwtUtil)

	rec := doRegister(t, router, "jane@example.com", map[string]string{"passport": "passport.png"})

	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Message string     `json:"message"`
		User    model.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "User registered", resp.Message)
	assert.NotEmpty(t, resp.User.ID)
	assert.True(t, strings.HasSuffix(resp.User.Passport, "-passport.png"))

	// The stored hash must never appear in a response.
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestRegister_DuplicateEmail(t *testing.T) {
	jwtUtil := utils.NewJWTUtil("test-secret", 1)
	router := setupRouter(t, newFakeUserService(jwtUtil), jwtUtil)

	assert.Equal(t, http.StatusCreated, doRegister(t, router, "jane@example.com", nil).Code)
	assert.Equal(t, http.StatusConflict, doRegister(t, router, "jane@example.com", nil).Code)
}

func TestRegister_MissingFields(t *testing.T) {
	jwtUtil := utils.NewJWTUtil("test-secret", 1)
	router := setupRouter(t, newFakeUserService(jwtUtil), jwtUtil)

	body, contentType := multipartBody(t, map[string]string{"email": "jane@example.com"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin(t *testing.T) {
	jwtUtil := utils.NewJWTUtil("test-secret", 1)
	router := setupRouter(t, newFakeUserService(jwtUtil), jwtUtil)
	doRegister(t, router, "jane@example.com", nil)

	rec := doLogin(t, router, "jane@example.com", "password123")
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Token string              `json:"token"`
		User  model.LoginUserInfo `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "jane@example.com", resp.User.Email)
	assert.Equal(t, model.RoleUser, resp.User.Role)

	claims, err := jwtUtil.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)

	// Reduced projection: no document fields or hash in the login response.
	assert.NotContains(t, rec.Body.String(), "passport")
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestLogin_UnknownEmail(t *testing.T) {
	jwtUtil := utils.NewJWTUtil("test-secret", 1)
	router := setupRouter(t, newFakeUserService(jwtUtil), jwtUtil)

	assert.Equal(t, http.StatusNotFound, doLogin(t, router, "nobody@example.com", "password123").Code)
}

func TestLogin_WrongPassword(t *testing.T) {
	jwtUtil := utils.NewJWTUtil("test-secret", 1)
	router := setupRouter(t, newFakeUserService(jwtUtil), jwtUtil)
	doRegister(t, router, "jane@example.com", nil)

	assert.Equal(t, http.StatusUnauthorized, doLogin(t, router, "jane@example.com", "wrongpassword").Code)
}

func TestGetMe(t *testing.T) {
	jwtUtil := utils.NewJWTUtil("test-secret", 1)
	svc := newFakeUserService(jwtUtil)
	router := setupRouter(t, svc, jwtUtil)
	doRegister(t, router, "jane@example.com", nil)

	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(doLogin(t, router, "jane@example.com", "password123").Body.Bytes(), &login))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var user model.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, "jane@example.com", user.Email)
}

func TestGetMe_NoToken(t *testing.T) {
	jwtUtil := utils.NewJWTUtil("test-secret", 1)
	router := setupRouter(t, newFakeUserService(jwtUtil), jwtUtil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetMe_InvalidToken(t *testing.T) {
	jwtUtil := utils.NewJWTUtil("test-secret", 1)
	router := setupRouter(t, newFakeUserService(jwtUtil), jwtUtil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdateMe(t *testing.T) {
	jwtUtil := utils.NewJWTUtil("test-secret", 1)
	router := setupRouter(t, newFakeUserService(jwtUtil), jwtUtil)
	doRegister(t, router, "jane@example.com", nil)

	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(doLogin(t, router, "jane@example.com", "password123").Body.Bytes(), &login))

	body, contentType := multipartBody(t, map[string]string{"firstName": "Janet"}, map[string]string{"front": "front.jpg"})
	req := httptest.NewRequest(http.MethodPut, "/api/v1/users/me", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var user model.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, "Janet", user.FirstName)
	assert.Equal(t, "Doe", user.LastName)
	assert.True(t, strings.HasSuffix(user.IDImageFront, "-front.jpg"))
}

func adminToken(t *testing.T, svc *fakeUserService, jwtUtil *utils.JWTUtil) string {
	t.Helper()
	u, err := svc.Register(context.Background(), model.RegisterRequest{
		FirstName: "Root", LastName: "Admin", Email: "admin@example.com",
		PhoneNumber: "+1", Password: "password123",
	}, model.DocumentFilenames{})
	require.NoError(t, err)
	svc.mu.Lock()
	svc.users[u.ID].Role = model.RoleAdmin
	svc.mu.Unlock()
	token, err := jwtUtil.GenerateToken(u.ID, model.RoleAdmin)
	require.NoError(t, err)
	return token
}

func TestListUsers_AdminOnly(t *testing.T) {
	jwtUtil := utils.NewJWTUtil("test-secret", 1)
	svc := newFakeUserService(jwtUtil)
	router := setupRouter(t, svc, jwtUtil)
	doRegister(t, router, "jane@example.com", nil)

	// A regular user is rejected with 403.
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(doLogin(t, router, "jane@example.com", "password123").Body.Bytes(), &login))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// An admin gets the full list.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, svc, jwtUtil))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var users []model.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	assert.Len(t, users, 2)
}

func TestAdminUpdateUser(t *testing.T) {
	jwtUtil := utils.NewJWTUtil("test-secret", 1)
	svc := newFakeUserService(jwtUtil)
	router := setupRouter(t, svc, jwtUtil)

	rec := doRegister(t, router, "jane@example.com", nil)
	var created struct {
		User model.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	body, contentType := multipartBody(t, map[string]string{"role": "admin"}, nil)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/users/"+created.User.ID, body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, svc, jwtUtil))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)
	var user model.User
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &user))
	assert.Equal(t, model.RoleAdmin, user.Role)
}

func TestAdminUpdateUser_NotFound(t *testing.T) {
	jwtUtil := utils.NewJWTUtil("test-secret", 1)
	svc := newFakeUserService(jwtUtil)
	router := setupRouter(t, svc, jwtUtil)

	body, contentType := multipartBody(t, map[string]string{"firstName": "Ghost"}, nil)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/users/missing-id", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, svc, jwtUtil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteUser(t *testing.T) {
	jwtUtil := utils.NewJWTUtil("test-secret", 1)
	svc := newFakeUserService(jwtUtil)
	router := setupRouter(t, svc, jwtUtil)

	rec := doRegister(t, router, "jane@example.com", nil)
	var created struct {
		User model.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	token := adminToken(t, svc, jwtUtil)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/users/"+created.User.ID, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)

	// Deleting again and logging in both hit the missing row.
	req = httptest.NewRequest(http.MethodDelete, "/api/v1/users/"+created.User.ID, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	assert.Equal(t, http.StatusNotFound, doLogin(t, router, "jane@example.com", "password123").Code)
}

func TestDeleteUser_NonAdminForbidden(t *testing.T) {
	jwtUtil := utils.NewJWTUtil("test-secret", 1)
	router := setupRouter(t, newFakeUserService(jwtUtil), jwtUtil)
	doRegister(t, router, "jane@example.com", nil)

	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(doLogin(t, router, "jane@example.com", "password123").Body.Bytes(), &login))

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/users/some-id", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
