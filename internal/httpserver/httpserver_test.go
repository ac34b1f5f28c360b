package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Skotchmaster/catalog_admin/internal/middleware/auth"
	"github.com/Skotchmaster/catalog_admin/internal/models"
	"github.com/Skotchmaster/catalog_admin/internal/repo"
	"github.com/Skotchmaster/catalog_admin/internal/repo/repotest"
	"github.com/Skotchmaster/catalog_admin/internal/service"
	"github.com/Skotchmaster/catalog_admin/internal/transport"
	"github.com/Skotchmaster/catalog_admin/pkg/hash"
	"github.com/Skotchmaster/catalog_admin/pkg/logging"
	"github.com/Skotchmaster/catalog_admin/pkg/tokens"
)

var testSecret = []byte("router-test-secret")

type countingRepo struct {
	service.ProductRepo
	calls atomic.Int64
}

func (r *countingRepo) ListProducts(ctx context.Context) ([]models.Product, error) {
	r.calls.Add(1)
	return r.ProductRepo.ListProducts(ctx)
}

func (r *countingRepo) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	r.calls.Add(1)
	return r.ProductRepo.GetProduct(ctx, id)
}

func (r *countingRepo) CreateProduct(ctx context.Context, p *models.Product) (*models.Product, error) {
	r.calls.Add(1)
	return r.ProductRepo.CreateProduct(ctx, p)
}

func (r *countingRepo) PatchProduct(ctx context.Context, id uuid.UUID, req transport.ProductPatch) (*models.Product, error) {
	r.calls.Add(1)
	return r.ProductRepo.PatchProduct(ctx, id, req)
}

func (r *countingRepo) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	r.calls.Add(1)
	return r.ProductRepo.DeleteProduct(ctx, id)
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("connection refused") }

type testServer struct {
	e      *echo.Echo
	repo   *countingRepo
	issuer *tokens.Issuer
}

func newTestServer(t *testing.T, webDir string) *testServer {
	t.Helper()

	gr := &repo.GormRepo{DB: repotest.NewSQLite(t)}
	cr := &countingRepo{ProductRepo: gr}
	iss := tokens.NewIssuer(testSecret, 0)

	e := echo.New()
	Register(e, &Deps{
		AuthHandler: &AuthHTTP{Svc: &service.AuthService{
			Repo:   gr,
			Tokens: iss,
			Hasher: hash.Hasher{Cost: bcrypt.MinCost},
		}},
		CatalogHandler: &CatalogHTTP{Svc: &service.CatalogService{Repo: cr}},
		Guard:          auth.NewGuard(auth.NewAuthenticator(iss)),
		DB:             gr,
		WebDir:         webDir,
	})
	return &testServer{e: e, repo: cr, issuer: iss}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) token(t *testing.T) string {
	t.Helper()
	tok, _, err := s.issuer.Issue(uuid.NewString(), "admin@example.com")
	require.NoError(t, err)
	return tok
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type productEnvelope struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Product models.Product `json:"product"`
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rec)["error"]
}

func TestSignupLoginAndCrud(t *testing.T) {
	s := newTestServer(t, "")

	rec := s.do(t, http.MethodPost, "/auth/signup", "", map[string]string{
		"name": "Ann", "email": "Ann@Example.com ", "password": "secret-pass",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	signup := decode[struct {
		Message string                 `json:"message"`
		User    transport.UserResponse `json:"user"`
	}](t, rec)
	assert.Equal(t, "ann@example.com", signup.User.Email)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "ann@example.com", "password": "secret-pass",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	login := decode[struct {
		Token string                 `json:"token"`
		User  transport.UserResponse `json:"user"`
	}](t, rec)
	require.NotEmpty(t, login.Token)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.SessionCookie, cookies[0].Name)
	assert.Equal(t, login.Token, cookies[0].Value)
	assert.Equal(t, signup.User.ID, login.User.ID)
	tok := login.Token

	rec = s.do(t, http.MethodPost, "/products", tok, map[string]any{
		"title": "Lamp", "price": 19.5, "category": "home",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[productEnvelope](t, rec)
	assert.True(t, created.Success)
	assert.True(t, created.Product.InStock)
	id := created.Product.ID.String()

	rec = s.do(t, http.MethodGet, "/products", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]models.Product](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "Lamp", list[0].Title)

	rec = s.do(t, http.MethodPut, "/products/"+id, tok, map[string]any{"price": 25.0})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[productEnvelope](t, rec)
	assert.Equal(t, "Product updated successfully", updated.Message)
	assert.Equal(t, 25.0, updated.Product.Price)
	assert.Equal(t, "Lamp", updated.Product.Title)

	rec = s.do(t, http.MethodPatch, "/products/"+id, tok, map[string]any{"inStock": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, decode[productEnvelope](t, rec).Product.InStock)

	rec = s.do(t, http.MethodGet, "/products/"+id, tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[productEnvelope](t, rec)
	assert.Equal(t, 25.0, got.Product.Price)
	assert.False(t, got.Product.InStock)

	rec = s.do(t, http.MethodDelete, "/products/"+id, tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Product deleted successfully", decode[productEnvelope](t, rec).Message)

	rec = s.do(t, http.MethodGet, "/products/"+id, tok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Product not found", errorMessage(t, rec))

	rec = s.do(t, http.MethodDelete, "/products/"+id, tok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListEmptyIsArray(t *testing.T) {
	s := newTestServer(t, "")

	rec := s.do(t, http.MethodGet, "/products", s.token(t), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestProtectedRoutesRejectWithoutStoreAccess(t *testing.T) {
	s := newTestServer(t, "")
	id := uuid.NewString()

	routes := []struct {
		method, path string
	}{
		{http.MethodGet, "/products"},
		{http.MethodPost, "/products"},
		{http.MethodGet, "/products/" + id},
		{http.MethodPut, "/products/" + id},
		{http.MethodPatch, "/products/" + id},
		{http.MethodDelete, "/products/" + id},
	}

	for _, r := range routes {
		t.Run(r.method+" "+r.path, func(t *testing.T) {
			rec := s.do(t, r.method, r.path, "", nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "No token provided", errorMessage(t, rec))

			rec = s.do(t, r.method, r.path, "not-a-jwt", nil)
			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.Equal(t, "Invalid or expired token", errorMessage(t, rec))
		})
	}

	assert.Zero(t, s.repo.calls.Load())
}

func TestTokenFromOtherSecretIsForbidden(t *testing.T) {
	s := newTestServer(t, "")
	foreign, _, err := tokens.NewIssuer([]byte("someone-else"), 0).Issue("u", "x@example.com")
	require.NoError(t, err)

	rec := s.do(t, http.MethodGet, "/products", foreign, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, s.repo.calls.Load())
}

func TestMalformedIDNeverReachesStore(t *testing.T) {
	s := newTestServer(t, "")
	tok := s.token(t)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		rec := s.do(t, method, "/products/not-an-id", tok, map[string]any{"price": 1})
		assert.Equal(t, http.StatusBadRequest, rec.Code, method)
		assert.Equal(t, "Invalid Product ID", errorMessage(t, rec))
	}
	assert.Zero(t, s.repo.calls.Load())
}

func TestCreateValidation(t *testing.T) {
	s := newTestServer(t, "")
	tok := s.token(t)

	cases := map[string]string{
		"missing title":    `{"price": 1, "category": "c"}`,
		"missing price":    `{"title": "t", "category": "c"}`,
		"missing category": `{"title": "t", "price": 1}`,
		"negative price":   `{"title": "t", "price": -1, "category": "c"}`,
		"broken json":      `{"title":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/products", tok, body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.NotEmpty(t, errorMessage(t, rec))
		})
	}

	rec := s.do(t, http.MethodPost, "/products", tok, `{"title": "Free", "price": 0, "category": "promo"}`)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestPatchRejectsUnknownFields(t *testing.T) {
	s := newTestServer(t, "")
	tok := s.token(t)

	rec := s.do(t, http.MethodPost, "/products", tok, map[string]any{"title": "Mug", "price": 4, "category": "kitchen"})
	require.Equal(t, http.StatusCreated, rec.Code)
	prod := decode[productEnvelope](t, rec).Product

	for _, body := range []string{
		`{"id": "` + uuid.NewString() + `"}`,
		`{"createdAt": "2020-01-01T00:00:00Z"}`,
		`{"price": 5, "owner": "bob"}`,
		``,
	} {
		rec = s.do(t, http.MethodPut, "/products/"+prod.ID.String(), tok, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}

	rec = s.do(t, http.MethodPut, "/products/"+prod.ID.String(), tok, map[string]any{"title": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/products/"+prod.ID.String(), tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stored := decode[productEnvelope](t, rec).Product
	assert.Equal(t, prod.ID, stored.ID)
	assert.Equal(t, 4.0, stored.Price)
	assert.Equal(t, "Mug", stored.Title)
}

func TestPatchUnknownProduct(t *testing.T) {
	s := newTestServer(t, "")

	rec := s.do(t, http.MethodPut, "/products/"+uuid.NewString(), s.token(t), map[string]any{"price": 2})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthErrors(t *testing.T) {
	s := newTestServer(t, "")

	rec := s.do(t, http.MethodPost, "/auth/signup", "", map[string]string{"email": "a@b.c"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "All fields required", errorMessage(t, rec))

	user := map[string]string{"name": "Bo", "email": "bo@example.com", "password": "pw-123456"}
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/auth/signup", "", user).Code)

	rec = s.do(t, http.MethodPost, "/auth/signup", "", user)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "User already exists", errorMessage(t, rec))

	rec = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "nobody@example.com", "password": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "bo@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", errorMessage(t, rec))

	rec = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "bo@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, "")

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health/live", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health/ready", "", nil).Code)

	e := echo.New()
	Register(e, &Deps{
		AuthHandler:    &AuthHTTP{},
		CatalogHandler: &CatalogHTTP{},
		Guard:          auth.NewGuard(auth.NewAuthenticator(tokens.NewIssuer(testSecret, 0))),
		DB:             downPinger{},
	})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"error":"database unavailable"}`, rec.Body.String())
}

func TestPages(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>app</html>"), 0o644))
	s := newTestServer(t, dir)

	page := func(path, cookie string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if cookie != "" {
			req.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: cookie})
		}
		rec := httptest.NewRecorder()
		s.e.ServeHTTP(rec, req)
		return rec
	}

	rec := page("/dashboard/products", "")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, auth.LoginPath, rec.Header().Get(echo.HeaderLocation))

	rec = page("/dashboard/products", s.token(t))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "app")

	rec = page("/login", s.token(t))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, auth.DashboardPath, rec.Header().Get(echo.HeaderLocation))

	rec = page("/login", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	for _, path := range []string{"/signup", "/edit/" + uuid.NewString(), "/products/" + uuid.NewString() + "/view"} {
		rec = page(path, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "app", path)
	}
}

func TestPagesWithoutBundle(t *testing.T) {
	s := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "page bundle not configured", errorMessage(t, rec))
}

func TestAuthRateLimitKeysOnSocketAddress(t *testing.T) {
	s := newTestServer(t, "")
	e := echo.New()
	Register(e, &Deps{
		AuthHandler:    &AuthHTTP{Svc: &service.AuthService{}},
		CatalogHandler: &CatalogHTTP{},
		Guard:          auth.NewGuard(auth.NewAuthenticator(s.issuer)),
		AuthRateLimit:  0.5,
	})

	codes := map[int]int{}
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(`{}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set(echo.HeaderXForwardedFor, fmt.Sprintf("1.2.3.%d", i))
		req.Header.Set(echo.HeaderXRealIP, fmt.Sprintf("4.5.6.%d", i))
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		codes[rec.Code]++
	}
	assert.Equal(t, 1, codes[http.StatusBadRequest])
	assert.Equal(t, 19, codes[http.StatusTooManyRequests])
}

func TestUseCommonTrustsOnlySocketAddress(t *testing.T) {
	e := echo.New()
	UseCommon(e, logging.Discard())
	e.GET("/ip", func(c echo.Context) error { return c.String(http.StatusOK, c.RealIP()) })

	req := httptest.NewRequest(http.MethodGet, "/ip", nil)
	req.Header.Set(echo.HeaderXForwardedFor, "1.2.3.4")
	req.RemoteAddr = "10.0.0.9:1234"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "10.0.0.9", rec.Body.String())
}

func TestUseCommonLogsPanics(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler
	UseCommon(e, logging.NewWithWriter(&buf, "info"))
	e.GET("/boom", func(c echo.Context) error { panic("kaboom") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)
	var last map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &last))
	assert.Equal(t, "request completed", last["msg"])
	assert.Equal(t, "ERROR", last["level"])
	assert.EqualValues(t, 500, last["status"])
}

func TestLoginCookieFollowsScheme(t *testing.T) {
	s := newTestServer(t, "")
	user := map[string]string{"name": "Cy", "email": "cy@example.com", "password": "pw-123456"}
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/auth/signup", "", user).Code)

	login := func(proto string) *http.Cookie {
		req := httptest.NewRequest(http.MethodPost, "/auth/login",
			bytes.NewBufferString(`{"email":"cy@example.com","password":"pw-123456"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		if proto != "" {
			req.Header.Set(echo.HeaderXForwardedProto, proto)
		}
		rec := httptest.NewRecorder()
		s.e.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		return cookies[0]
	}

	assert.False(t, login("").Secure)
	assert.True(t, login("https").Secure)
}
