package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/ngo-backoffice/config"
	"github.com/oksasatya/ngo-backoffice/internal/application/identity"
	"github.com/oksasatya/ngo-backoffice/internal/application/otp"
	"github.com/oksasatya/ngo-backoffice/internal/application/profile"
	"github.com/oksasatya/ngo-backoffice/internal/container"
	"github.com/oksasatya/ngo-backoffice/internal/domain/entity"
	"github.com/oksasatya/ngo-backoffice/internal/domain/repository/repotest"
	"github.com/oksasatya/ngo-backoffice/internal/infrastructure/sessionbus"
	handlers "github.com/oksasatya/ngo-backoffice/internal/interface/http"
	"github.com/oksasatya/ngo-backoffice/internal/router"
	"github.com/oksasatya/ngo-backoffice/internal/router/modules"
	"github.com/oksasatya/ngo-backoffice/pkg/helpers"
	"github.com/oksasatya/ngo-backoffice/pkg/mailer"
	tpl "github.com/oksasatya/ngo-backoffice/pkg/mailer/templates"
	"github.com/oksasatya/ngo-backoffice/pkg/validation"
)

type jobRecorder struct {
	mu   sync.Mutex
	jobs []mailer.EmailJob
}

func (r *jobRecorder) PublishJSON(ctx context.Context, body any) error {
	job, ok := body.(mailer.EmailJob)
	if !ok {
		return errors.New("unexpected job type")
	}
	r.mu.Lock()
	r.jobs = append(r.jobs, job)
	r.mu.Unlock()
	return nil
}

func (r *jobRecorder) templates() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j.Template)
	}
	return out
}

const testAllowlist = "a@example.com,a2@example.com,b@example.com,admin@example.com,ed@example.com,new@example.com,root@example.com"

type harness struct {
	engine   *gin.Engine
	store    *repotest.Store
	identity *identity.Service
	profiles *profile.Service
	jobs     *jobRecorder
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    json.RawMessage `json:"meta"`
}

func newHarness(t *testing.T, mutate ...func(*config.Config)) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validation.Init()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.Config{
		Env:                    "development",
		OTPTTL:                 10 * time.Minute,
		MailSendEnabled:        true,
		RegisterEmailAllowlist: testAllowlist,
	}
	for _, m := range mutate {
		m(cfg)
	}
	container.SetRedis(rdb)
	container.SetConfig(cfg)

	store := repotest.NewStore()
	bus := sessionbus.New(rdb, nil)
	jwt := helpers.NewJWTManager("access", "refresh", time.Minute, time.Hour)
	idSvc := identity.NewService(store.IdentityRepo(), store.ProfileRepo(), jwt, rdb, bus, nil, time.Hour)
	idSvc.RestrictSignUp = true
	idSvc.Allowlist = cfg.RegisterAllowlist()
	profSvc := profile.NewService(store.ProfileRepo(), nil, nil, "", nil)
	jobs := &jobRecorder{}
	otpSvc := otp.NewService(rdb, jobs, cfg, nil)
	cookies := helpers.NewCookie("", false)
	emails := handlers.NewEmailHandler(jobs, profSvc, nil, nil, cfg)
	admin := handlers.NewAdminHandler(idSvc, profSvc, otpSvc, emails, cookies, nil, cfg)

	reg := router.NewRegistry(gin.New())
	reg.Add(modules.NewAuthModule(handlers.NewAuthHandler(idSvc, cookies, nil), handlers.NewStreamHandler(bus, nil, nil), admin, idSvc))
	reg.Add(modules.NewProfileModule(handlers.NewProfileHandler(profSvc, nil), idSvc))
	reg.Add(modules.NewAdminModule(admin, idSvc, profSvc))
	reg.Add(modules.NewEmailModule(emails, idSvc, profSvc))
	reg.RegisterAll()

	return &harness{engine: reg.Engine, store: store, identity: idSvc, profiles: profSvc, jobs: jobs}
}

func (h *harness) do(t *testing.T, method, path string, body any, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

// seed creates an identity with its profile, bypassing the HTTP layer.
func (h *harness) seed(t *testing.T, username, email string, role entity.Role) *entity.Principal {
	t.Helper()
	p, err := h.identity.SignUp(context.Background(), email, "s3cretpass")
	require.NoError(t, err)
	_, err = h.profiles.Insert(context.Background(), entity.AccountProfile{ID: p.ID, Email: email, Username: username, Role: role})
	require.NoError(t, err)
	return p
}

func (h *harness) token(t *testing.T, email string) string {
	t.Helper()
	w, env := h.do(t, http.MethodPost, "/api/auth/token", map[string]string{"email": email, "password": "s3cretpass"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	return body.AccessToken
}

func (h *harness) sendOTP(t *testing.T, email string) string {
	t.Helper()
	w, env := h.do(t, http.MethodPost, "/api/auth/otp/send", map[string]string{"email": email}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	return body.Code
}

func registerBody(email, username, role, code string) map[string]string {
	return map[string]string{
		"email":            email,
		"username":         username,
		"password":         "s3cretpass",
		"confirm_password": "s3cretpass",
		"role":             role,
		"otp":              code,
	}
}

func TestAuthSessionLifecycle(t *testing.T) {
	h := newHarness(t)

	w, _ := h.do(t, http.MethodPost, "/api/auth/signup", map[string]string{"email": "a@example.com", "password": "s3cretpass"}, "")
	require.Equal(t, http.StatusCreated, w.Code)
	w, _ = h.do(t, http.MethodPost, "/api/auth/signup", map[string]string{"email": "A@example.com", "password": "s3cretpass"}, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	w, _ = h.do(t, http.MethodPost, "/api/auth/signup", map[string]string{"email": "b@example.com", "password": "short"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	access := h.token(t, "a@example.com")
	w, env := h.do(t, http.MethodGet, "/api/auth/session", nil, access)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), "a@example.com")

	w, _ = h.do(t, http.MethodPost, "/api/auth/logout", nil, access)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = h.do(t, http.MethodGet, "/api/auth/session", nil, access)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSignUpOutsideAllowlistIsForbidden(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.RegisterEmailAllowlist = "root@ngo.org" })

	w, _ := h.do(t, http.MethodPost, "/api/auth/signup", map[string]string{"email": "x@example.com", "password": "s3cretpass"}, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = h.do(t, http.MethodPost, "/api/auth/signup", map[string]string{"email": "root@ngo.org", "password": "s3cretpass"}, "")
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestRegistrationClosedWithoutAllowlist(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.RegisterEmailAllowlist = "" })

	w, _ := h.do(t, http.MethodPost, "/api/auth/otp/send", map[string]string{"email": "root@example.com"}, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = h.do(t, http.MethodPost, "/api/auth/signup", map[string]string{"email": "root@example.com", "password": "s3cretpass"}, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = h.do(t, http.MethodPost, "/api/admin/register", registerBody("root@example.com", "rooty", "root", "123456"), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, h.store.IdentityCount())
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	h := newHarness(t)
	w, env := h.do(t, http.MethodGet, "/api/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "route not found", env.Message)
}

func TestTokenSetsCookies(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "admin", "admin@example.com", entity.RoleRoot)

	w, _ := h.do(t, http.MethodPost, "/api/auth/token", map[string]string{"email": "admin@example.com", "password": "s3cretpass"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	names := map[string]bool{}
	for _, c := range w.Result().Cookies() {
		names[c.Name] = c.HttpOnly
	}
	assert.True(t, names[helpers.AccessCookie])
	assert.True(t, names[helpers.RefreshCookie])

	w, _ = h.do(t, http.MethodPost, "/api/auth/token", map[string]string{"email": "admin@example.com", "password": "nope-nope"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefreshRotatesSession(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "admin", "admin@example.com", entity.RoleRoot)

	w, env := h.do(t, http.MethodPost, "/api/auth/token", map[string]string{"email": "admin@example.com", "password": "s3cretpass"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	var first struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &first))

	w, env = h.do(t, http.MethodPost, "/api/auth/refresh", map[string]string{"refresh_token": first.RefreshToken}, "")
	require.Equal(t, http.StatusOK, w.Code)
	var second struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &second))

	w, _ = h.do(t, http.MethodGet, "/api/auth/session", nil, first.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w, _ = h.do(t, http.MethodGet, "/api/auth/session", nil, second.AccessToken)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = h.do(t, http.MethodPost, "/api/auth/refresh", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProfileEndpoints(t *testing.T) {
	h := newHarness(t)
	w, env := h.do(t, http.MethodPost, "/api/auth/signup", map[string]string{"email": "ed@example.com", "password": "s3cretpass"}, "")
	require.Equal(t, http.StatusCreated, w.Code)
	var p entity.Principal
	require.NoError(t, json.Unmarshal(env.Data, &p))
	access := h.token(t, "ed@example.com")

	other := map[string]string{"id": uuid.NewString(), "email": "ed@example.com", "username": "editor"}
	w, _ = h.do(t, http.MethodPost, "/api/profiles", other, access)
	assert.Equal(t, http.StatusForbidden, w.Code)

	own := map[string]string{"id": p.ID, "email": "ed@example.com", "username": "editor", "role": "editor"}
	w, _ = h.do(t, http.MethodPost, "/api/profiles", own, access)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	second := map[string]string{"id": p.ID, "email": "ed@example.com", "username": "editor2"}
	w, env = h.do(t, http.MethodPost, "/api/profiles", second, access)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "principal already has a profile", env.Message)

	w, env = h.do(t, http.MethodGet, "/api/profiles/me", nil, access)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"role":"editor"`)

	w, env = h.do(t, http.MethodGet, "/api/profiles/email?username=editor", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"email":"ed@example.com"}`, string(env.Data))
	w, _ = h.do(t, http.MethodGet, "/api/profiles/email?username=Editor", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = h.do(t, http.MethodGet, "/api/profiles/email", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = h.do(t, http.MethodPut, "/api/profiles/me/avatar", nil, access)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendOTP(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.RegisterEmailAllowlist = "new@example.com" })

	w, _ := h.do(t, http.MethodPost, "/api/auth/otp/send", map[string]string{"email": ""}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = h.do(t, http.MethodPost, "/api/auth/otp/send", map[string]string{"email": "stranger@example.com"}, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	code := h.sendOTP(t, "new@example.com")
	assert.Len(t, code, 6)
	assert.Equal(t, []string{tpl.RegisterOTP}, h.jobs.templates())
}

func TestSendOTPHidesCodeOutsideDevelopment(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.Env = "production" })

	w, env := h.do(t, http.MethodPost, "/api/auth/otp/send", map[string]string{"email": "new@example.com"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, string(env.Data), "code")
}

func TestAdminRegister(t *testing.T) {
	h := newHarness(t)
	code := h.sendOTP(t, "new@example.com")

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	w, _ := h.do(t, http.MethodPost, "/api/admin/register", registerBody("new@example.com", "newbie", "root", wrong), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	mismatch := registerBody("new@example.com", "newbie", "root", code)
	mismatch["confirm_password"] = "different1"
	w, _ = h.do(t, http.MethodPost, "/api/admin/register", mismatch, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := h.do(t, http.MethodPost, "/api/admin/register", registerBody("new@example.com", "newbie", "root", code), "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created entity.AccountProfile
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, entity.RoleRoot, created.Role)
	assert.Contains(t, h.jobs.templates(), tpl.AccountCreated)

	// the code is single use
	w, _ = h.do(t, http.MethodPost, "/api/admin/register", registerBody("new@example.com", "other", "", code), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	code = h.sendOTP(t, "new@example.com")
	w, _ = h.do(t, http.MethodPost, "/api/admin/register", registerBody("new@example.com", "another", "", code), "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAdminRegisterProfileFailureLeavesIdentity(t *testing.T) {
	h := newHarness(t)
	code := h.sendOTP(t, "new@example.com")
	h.store.CreateProfileErr = errors.New("insert failed")

	w, _ := h.do(t, http.MethodPost, "/api/admin/register", registerBody("new@example.com", "newbie", "regular", code), "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	orphans, err := h.identity.Orphans(context.Background())
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, "new@example.com", orphans[0].Email)
}

func TestAdminRegisterCompensates(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.RegisterCompensate = true })
	code := h.sendOTP(t, "new@example.com")
	h.store.CreateProfileErr = errors.New("insert failed")

	w, _ := h.do(t, http.MethodPost, "/api/admin/register", registerBody("new@example.com", "newbie", "", code), "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	orphans, err := h.identity.Orphans(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orphans)
}

func TestAdminLogin(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "admin", "admin@example.com", entity.RoleRoot)

	w, env := h.do(t, http.MethodPost, "/api/admin/login", map[string]string{"username": "admin", "password": "s3cretpass"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		Principal   entity.Principal `json:"principal"`
		AccessToken string           `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, "admin@example.com", body.Principal.Email)
	assert.NotEmpty(t, body.AccessToken)
	assert.NotEmpty(t, w.Result().Cookies())
	assert.Contains(t, h.jobs.templates(), tpl.LoginNotification)

	w, _ = h.do(t, http.MethodGet, "/api/auth/session", nil, body.AccessToken)
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = h.do(t, http.MethodPost, "/api/admin/login", map[string]string{"username": "ghost", "password": "s3cretpass"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid username", env.Message)

	w, env = h.do(t, http.MethodPost, "/api/admin/login", map[string]string{"username": "admin", "password": "nope-nope"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid credentials", env.Message)
}

func TestAdminUsersRequiresAdminProfile(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "root", "root@example.com", entity.RoleRoot)
	h.seed(t, "editor", "ed@example.com", entity.RoleEditor)

	w, _ := h.do(t, http.MethodGet, "/api/admin/users", nil, h.token(t, "ed@example.com"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	root := h.token(t, "root@example.com")
	w, env := h.do(t, http.MethodGet, "/api/admin/users", nil, root)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Meta), `"total":2`)

	w, env = h.do(t, http.MethodGet, "/api/admin/users?role=editor", nil, root)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Meta), `"total":1`)

	w, _ = h.do(t, http.MethodGet, "/api/admin/users?role=bogus", nil, root)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = h.do(t, http.MethodGet, "/api/admin/users/search?q=root", nil, root)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
}

func TestResendWelcomeIsRootOnly(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "root", "root@example.com", entity.RoleRoot)
	ed := h.seed(t, "admin2", "a2@example.com", entity.RoleAdmin)

	w, _ := h.do(t, http.MethodPost, "/api/admin/users/"+ed.ID+"/welcome", nil, h.token(t, "a2@example.com"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	root := h.token(t, "root@example.com")
	w, _ = h.do(t, http.MethodPost, "/api/admin/users/"+ed.ID+"/welcome", nil, root)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, h.jobs.templates(), tpl.AccountCreated)

	w, _ = h.do(t, http.MethodPost, "/api/admin/users/"+uuid.NewString()+"/welcome", nil, root)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStreamForwardsSignOut(t *testing.T) {
	h := newHarness(t)
	p := h.seed(t, "admin", "admin@example.com", entity.RoleRoot)
	access := h.token(t, "admin@example.com")

	srv := httptest.NewServer(h.engine)
	defer srv.Close()

	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer "+access)
	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/auth/session/stream", hdr)
	require.NoError(t, err)
	_ = resp.Body.Close()
	defer func() { _ = conn.Close() }()

	require.NoError(t, h.identity.SignOut(context.Background(), p))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev entity.SessionEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, entity.SessionSignedOut, ev.Type)
	assert.Equal(t, p.ID, ev.UserID)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "%v", err)
}
