package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"

	"financeflow/internal/cache"
	"financeflow/internal/core"
	"financeflow/internal/log"
	"financeflow/internal/storage"
)

// ErrNoSession means nobody is logged in, or the session has expired.
var ErrNoSession = errors.New("not logged in")

const userKey = "user"

// AuthAPI is the part of the backend that manages sessions.
type AuthAPI interface {
	Register(ctx context.Context, s core.SignUp) (core.Registration, error)
	Login(ctx context.Context, cred core.Credentials) (core.AuthResult, error)
	Logout(ctx context.Context) error
}

// LocalStore is the persistent key/value store cleared on logout.
type LocalStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Clear(ctx context.Context) error
}

// Resetter drops the session cookies.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Manager tracks who is logged in. The user lives in a session-scoped cache
// that expires with the access token, backed by local storage so a new
// process can pick the session up again.
type Manager struct {
	api    AuthAPI
	store  LocalStore
	jar    Resetter
	cache  cache.Cache[core.User]
	logger *log.Logger
	now    func() time.Time
}

func NewManager(api AuthAPI, store LocalStore, jar Resetter, c cache.Cache[core.User], logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default(log.ComponentSession)
	}
	return &Manager{
		api:    api,
		store:  store,
		jar:    jar,
		cache:  c,
		logger: logger.WithComponent(log.ComponentSession),
		now:    time.Now,
	}
}

// Register creates an account. It does not log in.
func (m *Manager) Register(ctx context.Context, s core.SignUp) (core.User, error) {
	if err := core.Validate(s); err != nil {
		return core.User{}, fmt.Errorf("validate sign-up: %w", err)
	}
	reg, err := m.api.Register(ctx, s)
	if err != nil {
		return core.User{}, fmt.Errorf("register: %w", err)
	}
	if err := m.store.Set(ctx, storage.KeyLastEmail, reg.User.Email); err != nil {
		m.logger.Warn("Failed to remember e-mail", log.FieldError, err)
	}
	m.logger.Info("Account registered", "email", reg.User.Email)
	return reg.User, nil
}

// Login opens a session. The backend sets the session cookie on the jar.
func (m *Manager) Login(ctx context.Context, cred core.Credentials) (core.User, error) {
	if err := core.Validate(cred); err != nil {
		return core.User{}, fmt.Errorf("validate credentials: %w", err)
	}
	res, err := m.api.Login(ctx, cred)
	if err != nil {
		return core.User{}, fmt.Errorf("login: %w", err)
	}

	expires := TokenExpiry(res.AccessToken)
	m.cache.SetUntil(userKey, res.User, expires)

	raw, err := json.Marshal(res.User)
	if err != nil {
		return core.User{}, fmt.Errorf("encode user: %w", err)
	}
	if err := m.store.Set(ctx, storage.KeyUser, string(raw)); err != nil {
		return core.User{}, fmt.Errorf("save user: %w", err)
	}
	if !expires.IsZero() {
		if err := m.store.Set(ctx, storage.KeyTokenExpiry, strconv.FormatInt(expires.Unix(), 10)); err != nil {
			return core.User{}, fmt.Errorf("save token expiry: %w", err)
		}
	}
	if err := m.store.Set(ctx, storage.KeyLastEmail, res.User.Email); err != nil {
		m.logger.Warn("Failed to remember e-mail", log.FieldError, err)
	}

	m.logger.InfoContext(ctx, "Logged in", "email", res.User.Email, "expires_at", expires)
	return res.User, nil
}

// CurrentUser returns the logged-in user, or ErrNoSession.
func (m *Manager) CurrentUser(ctx context.Context) (core.User, error) {
	if u, ok := m.cache.Get(userKey); ok {
		return u, nil
	}

	raw, ok, err := m.store.Get(ctx, storage.KeyUser)
	if err != nil {
		return core.User{}, fmt.Errorf("read user: %w", err)
	}
	if !ok {
		return core.User{}, ErrNoSession
	}

	var expires time.Time
	if v, ok, err := m.store.Get(ctx, storage.KeyTokenExpiry); err == nil && ok {
		if sec, err := strconv.ParseInt(v, 10, 64); err == nil {
			expires = time.Unix(sec, 0)
		}
	}
	if !expires.IsZero() && !expires.After(m.now()) {
		return core.User{}, ErrNoSession
	}

	var u core.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return core.User{}, fmt.Errorf("decode user: %w", err)
	}
	m.cache.SetUntil(userKey, u, expires)
	return u, nil
}

// LastEmail is the e-mail of the most recent login, for prefilling forms.
func (m *Manager) LastEmail(ctx context.Context) string {
	v, _, _ := m.store.Get(ctx, storage.KeyLastEmail)
	return v
}

// Logout ends the session on the backend and then clears local storage,
// cookies and the session cache whatever the backend said. The backend
// error is returned so callers can log it.
func (m *Manager) Logout(ctx context.Context) error {
	apiErr := m.api.Logout(ctx)
	if apiErr != nil {
		m.logger.WarnContext(ctx, "Backend logout failed, clearing local session anyway", log.FieldError, apiErr)
	}

	// Clearing must happen even if ctx is already done.
	clearCtx := context.WithoutCancel(ctx)
	var errs []error
	if err := m.store.Clear(clearCtx); err != nil {
		errs = append(errs, fmt.Errorf("clear local storage: %w", err))
	}
	if m.jar != nil {
		if err := m.jar.Reset(clearCtx); err != nil {
			errs = append(errs, fmt.Errorf("reset cookies: %w", err))
		}
	}
	m.cache.Purge()

	if apiErr != nil {
		errs = append([]error{fmt.Errorf("logout: %w", apiErr)}, errs...)
	}
	if len(errs) == 0 {
		m.logger.InfoContext(ctx, "Logged out")
	}
	return errors.Join(errs...)
}

// TokenExpiry reads the exp claim without verifying the signature. A token
// without a readable exp yields the zero time.
func TokenExpiry(token string) time.Time {
	if token == "" {
		return time.Time{}
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
