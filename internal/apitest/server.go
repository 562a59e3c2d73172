// Package apitest is an in-memory implementation of the finance backend's
// HTTP contract. It counts hits per route and can be told to fail specific
// routes, which is what the dashboard's refresh tests assert against.
package apitest

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"

	"financeflow/internal/core"
	"financeflow/internal/log"
)

// BasePath is where the user-scoped API is mounted.
const BasePath = "/api/v1/users"

const sessionCookie = "accessToken"

var signingKey = []byte("apitest-signing-key")

// Route names used by Hits, Fail and Reject.
const (
	RouteRegister      = "POST /register"
	RouteLogin         = "POST /login"
	RouteLogout        = "POST /logout"
	RouteListBudgets   = "GET /budgets"
	RouteCreateBudget  = "POST /budgets"
	RouteUpdateBudget  = "PUT /budgets/{id}"
	RouteDeleteBudget  = "DELETE /budgets/{id}"
	RouteListExpenses  = "GET /expenses"
	RouteCreateExpense = "POST /expenses"
	RouteUpdateExpense = "PUT /expenses/{id}"
	RouteDeleteExpense = "DELETE /expenses/{id}"
	RouteOverview      = "GET /overview"
	RouteDetailed      = "GET /detailed"
)

type failure struct {
	status  int
	message string
	delay   time.Duration
}

type Server struct {
	*httptest.Server
	Store *Store

	// Now is the clock used for report periods and token expiry.
	Now func() time.Time
	// TokenTTL is the lifetime of issued access tokens.
	TokenTTL time.Duration

	mu             sync.Mutex
	hits           map[string]int
	failures       map[string]failure
	requireSession bool
	requestIDs     []string
}

// NewServer starts a fake backend. Call Close when done.
func NewServer() *Server {
	s := &Server{
		Store:    NewStore(),
		Now:      time.Now,
		TokenTTL: 15 * time.Minute,
		hits:     map[string]int{},
		failures: map[string]failure{},
	}
	s.Server = httptest.NewServer(s.Router(log.Discard()))
	return s
}

// BaseURL is the value to hand to api.New.
func (s *Server) BaseURL() string {
	return s.URL + BasePath
}

func (s *Server) Router(logger *log.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(log.Middleware(logger.WithComponent(log.ComponentFakeAPI)))
	r.Route(BasePath, func(r chi.Router) {
		s.handle(r, RouteRegister, s.register)
		s.handle(r, RouteLogin, s.login)
		s.handle(r, RouteLogout, s.logout)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			s.handle(r, RouteListBudgets, s.listBudgets)
			s.handle(r, RouteCreateBudget, s.createBudget)
			s.handle(r, RouteUpdateBudget, s.updateBudget)
			s.handle(r, RouteDeleteBudget, s.deleteBudget)
			s.handle(r, RouteListExpenses, s.listExpenses)
			s.handle(r, RouteCreateExpense, s.createExpense)
			s.handle(r, RouteUpdateExpense, s.updateExpense)
			s.handle(r, RouteDeleteExpense, s.deleteExpense)
			s.handle(r, RouteOverview, s.overview)
			s.handle(r, RouteDetailed, s.detailed)
		})
	})
	return r
}

func (s *Server) handle(r chi.Router, route string, h http.HandlerFunc) {
	method, pattern, _ := strings.Cut(route, " ")
	r.Method(method, pattern, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s.mu.Lock()
		s.hits[route]++
		s.requestIDs = append(s.requestIDs, req.Header.Get("X-Request-ID"))
		f, failing := s.failures[route]
		s.mu.Unlock()

		if failing {
			if f.delay > 0 {
				select {
				case <-time.After(f.delay):
				case <-req.Context().Done():
					return
				}
			}
			if f.status != 0 {
				respond(w, f.status, false, f.message, nil)
				return
			}
			if f.message != "" {
				respond(w, http.StatusOK, false, f.message, nil)
				return
			}
		}
		h(w, req)
	}))
}

// Hits returns how many requests reached route.
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

// TotalHits counts every request across routes.
func (s *Server) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.hits {
		n += v
	}
	return n
}

func (s *Server) ResetHits() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits = map[string]int{}
	s.requestIDs = nil
}

// RequestIDs returns the X-Request-ID headers seen, in arrival order.
func (s *Server) RequestIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requestIDs...)
}

// Fail makes route answer with the given non-2xx status.
func (s *Server) Fail(route string, status int) {
	s.setFailure(route, failure{status: status, message: http.StatusText(status)})
}

// Reject makes route answer 200 with success=false and message.
func (s *Server) Reject(route, message string) {
	s.setFailure(route, failure{message: message})
}

// Stall delays route by d before serving it normally.
func (s *Server) Stall(route string, d time.Duration) {
	s.setFailure(route, failure{delay: d})
}

// Heal removes any failure configured on route.
func (s *Server) Heal(route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, route)
}

func (s *Server) setFailure(route string, f failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = f
}

// RequireSession makes data routes answer 401 without a session cookie.
func (s *Server) RequireSession(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requireSession = on
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		required := s.requireSession
		s.mu.Unlock()
		if required {
			c, err := r.Cookie(sessionCookie)
			if err != nil {
				respond(w, http.StatusUnauthorized, false, "Unauthorized request", nil)
				return
			}
			_, err = jwt.Parse(c.Value, func(*jwt.Token) (any, error) { return signingKey, nil },
				jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
				jwt.WithTimeFunc(s.Now))
			if err != nil {
				respond(w, http.StatusUnauthorized, false, "Invalid access token", nil)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func respond(w http.ResponseWriter, status int, success bool, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": success,
		"message": message,
		"data":    data,
	})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respond(w, http.StatusBadRequest, false, "Malformed request body", nil)
		return false
	}
	if err := core.Validate(dst); err != nil {
		respond(w, http.StatusBadRequest, false, err.Error(), nil)
		return false
	}
	return true
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var in core.SignUp
	if !decode(w, r, &in) {
		return
	}
	user, ok := s.Store.Register(in, s.Now())
	if !ok {
		respond(w, http.StatusConflict, false, "User already exists", nil)
		return
	}
	respond(w, http.StatusCreated, true, "User registered successfully",
		core.Registration{User: user, Message: "User registered successfully"})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var in core.Credentials
	if !decode(w, r, &in) {
		return
	}
	user, ok := s.Store.Authenticate(in)
	if !ok {
		respond(w, http.StatusUnauthorized, false, "Invalid user credentials", nil)
		return
	}
	now := s.Now()
	access, err := s.token(user, now, s.TokenTTL)
	if err != nil {
		respond(w, http.StatusInternalServerError, false, "Could not issue token", nil)
		return
	}
	refresh, err := s.token(user, now, 24*time.Hour)
	if err != nil {
		respond(w, http.StatusInternalServerError, false, "Could not issue token", nil)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: access, Path: "/", HttpOnly: true})
	http.SetCookie(w, &http.Cookie{Name: "refreshToken", Value: refresh, Path: "/", HttpOnly: true})
	respond(w, http.StatusOK, true, "User logged in successfully",
		core.AuthResult{User: user, AccessToken: access, RefreshToken: refresh})
}

func (s *Server) token(user core.User, now time.Time, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   string(user.ID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	for _, name := range []string{sessionCookie, "refreshToken"} {
		http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1})
	}
	respond(w, http.StatusOK, true, "User logged out", map[string]string{"message": "User logged out"})
}

func (s *Server) listBudgets(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, true, "Budgets fetched", s.Store.Budgets())
}

func (s *Server) createBudget(w http.ResponseWriter, r *http.Request) {
	var in core.BudgetDraft
	if !decode(w, r, &in) {
		return
	}
	respond(w, http.StatusCreated, true, "Budget created", s.Store.CreateBudget(in))
}

func (s *Server) updateBudget(w http.ResponseWriter, r *http.Request) {
	var in core.BudgetDraft
	if !decode(w, r, &in) {
		return
	}
	b, ok := s.Store.UpdateBudget(core.ID(chi.URLParam(r, "id")), in)
	if !ok {
		respond(w, http.StatusNotFound, false, "Budget not found", nil)
		return
	}
	respond(w, http.StatusOK, true, "Budget updated", b)
}

func (s *Server) deleteBudget(w http.ResponseWriter, r *http.Request) {
	if !s.Store.DeleteBudget(core.ID(chi.URLParam(r, "id"))) {
		respond(w, http.StatusNotFound, false, "Budget not found", nil)
		return
	}
	respond(w, http.StatusOK, true, "Budget deleted", map[string]string{"message": "Budget deleted"})
}

func (s *Server) listExpenses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	f, ok := filterFrom(w, q.Get("type"), q.Get("category"), q.Get("startDate"), q.Get("endDate"))
	if !ok {
		return
	}
	respond(w, http.StatusOK, true, "Expenses fetched", s.Store.ListExpenses(f, page, limit))
}

func (s *Server) createExpense(w http.ResponseWriter, r *http.Request) {
	var in core.ExpenseDraft
	if !decode(w, r, &in) {
		return
	}
	respond(w, http.StatusCreated, true, "Expense created", s.Store.CreateExpense(in))
}

func (s *Server) updateExpense(w http.ResponseWriter, r *http.Request) {
	var in core.ExpenseDraft
	if !decode(w, r, &in) {
		return
	}
	e, ok := s.Store.UpdateExpense(core.ID(chi.URLParam(r, "id")), in)
	if !ok {
		respond(w, http.StatusNotFound, false, "Expense not found", nil)
		return
	}
	respond(w, http.StatusOK, true, "Expense updated", e)
}

func (s *Server) deleteExpense(w http.ResponseWriter, r *http.Request) {
	if !s.Store.DeleteExpense(core.ID(chi.URLParam(r, "id"))) {
		respond(w, http.StatusNotFound, false, "Expense not found", nil)
		return
	}
	respond(w, http.StatusOK, true, "Expense deleted", map[string]string{"message": "Expense deleted"})
}

func (s *Server) overview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, ok := filterFrom(w, "", "", q.Get("startDate"), q.Get("endDate"))
	if !ok {
		return
	}
	respond(w, http.StatusOK, true, "Overview fetched", s.Store.Overview(f))
}

func (s *Server) detailed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	period, err := core.ParsePeriod(q.Get("period"))
	if err != nil {
		respond(w, http.StatusBadRequest, false, "Invalid period", nil)
		return
	}
	now := s.Now().UTC()
	var from, to time.Time
	switch period {
	case core.PeriodYear:
		from = time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		to = from.AddDate(1, 0, 0).Add(-time.Nanosecond)
	case core.PeriodCustom:
		start, err1 := core.ParseDate(q.Get("startDate"))
		end, err2 := core.ParseDate(q.Get("endDate"))
		if err1 != nil || err2 != nil {
			respond(w, http.StatusBadRequest, false, "Custom period needs startDate and endDate", nil)
			return
		}
		from, to = start.Time, end.Time
	default:
		from = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		to = from.AddDate(0, 1, 0).Add(-time.Nanosecond)
	}
	respond(w, http.StatusOK, true, "Report fetched", s.Store.Report(period, from, to))
}

func filterFrom(w http.ResponseWriter, typ, category, start, end string) (ExpenseFilter, bool) {
	f := ExpenseFilter{Type: core.TxType(typ), Category: category}
	if typ != "" && !f.Type.Valid() {
		respond(w, http.StatusBadRequest, false, "Invalid type", nil)
		return f, false
	}
	var err error
	if start != "" {
		if f.From, err = core.ParseDate(start); err != nil {
			respond(w, http.StatusBadRequest, false, "Invalid startDate", nil)
			return f, false
		}
	}
	if end != "" {
		if f.To, err = core.ParseDate(end); err != nil {
			respond(w, http.StatusBadRequest, false, "Invalid endDate", nil)
			return f, false
		}
	}
	return f, true
}
