// Package fakeapi is an in-memory stand-in for the desk booking service. It
// implements the same endpoints, including overlap conflicts and bearer or
// cookie authentication, for local development and tests.
package fakeapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/jakechorley/desk-booking/pkg/model"
)

const (
	// SessionCookie carries the token issued by integrated login
	SessionCookie = "booking_session"

	DefaultPathPrefix = "/api"
	DefaultTokenTTL   = time.Hour
)

// Options configures a Server
type Options struct {
	// PathPrefix is prepended to every route, "/api" by default
	PathPrefix string
	SigningKey []byte
	TokenTTL   time.Duration
	Users      []SeedUser
	// WindowsUser is the email integrated login signs in as
	WindowsUser string
	// AccessLog receives combined-format request logs when set
	AccessLog io.Writer
	Now       func() time.Time
	Logger    *zap.Logger
}

// DefaultUsers are seeded when Options.Users is empty
var DefaultUsers = []SeedUser{
	{Email: "admin@example.com", UserName: "admin", Password: "admin123", Roles: []string{model.RoleAdmin, model.RoleUser}},
	{Email: "lead@example.com", UserName: "lead", Password: "lead123", Roles: []string{model.RoleTeamLead, model.RoleUser}},
	{Email: "user@example.com", UserName: "user", Password: "user123", Roles: []string{model.RoleUser}},
}

// Server serves the fake booking API
type Server struct {
	store      *store
	prefix     string
	signingKey []byte
	tokenTTL   time.Duration
	windows    string
	accessLog  io.Writer
	now        func() time.Time
	logger     *zap.Logger

	mu       sync.Mutex
	requests map[string]int
}

type contextKey struct{}

// New creates a Server and seeds its accounts
func New(opts Options) (*Server, error) {
	if opts.PathPrefix == "" {
		opts.PathPrefix = DefaultPathPrefix
	}
	if len(opts.SigningKey) == 0 {
		opts.SigningKey = []byte("fake-booking-signing-key")
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = DefaultTokenTTL
	}
	if len(opts.Users) == 0 {
		opts.Users = DefaultUsers
	}
	if opts.WindowsUser == "" {
		opts.WindowsUser = opts.Users[len(opts.Users)-1].Email
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Server{
		store:      newStore(opts.Now),
		prefix:     "/" + strings.Trim(opts.PathPrefix, "/"),
		signingKey: opts.SigningKey,
		tokenTTL:   opts.TokenTTL,
		windows:    opts.WindowsUser,
		accessLog:  opts.AccessLog,
		now:        opts.Now,
		logger:     opts.Logger,
		requests:   map[string]int{},
	}
	for _, seed := range opts.Users {
		if _, err := s.store.addAccount(seed); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Handler returns the HTTP handler for the API
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.count)
	api := r.PathPrefix(s.prefix).Subrouter()

	api.HandleFunc("/auth/login", s.windowsLogin).Methods(http.MethodGet)
	api.HandleFunc("/auth/login", s.passwordLogin).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", s.logout).Methods(http.MethodPost)

	authed := api.NewRoute().Subrouter()
	authed.Use(s.authenticate)

	staff := s.requireRole(model.RoleAdmin, model.RoleTeamLead)
	admin := s.requireRole(model.RoleAdmin)

	authed.HandleFunc("/user/me", s.me).Methods(http.MethodGet)
	authed.HandleFunc("/user/get-all", staff(s.listUsers)).Methods(http.MethodGet)
	authed.HandleFunc("/user/{id}", staff(s.getUser)).Methods(http.MethodGet)

	authed.HandleFunc("/role/all-roles", s.listRoles).Methods(http.MethodGet)
	authed.HandleFunc("/role/user-roles/{id}", staff(s.userRoles)).Methods(http.MethodGet)
	authed.HandleFunc("/role/assign-role", admin(s.assignRole)).Methods(http.MethodPost)
	authed.HandleFunc("/role/remove-role", admin(s.removeRole)).Methods(http.MethodDelete)
	authed.HandleFunc("/role/create-role", admin(s.createRole)).Methods(http.MethodPost)

	authed.HandleFunc("/floor/get-all", s.listFloors).Methods(http.MethodGet)
	authed.HandleFunc("/floor/get/{id:[0-9]+}", s.getFloor).Methods(http.MethodGet)
	authed.HandleFunc("/floor/create", admin(s.createFloor)).Methods(http.MethodPost)
	authed.HandleFunc("/floor/{id:[0-9]+}/update", admin(s.updateFloor)).Methods(http.MethodPut)
	authed.HandleFunc("/floor/{id:[0-9]+}/delete", admin(s.deleteFloor)).Methods(http.MethodDelete)

	authed.HandleFunc("/desk/get-all", s.listDesks).Methods(http.MethodGet)
	authed.HandleFunc("/desk/get/{id:[0-9]+}", s.getDesk).Methods(http.MethodGet)
	authed.HandleFunc("/desk/floor/{id:[0-9]+}", s.desksOnFloor).Methods(http.MethodGet)
	authed.HandleFunc("/desk/available", s.availableDesks).Methods(http.MethodPost)
	authed.HandleFunc("/desk/create", admin(s.createDesk)).Methods(http.MethodPost)
	authed.HandleFunc("/desk/{id:[0-9]+}/update", admin(s.updateDesk)).Methods(http.MethodPut)
	authed.HandleFunc("/desk/{id:[0-9]+}/delete", admin(s.deleteDesk)).Methods(http.MethodDelete)

	authed.HandleFunc("/reservation/get-all", staff(s.listReservations)).Methods(http.MethodGet)
	authed.HandleFunc("/reservation/get/{id:[0-9]+}", s.getReservation).Methods(http.MethodGet)
	authed.HandleFunc("/reservation/my-reservations", s.myReservations).Methods(http.MethodGet)
	authed.HandleFunc("/reservation/desk/{id:[0-9]+}", s.deskReservations).Methods(http.MethodGet)
	authed.HandleFunc("/reservation/active", s.activeReservations).Methods(http.MethodGet)
	authed.HandleFunc("/reservation/past", s.pastReservations).Methods(http.MethodGet)
	authed.HandleFunc("/reservation/upcoming", s.upcomingReservations).Methods(http.MethodGet)
	authed.HandleFunc("/reservation/create", s.createReservation).Methods(http.MethodPost)
	authed.HandleFunc("/reservation/update/{id:[0-9]+}", s.updateReservation).Methods(http.MethodPut)
	authed.HandleFunc("/reservation/{id:[0-9]+}/status", s.reservationStatus).Methods(http.MethodPatch)
	authed.HandleFunc("/reservation/{id:[0-9]+}/cancel", s.cancelReservation).Methods(http.MethodPost)
	authed.HandleFunc("/reservation/{id:[0-9]+}/delete", s.deleteReservation).Methods(http.MethodDelete)

	var h http.Handler = handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Request-ID"}),
		handlers.AllowCredentials(),
	)(r)
	if s.accessLog != nil {
		h = handlers.CombinedLoggingHandler(s.accessLog, h)
	}
	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(h)
}

// Requests reports how many requests reached path (without the prefix)
func (s *Server) Requests(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[path]
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests[strings.TrimPrefix(r.URL.Path, s.prefix)]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// Tokens

// IssueToken signs a bearer token for the account with the given email
func (s *Server) IssueToken(email string) (string, error) {
	user, herr := s.store.userByEmail(email)
	if herr != nil {
		return "", herr
	}
	return s.sign(user)
}

func (s *Server) sign(user *model.User) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(s.tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *Server) verify(raw string) (string, error) {
	token, err := jwt.Parse(raw, func(*jwt.Token) (any, error) {
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", err
	}
	subject, err := token.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	if subject == "" {
		return "", errors.New("token has no subject")
	}
	return subject, nil
}

func credential(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := credential(r)
		if raw == "" {
			writeError(w, newHTTPError(http.StatusUnauthorized, "Unauthorized"))
			return
		}
		userID, err := s.verify(raw)
		if err != nil {
			s.logger.Debug("Rejected token", zap.Error(err))
			writeError(w, newHTTPError(http.StatusUnauthorized, "Unauthorized"))
			return
		}
		user, herr := s.store.user(userID)
		if herr != nil {
			writeError(w, newHTTPError(http.StatusUnauthorized, "Unauthorized"))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, user)))
	})
}

func (s *Server) requireRole(roles ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			user := caller(r)
			for _, role := range roles {
				if user.HasRole(role) {
					next(w, r)
					return
				}
			}
			writeError(w, errForbidden)
		}
	}
}

func caller(r *http.Request) *model.User {
	user, _ := r.Context().Value(contextKey{}).(*model.User)
	return user
}

// Responses

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func writeError(w http.ResponseWriter, err error) {
	var herr *httpError
	if !errors.As(err, &herr) {
		herr = newHTTPError(http.StatusInternalServerError, "%s", err.Error())
	}
	writeJSON(w, herr.Status, map[string]string{"error": herr.Message})
}

func writeCreated(w http.ResponseWriter, location string) {
	w.Header().Set("Location", location)
	w.WriteHeader(http.StatusCreated)
}

func decode(r *http.Request, out any) *httpError {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return newHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := model.Validate(out); err != nil {
		return newHTTPError(http.StatusBadRequest, "%s", err.Error())
	}
	return nil
}
