package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/atarokh82/rep-track-analyze/internal/telemetry/tracing"
	"github.com/atarokh82/rep-track-analyze/pkg"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=auth_test

const (
	minPasswordLength = 6
	// bcrypt refuses longer passwords
	maxPasswordLength = 72
)

type usersRepo interface {
	Add(ctx context.Context, email, passwordHash string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
}

type sessionStore interface {
	Login(ctx context.Context, userID uuid.UUID, createdAt time.Time) (string, error)
	Logout(ctx context.Context, token string) (bool, error)
	SessionUser(ctx context.Context, token string) (uuid.UUID, bool, error)
}

type SignupResponse struct {
	UserID uuid.UUID `json:"userId"`
}

type LoginResponse struct {
	Token  string    `json:"token"`
	UserID uuid.UUID `json:"userId"`
}

type SessionResponse struct {
	UserID uuid.UUID `json:"userId"`
	Email  string    `json:"email"`
}

type Handler struct {
	usersRepo usersRepo
	sessions  sessionStore
}

func NewHandler(usersRepo usersRepo, sessions sessionStore) *Handler {
	return &Handler{
		usersRepo: usersRepo,
		sessions:  sessions,
	}
}

func (handler *Handler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.auth.signup")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	creds, ok := readCredentials(w, r)
	if !ok {
		return
	}
	if !strings.Contains(creds.Email, "@") {
		http.Error(w, "error, invalid email", http.StatusBadRequest)
		return
	}
	if len(creds.Password) < minPasswordLength {
		http.Error(w, "error, password too short", http.StatusBadRequest)
		return
	}
	if len(creds.Password) > maxPasswordLength {
		http.Error(w, "error, password too long", http.StatusBadRequest)
		return
	}

	passwordHash, err := pkg.HashPassword(creds.Password)
	if err != nil {
		log.Errorf("signup, hash password: %s", err)
		http.Error(w, "signup failed", http.StatusInternalServerError)
		return
	}

	user, err := handler.usersRepo.Add(ctx, creds.Email, passwordHash)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			http.Error(w, "error, email already registered", http.StatusConflict)
			return
		}
		log.Errorf("signup, add user: %s", err)
		http.Error(w, "signup failed", http.StatusInternalServerError)
		return
	}
	span.SetAttributes(attribute.String("user.id", user.ID.String()))

	respBytes, err := json.Marshal(SignupResponse{UserID: user.ID})
	if err != nil {
		log.Errorf("signup, marshal response: %s", err)
		http.Error(w, "signup failed", http.StatusInternalServerError)
		return
	}

	log.Debugf("new user signed up: %s", user.ID)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respBytes, http.StatusCreated)
}

func (handler *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.auth.login")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	creds, ok := readCredentials(w, r)
	if !ok {
		return
	}

	user, err := handler.verifyCredentials(ctx, creds)
	if err != nil {
		if errors.Is(err, ErrWrongCredentials) {
			http.Error(w, "error, wrong credentials", http.StatusBadRequest)
			return
		}
		log.Errorf("login, verify credentials: %s", err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	token, err := handler.sessions.Login(ctx, user.ID, time.Now())
	if err != nil {
		log.Errorf("login failed, create session: %s", err)
		http.Error(w, "generate token error", http.StatusInternalServerError)
		return
	}

	respBytes, err := json.Marshal(LoginResponse{Token: token, UserID: user.ID})
	if err != nil {
		log.Errorf("login, marshal response: %s", err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	log.Trace("new login success")
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, respBytes)
}

// verifyCredentials returns ErrWrongCredentials for an unknown email or a wrong password.
func (handler *Handler) verifyCredentials(ctx context.Context, creds Credentials) (*User, error) {
	user, err := handler.usersRepo.GetByEmail(ctx, creds.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			log.Tracef("failed login attempt for unknown email: %s", creds.Email)
			return nil, ErrWrongCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if !pkg.CheckPasswordHash(creds.Password, user.PasswordHash) {
		log.Tracef("[password] failed login attempt for user: %s", user.ID)
		return nil, ErrWrongCredentials
	}

	return user, nil
}

func (handler *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.auth.logout")
	defer span.End()

	authToken := TokenFromRequest(r)
	if authToken == "" {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	loggedOut, err := handler.sessions.Logout(ctx, authToken)
	if err != nil {
		log.Errorf("logout failed: %s", err)
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}
	if !loggedOut {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	pkg.WriteTextResponseOK(w, "logged-out")
}

func (handler *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.auth.session")
	defer span.End()

	userID, ok := UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	user, err := handler.usersRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			http.Error(w, "no can do", http.StatusUnauthorized)
			return
		}
		log.Errorf("session, get user %s: %s", userID, err)
		http.Error(w, "session check failed", http.StatusInternalServerError)
		return
	}

	respBytes, err := json.Marshal(SessionResponse{UserID: user.ID, Email: user.Email})
	if err != nil {
		log.Errorf("session, marshal response: %s", err)
		http.Error(w, "session check failed", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, respBytes)
}

func readCredentials(w http.ResponseWriter, r *http.Request) (Credentials, bool) {
	var creds Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		log.Tracef("auth, unmarshal json params: %s", err)
		http.Error(w, "error, invalid request body", http.StatusBadRequest)
		return creds, false
	}

	creds.Email = strings.TrimSpace(creds.Email)
	if creds.Email == "" {
		http.Error(w, "error, email empty", http.StatusBadRequest)
		return creds, false
	}
	if creds.Password == "" {
		http.Error(w, "error, password empty", http.StatusBadRequest)
		return creds, false
	}

	return creds, true
}
