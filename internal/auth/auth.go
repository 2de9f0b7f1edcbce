// Package auth checks administrator and collection user credentials and
// issues user sessions.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/John-Robertt/subhub-go/internal/model"
	"github.com/John-Robertt/subhub-go/internal/store"
)

const (
	DefaultAdminUsername = "admin"
	DefaultAdminPassword = "admin"
	DefaultSessionTTL    = 24 * time.Hour
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Admin guards the management surface with HTTP Basic auth.
type Admin struct {
	Username string
	Password string
}

// Check reports whether r carries the administrator credentials.
func (a Admin) Check(r *http.Request) bool {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(a.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(a.Password)) == 1
	return userOK && passOK
}

// Service manages per-collection credentials and sessions.
type Service struct {
	Store      *store.Store
	SessionTTL time.Duration
	// Cost is the bcrypt cost; 0 means bcrypt.DefaultCost.
	Cost int

	now      func() time.Time
	newToken func() string
}

func NewService(st *store.Store, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Service{
		Store:      st,
		SessionTTL: ttl,
		now:        func() time.Time { return time.Now().UTC() },
		newToken:   uuid.NewString,
	}
}

// DefaultUsername is used when credentials are set without a username.
func DefaultUsername(collectionID string) string {
	id := collectionID
	if len(id) > 6 {
		id = id[:6]
	}
	return "user_" + id
}

// SetCredentials stores a bcrypt hash of password for collectionID.
func (s *Service) SetCredentials(ctx context.Context, collectionID, username, password string) (model.UserToken, error) {
	if password == "" {
		return model.UserToken{}, errors.New("password is empty")
	}
	if strings.TrimSpace(username) == "" {
		username = DefaultUsername(collectionID)
	}
	cost := s.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return model.UserToken{}, fmt.Errorf("hash password: %w", err)
	}
	return s.Store.PutUserToken(ctx, model.UserToken{
		Username:     username,
		PasswordHash: string(hash),
		CollectionID: collectionID,
	})
}

// Verify finds the credentials matching username and password. Several
// collections may share a username; the first whose password matches wins.
func (s *Service) Verify(ctx context.Context, username, password string) (model.UserToken, error) {
	tokens, err := s.Store.ListUserTokens(ctx)
	if err != nil {
		return model.UserToken{}, err
	}
	for _, t := range tokens {
		if t.Username != username {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(t.PasswordHash), []byte(password)) == nil {
			return t, nil
		}
	}
	return model.UserToken{}, ErrInvalidCredentials
}

// Protected reports whether collectionID has credentials set.
func (s *Service) Protected(ctx context.Context, collectionID string) (bool, error) {
	_, ok, err := s.Store.UserToken(ctx, collectionID)
	return ok, err
}

// CheckCollection reports whether r carries Basic credentials for
// collectionID.
func (s *Service) CheckCollection(ctx context.Context, r *http.Request, collectionID string) (bool, error) {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false, nil
	}
	t, err := s.Verify(ctx, user, pass)
	if errors.Is(err, ErrInvalidCredentials) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return t.CollectionID == collectionID, nil
}

// Login verifies the credentials and stores a new session.
func (s *Service) Login(ctx context.Context, username, password string) (model.Session, error) {
	t, err := s.Verify(ctx, username, password)
	if err != nil {
		return model.Session{}, err
	}
	sess := model.Session{
		Token:        s.newToken(),
		Username:     username,
		CollectionID: t.CollectionID,
		ExpiresAt:    s.now().Add(s.SessionTTL),
	}
	if err := s.Store.PutSession(ctx, sess); err != nil {
		return model.Session{}, err
	}
	return sess, nil
}

// Session returns the live session for token.
func (s *Service) Session(ctx context.Context, token string) (model.Session, bool, error) {
	return s.Store.Session(ctx, token)
}

// SessionCookie renders the Set-Cookie value for sess.
func (s *Service) SessionCookie(sess model.Session) *http.Cookie {
	return &http.Cookie{
		Name:     "session",
		Value:    sess.Token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(s.SessionTTL / time.Second),
	}
}
