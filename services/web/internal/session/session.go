// Package session owns the signed-in identity of the client and its bearer
// credential. Other components observe it through Provider and never touch
// the credential store directly.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jbytow/coffeetica/services/web/internal/domain"
)

// ErrInvalidToken is returned by Login for tokens that cannot identify a user.
var ErrInvalidToken = errors.New("invalid access token")

// Identity is the signed-in user.
type Identity struct {
	UserID    int64
	Username  string
	Roles     []string
	ExpiresAt time.Time
}

// IsAdmin reports whether the identity may modify other users' reviews.
func (id *Identity) IsAdmin() bool {
	return id != nil && domain.IsAdmin(id.Roles)
}

// Event is delivered to subscribers when the identity changes.
type Event struct {
	Authenticated bool
	User          *Identity
}

// Provider exposes the session to the rest of the client.
type Provider interface {
	IsAuthenticated() bool
	CurrentUser() *Identity
	HasRole(name string) bool
	Credential() (string, bool)
	Subscribe(fn func(Event)) (cancel func())
}

// CredentialStore persists the bearer token between runs.
type CredentialStore interface {
	Save(token string) error
	Load() (string, bool, error)
	Clear() error
}

// claims mirrors the access token payload issued by the review service.
type claims struct {
	UserID   int64    `json:"user_id"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// Session is the Provider implementation. It is safe for concurrent use.
// Subscribers are called synchronously, outside the session lock.
type Session struct {
	mu       sync.RWMutex
	token    string
	identity *Identity
	subs     map[int]func(Event)
	nextSub  int

	store  CredentialStore
	logger *slog.Logger
	now    func() time.Time
}

var _ Provider = (*Session)(nil)

// Option configures a Session.
type Option func(*Session)

// WithStore persists the credential across Login and Logout.
func WithStore(store CredentialStore) Option {
	return func(s *Session) { s.store = store }
}

// WithClock overrides the clock used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// New returns a signed-out session.
func New(logger *slog.Logger, opts ...Option) *Session {
	s := &Session{
		subs:   make(map[int]func(Event)),
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore builds a session and signs it back in from the token saved in
// store. A missing, malformed or expired saved token leaves the session
// signed out and clears the store.
func Restore(store CredentialStore, logger *slog.Logger, opts ...Option) (*Session, error) {
	s := New(logger, append(opts, WithStore(store))...)

	token, ok, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load saved credential: %w", err)
	}
	if !ok {
		return s, nil
	}

	if err := s.Login(token); err != nil {
		logger.Info("discarding saved credential", slog.String("error", err.Error()))
		if cerr := store.Clear(); cerr != nil {
			return nil, fmt.Errorf("clear saved credential: %w", cerr)
		}
	}
	return s, nil
}

// Login decodes token and makes it the current credential. The signature is
// not checked here; the review API verifies it on every request.
func (s *Session) Login(token string) error {
	id, err := s.parse(token)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.token = token
	s.identity = id
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Save(token); err != nil {
			return fmt.Errorf("save credential: %w", err)
		}
	}

	s.logger.Debug("signed in",
		slog.Int64("user_id", id.UserID),
		slog.String("username", id.Username),
	)
	s.notify(Event{Authenticated: true, User: id.clone()})
	return nil
}

// Logout drops the credential. Subscribers are notified even when the session
// was already signed out.
func (s *Session) Logout() error {
	s.mu.Lock()
	s.token = ""
	s.identity = nil
	s.mu.Unlock()

	var err error
	if s.store != nil {
		if cerr := s.store.Clear(); cerr != nil {
			err = fmt.Errorf("clear credential: %w", cerr)
		}
	}

	s.logger.Debug("signed out")
	s.notify(Event{Authenticated: false})
	return err
}

// IsAuthenticated reports whether an unexpired credential is held.
func (s *Session) IsAuthenticated() bool {
	_, ok := s.Credential()
	return ok
}

// CurrentUser returns a copy of the signed-in identity, or nil.
func (s *Session) CurrentUser() *Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.validLocked() {
		return nil
	}
	return s.identity.clone()
}

func (s *Session) HasRole(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.validLocked() && slices.Contains(s.identity.Roles, name)
}

// Credential returns the bearer token. An expired token counts as absent.
func (s *Session) Credential() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.validLocked() {
		return "", false
	}
	return s.token, true
}

// Subscribe registers fn for identity changes until cancel is called.
func (s *Session) Subscribe(fn func(Event)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Session) validLocked() bool {
	if s.identity == nil {
		return false
	}
	return s.identity.ExpiresAt.IsZero() || s.now().Before(s.identity.ExpiresAt)
}

func (s *Session) notify(ev Event) {
	s.mu.RLock()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(Event), len(ids))
	for i, id := range ids {
		fns[i] = s.subs[id]
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (s *Session) parse(token string) (*Identity, error) {
	var c claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.UserID <= 0 {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidToken)
	}

	id := &Identity{
		UserID:   c.UserID,
		Username: c.Username,
		Roles:    slices.Clone(c.Roles),
	}
	if c.ExpiresAt != nil {
		id.ExpiresAt = c.ExpiresAt.Time
		if !s.now().Before(id.ExpiresAt) {
			return nil, fmt.Errorf("%w: expired at %s", ErrInvalidToken, id.ExpiresAt.Format(time.RFC3339))
		}
	}
	return id, nil
}

func (id *Identity) clone() *Identity {
	if id == nil {
		return nil
	}
	c := *id
	c.Roles = slices.Clone(id.Roles)
	return &c
}
