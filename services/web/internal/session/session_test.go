package session

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbytow/coffeetica/services/web/internal/domain"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func signToken(t *testing.T, userID int64, name string, exp time.Time, roles ...string) string {
	t.Helper()
	c := claims{
		UserID:   userID,
		Username: name,
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(exp.Add(-time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte("any-key"))
	require.NoError(t, err)
	return tok
}

func TestLogin_DecodesIdentity(t *testing.T) {
	s := New(newTestLogger(), WithClock(fixedClock(epoch)))
	tok := signToken(t, 7, "ana", epoch.Add(time.Hour), domain.RoleUser, domain.RoleAdmin)

	require.NoError(t, s.Login(tok))

	assert.True(t, s.IsAuthenticated())
	user := s.CurrentUser()
	require.NotNil(t, user)
	assert.Equal(t, int64(7), user.UserID)
	assert.Equal(t, "ana", user.Username)
	assert.True(t, user.IsAdmin())
	assert.True(t, s.HasRole(domain.RoleAdmin))
	assert.False(t, s.HasRole(domain.RoleSuperAdmin))

	cred, ok := s.Credential()
	assert.True(t, ok)
	assert.Equal(t, tok, cred)
}

func TestCurrentUser_ReturnsCopy(t *testing.T) {
	s := New(newTestLogger(), WithClock(fixedClock(epoch)))
	require.NoError(t, s.Login(signToken(t, 7, "ana", epoch.Add(time.Hour), domain.RoleUser)))

	u := s.CurrentUser()
	u.Roles[0] = domain.RoleSuperAdmin

	assert.False(t, s.HasRole(domain.RoleSuperAdmin))
}

func TestLogin_RejectsBadTokens(t *testing.T) {
	s := New(newTestLogger(), WithClock(fixedClock(epoch)))

	tests := map[string]string{
		"garbage":      "not-a-jwt",
		"no user id":   signToken(t, 0, "ghost", epoch.Add(time.Hour)),
		"expired":      signToken(t, 7, "ana", epoch.Add(-time.Minute)),
		"empty string": "",
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			err := s.Login(tok)
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.False(t, s.IsAuthenticated())
		})
	}
}

func TestCredential_ExpiresWithClock(t *testing.T) {
	now := epoch
	s := New(newTestLogger(), WithClock(func() time.Time { return now }))
	require.NoError(t, s.Login(signToken(t, 7, "ana", epoch.Add(time.Hour))))

	now = epoch.Add(2 * time.Hour)

	_, ok := s.Credential()
	assert.False(t, ok)
	assert.False(t, s.IsAuthenticated())
	assert.Nil(t, s.CurrentUser())
	assert.False(t, s.HasRole(domain.RoleUser))
}

func TestSubscribe_NotifiesInOrderAndCancels(t *testing.T) {
	s := New(newTestLogger(), WithClock(fixedClock(epoch)))

	var got []string
	cancelA := s.Subscribe(func(ev Event) {
		if ev.Authenticated {
			got = append(got, "a:in:"+ev.User.Username)
		} else {
			got = append(got, "a:out")
		}
	})
	s.Subscribe(func(ev Event) {
		got = append(got, "b")
	})

	require.NoError(t, s.Login(signToken(t, 7, "ana", epoch.Add(time.Hour))))
	cancelA()
	require.NoError(t, s.Logout())

	assert.Equal(t, []string{"a:in:ana", "b", "b"}, got)
	assert.False(t, s.IsAuthenticated())
}

func TestSubscriber_MayReadSession(t *testing.T) {
	s := New(newTestLogger(), WithClock(fixedClock(epoch)))

	var seen bool
	s.Subscribe(func(Event) { seen = s.IsAuthenticated() })

	require.NoError(t, s.Login(signToken(t, 7, "ana", epoch.Add(time.Hour))))
	assert.True(t, seen)
}

// =============================================================================
// Store
// =============================================================================

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := OpenStore(filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestStore_SaveLoadClear(t *testing.T) {
	st := openTestStore(t)

	_, ok, err := st.Load()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.Save("tok"))
	tok, ok, err := st.Load()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", tok)

	require.NoError(t, st.Clear())
	_, ok, err = st.Load()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRestore_SignsBackIn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	tok := signToken(t, 7, "ana", epoch.Add(time.Hour))

	st, err := OpenStore(path)
	require.NoError(t, err)
	first := New(newTestLogger(), WithStore(st), WithClock(fixedClock(epoch)))
	require.NoError(t, first.Login(tok))
	require.NoError(t, st.Close())

	st, err = OpenStore(path)
	require.NoError(t, err)
	defer st.Close()

	s, err := Restore(st, newTestLogger(), WithClock(fixedClock(epoch.Add(time.Minute))))
	require.NoError(t, err)
	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, "ana", s.CurrentUser().Username)
}

func TestRestore_DropsExpiredToken(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.Save(signToken(t, 7, "ana", epoch.Add(time.Hour))))

	s, err := Restore(st, newTestLogger(), WithClock(fixedClock(epoch.Add(3*time.Hour))))
	require.NoError(t, err)
	assert.False(t, s.IsAuthenticated())

	_, ok, err := st.Load()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLogout_ClearsStore(t *testing.T) {
	st := openTestStore(t)
	s := New(newTestLogger(), WithStore(st), WithClock(fixedClock(epoch)))
	require.NoError(t, s.Login(signToken(t, 7, "ana", epoch.Add(time.Hour))))

	require.NoError(t, s.Logout())

	_, ok, err := st.Load()
	require.NoError(t, err)
	assert.False(t, ok)
}
