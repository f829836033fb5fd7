package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testAccounts(t *testing.T) Accounts {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	other, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	accounts, err := ParseAccounts(" Admin@Example.com=" + string(hash) + ", guest@example.com=" + string(other))
	require.NoError(t, err)
	return accounts
}

func TestAllowList(t *testing.T) {
	a := ParseAllowList(" Admin@Example.com , ,editor@example.com")
	assert.Equal(t, 2, a.Len())
	assert.True(t, a.Allows("admin@example.com"))
	assert.True(t, a.Allows("ADMIN@EXAMPLE.COM "))
	assert.False(t, a.Allows("guest@example.com"))
	assert.False(t, a.Allows(""))

	empty := ParseAllowList("")
	assert.False(t, empty.Allows("admin@example.com"))
	assert.False(t, AllowList{}.Allows("admin@example.com"))
}

func TestParseAccounts(t *testing.T) {
	accounts := testAccounts(t)
	assert.Contains(t, accounts, "admin@example.com")

	_, err := ParseAccounts("no-separator")
	assert.Error(t, err)
	_, err = ParseAccounts("a@b.c=not-a-hash")
	assert.Error(t, err)

	accounts, err = ParseAccounts("")
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestSignIn(t *testing.T) {
	s := NewSessions(testAccounts(t))

	_, err := s.SignIn("sid", "admin@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = s.SignIn("sid", "nobody@example.com", "secret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Nil(t, s.Current("sid"))

	id, err := s.SignIn("sid", "ADMIN@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", id.Email)
	assert.Equal(t, "admin", id.DisplayName())
	require.NotNil(t, s.Current("sid"))

	s.SignOut("sid")
	assert.Nil(t, s.Current("sid"))
}

func TestGateObserve(t *testing.T) {
	s := NewSessions(testAccounts(t))
	g := NewGate(ParseAllowList("admin@example.com"), s)

	var events []string
	stop := g.Observe("sid", func(id Identity) {
		events = append(events, "authorized:"+id.Email)
	}, func() {
		events = append(events, "unauthorized")
	})

	_, err := s.SignIn("sid", "admin@example.com", "secret")
	require.NoError(t, err)
	s.SignOut("sid")
	_, err = s.SignIn("sid", "guest@example.com", "hunter2")
	require.NoError(t, err)

	// Other sessions do not reach this observer.
	_, err = s.SignIn("other", "admin@example.com", "secret")
	require.NoError(t, err)

	stop()
	s.SignOut("sid")

	assert.Equal(t, []string{
		"unauthorized",
		"authorized:admin@example.com",
		"unauthorized",
		"unauthorized",
	}, events)
}

func TestGateEmptyAllowList(t *testing.T) {
	s := NewSessions(testAccounts(t))
	g := NewGate(ParseAllowList(""), s)
	_, err := s.SignIn("sid", "admin@example.com", "secret")
	require.NoError(t, err)

	_, ok := g.Check("sid")
	assert.False(t, ok)
}

func TestGateCheckAndRestore(t *testing.T) {
	s := NewSessions(testAccounts(t))
	g := NewGate(ParseAllowList("admin@example.com"), s)

	_, ok := g.Check("sid")
	assert.False(t, ok)

	_, ok = s.Restore("sid", "stranger@example.com")
	assert.False(t, ok)

	_, ok = s.Restore("sid", "Admin@Example.com")
	require.True(t, ok)
	id, ok := g.Check("sid")
	require.True(t, ok)
	assert.Equal(t, "admin@example.com", id.Email)
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("pw")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("pw")))
}
