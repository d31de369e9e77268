package auth

import (
	"testing"
	"time"

	"Seshat/internal/models"
	"github.com/stretchr/testify/require"
)

func TestChainSource_FallsBackThroughLegacyKeys(t *testing.T) {
	req := require.New(t)
	store := NewMemoryStore()
	req.NoError(store.Set("auth_token", "legacy-token"))

	token, err := NewChainSource(store).Token()
	req.NoError(err)
	req.Equal("legacy-token", token)

	req.NoError(store.Set("access_token", "fresh-token"))
	token, err = NewChainSource(store).Token()
	req.NoError(err)
	req.Equal("fresh-token", token)
}

func TestChainSource_SkipsBlankValues(t *testing.T) {
	req := require.New(t)
	store := NewMemoryStore()
	req.NoError(store.Set("access_token", "   "))
	req.NoError(store.Set("jwt", "from-jwt"))

	token, err := NewChainSource(store).Token()
	req.NoError(err)
	req.Equal("from-jwt", token)
}

func TestChainSource_NotFound(t *testing.T) {
	_, err := NewChainSource(NewMemoryStore()).Token()
	require.ErrorIs(t, err, ErrTokenNotFound)
}

func TestBadgerStore(t *testing.T) {
	req := require.New(t)
	store, err := OpenBadgerStore(t.TempDir())
	req.NoError(err)
	defer store.Close()

	_, err = store.Get("token")
	req.ErrorIs(err, ErrTokenNotFound)

	req.NoError(store.Set("token", "abc"))
	token, err := NewChainSource(store).Token()
	req.NoError(err)
	req.Equal("abc", token)

	req.NoError(store.Delete("token"))
	_, err = store.Get("token")
	req.ErrorIs(err, ErrTokenNotFound)
}

func TestIssuer_RoundTrip(t *testing.T) {
	req := require.New(t)
	issuer := NewIssuer("test-secret", time.Hour)

	token, err := issuer.Issue(models.User{ID: "u1", Username: "alice"})
	req.NoError(err)

	user, err := issuer.Verify(token)
	req.NoError(err)
	req.Equal(models.User{ID: "u1", Username: "alice"}, user)

	_, err = NewIssuer("other-secret", time.Hour).Verify(token)
	req.ErrorIs(err, ErrInvalidToken)
}

func TestIssuer_Expired(t *testing.T) {
	issuer := NewIssuer("test-secret", -time.Minute)
	token, err := issuer.Issue(models.User{ID: "u1"})
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}
