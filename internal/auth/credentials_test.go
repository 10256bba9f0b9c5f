package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/jobswipe/internal/config"
	svcErr "github.com/oggyb/jobswipe/internal/errors"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestRequire(t *testing.T) {
	_, err := Require(Static("  "))
	assert.ErrorIs(t, err, svcErr.ErrAuthMissing)

	_, err = Require(nil)
	assert.ErrorIs(t, err, svcErr.ErrAuthMissing)

	token, err := Require(Static(" abc "))
	require.NoError(t, err)
	assert.Equal(t, "abc", token)
}

func TestFileSourceRereads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	src := File(path)

	assert.Empty(t, src.Token())

	require.NoError(t, os.WriteFile(path, []byte("first\n"), 0o600))
	assert.Equal(t, "first", src.Token())

	require.NoError(t, os.WriteFile(path, []byte("second"), 0o600))
	assert.Equal(t, "second", src.Token())
}

func TestFromConfigPrefersFile(t *testing.T) {
	cfg := &config.Config{}
	cfg.Auth.Token = "inline"
	assert.Equal(t, Static("inline"), FromConfig(cfg))

	cfg.Auth.TokenFile = "/tmp/token"
	assert.Equal(t, File("/tmp/token"), FromConfig(cfg))
}

func TestUserID(t *testing.T) {
	id, err := UserID(signed(t, jwt.MapClaims{"sub": "42"}))
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	id, err = UserID(signed(t, jwt.MapClaims{"sub": "someone@example.com", "userId": 7}))
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)

	_, err = UserID(signed(t, jwt.MapClaims{"sub": "someone@example.com"}))
	assert.Error(t, err)

	_, err = UserID("not-a-jwt")
	assert.Error(t, err)
}
