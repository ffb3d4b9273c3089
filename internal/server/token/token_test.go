package token

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testNodeID = "6f1c2a4e-8a71-4b8e-9a55-0d2f3c1b7e90"

func newTestService(t *testing.T, clk clock.Clock) *Service {
	t.Helper()
	secret, err := NewSecret()
	require.NoError(t, err)
	return NewService(secret, time.Hour, clk)
}

func TestService_GenerateValidate(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	svc := newTestService(t, clk)

	tok, err := svc.Generate(testNodeID)
	require.NoError(t, err)

	claims, err := svc.Validate(tok)
	require.NoError(t, err)
	assert.Equal(t, testNodeID, claims.NodeID)
	assert.Equal(t, Issuer, claims.Issuer)
}

func TestService_Validate_Errors(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	svc := newTestService(t, clk)

	valid, err := svc.Generate(testNodeID)
	require.NoError(t, err)

	other := newTestService(t, clk)
	foreign, err := other.Generate(testNodeID)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{NodeID: testNodeID}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		advance time.Duration
	}{
		{name: "garbage", token: "not-a-token"},
		{name: "other secret", token: foreign},
		{name: "alg none", token: none},
		{name: "expired", token: valid, advance: 2 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.advance > 0 {
				clk.Add(tt.advance)
			}
			_, err := svc.Validate(tt.token)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestWriteReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "api.token")

	require.NoError(t, WriteFile(path, "abc.def.ghi"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	tok, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", tok)

	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o600))
	_, err = ReadFile(path)
	assert.Error(t, err)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
