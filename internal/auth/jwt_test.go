package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestMintVerifyRoundtrip(t *testing.T) {
	v := NewVerifier(testSecret)

	ident := Identity{UID: uuid.New(), Role: RoleDoctor, Email: "doc@example.com"}
	token, err := v.Mint(ident, time.Minute)
	require.NoError(t, err)

	got, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, ident, got)
}

func TestVerifyExpiredToken(t *testing.T) {
	v := NewVerifier(testSecret)

	token, err := v.Mint(Identity{UID: uuid.New(), Role: RolePatient}, -time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyWrongSecret(t *testing.T) {
	token, err := NewVerifier("other-secret").Mint(Identity{UID: uuid.New(), Role: RolePatient}, time.Minute)
	require.NoError(t, err)

	_, err = NewVerifier(testSecret).Verify(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyGarbage(t *testing.T) {
	v := NewVerifier(testSecret)

	_, err := v.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyRejectsUnknownRole(t *testing.T) {
	v := NewVerifier(testSecret)

	token, err := v.Mint(Identity{UID: uuid.New(), Role: Role("admin")}, time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyRejectsNonUUIDSubject(t *testing.T) {
	v := NewVerifier(testSecret)

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
		Role: string(RolePatient),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyRejectsNoneAlgorithm(t *testing.T) {
	v := NewVerifier(testSecret)

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
		Role: string(RolePatient),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, c).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestMiddleware(t *testing.T) {
	v := NewVerifier(testSecret)

	var gotIdent Identity
	var called bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		gotIdent, _ = IdentityFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := Middleware(v)(next)

	t.Run("missing header", func(t *testing.T) {
		called = false
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, called)
	})

	t.Run("malformed header", func(t *testing.T) {
		called = false
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Token abc")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, called)
	})

	t.Run("valid token", func(t *testing.T) {
		ident := Identity{UID: uuid.New(), Role: RolePatient, Email: "p@example.com"}
		token, err := v.Mint(ident, time.Minute)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, called)
		assert.Equal(t, ident, gotIdent)
	})
}
