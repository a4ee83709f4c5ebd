package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return token
}

func TestFromRequestBasicAuth(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/todos", nil)
	r.SetBasicAuth("alice", "pw")
	r.Header.Set("X-Other", "ignored")

	c := FromRequest(r, nil)
	assert.Equal(t, "alice", c.Name)
	assert.Equal(t, r.Header.Get("Authorization"), c.Headers.Get("Authorization"))
	assert.Empty(t, c.Headers.Get("X-Other"))
}

func TestFromRequestBearerClaims(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/todos", nil)
	r.Header.Set("Authorization", "Bearer "+signed(t, jwt.MapClaims{"sub": "u-1", "preferred_username": "bob"}))
	assert.Equal(t, "bob", FromRequest(r, nil).Name)

	r.Header.Set("Authorization", "Bearer "+signed(t, jwt.MapClaims{"sub": "u-1"}))
	assert.Equal(t, "u-1", FromRequest(r, nil).Name)

	r.Header.Set("Authorization", "Bearer not-a-token")
	c := FromRequest(r, nil)
	assert.Equal(t, Anonymous, c.Name)
	assert.Equal(t, "Bearer not-a-token", c.Headers.Get("Authorization"))
}

func TestFromRequestCustomForwardList(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/todos", nil)
	r.Header.Set("securitytenant", "global")
	r.Header.Set("Authorization", "Basic Zm9vOmJhcg==")

	c := FromRequest(r, []string{"securitytenant"})
	assert.Equal(t, "global", c.Headers.Get("Securitytenant"))
	assert.Empty(t, c.Headers.Get("Authorization"))
	assert.Equal(t, "foo", c.Name)
}

func TestContextRoundTrip(t *testing.T) {
	anon := FromContext(context.Background())
	assert.Equal(t, Anonymous, anon.Name)
	assert.NotNil(t, anon.Headers)

	ctx := WithCaller(context.Background(), Caller{Name: "carol"})
	assert.Equal(t, "carol", FromContext(ctx).Name)
}
