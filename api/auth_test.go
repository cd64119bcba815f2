package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	tok, err := GenerateToken("s3cret", "emp-1", RoleManager, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken("s3cret", tok)
	require.NoError(t, err)
	assert.Equal(t, "emp-1", claims.Subject)
	assert.Equal(t, RoleManager, claims.Role)
	assert.True(t, claims.ExpiresAt.After(time.Now()))
}

func TestParseToken_Rejects(t *testing.T) {
	good, err := GenerateToken("s3cret", "emp-1", RoleEmployee, time.Hour)
	require.NoError(t, err)
	expired, err := GenerateToken("s3cret", "emp-1", RoleEmployee, -time.Minute)
	require.NoError(t, err)
	noSubject, err := GenerateToken("s3cret", "", RoleEmployee, time.Hour)
	require.NoError(t, err)
	badRole, err := GenerateToken("s3cret", "emp-1", Role("root"), time.Hour)
	require.NoError(t, err)

	// HS512 with the right secret still fails: only HS256 is accepted
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		Role:             RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "emp-1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		secret string
		token  string
	}{
		{"wrong secret", "other", good},
		{"expired", "s3cret", expired},
		{"no subject", "s3cret", noSubject},
		{"unknown role", "s3cret", badRole},
		{"other algorithm", "s3cret", hs512},
		{"garbage", "s3cret", "not.a.token"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseToken(tc.secret, tc.token)
			assert.Error(t, err)
		})
	}
}

// echoPrincipal writes the caller's id and role.
var echoPrincipal = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFrom(r.Context())
	if !ok {
		w.WriteHeader(http.StatusTeapot)
		return
	}
	w.Write([]byte(string(p.EmployeeID) + "/" + string(p.Role)))
})

func TestAuthenticate(t *testing.T) {
	h := Authenticate("s3cret")(echoPrincipal)
	tok, err := GenerateToken("s3cret", "mgr", RoleManager, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"valid", "Bearer " + tok, http.StatusOK, "mgr/manager"},
		{"lowercase scheme", "bearer " + tok, http.StatusOK, "mgr/manager"},
		{"missing", "", http.StatusUnauthorized, ""},
		{"basic scheme", "Basic " + tok, http.StatusUnauthorized, ""},
		{"bad token", "Bearer nope", http.StatusUnauthorized, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			if tc.body != "" {
				assert.Equal(t, tc.body, rec.Body.String())
			}
		})
	}
}

func TestTrustHeaders(t *testing.T) {
	h := TrustHeaders(echoPrincipal)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Employee-ID", "emp-1")
	req.Header.Set("X-Role", "employee")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "emp-1/employee", rec.Body.String())

	req.Header.Set("X-Role", "superuser")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	h := TrustHeaders(RequireRole(RoleManager, RoleAdmin)(echoPrincipal))

	for role, status := range map[Role]int{
		RoleAdmin:    http.StatusOK,
		RoleManager:  http.StatusOK,
		RoleEmployee: http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Employee-ID", "someone")
		req.Header.Set("X-Role", string(role))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, status, rec.Code, role)
	}

	// without any auth middleware in front
	rec := httptest.NewRecorder()
	RequireRole(RoleAdmin)(echoPrincipal).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
