package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func TestIssueAndParseToken(t *testing.T) {
	raw, err := IssueToken(testSecret, 123, "weaver", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(testSecret, raw)
	require.NoError(t, err)
	assert.Equal(t, uint(123), claims.UserID)
	assert.Equal(t, "weaver", claims.Username)
	assert.NotEmpty(t, claims.JTI)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, 5*time.Second)
}

func TestIssueTokenRequiresSecret(t *testing.T) {
	_, err := IssueToken("", 1, "weaver", time.Hour)
	assert.Error(t, err)
}

func TestParseToken(t *testing.T) {
	sign := func(claims jwt.MapClaims, secret string) string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		s, _ := token.SignedString([]byte(secret))
		return s
	}
	base := func() jwt.MapClaims {
		return jwt.MapClaims{
			"sub": strconv.FormatUint(42, 10),
			"iss": TokenIssuer,
			"aud": TokenAudience,
			"exp": time.Now().Add(time.Hour).Unix(),
		}
	}

	tests := []struct {
		name    string
		raw     func() string
		wantErr error
	}{
		{
			name:    "Empty",
			raw:     func() string { return "" },
			wantErr: ErrMissingToken,
		},
		{
			name:    "Malformed",
			raw:     func() string { return "malformed.token.here" },
			wantErr: ErrInvalidToken,
		},
		{
			name:    "Wrong Secret",
			raw:     func() string { return sign(base(), "another-secret") },
			wantErr: ErrInvalidToken,
		},
		{
			name: "Expired",
			raw: func() string {
				c := base()
				c["exp"] = time.Now().Add(-time.Hour).Unix()
				return sign(c, testSecret)
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "Foreign Issuer",
			raw: func() string {
				c := base()
				c["iss"] = "someone-else"
				return sign(c, testSecret)
			},
			wantErr: ErrInvalidIssuer,
		},
		{
			name: "Non Numeric Subject",
			raw: func() string {
				c := base()
				c["sub"] = "abc"
				return sign(c, testSecret)
			},
			wantErr: ErrInvalidSubject,
		},
		{
			name: "Valid",
			raw:  func() string { return sign(base(), testSecret) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := ParseToken(testSecret, tt.raw())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, uint(42), claims.UserID)
		})
	}
}

func TestBearerToken(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(BearerToken(c))
	})

	cases := map[string]string{
		"Bearer abc.def": "abc.def",
		"Basic xyz":      "",
		"":               "",
		"Bearer":         "",
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		buf := make([]byte, 64)
		n, _ := resp.Body.Read(buf)
		_ = resp.Body.Close()
		assert.Equal(t, want, string(buf[:n]), "header %q", header)
	}
}
