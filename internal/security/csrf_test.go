package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestCSRF_SignVerify(t *testing.T) {
	s := NewCSRF("test-secret")

	tok, err := s.Sign("nonce-1")
	require.NoError(t, err)
	require.NoError(t, s.Verify(tok, "nonce-1"))
}

func TestCSRF_Rejects(t *testing.T) {
	s := NewCSRF("test-secret")
	tok, err := s.Sign("nonce-1")
	require.NoError(t, err)

	require.ErrorIs(t, s.Verify("", "nonce-1"), ErrCSRFMissing)
	require.ErrorIs(t, s.Verify(tok, ""), ErrCSRFMissing)
	require.ErrorIs(t, s.Verify(tok, "nonce-2"), ErrCSRFMismatch)

	other := NewCSRF("other-secret")
	require.Error(t, other.Verify(tok, "nonce-1"))

	require.Error(t, s.Verify("not-a-jwt", "nonce-1"))
}

func TestCSRF_Expired(t *testing.T) {
	s := NewCSRF("test-secret")
	s.TTL = -time.Minute

	tok, err := s.Sign("nonce-1")
	require.NoError(t, err)
	require.Error(t, s.Verify(tok, "nonce-1"))
}

func TestCSRF_IssueSetsCookieOnce(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := NewCSRF("test-secret")

	var issued string
	r := gin.New()
	r.GET("/", func(c *gin.Context) {
		tok, err := s.Issue(c)
		require.NoError(t, err)
		issued = tok
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, CSRFCookieName, cookies[0].Name)
	require.True(t, cookies[0].HttpOnly)
	require.NoError(t, s.Verify(issued, cookies[0].Value))

	// a returning visitor keeps its nonce
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Empty(t, w.Result().Cookies())
	require.NoError(t, s.Verify(issued, cookies[0].Value))
}

func TestCSRF_SecureCookieBehindProxy(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := NewCSRF("test-secret")
	require.NoError(t, s.TrustProxies([]string{"127.0.0.1", "::1", "10.0.0.0/8"}))

	r := gin.New()
	r.GET("/", func(c *gin.Context) {
		_, err := s.Issue(c)
		require.NoError(t, err)
		c.Status(http.StatusOK)
	})

	tests := []struct {
		name   string
		remote string
		proto  string
		secure bool
	}{
		{name: "trusted https", remote: "127.0.0.1:5555", proto: "https", secure: true},
		{name: "trusted cidr", remote: "10.1.2.3:5555", proto: "HTTPS", secure: true},
		{name: "last hop wins", remote: "127.0.0.1:5555", proto: "http, https", secure: true},
		{name: "trusted http", remote: "127.0.0.1:5555", proto: "http", secure: false},
		{name: "untrusted peer", remote: "203.0.113.9:5555", proto: "https", secure: false},
		{name: "no header", remote: "127.0.0.1:5555", secure: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.proto != "" {
				req.Header.Set("X-Forwarded-Proto", tt.proto)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			cookies := w.Result().Cookies()
			require.Len(t, cookies, 1)
			require.Equal(t, tt.secure, cookies[0].Secure)
		})
	}
}

func TestCSRF_TrustProxiesRejectsGarbage(t *testing.T) {
	require.Error(t, NewCSRF("x").TrustProxies([]string{"not-an-ip"}))
	require.Error(t, NewCSRF("x").TrustProxies([]string{"10.0.0.0/99"}))
}
