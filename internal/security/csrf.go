package security

import (
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	CSRFCookieName = "_csrf"
	CSRFFieldName  = "csrf_token"
)

var (
	ErrCSRFMissing  = errors.New("csrf token missing")
	ErrCSRFMismatch = errors.New("csrf token does not match session")
)

// CSRF issues and checks form tokens. A token is an HS256 JWT whose nonce
// must equal the nonce held in the visitor's _csrf cookie.
type CSRF struct {
	Secret []byte
	TTL    time.Duration
	// Secure marks the cookie HTTPS-only. Without it the cookie is still
	// Secure for TLS requests and for X-Forwarded-Proto: https from a
	// trusted proxy.
	Secure bool

	proxies []netip.Prefix
}

type csrfClaims struct {
	Nonce string `json:"nonce"`
	jwt.RegisteredClaims
}

func NewCSRF(secret string) *CSRF {
	return &CSRF{Secret: []byte(secret), TTL: time.Hour}
}

// TrustProxies sets the peers whose X-Forwarded-Proto is believed. Entries
// are IPs or CIDRs, the same list gin uses for X-Forwarded-For.
func (s *CSRF) TrustProxies(proxies []string) error {
	out := make([]netip.Prefix, 0, len(proxies))
	for _, p := range proxies {
		p = strings.TrimSpace(p)
		if strings.Contains(p, "/") {
			prefix, err := netip.ParsePrefix(p)
			if err != nil {
				return fmt.Errorf("trusted proxy %q: %w", p, err)
			}
			out = append(out, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(p)
		if err != nil {
			return fmt.Errorf("trusted proxy %q: %w", p, err)
		}
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	s.proxies = out
	return nil
}

// https reports whether the visitor reached us over HTTPS. Only the proxy
// directly in front of us is asked, so one hop is trusted.
func (s *CSRF) https(c *gin.Context) bool {
	if c.Request.TLS != nil {
		return true
	}
	proto := c.GetHeader("X-Forwarded-Proto")
	if proto == "" {
		return false
	}
	peer, err := netip.ParseAddr(c.RemoteIP())
	if err != nil {
		return false
	}
	peer = peer.Unmap()
	for _, p := range s.proxies {
		if p.Contains(peer) {
			if i := strings.LastIndexByte(proto, ','); i >= 0 {
				proto = proto[i+1:]
			}
			return strings.EqualFold(strings.TrimSpace(proto), "https")
		}
	}
	return false
}

func (s *CSRF) Sign(nonce string) (string, error) {
	now := time.Now()
	claims := csrfClaims{
		Nonce: nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.Secret)
	if err != nil {
		return "", fmt.Errorf("sign csrf token: %w", err)
	}
	return signed, nil
}

func (s *CSRF) Verify(raw, nonce string) error {
	if raw == "" || nonce == "" {
		return ErrCSRFMissing
	}

	tok, err := jwt.ParseWithClaims(raw, &csrfClaims{}, func(token *jwt.Token) (any, error) {
		return s.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return fmt.Errorf("parse csrf token: %w", err)
	}

	claims, ok := tok.Claims.(*csrfClaims)
	if !ok || !tok.Valid {
		return fmt.Errorf("invalid csrf token claims")
	}
	if claims.Nonce != nonce {
		return ErrCSRFMismatch
	}
	return nil
}

// Issue returns a token for the current visitor, creating the nonce cookie
// when the request does not carry one.
func (s *CSRF) Issue(c *gin.Context) (string, error) {
	nonce, err := c.Cookie(CSRFCookieName)
	if err != nil || nonce == "" {
		nonce = uuid.NewString()
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(CSRFCookieName, nonce, 0, "/", "", s.Secure || s.https(c), true)
	}
	return s.Sign(nonce)
}

// Check verifies the submitted token against the request's nonce cookie.
func (s *CSRF) Check(c *gin.Context, submitted string) error {
	nonce, _ := c.Cookie(CSRFCookieName)
	return s.Verify(submitted, nonce)
}
