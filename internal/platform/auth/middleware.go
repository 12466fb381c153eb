package auth

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Claims are the token claims issued by the identity provider.
type Claims struct {
	jwt.RegisteredClaims
	Email       string `json:"email,omitempty"`
	Name        string `json:"name,omitempty"`
	Role        string `json:"role,omitempty"`
	IsAnonymous bool   `json:"is_anonymous,omitempty"`
}

// Identity converts validated claims into a caller identity.
func (c *Claims) Identity() (Identity, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return Identity{}, fmt.Errorf("subject is not a user id: %w", err)
	}
	role := Role(c.Role)
	switch role {
	case RolePatient, RoleDoctor, RoleAdmin:
	case "":
		role = RolePatient
	default:
		return Identity{}, fmt.Errorf("unknown role %q", c.Role)
	}
	return Identity{ID: id, Email: c.Email, Name: c.Name, Role: role, Anonymous: c.IsAnonymous}, nil
}

type JWTConfig struct {
	Issuer   string
	Audience string
	JWKSURL  string
	// SigningKey enables HS256 validation instead of JWKS.
	SigningKey []byte
}

// JWKSKey represents a single JSON Web Key from a JWKS endpoint.
type JWKSKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKSResponse represents the response from a JWKS endpoint.
type JWKSResponse struct {
	Keys []JWKSKey `json:"keys"`
}

// JWKSCache caches JWKS keys fetched from a remote endpoint with a configurable TTL.
type JWKSCache struct {
	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	jwksURL   string
	ttl       time.Duration
	fetchedAt time.Time
	client    *http.Client
}

// NewJWKSCache creates a new JWKS cache that fetches keys from the given URL.
func NewJWKSCache(jwksURL string, ttl time.Duration) *JWKSCache {
	return &JWKSCache{
		keys:    make(map[string]*rsa.PublicKey),
		jwksURL: jwksURL,
		ttl:     ttl,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// GetKey returns the RSA public key for the given kid, refreshing the cache on
// a miss or after the TTL.
func (c *JWKSCache) GetKey(kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	key, ok := c.keys[kid]
	expired := time.Since(c.fetchedAt) > c.ttl
	c.mu.RUnlock()

	if ok && !expired {
		return key, nil
	}

	if err := c.fetch(); err != nil {
		return nil, fmt.Errorf("fetching JWKS: %w", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	key, ok = c.keys[kid]
	if !ok {
		return nil, fmt.Errorf("key with kid %q not found in JWKS", kid)
	}
	return key, nil
}

func (c *JWKSCache) fetch() error {
	resp, err := c.client.Get(c.jwksURL)
	if err != nil {
		return fmt.Errorf("GET %s: %w", c.jwksURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	var jwks JWKSResponse
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return fmt.Errorf("decoding JWKS response: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(jwks.Keys))
	for _, k := range jwks.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pubKey, err := parseRSAPublicKey(k)
		if err != nil {
			continue // skip malformed keys
		}
		keys[k.Kid] = pubKey
	}

	c.mu.Lock()
	c.keys = keys
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	return nil
}

func parseRSAPublicKey(k JWKSKey) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}

const defaultJWKSCacheTTL = 5 * time.Minute

func jwksKeyFunc(jwksURL string) jwt.Keyfunc {
	cache := NewJWKSCache(jwksURL, defaultJWKSCacheTTL)
	return func(token *jwt.Token) (interface{}, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, fmt.Errorf("token has no kid header")
		}
		return cache.GetKey(kid)
	}
}

// tokenParser validates bearer tokens against cfg.
type tokenParser struct {
	opts    []jwt.ParserOption
	keyFunc jwt.Keyfunc
}

func newTokenParser(cfg JWTConfig) *tokenParser {
	// Resolve JWKS URL: if not explicitly set, try OIDC auto-discovery from issuer.
	jwksURL := cfg.JWKSURL
	if jwksURL == "" && cfg.Issuer != "" && len(cfg.SigningKey) == 0 {
		if provider, err := NewOIDCProvider(cfg.Issuer); err == nil {
			jwksURL = provider.JWKSURI
		}
	}

	p := &tokenParser{}
	if len(cfg.SigningKey) > 0 {
		key := cfg.SigningKey
		p.opts = append(p.opts, jwt.WithValidMethods([]string{"HS256"}))
		p.keyFunc = func(*jwt.Token) (interface{}, error) { return key, nil }
	} else {
		p.opts = append(p.opts, jwt.WithValidMethods([]string{"RS256"}))
		p.keyFunc = jwksKeyFunc(jwksURL)
	}
	if cfg.Issuer != "" {
		p.opts = append(p.opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		p.opts = append(p.opts, jwt.WithAudience(cfg.Audience))
	}
	return p
}

func (p *tokenParser) parse(header string) (Identity, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(strings.TrimSpace(parts[1]), claims, p.keyFunc, p.opts...)
	if err != nil || !token.Valid {
		return Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	id, err := claims.Identity()
	if err != nil {
		return Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "invalid token claims")
	}
	return id, nil
}

// JWTMiddleware validates bearer tokens and stores the caller identity on the
// request context. Requests without an Authorization header pass through with
// no identity; services decide whether a caller is required.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	parser := newTokenParser(cfg)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return next(c)
			}
			id, err := parser.parse(authHeader)
			if err != nil {
				return err
			}
			setIdentity(c, id)
			return next(c)
		}
	}
}

// DevUserHeader lets local tooling impersonate a user in development mode.
// Format: "<uuid>" or "<uuid>:<role>".
const DevUserHeader = "X-Dev-User"

// DevPatientID is the identity used for unauthenticated requests in development.
var DevPatientID = uuid.MustParse("00000000-0000-0000-0000-00000000d3e0")

// DevAuthMiddleware is a permissive middleware for development. Bearer tokens
// are still validated when a signing key is configured; otherwise the caller is
// taken from X-Dev-User or defaults to a fixed dev patient.
func DevAuthMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	var parser *tokenParser
	if len(cfg.SigningKey) > 0 {
		parser = newTokenParser(cfg)
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if h := c.Request().Header.Get("Authorization"); h != "" && parser != nil {
				id, err := parser.parse(h)
				if err != nil {
					return err
				}
				setIdentity(c, id)
				return next(c)
			}

			id := Identity{ID: DevPatientID, Email: "dev@carelink.local", Name: "Dev Patient", Role: RolePatient}
			if h := c.Request().Header.Get(DevUserHeader); h != "" {
				parsed, err := parseDevUser(h)
				if err != nil {
					return echo.NewHTTPError(http.StatusBadRequest, err.Error())
				}
				id = parsed
			}
			setIdentity(c, id)
			return next(c)
		}
	}
}

func parseDevUser(v string) (Identity, error) {
	raw, role, _ := strings.Cut(v, ":")
	uid, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Identity{}, fmt.Errorf("invalid %s header", DevUserHeader)
	}
	claims := Claims{Role: strings.TrimSpace(role)}
	claims.Subject = uid.String()
	return claims.Identity()
}
