package supabase

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWKS represents the JSON Web Key Set
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK represents a JSON Web Key. Supabase publishes RSA and P-256 keys.
type JWK struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
}

// ValidatorConfig holds configuration for Validator
type ValidatorConfig struct {
	// ProjectURL is the Supabase project URL without a trailing slash
	ProjectURL string
	// JWTSecret verifies HS256 tokens; asymmetric tokens use the JWKS
	JWTSecret string
	// Audience is checked when non-empty
	Audience    string
	CacheTTL    time.Duration
	HTTPTimeout time.Duration
	HTTPClient  *http.Client
	// MinRefreshInterval is the shortest time between an unknown kid forcing
	// a JWKS refetch and the previous fetch. Defaults to 30s.
	MinRefreshInterval time.Duration
	Now                func() time.Time
}

// DefaultMinRefreshInterval bounds refetches triggered by unknown key ids
const DefaultMinRefreshInterval = 30 * time.Second

// Validator verifies access tokens locally
type Validator struct {
	issuer     string
	audience   string
	secret     []byte
	jwksURL    string
	httpClient *http.Client
	parser     *jwt.Parser

	jwksCache     *JWKS
	jwksCacheExp  time.Time
	jwksCacheTTL  time.Duration
	jwksFetchedAt time.Time
	minRefresh    time.Duration
	cacheMu       sync.RWMutex
	now           func() time.Time

	keyCache   map[string]crypto.PublicKey
	keyCacheMu sync.RWMutex
}

// NewValidator creates a local token validator
func NewValidator(cfg ValidatorConfig) *Validator {
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = time.Hour
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	if cfg.MinRefreshInterval == 0 {
		cfg.MinRefreshInterval = DefaultMinRefreshInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.HTTPTimeout}
	}

	v := &Validator{
		audience:     cfg.Audience,
		jwksCacheTTL: cfg.CacheTTL,
		minRefresh:   cfg.MinRefreshInterval,
		now:          cfg.Now,
		httpClient:   client,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{"HS256", "RS256", "ES256"}),
			jwt.WithExpirationRequired(),
		),
		keyCache: make(map[string]crypto.PublicKey),
	}
	if cfg.JWTSecret != "" {
		v.secret = []byte(cfg.JWTSecret)
	}
	if cfg.ProjectURL != "" {
		v.issuer = authURL(cfg.ProjectURL, "")
		v.jwksURL = authURL(cfg.ProjectURL, "/.well-known/jwks.json")
	}
	return v
}

// VerifyToken validates the token and returns its user
func (v *Validator) VerifyToken(ctx context.Context, tokenString string) (*User, error) {
	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, v.keyFunc(ctx))
	if err != nil {
		switch {
		case errors.Is(err, ErrUnavailable):
			return nil, err
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		default:
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if v.issuer != "" && claims.Issuer != v.issuer {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrInvalidIssuer, v.issuer, claims.Issuer)
	}
	if v.audience != "" && !slices.Contains(claims.Audience, v.audience) {
		return nil, ErrInvalidAudience
	}

	return claims.toUser()
}

func (v *Validator) keyFunc(ctx context.Context) jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		switch token.Method.(type) {
		case *jwt.SigningMethodHMAC:
			if v.secret == nil {
				return nil, errors.New("no JWT secret configured for HS256 tokens")
			}
			return v.secret, nil
		case *jwt.SigningMethodRSA, *jwt.SigningMethodECDSA:
			kid, ok := token.Header["kid"].(string)
			if !ok || kid == "" {
				return nil, errors.New("kid header not found")
			}
			return v.getPublicKey(ctx, kid)
		default:
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
	}
}

// FetchJWKS returns the project's signing keys, cached for the configured TTL
func (v *Validator) FetchJWKS(ctx context.Context) (*JWKS, error) {
	v.cacheMu.RLock()
	if v.jwksCache != nil && v.now().Before(v.jwksCacheExp) {
		defer v.cacheMu.RUnlock()
		return v.jwksCache, nil
	}
	v.cacheMu.RUnlock()

	if v.jwksURL == "" {
		return nil, fmt.Errorf("%w: no project URL configured", ErrJWKSFetchFailed)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJWKSFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status code %d", ErrJWKSFetchFailed, resp.StatusCode)
	}

	var jwks JWKS
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrJWKSFetchFailed, err)
	}

	v.cacheMu.Lock()
	v.jwksCache = &jwks
	v.jwksFetchedAt = v.now()
	v.jwksCacheExp = v.jwksFetchedAt.Add(v.jwksCacheTTL)
	v.cacheMu.Unlock()

	return &jwks, nil
}

func (v *Validator) getPublicKey(ctx context.Context, kid string) (crypto.PublicKey, error) {
	v.keyCacheMu.RLock()
	if key, exists := v.keyCache[kid]; exists {
		v.keyCacheMu.RUnlock()
		return key, nil
	}
	v.keyCacheMu.RUnlock()

	jwks, err := v.FetchJWKS(ctx)
	if err != nil {
		return nil, err
	}

	jwk := findKey(jwks, kid)
	if jwk == nil {
		// The project may have rotated keys since the set was cached, but an
		// arbitrary kid must not turn every request into a JWKS fetch.
		if !v.claimRefresh() {
			return nil, fmt.Errorf("key with kid %s not found in JWKS", kid)
		}
		if jwks, err = v.FetchJWKS(ctx); err != nil {
			return nil, err
		}
		if jwk = findKey(jwks, kid); jwk == nil {
			return nil, fmt.Errorf("key with kid %s not found in JWKS", kid)
		}
	}

	publicKey, err := jwkToPublicKey(jwk)
	if err != nil {
		return nil, fmt.Errorf("failed to convert JWK: %w", err)
	}

	v.keyCacheMu.Lock()
	v.keyCache[kid] = publicKey
	v.keyCacheMu.Unlock()

	return publicKey, nil
}

// claimRefresh expires the cached key set when the last fetch is older than
// the minimum refresh interval. Only one caller per interval succeeds.
func (v *Validator) claimRefresh() bool {
	v.cacheMu.Lock()
	defer v.cacheMu.Unlock()

	now := v.now()
	if now.Sub(v.jwksFetchedAt) < v.minRefresh {
		return false
	}
	v.jwksCacheExp = time.Time{}
	// Concurrent callers see a fresh fetch time and back off.
	v.jwksFetchedAt = now
	return true
}

func findKey(jwks *JWKS, kid string) *JWK {
	for i := range jwks.Keys {
		if jwks.Keys[i].Kid == kid {
			return &jwks.Keys[i]
		}
	}
	return nil
}

func jwkToPublicKey(jwk *JWK) (crypto.PublicKey, error) {
	switch jwk.Kty {
	case "RSA":
		nBytes, err := base64.RawURLEncoding.DecodeString(jwk.N)
		if err != nil {
			return nil, fmt.Errorf("failed to decode modulus: %w", err)
		}
		eBytes, err := base64.RawURLEncoding.DecodeString(jwk.E)
		if err != nil {
			return nil, fmt.Errorf("failed to decode exponent: %w", err)
		}
		var e int
		for _, b := range eBytes {
			e = e*256 + int(b)
		}
		return &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: e}, nil
	case "EC":
		if jwk.Crv != "P-256" {
			return nil, fmt.Errorf("unsupported curve %q", jwk.Crv)
		}
		xBytes, err := base64.RawURLEncoding.DecodeString(jwk.X)
		if err != nil {
			return nil, fmt.Errorf("failed to decode x: %w", err)
		}
		yBytes, err := base64.RawURLEncoding.DecodeString(jwk.Y)
		if err != nil {
			return nil, fmt.Errorf("failed to decode y: %w", err)
		}
		return &ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(xBytes),
			Y:     new(big.Int).SetBytes(yBytes),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported key type %q", jwk.Kty)
	}
}

// InvalidateCache drops the cached key set and parsed keys
func (v *Validator) InvalidateCache() {
	v.cacheMu.Lock()
	v.jwksCache = nil
	v.jwksCacheExp = time.Time{}
	v.cacheMu.Unlock()

	v.keyCacheMu.Lock()
	v.keyCache = make(map[string]crypto.PublicKey)
	v.keyCacheMu.Unlock()
}
