package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OIDCProvider holds the fields of an issuer's discovery document that token
// validation needs.
type OIDCProvider struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

var discoveryClient = &http.Client{Timeout: 10 * time.Second}

// NewOIDCProvider reads <issuer>/.well-known/openid-configuration so AUTH_ISSUER
// alone is enough to locate the signing keys.
func NewOIDCProvider(issuerURL string) (*OIDCProvider, error) {
	u := strings.TrimRight(issuerURL, "/") + "/.well-known/openid-configuration"

	resp, err := discoveryClient.Get(u)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oidc discovery: status %d", resp.StatusCode)
	}

	var p OIDCProvider
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("oidc discovery: decode: %w", err)
	}
	if p.JWKSURI == "" {
		return nil, errors.New("oidc discovery: document has no jwks_uri")
	}
	return &p, nil
}
