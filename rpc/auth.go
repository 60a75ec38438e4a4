package rpc

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/lumos-codes-dev/dfv-sc-core/native/vesting"
)

// Scopes understood by the gateway. They map one-to-one onto the engine
// capabilities: the token resolved here is the only authorization the core
// ever sees.
const (
	ScopeManager = "vesting.manager"
	ScopeAdmin   = "vesting.admin"
)

type AuthConfig struct {
	Enabled    bool
	HMACSecret string
	Issuer     string
	Audience   string
	ClockSkew  time.Duration
}

var errMissingToken = errors.New("rpc: missing bearer token")

// Authenticator resolves capability sets from HMAC-signed bearer tokens. With
// auth disabled every caller is granted the full set, which is only suitable
// for local development.
type Authenticator struct {
	cfg    AuthConfig
	secret []byte
}

func NewAuthenticator(cfg AuthConfig) *Authenticator {
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = 2 * time.Minute
	}
	return &Authenticator{cfg: cfg, secret: []byte(strings.TrimSpace(cfg.HMACSecret))}
}

func extractBearer(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Capabilities validates the request's bearer token and returns the
// capability set its scopes grant. Requests without a token resolve to the
// empty set rather than an error so open methods keep working.
func (a *Authenticator) Capabilities(r *http.Request) (vesting.Capability, error) {
	if !a.cfg.Enabled {
		return vesting.CapabilityManager | vesting.CapabilityAdmin, nil
	}
	tokenString := extractBearer(r.Header.Get("Authorization"))
	if tokenString == "" {
		return 0, nil
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(a.cfg.ClockSkew),
	}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.cfg.Issuer))
	}
	if a.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(a.cfg.Audience))
	}
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return 0, fmt.Errorf("rpc: invalid token: %w", err)
	}

	var caps vesting.Capability
	for _, scope := range parseScopes(claims["scope"]) {
		switch scope {
		case ScopeManager:
			caps |= vesting.CapabilityManager
		case ScopeAdmin:
			caps |= vesting.CapabilityAdmin
		}
	}
	return caps, nil
}

func parseScopes(claim interface{}) []string {
	switch v := claim.(type) {
	case string:
		return strings.Fields(v)
	case []interface{}:
		scopes := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				scopes = append(scopes, s)
			}
		}
		return scopes
	default:
		return nil
	}
}
