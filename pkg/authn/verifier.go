package authn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/codeready-toolchain/agenthost/pkg/protocol"
	"github.com/golang-jwt/jwt/v5"
)

// deniedRolePrefixes and deniedRoles are filtered out of every extracted
// role set (spec §4.2).
var (
	deniedRoles = map[string]bool{
		"offline_access":     true,
		"uma_authorization":  true,
	}
	deniedRolePrefixes = []string{"default-roles-"}
)

// Claims is the decoded, verified representation of a bearer token.
type Claims struct {
	Subject string
	Issuer  string
	Email   string
	Roles   []string
	Raw     jwt.MapClaims
}

// Config controls issuer/audience verification.
type Config struct {
	ExpectedIssuer   string
	ExpectedAudience []string
}

// Error wraps one of the spec's UNAUTHENTICATED_* failure codes.
type Error struct {
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

func authErr(code string, err error) *Error {
	return &Error{Code: code, Err: err}
}

type realmAccessClaims struct {
	RealmAccess struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// Verifier validates RS256 bearer tokens against a JWKS key set.
type Verifier struct {
	keys   *KeySet
	config Config
}

// NewVerifier builds a Verifier backed by keys, enforcing config.
func NewVerifier(keys *KeySet, config Config) *Verifier {
	return &Verifier{keys: keys, config: config}
}

// Verify parses and validates token, returning Claims or a tagged *Error
// matching one of the spec's UNAUTHENTICATED_* codes. All returned errors
// are non-retryable at the same token (§4.2).
func (v *Verifier) Verify(ctx context.Context, token string) (*Claims, error) {
	var claims realmAccessClaims

	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("token header missing kid")
		}
		return v.keys.PublicKey(ctx, kid)
	}, jwt.WithValidMethods([]string{"RS256"}))

	if err != nil {
		return nil, classifyParseError(err)
	}
	if !parsed.Valid {
		return nil, authErr(protocol.CodeUnauthenticatedMal, fmt.Errorf("token not valid"))
	}

	if v.config.ExpectedIssuer != "" && claims.Issuer != v.config.ExpectedIssuer {
		return nil, authErr(protocol.CodeUnauthenticatedIss, fmt.Errorf("issuer %q does not match", claims.Issuer))
	}
	if len(v.config.ExpectedAudience) > 0 && !audienceIntersects(claims.Audience, v.config.ExpectedAudience) {
		return nil, authErr(protocol.CodeUnauthenticatedAud, fmt.Errorf("audience does not intersect expected set"))
	}

	return &Claims{
		Subject: claims.Subject,
		Issuer:  claims.Issuer,
		Email:   strings.TrimSpace(claims.Email),
		Roles:   filterDeniedRoles(claims.RealmAccess.Roles),
		Raw:     claimsToMap(claims),
	}, nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return authErr(protocol.CodeUnauthenticatedExp, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return authErr(protocol.CodeUnauthenticatedSig, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return authErr(protocol.CodeUnauthenticatedMal, err)
	default:
		return authErr(protocol.CodeUnauthenticatedMal, err)
	}
}

// claimsToMap round-trips the parsed claims through JSON so callers can
// inspect arbitrary claim paths (used by the access resolver's jsonPath
// matchers, §4.5) without this package exposing the library-specific
// realmAccessClaims type.
func claimsToMap(c realmAccessClaims) jwt.MapClaims {
	raw, err := json.Marshal(c)
	if err != nil {
		return jwt.MapClaims{}
	}
	var m jwt.MapClaims
	if err := json.Unmarshal(raw, &m); err != nil {
		return jwt.MapClaims{}
	}
	return m
}

func audienceIntersects(got []string, expected []string) bool {
	want := make(map[string]bool, len(expected))
	for _, a := range expected {
		want[a] = true
	}
	for _, a := range got {
		if want[a] {
			return true
		}
	}
	return false
}

func filterDeniedRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		if deniedRoles[r] {
			continue
		}
		denied := false
		for _, prefix := range deniedRolePrefixes {
			if strings.HasPrefix(r, prefix) {
				denied = true
				break
			}
		}
		if denied {
			continue
		}
		out = append(out, r)
	}
	return out
}
