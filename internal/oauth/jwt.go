package oauth

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// DecodeJWTClaims decodes the claims segment of a JWT without verifying the
// signature. The tokens come from the user's own credential files; quotadash
// only reads display hints (email, plan tier) out of them.
func DecodeJWTClaims(token string) map[string]any {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil
	}
	var claims map[string]any
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil
	}
	return claims
}

// JWTStringClaim returns a string claim from a decoded claims map, descending
// one level into a nested object when path has two segments.
func JWTStringClaim(claims map[string]any, path ...string) string {
	var cur any = claims
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = m[key]
	}
	s, _ := cur.(string)
	return s
}
