package validation

import (
	"regexp"
	"strings"
)

// Reglas de scope-token (RFC 6749 §3.3):
//   - 1 o más caracteres NQCHAR: %x21 / %x23-5B / %x5D-7E.
//   - Sin espacios, comillas dobles ni backslash.
//
// Válidos: openid, profile:read, experiment:write, *
// Inválidos: "", "bad space", `quo"te`, `back\slash`, "ñ"
var scopeTokenRe = regexp.MustCompile(`^[\x21\x23-\x5B\x5D-\x7E]+$`)

// ValidScopeToken reporta si s es un scope-token válido.
func ValidScopeToken(s string) bool {
	return scopeTokenRe.MatchString(s)
}

// SplitScope separa un parámetro scope en tokens (separador: espacio).
// Espacios repetidos se colapsan.
func SplitScope(raw string) []string {
	return strings.Fields(raw)
}

// InvalidScopes retorna los tokens inválidos de scopes, en orden.
func InvalidScopes(scopes []string) []string {
	var bad []string
	for _, s := range scopes {
		if !ValidScopeToken(s) {
			bad = append(bad, s)
		}
	}
	return bad
}
