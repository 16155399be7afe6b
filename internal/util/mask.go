package util

import "strings"

// MaskSecret deja visibles los primeros 4 caracteres de s.
// Valores cortos se ocultan completos.
func MaskSecret(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return ""
	case len(s) <= 8:
		return "***"
	}
	return s[:4] + "…"
}
