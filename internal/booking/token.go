package booking

import (
	"crypto/subtle"
	"strings"

	"github.com/google/uuid"
)

// NewManageToken returns the random opaque possession token embedded in a
// guest's manage link. It authorizes exactly one appointment and nothing else.
func NewManageToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "") + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// TokenMatches compares a presented token against the stored one in constant
// time.
func TokenMatches(stored, presented string) bool {
	if stored == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}
