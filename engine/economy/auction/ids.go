package auction

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"
)

const codeLength = 6

// generateAuctionCode returns a short human-readable code for display and
// lookups. The store's unique constraint is the collision guard.
func generateAuctionCode() (string, error) {
	bytes := make([]byte, 4)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	encoded := base32.StdEncoding.EncodeToString(bytes)
	return strings.ToUpper(encoded[:codeLength]), nil
}
