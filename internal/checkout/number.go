package checkout

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"time"
)

const orderNumberSuffixLen = 8

var orderNumberEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewOrderNumber returns ORD-YYYYMMDD-XXXXXXXX using the UTC date of now and
// 40 random bits. A unique index backs it up.
func NewOrderNumber(now time.Time) (string, error) {
	raw := make([]byte, 5)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate order number: %w", err)
	}
	suffix := orderNumberEncoding.EncodeToString(raw)[:orderNumberSuffixLen]
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), suffix), nil
}
