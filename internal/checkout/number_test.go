package checkout

import (
	"regexp"
	"testing"
	"time"
)

func TestNewOrderNumberFormat(t *testing.T) {
	now := time.Date(2026, 3, 4, 23, 30, 0, 0, time.FixedZone("WAT", 3600))
	pattern := regexp.MustCompile(`^ORD-20260304-[A-Z2-7]{8}$`)

	seen := map[string]struct{}{}
	for i := 0; i < 200; i++ {
		number, err := NewOrderNumber(now)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if !pattern.MatchString(number) {
			t.Fatalf("unexpected format %q", number)
		}
		seen[number] = struct{}{}
	}
	if len(seen) < 199 {
		t.Fatalf("expected distinct order numbers, got %d unique", len(seen))
	}
}
