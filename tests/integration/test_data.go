package integration

import (
	"fmt"
	"time"
)

// TestAccount generates unique test account credentials using a timestamp
func TestAccount(suffix string) (email, password string) {
	ts := time.Now().UnixNano()
	email = fmt.Sprintf("test-%d-%s@example.com", ts, suffix)
	password = "TestPassword123!"
	return
}

// TestIP generates a unique documentation-range IP per call index so
// attempts seeded for one test never trip another test's thresholds
func TestIP(n int) string {
	return fmt.Sprintf("203.0.113.%d", n%254+1)
}
