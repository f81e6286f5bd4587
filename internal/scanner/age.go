package scanner

import (
	"strconv"
	"strings"
	"time"
)

const creationTimeLayout = "2006-01-02 15:04:05"

// TokenAgeHours derives the token age from the pool creation time reported
// by the honeypot provider. All-digit values are epoch seconds, anything
// else is tried as "2006-01-02 15:04:05" text. Returns nil when the value
// is absent or unparsable; age is then simply unknown, never an error.
func TokenAgeHours(createdAt string, now time.Time) *float64 {
	createdAt = strings.TrimSpace(createdAt)
	if createdAt == "" {
		return nil
	}

	var created time.Time
	if isAllDigits(createdAt) {
		secs, err := strconv.ParseInt(createdAt, 10, 64)
		if err != nil {
			return nil
		}
		created = time.Unix(secs, 0)
	} else {
		t, err := time.Parse(creationTimeLayout, createdAt)
		if err != nil {
			return nil
		}
		created = t
	}

	hours := now.Sub(created).Hours()
	if hours < 0 {
		hours = 0
	}
	return &hours
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
