package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldEvict(t *testing.T) {
	tests := []struct {
		name       string
		failures   int
		limit      int
		isHoneypot bool
		want       bool
	}{
		{"at limit and honeypot", 5, 5, true, true},
		{"over limit and honeypot", 7, 5, true, true},
		{"at limit but not honeypot", 5, 5, false, false},
		{"honeypot but under limit", 4, 5, true, false},
		{"neither condition", 0, 5, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldEvict(tt.failures, tt.limit, tt.isHoneypot))
		})
	}
}

func TestRemovalReasonNamesLimit(t *testing.T) {
	assert.Equal(t, "Exceeded honeypot failure limit (5)", RemovalReason(5))
	assert.Equal(t, "Exceeded honeypot failure limit (3)", RemovalReason(3))
}
