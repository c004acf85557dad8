package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialsValidate(t *testing.T) {
	tests := []struct {
		name    string
		creds   Credentials
		wantErr bool
	}{
		{"complete", Credentials{Username: "u", Key: "k", Secret: "s"}, false},
		{"missing username", Credentials{Key: "k", Secret: "s"}, true},
		{"missing key", Credentials{Username: "u", Secret: "s"}, true},
		{"missing secret", Credentials{Username: "u", Key: "k"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.creds.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHMACSigner_Deterministic(t *testing.T) {
	s, err := NewHMACSigner(Credentials{Username: "up000001", Key: "key", Secret: "secret"})
	require.NoError(t, err)

	first := s.Sign(1000)
	second := s.Sign(1000)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
	// uppercase hex only
	for _, r := range first {
		assert.True(t, (r >= '0' && r <= '9') || (r >= 'A' && r <= 'F'), "unexpected rune %q", r)
	}

	assert.NotEqual(t, first, s.Sign(1001))
}

func TestNonceSource_Monotonic(t *testing.T) {
	var n NonceSource

	prev := n.Next()
	for i := 0; i < 100; i++ {
		next := n.Next()
		assert.Greater(t, next, prev)
		prev = next
	}
}
