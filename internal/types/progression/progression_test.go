package progression

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTier(t *testing.T) {
	for _, valid := range []string{"SOLO", "TRADE", "COLLAB", "COMMUNITY", "MENTORSHIP"} {
		parsed, ok := ParseTier(valid)
		assert.True(t, ok, valid)
		assert.Equal(t, Tier(valid), parsed)
	}

	for _, invalid := range []string{"", "trade", "PLATINUM", "SOLO "} {
		_, ok := ParseTier(invalid)
		assert.False(t, ok, invalid)
	}
}
