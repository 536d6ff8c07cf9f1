package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := GenerateID("bi_")
		assert.True(t, strings.HasPrefix(id, "bi_"))
		assert.Len(t, id, 19)
		assert.False(t, seen[id])
		seen[id] = true
	}
}
