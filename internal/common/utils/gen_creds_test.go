package utils

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenAlnum(t *testing.T) {
	t.Parallel()

	alnum := regexp.MustCompile(`^[A-Za-z0-9]*$`)

	for _, length := range []int{0, 1, 10, 16, 64} {
		s := GenAlnum(length)
		assert.Len(t, s, length)
		assert.Regexp(t, alnum, s)
	}

	assert.NotEqual(t, GenAlnum(32), GenAlnum(32))
}
