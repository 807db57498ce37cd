package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintString(t *testing.T) {
	assert.Equal(t, FingerprintString("abc"), FingerprintString("abc"))
	assert.NotEqual(t, FingerprintString("abc"), FingerprintString("abd"))
}

func TestMix64(t *testing.T) {
	a, b := FingerprintString("a"), FingerprintString("b")
	assert.Equal(t, Mix64(a, b), Mix64(a, b))
	assert.NotEqual(t, Mix64(a, b), Mix64(b, a))
}
