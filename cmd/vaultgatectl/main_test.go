package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOnOff(t *testing.T) {
	for _, in := range []string{"on", "true", "1", "yes"} {
		v, err := parseOnOff(in)
		require.NoError(t, err)
		assert.True(t, v, in)
	}
	for _, in := range []string{"off", "false", "0", "no"} {
		v, err := parseOnOff(in)
		require.NoError(t, err)
		assert.False(t, v, in)
	}
	_, err := parseOnOff("maybe")
	assert.Error(t, err)
}
