package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseChannel(t *testing.T) {
	for _, raw := range []string{"EMAIL", "email", " Email "} {
		channel, err := ParseChannel(raw)
		assert.NoError(t, err)
		assert.Equal(t, ChannelEmail, channel)
	}

	_, err := ParseChannel("FAX")
	assert.Error(t, err)
}

func TestParseStatus(t *testing.T) {
	status, err := ParseStatus("failed")
	assert.NoError(t, err)
	assert.Equal(t, StatusFailed, status)

	_, err = ParseStatus("DELIVERED")
	assert.Error(t, err)
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.True(t, StatusSent.Terminal())
	assert.True(t, StatusFailed.Terminal())
}
