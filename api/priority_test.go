package api_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-pool/api"
)

func TestParseThreadPriority(t *testing.T) {
	tests := []struct {
		in   string
		want api.ThreadPriority
	}{
		{"lowest", api.PriorityLowest},
		{"Below-Normal", api.PriorityBelowNormal},
		{"normal", api.PriorityNormal},
		{"", api.PriorityNormal},
		{"ABOVE_NORMAL", api.PriorityAboveNormal},
		{" highest ", api.PriorityHighest},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := api.ParseThreadPriority(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Valid())
		})
	}

	_, err := api.ParseThreadPriority("realtime")
	assert.True(t, errors.Is(err, api.ErrInvalidArgument))
}

func TestErrorUnwrapsToSentinel(t *testing.T) {
	err := api.NewError(api.ErrCodeInvalidArgument, "nil buffer").WithContext("pool", "io")
	assert.True(t, errors.Is(err, api.ErrInvalidArgument))
	assert.Contains(t, err.Error(), "pool:io")
}
