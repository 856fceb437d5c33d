package sentry

import (
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"

	"exconnect/pkg/errors"
)

func TestConvertLevel(t *testing.T) {
	tests := []struct {
		in   errors.Level
		want sentry.Level
	}{
		{errors.LevelDebug, sentry.LevelDebug},
		{errors.LevelWarning, sentry.LevelWarning},
		{errors.LevelFatal, sentry.LevelFatal},
		{errors.Level("other"), sentry.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, convertLevel(tt.in), string(tt.in))
	}
}

func TestNew_EmptyDSNIsAccepted(t *testing.T) {
	tr, err := New("", "test", "dev")
	assert.NoError(t, err)
	assert.NotNil(t, tr)
}
