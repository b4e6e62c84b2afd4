package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel(" DEBUG "))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("verbose"))
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: "info", Format: FormatJSON, Output: &buf, Service: "academic-records"})

	ctx := WithContext(context.Background(), Component(l, "http"))
	FromContext(ctx).Info().Msg("hello")

	assert.Contains(t, buf.String(), `"service":"academic-records"`)
	assert.Contains(t, buf.String(), `"component":"http"`)
	assert.Contains(t, buf.String(), `"message":"hello"`)
}

func TestFromContext_Empty(t *testing.T) {
	assert.Equal(t, zerolog.Disabled, FromContext(context.Background()).GetLevel())
}
