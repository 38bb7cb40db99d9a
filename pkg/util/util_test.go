package util

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerTo_Production(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "production")

	logger.Debug("hidden")
	logger.Info("visible", "key", "value")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"visible"`)
	assert.Contains(t, out, `"service":"testforge"`)
}

func TestNewLoggerTo_Development(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "development")

	logger.Debug("details")
	assert.Contains(t, buf.String(), "msg=details")
}

func TestValidateCronExpr(t *testing.T) {
	assert.NoError(t, ValidateCronExpr("0 * * * *"))
	assert.NoError(t, ValidateCronExpr("*/15 2 * * 1-5"))
	assert.Error(t, ValidateCronExpr("every hour"))
	assert.Error(t, ValidateCronExpr("0 * * *"))
}

func TestNextCronTime(t *testing.T) {
	from := time.Date(2024, 3, 1, 10, 20, 0, 0, time.UTC)

	next, err := NextCronTime("0 * * * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC), next)

	_, err = NextCronTime("bad", from)
	assert.Error(t, err)
}
