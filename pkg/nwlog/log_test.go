package nwlog

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitJSONOutputWritesLevel(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: WarnLevel, JSONOutput: true, Output: &buf})
	defer Init(Config{Level: InfoLevel})

	WithComponent("test.component").Warn().Msg("something happened")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "test.component", line["component"])
	assert.Equal(t, "something happened", line["message"])
}

func TestInitWarnLevelSuppressesInfo(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: WarnLevel, JSONOutput: true, Output: &buf})
	defer Init(Config{Level: InfoLevel})

	WithComponent("test.component").Info().Msg("should be suppressed")

	assert.Empty(t, buf.Bytes())
}

func TestWithScopeAddsScopeField(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, JSONOutput: true, Output: &buf})
	defer Init(Config{Level: InfoLevel})

	logger := WithComponent("test.component")
	WithScope(logger, "user_own").Info().Msg("scoped")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "user_own", line["scope"])
}
