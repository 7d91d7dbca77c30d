package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_PassesValidate(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestDefaultListenerConfig_PassesValidateListenerConfig(t *testing.T) {
	lc := DefaultListenerConfig("orders")
	require.NoError(t, ValidateListenerConfig(&lc))
}

func TestValidateListenerConfig_RejectsEmptyQueue(t *testing.T) {
	lc := DefaultListenerConfig("")
	assert.Error(t, ValidateListenerConfig(&lc))
}

func TestValidateListenerConfig_RejectsOutOfRangePollMaxMessages(t *testing.T) {
	lc := DefaultListenerConfig("orders")
	lc.PollMaxMessages = 11
	assert.Error(t, ValidateListenerConfig(&lc))
}

func TestValidateListenerConfig_RequiresIntervalsWhenVisibilityExtensionEnabled(t *testing.T) {
	lc := DefaultListenerConfig("orders")
	lc.VisibilityExtension.Enabled = true
	assert.Error(t, ValidateListenerConfig(&lc), "enabling extension without intervals must fail")

	lc.VisibilityExtension.IntervalSeconds = 30
	lc.VisibilityExtension.ExtensionSeconds = 30
	assert.NoError(t, ValidateListenerConfig(&lc))
}

func TestValidateListenerConfig_RejectsInvalidEnumValues(t *testing.T) {
	base := DefaultListenerConfig("orders")

	lc := base
	lc.Acknowledgement.Mode = "BOGUS"
	assert.Error(t, ValidateListenerConfig(&lc))

	lc = base
	lc.BackpressureMode = "BOGUS"
	assert.Error(t, ValidateListenerConfig(&lc))

	lc = base
	lc.FifoGroupStrategy = "BOGUS"
	assert.Error(t, ValidateListenerConfig(&lc))

	lc = base
	lc.QueueNotFoundStrategy = "BOGUS"
	assert.Error(t, ValidateListenerConfig(&lc))
}

func TestResolvedBackpressureMode_AutoResolvesByQueueSuffix(t *testing.T) {
	fifo := DefaultListenerConfig("orders.fifo")
	assert.Equal(t, FIFOPreserving, ResolvedBackpressureMode(&fifo))

	standard := DefaultListenerConfig("orders")
	assert.Equal(t, HighThroughput, ResolvedBackpressureMode(&standard))
}

func TestResolvedBackpressureMode_ExplicitModeIsNotOverridden(t *testing.T) {
	lc := DefaultListenerConfig("orders.fifo")
	lc.BackpressureMode = HighThroughput
	assert.Equal(t, HighThroughput, ResolvedBackpressureMode(&lc))
}

func TestLoadFromEnvironment_OverridesOnlySetVariables(t *testing.T) {
	t.Setenv("AWSKIT_REGION", "eu-west-1")
	t.Setenv("AWSKIT_LOG_LEVEL", "debug")

	cfg := Default()
	LoadFromEnvironment(cfg)

	assert.Equal(t, "eu-west-1", cfg.App.Region)
	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, "text", cfg.App.LogFormat, "unset variables must not clobber the default")
}

func TestLoadFile_MissingFileIsNotAnError(t *testing.T) {
	cfg := Default()
	err := LoadFile(cfg, filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().App, cfg.App)
}

func TestLoadFile_OverlaysOnlySetFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	contents := "app:\n  region: ap-southeast-2\ntemplate:\n  max_retries: 5\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg := Default()
	require.NoError(t, LoadFile(cfg, path))

	assert.Equal(t, "ap-southeast-2", cfg.App.Region)
	assert.Equal(t, 5, cfg.Template.MaxRetries)
	assert.Equal(t, "text", cfg.App.LogFormat, "fields absent from the file must keep their default")
}

func TestLoad_PrecedenceDefaultsFileThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	contents := "app:\n  region: ap-southeast-2\n  log_level: warn\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	t.Setenv("AWSKIT_REGION", "eu-west-1")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "eu-west-1", cfg.App.Region, "environment must win over the file")
	assert.Equal(t, "warn", cfg.App.LogLevel, "file must win over the default where env doesn't override")
}

func TestLoad_InvalidResultFailsValidation(t *testing.T) {
	t.Setenv("AWSKIT_LOG_LEVEL", "not-a-level")

	_, err := Load("")
	assert.Error(t, err)
}

func TestValidate_RejectsNegativeMaxSendsPerSecond(t *testing.T) {
	cfg := Default()
	cfg.Template.MaxSendsPerSecond = -1

	assert.Error(t, Validate(cfg))
}

func TestValidate_ZeroMaxSendsPerSecondIsValid(t *testing.T) {
	cfg := Default()
	cfg.Template.MaxSendsPerSecond = 0

	assert.NoError(t, Validate(cfg))
}
