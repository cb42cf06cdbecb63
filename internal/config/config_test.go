package config

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auditgate/internal/cmderr"
	"auditgate/internal/model"
)

func TestFromViper_Defaults(t *testing.T) {
	v := viper.New()
	c, err := FromViper(v, afero.NewMemMapFs())
	require.NoError(t, err)

	assert.Equal(t, model.SeverityLow, c.MinSeverity)
	assert.Equal(t, "yarn", c.Yarn)
	assert.Equal(t, time.Second, c.RetryDelay)
	assert.Equal(t, DefaultNetworkSignature, c.NetworkFailureSignature)
	assert.Empty(t, c.Exclusions())
	assert.False(t, c.IsExcluded("1"))
}

func TestFromViper_Flags(t *testing.T) {
	v := viper.New()
	v.Set(KeyMinSeverity, "HIGH")
	v.Set(KeyExclude, []string{"1084,GHSA-VH95-RMGR-6W4M", "118"})
	v.Set(KeyIgnoreDevDeps, true)
	v.Set(KeyFailOnMissingExclusions, true)
	v.Set(KeyRetryOnNetworkFailure, true)
	v.Set(KeyRetryDelay, "10ms")
	v.Set(KeyDir, "/work")

	fs := afero.NewMemMapFs()
	// ignored because --exclude was given
	require.NoError(t, afero.WriteFile(fs, "/work/.iyarc", []byte("999\n"), 0o644))

	c, err := FromViper(v, fs)
	require.NoError(t, err)

	assert.Equal(t, model.SeverityHigh, c.MinSeverity)
	assert.True(t, c.IgnoreDevDeps)
	assert.True(t, c.FailOnMissingExclusions)
	assert.True(t, c.RetryOnNetworkFailure)
	assert.Equal(t, 10*time.Millisecond, c.RetryDelay)
	assert.Equal(t, []string{"118", "1084", "GHSA-vh95-rmgr-6w4m"}, c.Exclusions())
	assert.True(t, c.IsExcluded("ghsa-vh95-rmgr-6w4m"))
	assert.False(t, c.IsExcluded("999"))
}

func TestFromViper_InvalidSeverity(t *testing.T) {
	v := viper.New()
	v.Set(KeyMinSeverity, "severe")
	_, err := FromViper(v, afero.NewMemMapFs())
	require.Error(t, err)
	assert.True(t, cmderr.Is(err, cmderr.KindConfig))
}

func TestFromViper_InvalidExclusions(t *testing.T) {
	v := viper.New()
	v.Set(KeyExclude, []string{"12,abc,GHSA-nope"})
	_, err := FromViper(v, afero.NewMemMapFs())
	require.Error(t, err)
	assert.True(t, cmderr.Is(err, cmderr.KindConfig))
	assert.Contains(t, err.Error(), `"abc"`)
	assert.Contains(t, err.Error(), `"GHSA-nope"`)
}

func TestFromViper_ExclusionsFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/work/.iyarc", []byte("# accepted risk\n1084, 118\n"), 0o644))

	v := viper.New()
	v.Set(KeyDir, "/work")
	c, err := FromViper(v, fs)
	require.NoError(t, err)
	assert.Equal(t, []string{"118", "1084"}, c.Exclusions())
}

func TestFromViper_CustomExclusionsFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/work/.iyarc", []byte("1084\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/work/ci/exclusions.yaml", []byte("exclusions:\n  - id: 1179\n    reason: test only\n"), 0o644))

	v := viper.New()
	v.Set(KeyDir, "/work")
	v.Set(KeyExclusionsFile, "ci/exclusions.yaml")
	c, err := FromViper(v, fs)
	require.NoError(t, err)
	assert.Equal(t, "ci/exclusions.yaml", c.ExclusionsFile)
	assert.Equal(t, []string{"1179"}, c.Exclusions())

	path, explicit := c.ExclusionsPath()
	assert.Equal(t, "/work/ci/exclusions.yaml", path)
	assert.True(t, explicit)
}

func TestExclusionsPath(t *testing.T) {
	c := Default()
	c.Dir = "/work"
	path, explicit := c.ExclusionsPath()
	assert.Equal(t, "/work/.iyarc", path)
	assert.False(t, explicit)

	c.ExclusionsFile = "/etc/auditgate/.iyarc"
	path, explicit = c.ExclusionsPath()
	assert.Equal(t, "/etc/auditgate/.iyarc", path)
	assert.True(t, explicit)
}

func TestFromViper_MissingExplicitExclusionsFile(t *testing.T) {
	v := viper.New()
	v.Set(KeyExclusionsFile, "/nowhere/.iyarc")
	_, err := FromViper(v, afero.NewMemMapFs())
	require.Error(t, err)
	assert.True(t, cmderr.Is(err, cmderr.KindConfig))
}

func TestFromViper_NegativeTimeout(t *testing.T) {
	v := viper.New()
	v.Set(KeyTimeout, "-1s")
	_, err := FromViper(v, afero.NewMemMapFs())
	assert.True(t, cmderr.Is(err, cmderr.KindConfig))
}

func TestWithExclusionsDoesNotShareSet(t *testing.T) {
	base := Default().WithExclusions("1")
	other := base.WithExclusions("2")
	assert.True(t, base.IsExcluded("1"))
	assert.False(t, base.IsExcluded("2"))
	assert.True(t, other.IsExcluded("2"))
}
