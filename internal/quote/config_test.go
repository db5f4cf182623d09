package quote

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultFeedConfigIsValid(t *testing.T) {
	assert.NoError(t, DefaultFeedConfig().Validate())
}

func TestLoadFeedConfigOverrides(t *testing.T) {
	path := writeFile(t, `
url: https://feed.example.com/snapshot
records_path: [result]
fields:
  sym: code
  pc: preclose
  o: open
  h: high
  l: low
  px: last
  vol: volume
  amt: amount
  ts: update_time
volume_multiplier: 1
timeout: 3s
`)
	c, err := LoadFeedConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://feed.example.com/snapshot", c.URL)
	assert.Equal(t, []string{"result"}, c.RecordsPath)
	assert.Equal(t, 3*time.Second, c.Timeout)
	assert.Equal(t, 1.0, c.VolumeMultiplier)
	assert.Empty(t, c.Params, "eastmoney params only apply to the default url")
	key, ok := c.Fields.Key(FieldLast)
	assert.True(t, ok)
	assert.Equal(t, "px", key)
}

func TestLoadFeedConfigKeepsDefaults(t *testing.T) {
	c, err := LoadFeedConfig(writeFile(t, "rate_per_second: 0.5\n"))
	require.NoError(t, err)
	d := DefaultFeedConfig()
	assert.Equal(t, d.URL, c.URL)
	assert.Equal(t, d.Fields, c.Fields)
	assert.Equal(t, d.Params, c.Params)
	assert.Equal(t, 0.5, c.RatePerSecond)
}

func TestLoadFeedConfigRejectsMissingFields(t *testing.T) {
	_, err := LoadFeedConfig(writeFile(t, "fields:\n  f12: code\n"))
	assert.ErrorContains(t, err, `field "preclose" is not mapped`)
}
