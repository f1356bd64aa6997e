package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"
)

func TestMultiStringOption(t *testing.T) {
	var params []string
	opt := MultiStringOption{Params: &params}

	assert.Nil(t, opt.Set("0.0.0.0:35001"))
	assert.Nil(t, opt.Set("127.0.0.1:35002"))
	assert.Equal(t, []string{"0.0.0.0:35001", "127.0.0.1:35002"}, params)
}

func TestMultiIntOption(t *testing.T) {
	var params []int
	opt := MultiIntOption{Params: &params}

	assert.Nil(t, opt.Set("3"))
	assert.Nil(t, opt.Set("7"))
	assert.Equal(t, []int{3, 7}, params)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h2r.yaml")
	content := `
input-raw:
  - "0.0.0.0:35001"
track-response: true
codec: json
exit-after: 90s
exclude-kinds:
  - PING
  - WINDOW_UPDATE
`
	assert.Nil(t, os.WriteFile(path, []byte(content), 0644))

	var settings AppSettings
	settings.Codec = "simple"
	assert.Nil(t, LoadFile(path, &settings))

	assert.Equal(t, []string{"0.0.0.0:35001"}, settings.InputRAW)
	assert.True(t, settings.TrackResponse)
	assert.Equal(t, "json", settings.Codec)
	assert.Equal(t, Duration(90*time.Second), settings.ExitAfter)
	assert.Equal(t, []string{"PING", "WINDOW_UPDATE"}, settings.ExcludeKinds)
}

func TestDuration(t *testing.T) {
	var d Duration
	assert.Nil(t, d.Set("1m30s"))
	assert.Equal(t, 90*time.Second, d.Duration())
	assert.Equal(t, "1m30s", d.String())

	// a bare integer counts as seconds
	var settings AppSettings
	assert.Nil(t, yaml.Unmarshal([]byte("output-tcp-dial-timeout: 5"), &settings))
	assert.Equal(t, Duration(5*time.Second), settings.OutputTCPDialTimeout)
}

func TestLoadFileMissing(t *testing.T) {
	var settings AppSettings
	assert.NotNil(t, LoadFile("/nonexistent/h2r.yaml", &settings))
}
