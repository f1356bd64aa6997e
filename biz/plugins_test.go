package biz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vearne/h2replay/config"
)

func TestExtractAddr(t *testing.T) {
	cases := []struct {
		serverAddr, expected string
	}{
		{"tcp://192.168.1.100:8080", "192.168.1.100:8080"},
		{"tcp://192.168.1.100:8080/abc", "192.168.1.100:8080"},
		{"192.168.1.100:8080", "192.168.1.100:8080"},
		{"192.168.1.100:8080/abc", "192.168.1.100:8080"},
	}

	for _, c := range cases {
		ans, err := extractAddr(c.serverAddr)
		if err != nil {
			t.Fatalf("expected:%v, got:%v, error:%v",
				c.expected, ans, err)
		}
		if ans != c.expected {
			t.Fatalf("expected:%v, got:%v",
				c.expected, ans)
		}
	}
}

func TestNewPlugins(t *testing.T) {
	settings := &config.AppSettings{
		Codec:        "simple",
		OutputStdout: true,
		OutputTCP:    []string{"tcp://127.0.0.1:35001"},
	}
	settings.OutputFileDir = []string{t.TempDir()}

	plugins := NewPlugins(settings)
	assert.Equal(t, 0, len(plugins.Inputs))
	assert.Equal(t, 3, len(plugins.Outputs))
	assert.Equal(t, 3, len(plugins.All))
}

func TestNewRateLimit(t *testing.T) {
	assert.Nil(t, NewRateLimit(&config.AppSettings{}))

	lim := NewRateLimit(&config.AppSettings{RateLimitQPS: 5})
	assert.NotNil(t, lim)
	assert.True(t, lim.Allow())
}

func TestNewFilterChain(t *testing.T) {
	settings := &config.AppSettings{
		ExcludeKinds:           []string{"PING"},
		IncludeFilterKindMatch: "HEADERS|DATA|PING",
	}
	chain, err := NewFilterChain(settings)
	assert.Nil(t, err)

	_, ok := chain.Filter(record("DATA", 1))
	assert.True(t, ok)
	// excluded even though the include expression matches
	_, ok = chain.Filter(record("PING", 0))
	assert.False(t, ok)
	// not covered by the include expression
	_, ok = chain.Filter(record("SETTINGS", 0))
	assert.False(t, ok)
}
