package tracing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSampler(t *testing.T) {
	assert.Contains(t, sampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, sampler(2).Description(), "AlwaysOnSampler")
	assert.Contains(t, sampler(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}

func TestUntracedPaths(t *testing.T) {
	for _, p := range []string{"/health", "/healthz", "/ready", "/metrics"} {
		assert.True(t, untraced[p], p)
	}
	assert.False(t, untraced["/api/graph/entities"])
}
