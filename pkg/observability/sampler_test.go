package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func fakeEnv(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func TestSelectSampler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		env   map[string]string
		ratio float64
		want  string
	}{
		{name: "default", want: "ParentBased{root:AlwaysOnSampler"},
		{name: "configured ratio", ratio: 0.25, want: "ParentBased{root:TraceIDRatioBased{0.25}"},
		{name: "full ratio", ratio: 1, want: "ParentBased{root:AlwaysOnSampler"},
		{name: "env always off", env: map[string]string{envTracesSampler: samplerAlwaysOff}, ratio: 0.25, want: "AlwaysOffSampler"},
		{
			name:  "env ratio",
			env:   map[string]string{envTracesSampler: samplerTraceIDRatio, envTracesSamplerArg: "0.5"},
			ratio: 0.25,
			want:  "TraceIDRatioBased{0.5}",
		},
		{
			name: "env parent ratio with bad arg",
			env:  map[string]string{envTracesSampler: samplerParentBasedTraceIDRatio, envTracesSamplerArg: "x"},
			want: "ParentBased{root:AlwaysOnSampler",
		},
		{name: "unknown env", env: map[string]string{envTracesSampler: "bogus"}, ratio: 0.25, want: "ParentBased{root:TraceIDRatioBased{0.25}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sampler := selectSampler(Config{SampleRatio: tt.ratio}, fakeEnv(tt.env))
			assert.Contains(t, sampler.Description(), tt.want)
		})
	}
}
