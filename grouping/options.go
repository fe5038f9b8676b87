package grouping

import (
	"fmt"
	"math"
)

// Bounds offered by interactive front ends. The engine itself only enforces
// GroupSize >= 1 and MaxSpread >= 0.
const (
	MinSuggestedSpread    = 1
	MaxSuggestedSpread    = 50
	MinSuggestedGroupSize = 2
	MaxSuggestedGroupSize = 10
)

// Options configures one grouping invocation.
type Options struct {
	Mixed     bool    `json:"mixed" yaml:"mixed"`
	MaxSpread float64 `json:"maxSpread" yaml:"max_spread"`
	GroupSize int     `json:"groupSize" yaml:"group_size"`
	// Labels are the two sex labels used in segregated mode, in output order.
	Labels [2]string `json:"labels" yaml:"labels"`
}

// DefaultOptions returns mixed grouping, groups of 4, 10 units of spread.
func DefaultOptions() Options {
	return Options{
		Mixed:     true,
		MaxSpread: 10,
		GroupSize: 4,
		Labels:    [2]string{"F", "M"},
	}
}

// Validate checks the hard limits. Errors wrap ErrInvalidConfiguration.
func (o Options) Validate() error {
	if o.GroupSize < 1 {
		return invalidConfig("group size must be >= 1, got %d", o.GroupSize)
	}
	if math.IsNaN(o.MaxSpread) || o.MaxSpread < 0 {
		return invalidConfig("max weight spread must be >= 0, got %v", o.MaxSpread)
	}
	if !o.Mixed {
		if o.Labels[0] == "" || o.Labels[1] == "" {
			return invalidConfig("segregated grouping needs two sex labels, got %q and %q", o.Labels[0], o.Labels[1])
		}
		if o.Labels[0] == o.Labels[1] {
			return invalidConfig("sex labels must differ, both are %q", o.Labels[0])
		}
	}
	return nil
}

func (o Options) String() string {
	return fmt.Sprintf("mixed=%t maxSpread=%v groupSize=%d", o.Mixed, o.MaxSpread, o.GroupSize)
}
