package domain

import (
	"github.com/wippyai/faultdomain"
	"github.com/wippyai/faultdomain/heap"
	"github.com/wippyai/faultdomain/metrics"
)

// Env carries what a domain receives at construction time. Identity is
// always injected here; domains never look it up from ambient state.
type Env struct {
	Heap    *heap.Heap
	Metrics *metrics.Metrics
	Name    string
	ID      faultdomain.ID
}
