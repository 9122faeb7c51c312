// Package metrics provides helpers for emitting viewer lifecycle metrics.
package metrics

import (
	"time"

	obserrors "github.com/docvault/viewer-api/internal/observability/errors"
	"github.com/docvault/viewer-api/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess  = "success"
	ResultError    = "error"
	ResultDenied   = "denied"
	ResultRejected = "rejected"
	ResultNoop     = "noop"
)

// ViewerOp captures details about one viewer operation for metric emission.
type ViewerOp struct {
	Operation string // issue, content, activity, refresh
	Result    string
	Duration  time.Duration
	Err       error
}

// EmitViewerOp emits standardised viewer operation metrics.
func EmitViewerOp(sink statsd.Sink, in ViewerOp) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"operation": in.Operation,
		"result":    in.Result,
	}

	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("viewer.operation", 1, tags)

	if in.Duration > 0 {
		sink.Timing("viewer.operation_duration", in.Duration, CloneTags(tags))
	}
}

// CloneTags creates a shallow copy of a tag map, filtering out empty keys.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
