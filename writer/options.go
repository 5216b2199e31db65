package writer

import (
	"github.com/go-lynx/logsink/log"
	"github.com/go-lynx/logsink/observability/metrics"
)

// Option configures a Writer
type Option func(*options)

type options struct {
	logger  log.Logger
	metrics *metrics.WriterMetrics
}

// WithLogger sets the logger used for flush and failure entries.
// Defaults to the process-wide logger
func WithLogger(l log.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics reports writer activity through m
func WithMetrics(m *metrics.WriterMetrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}
