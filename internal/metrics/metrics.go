package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Upload outcomes as seen by the caller
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Observer exports pipeline metrics to Prometheus. A nil *Observer is a no-op.
type Observer struct {
	uploads           *prometheus.CounterVec
	blobWriteDuration prometheus.Histogram
	blobWriteErrors   prometheus.Counter
	uploadedBytes     prometheus.Counter
	propagations      *prometheus.CounterVec
	makePublicErrors  prometheus.Counter
}

// NewObserver registers the pipeline metrics on reg
func NewObserver(namespace string, reg prometheus.Registerer) (*Observer, error) {
	if namespace == "" {
		namespace = "langdrop"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	o := &Observer{
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Upload requests by response outcome.",
		}, []string{"outcome"}),
		blobWriteDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "blob_write_duration_seconds",
			Help:      "Latency of detached blob writes.",
			Buckets:   prometheus.DefBuckets,
		}),
		blobWriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blob_write_errors_total",
			Help:      "Blob writes that failed.",
		}),
		uploadedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploaded_bytes_total",
			Help:      "Bytes successfully written to blob storage.",
		}),
		propagations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "propagation_total",
			Help:      "Metadata propagations by sink variant and outcome.",
		}, []string{"variant", "outcome"}),
		makePublicErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "make_public_errors_total",
			Help:      "Blobs whose public visibility could not be set.",
		}),
	}

	collectors := []prometheus.Collector{
		o.uploads, o.blobWriteDuration, o.blobWriteErrors,
		o.uploadedBytes, o.propagations, o.makePublicErrors,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register pipeline metric: %w", err)
		}
	}
	return o, nil
}

// RecordUpload counts one upload response
func (o *Observer) RecordUpload(outcome string) {
	if o == nil {
		return
	}
	o.uploads.WithLabelValues(outcome).Inc()
}

// RecordBlobWrite tracks blob write latency, size and failures
func (o *Observer) RecordBlobWrite(duration time.Duration, sizeBytes int64, err error) {
	if o == nil {
		return
	}
	o.blobWriteDuration.Observe(duration.Seconds())
	if err != nil {
		o.blobWriteErrors.Inc()
		return
	}
	o.uploadedBytes.Add(float64(sizeBytes))
}

// RecordPropagation counts one metadata propagation attempt
func (o *Observer) RecordPropagation(variant string, err error) {
	if o == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	o.propagations.WithLabelValues(variant, outcome).Inc()
}

// RecordMakePublic counts failed visibility changes
func (o *Observer) RecordMakePublic(err error) {
	if o == nil || err == nil {
		return
	}
	o.makePublicErrors.Inc()
}
