// Package metrics exposes Prometheus counters and histograms for requests
// seen by the fetch logger.
//
// A Recorder is bound to the registerer it was created with:
//
//	reg := prometheus.NewRegistry()
//	rec := metrics.New(reg)
//	http.Handle("/metrics", rec.Handler())
package metrics
