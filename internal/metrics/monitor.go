package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CamerasTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hikstatus_cameras_total",
		Help: "Cameras tracked across all configured NVRs as of the last cycle",
	})

	CamerasOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hikstatus_cameras_online",
		Help: "Cameras online as of the last cycle",
	})

	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hikstatus_cycles_total",
		Help: "Completed poll cycles",
	}, []string{"result"})

	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hikstatus_cycle_duration_seconds",
		Help:    "Wall time of one poll/reconcile/alert cycle",
		Buckets: prometheus.DefBuckets,
	})

	NVRPollErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hikstatus_nvr_poll_errors_total",
		Help: "NVR-level poll failures",
	}, []string{"nvr"})

	DigestEmails = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hikstatus_digest_emails_total",
		Help: "Digest email delivery attempts",
	}, []string{"result"})
)
