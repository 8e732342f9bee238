package accesslog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var accessLogsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "compound_access_logs_total",
	Help: "Access log entries recorded, by access type and method.",
}, []string{"access_type", "method"})
