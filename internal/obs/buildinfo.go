package obs

import (
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	consoleInfoOnce sync.Once

	consoleInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "console_build_info",
		Help: "Always 1; labels carry the console version, commit and Go runtime.",
	}, []string{"version", "commit", "go_version"})

	consoleStarted = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "console_start_time_seconds",
		Help: "Unix time the console server started.",
	})
)

// InitBuildInfo publishes the version labels and start time. Calling it again
// adds another label set but never re-registers.
func InitBuildInfo(version, commit string) {
	consoleInfoOnce.Do(func() {
		prometheus.MustRegister(consoleInfo, consoleStarted)
		consoleStarted.Set(float64(time.Now().Unix()))
	})
	consoleInfo.WithLabelValues(version, commit, runtime.Version()).Set(1)
}
