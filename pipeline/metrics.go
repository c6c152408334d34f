package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/YuminosukeSato/pricecast/pkg/errors"
)

// Metrics は1回の実行で記録するバッチ向けゲージ群。
// グローバルレジストリは使わず、実行ごとに node_exporter の
// textfile collector 形式で書き出す。
type Metrics struct {
	Registry *prometheus.Registry

	StageDuration  *prometheus.GaugeVec
	MatrixDims     *prometheus.GaugeVec
	MemberRMSE     *prometheus.GaugeVec
	MemberDuration *prometheus.GaugeVec
	LastSuccess    prometheus.Gauge
}

// NewMetrics registers the gauges on a fresh registry. flow is attached
// to every series as a constant label.
func NewMetrics(flow string) *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	labels := prometheus.Labels{"flow": flow}

	return &Metrics{
		Registry: reg,
		StageDuration: f.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "pricecast_stage_duration_seconds",
			Help:        "Wall time of each pipeline stage",
			ConstLabels: labels,
		}, []string{"stage"}),
		MatrixDims: f.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "pricecast_design_matrix_size",
			Help:        "Rows and columns of the assembled design matrix",
			ConstLabels: labels,
		}, []string{"split", "dim"}),
		MemberRMSE: f.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "pricecast_member_train_rmse",
			Help:        "Training RMSE of each ensemble member in log space",
			ConstLabels: labels,
		}, []string{"member"}),
		MemberDuration: f.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "pricecast_member_duration_seconds",
			Help:        "Fit and predict time of each ensemble member",
			ConstLabels: labels,
		}, []string{"member"}),
		LastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Name:        "pricecast_last_success_timestamp_seconds",
			Help:        "Unix time of the last successful run",
			ConstLabels: labels,
		}),
	}
}

// ObserveStage records a stage duration.
func (m *Metrics) ObserveStage(stage string, elapsed time.Duration) {
	m.StageDuration.WithLabelValues(stage).Set(elapsed.Seconds())
}

// ObserveMatrix records the shape of one split.
func (m *Metrics) ObserveMatrix(split string, rows, cols int) {
	m.MatrixDims.WithLabelValues(split, "rows").Set(float64(rows))
	m.MatrixDims.WithLabelValues(split, "cols").Set(float64(cols))
}

// WriteTextfile writes every gauge to path atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return errors.Wrapf(err, "write metrics %s", path)
	}
	return nil
}
