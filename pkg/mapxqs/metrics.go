package mapxqs

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/grafana/mapxqs/pkg/mapfile"
)

type Metrics struct {
	Builds         *prometheus.CounterVec
	Records        *prometheus.CounterVec
	Duplicates     *prometheus.CounterVec
	MalformedLines prometheus.Counter
	BytesWritten   prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mapxqs_builds_total",
			Help: "Total number of map files converted, by detected dialect",
		}, []string{"dialect"}),
		Records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mapxqs_records_total",
			Help: "Total number of records read from map files",
		}, []string{"kind"}),
		Duplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mapxqs_duplicate_records_total",
			Help: "Total number of records resolved as duplicates",
		}, []string{"kind"}),
		MalformedLines: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mapxqs_malformed_lines_total",
			Help: "Total number of map file lines skipped as malformed",
		}),
		BytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mapxqs_written_bytes_total",
			Help: "Total number of bytes written to symbol files",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Builds,
			m.Records,
			m.Duplicates,
			m.MalformedLines,
			m.BytesWritten,
		)
	}

	return m
}

func (m *Metrics) observe(d mapfile.Dialect, s mapfile.Stats) {
	m.Builds.WithLabelValues(d.String()).Inc()
	m.Records.WithLabelValues("module").Add(float64(s.Modules))
	m.Records.WithLabelValues("symbol").Add(float64(s.Symbols))
	m.Duplicates.WithLabelValues("module").Add(float64(s.DuplicateModules))
	m.Duplicates.WithLabelValues("symbol").Add(float64(s.DuplicateSymbols))
	m.MalformedLines.Add(float64(s.MalformedLines))
}
