package metricsTypes

import "time"

type IMetricsClient interface {
	Incr(name string, labels []MetricsLabel, value float64) error
	Gauge(name string, value float64, labels []MetricsLabel) error
	Timing(name string, value time.Duration, labels []MetricsLabel) error
}

type MetricsLabel struct {
	Name  string
	Value string
}

type MetricsType string

var (
	MetricsType_Incr   MetricsType = "incr"
	MetricsType_Gauge  MetricsType = "gauge"
	MetricsType_Timing MetricsType = "timing"
)

type MetricsTypeConfig struct {
	Name   string
	Labels []string
}

var (
	Metric_Incr_EventApplied  = "receiver_event_applied"
	Metric_Incr_EventSkipped  = "receiver_event_skipped"
	Metric_Incr_EventFailed   = "receiver_event_failed"
	Metric_Incr_MessageFailed = "ingestion_message_failed"

	Metric_Incr_TournamentTokensIssued = "tournament_tokens_issued"

	Metric_Gauge_LastBlockNumber = "ingestion_last_block_number"

	Metric_Timing_EventDuration = "receiver_event_duration"
)

var MetricTypes = map[MetricsType][]MetricsTypeConfig{
	MetricsType_Incr: {
		MetricsTypeConfig{
			Name:   Metric_Incr_EventApplied,
			Labels: []string{"receiver", "event"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_EventSkipped,
			Labels: []string{"receiver", "event"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_EventFailed,
			Labels: []string{"receiver", "event"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_MessageFailed,
			Labels: []string{"reason"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_TournamentTokensIssued,
			Labels: []string{},
		},
	},
	MetricsType_Gauge: {
		MetricsTypeConfig{
			Name:   Metric_Gauge_LastBlockNumber,
			Labels: []string{},
		},
	},
	MetricsType_Timing: {
		MetricsTypeConfig{
			Name:   Metric_Timing_EventDuration,
			Labels: []string{"receiver", "event"},
		},
	},
}
