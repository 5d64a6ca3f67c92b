package metrics

import (
	"time"

	"github.com/gnosis/tradingdb/internal/config"
	"github.com/gnosis/tradingdb/internal/metrics/dogstatsd"
	"github.com/gnosis/tradingdb/internal/metrics/metricsTypes"
	"github.com/gnosis/tradingdb/internal/metrics/prometheus"
	"go.uber.org/zap"
)

type MetricsSink struct {
	clients []metricsTypes.IMetricsClient
	config  *MetricsSinkConfig
	logger  *zap.Logger
}

type MetricsSinkConfig struct {
	DefaultLabels []metricsTypes.MetricsLabel
}

func NewMetricsSink(cfg *MetricsSinkConfig, clients []metricsTypes.IMetricsClient, l *zap.Logger) (*MetricsSink, error) {
	if cfg.DefaultLabels == nil {
		cfg.DefaultLabels = []metricsTypes.MetricsLabel{}
	}
	return &MetricsSink{
		clients: clients,
		config:  cfg,
		logger:  l,
	}, nil
}

// NewNoopMetricsSink returns a sink without clients, for tests and one-shot commands.
func NewNoopMetricsSink() *MetricsSink {
	return &MetricsSink{
		clients: []metricsTypes.IMetricsClient{},
		config:  &MetricsSinkConfig{DefaultLabels: []metricsTypes.MetricsLabel{}},
		logger:  zap.NewNop(),
	}
}

func mergeLabels(labels []metricsTypes.MetricsLabel, defaultLabels []metricsTypes.MetricsLabel) []metricsTypes.MetricsLabel {
	if labels == nil {
		return defaultLabels
	}
	mergedLabels := make([]metricsTypes.MetricsLabel, 0, len(defaultLabels)+len(labels))
	mergedLabels = append(mergedLabels, defaultLabels...)
	mergedLabels = append(mergedLabels, labels...)
	return mergedLabels
}

// Incr never fails the caller; a broken metrics client is logged and ignored.
func (ms *MetricsSink) Incr(name string, labels []metricsTypes.MetricsLabel, value float64) {
	mergedLabels := mergeLabels(labels, ms.config.DefaultLabels)
	for _, client := range ms.clients {
		if err := client.Incr(name, mergedLabels, value); err != nil {
			ms.logger.Sugar().Warnw("Failed to record metric", zap.String("name", name), zap.Error(err))
		}
	}
}

func (ms *MetricsSink) Gauge(name string, value float64, labels []metricsTypes.MetricsLabel) {
	mergedLabels := mergeLabels(labels, ms.config.DefaultLabels)
	for _, client := range ms.clients {
		if err := client.Gauge(name, value, mergedLabels); err != nil {
			ms.logger.Sugar().Warnw("Failed to record metric", zap.String("name", name), zap.Error(err))
		}
	}
}

func (ms *MetricsSink) Timing(name string, value time.Duration, labels []metricsTypes.MetricsLabel) {
	mergedLabels := mergeLabels(labels, ms.config.DefaultLabels)
	for _, client := range ms.clients {
		if err := client.Timing(name, value, mergedLabels); err != nil {
			ms.logger.Sugar().Warnw("Failed to record metric", zap.String("name", name), zap.Error(err))
		}
	}
}

func InitMetricsSinksFromConfig(cfg *config.Config, l *zap.Logger) ([]metricsTypes.IMetricsClient, error) {
	clients := []metricsTypes.IMetricsClient{}

	if cfg.DataDogConfig.StatsdConfig.Enabled {
		dd, err := dogstatsd.NewDogStatsdMetricsClient(cfg.DataDogConfig.StatsdConfig.Url, cfg.DataDogConfig.StatsdConfig.SampleRate, l)
		if err != nil {
			return nil, err
		}
		clients = append(clients, dd)
	}

	if cfg.PrometheusConfig.Enabled {
		pm, err := prometheus.NewPrometheusMetricsClient(&prometheus.PrometheusMetricsConfig{
			Metrics: metricsTypes.MetricTypes,
		}, l)
		if err != nil {
			return nil, err
		}
		clients = append(clients, pm)
	}

	return clients, nil
}
