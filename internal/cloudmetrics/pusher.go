package cloudmetrics

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/prometheus/prompb"
	"github.com/smallbiznis/kolaffiliate/internal/config"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/protoadapt"
)

const (
	exporterPrometheusRemoteWrite = "prometheus_remote_write"
	exporterPrometheusPushgateway = "prometheus_pushgateway"

	remoteWriteTimeout = 5 * time.Second
	metricNameLabel    = "__name__"
)

var (
	errExporterMissing = errors.New("cloud metrics exporter is required")
	errEndpointMissing = errors.New("cloud metrics endpoint is required")
)

// Pusher ships the accounting registry somewhere outside the process.
type Pusher interface {
	Push(ctx context.Context, registry *prometheus.Registry) error
}

// NewPusher returns nil whenever the exporter cannot be built, which keeps
// the push job out of the scheduler entirely.
func NewPusher(cfg config.Config, logger *zap.Logger) Pusher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Metrics.Enabled {
		return nil
	}

	exporter, endpoint, err := exporterTarget(cfg.Metrics)
	if err != nil {
		logger.Warn("cloud metrics disabled", zap.String("exporter", exporter), zap.Error(err))
		return nil
	}

	labels := map[string]string{
		"service":     strings.TrimSpace(cfg.AppName),
		"environment": strings.TrimSpace(cfg.Environment),
	}

	switch exporter {
	case exporterPrometheusRemoteWrite:
		p := NewRemoteWritePusher(endpoint, cfg.Metrics.AuthToken)
		p.external = labels
		return p
	case exporterPrometheusPushgateway:
		return NewPushgatewayPusher(endpoint, cfg.AppName, map[string]string{
			"environment": labels["environment"],
		})
	}
	logger.Warn("cloud metrics disabled", zap.String("exporter", exporter), zap.Error(errors.New("unsupported exporter")))
	return nil
}

// exporterTarget normalizes the exporter name and checks the endpoint is an
// absolute URL.
func exporterTarget(cfg config.CloudMetricsConfig) (string, string, error) {
	exporter := strings.ToLower(strings.TrimSpace(cfg.Exporter))
	endpoint := strings.TrimSpace(cfg.Endpoint)
	switch {
	case exporter == "":
		return exporter, endpoint, errExporterMissing
	case endpoint == "":
		return exporter, endpoint, errEndpointMissing
	}
	u, err := url.ParseRequestURI(endpoint)
	if err != nil {
		return exporter, endpoint, fmt.Errorf("invalid cloud metrics endpoint: %w", err)
	}
	if u.Host == "" {
		return exporter, endpoint, fmt.Errorf("invalid cloud metrics endpoint %q: missing host", endpoint)
	}
	return exporter, endpoint, nil
}

// RemoteWritePusher posts snappy-compressed prompb write requests.
type RemoteWritePusher struct {
	endpoint  string
	authToken string
	external  map[string]string
	client    *http.Client
	now       func() time.Time
}

func NewRemoteWritePusher(endpoint, authToken string) *RemoteWritePusher {
	return &RemoteWritePusher{
		endpoint:  endpoint,
		authToken: strings.TrimSpace(authToken),
		client:    &http.Client{Timeout: remoteWriteTimeout},
		now:       time.Now,
	}
}

func (p *RemoteWritePusher) Push(ctx context.Context, registry *prometheus.Registry) error {
	if p == nil || registry == nil {
		return nil
	}

	families, err := registry.Gather()
	if err != nil {
		return err
	}
	series := toTimeSeries(families, p.external, p.now().UnixMilli())
	if len(series) == 0 {
		return nil
	}

	body, err := encodeWriteRequest(series)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-protobuf")
	req.Header.Set("Content-Encoding", "snappy")
	req.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")
	if p.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.authToken)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("remote write to %s returned %s", p.endpoint, resp.Status)
	}
	return nil
}

func encodeWriteRequest(series []prompb.TimeSeries) ([]byte, error) {
	payload, err := proto.Marshal(protoadapt.MessageV2Of(&prompb.WriteRequest{Timeseries: series}))
	if err != nil {
		return nil, err
	}
	return snappy.Encode(nil, payload), nil
}

// PushgatewayPusher replaces the job's group on a Pushgateway each run.
type PushgatewayPusher struct {
	endpoint string
	job      string
	grouping map[string]string
}

func NewPushgatewayPusher(endpoint, job string, grouping map[string]string) *PushgatewayPusher {
	return &PushgatewayPusher{
		endpoint: strings.TrimSpace(endpoint),
		job:      strings.TrimSpace(job),
		grouping: grouping,
	}
}

func (p *PushgatewayPusher) Push(ctx context.Context, registry *prometheus.Registry) error {
	if p == nil || registry == nil {
		return nil
	}
	if p.endpoint == "" {
		return errEndpointMissing
	}
	if p.job == "" {
		return errors.New("pushgateway job is required")
	}

	req := push.New(p.endpoint, p.job).Gatherer(registry)
	for _, key := range sortedKeys(p.grouping) {
		if value := strings.TrimSpace(p.grouping[key]); value != "" {
			req = req.Grouping(key, value)
		}
	}
	return req.PushContext(ctx)
}

// toTimeSeries flattens counters and gauges into one sample per series.
// External labels never override a label the metric already carries.
func toTimeSeries(families []*dto.MetricFamily, external map[string]string, ts int64) []prompb.TimeSeries {
	var out []prompb.TimeSeries
	for _, family := range families {
		for _, m := range family.GetMetric() {
			value, ok := sampleValue(family.GetType(), m)
			if !ok {
				continue
			}
			out = append(out, prompb.TimeSeries{
				Labels:  seriesLabels(family.GetName(), m.GetLabel(), external),
				Samples: []prompb.Sample{{Value: value, Timestamp: ts}},
			})
		}
	}
	return out
}

func seriesLabels(name string, pairs []*dto.LabelPair, external map[string]string) []prompb.Label {
	seen := make(map[string]struct{}, len(pairs)+1)
	labels := make([]prompb.Label, 0, len(pairs)+len(external)+1)

	labels = append(labels, prompb.Label{Name: metricNameLabel, Value: name})
	seen[metricNameLabel] = struct{}{}
	for _, pair := range pairs {
		labels = append(labels, prompb.Label{Name: pair.GetName(), Value: pair.GetValue()})
		seen[pair.GetName()] = struct{}{}
	}
	for _, key := range sortedKeys(external) {
		value := external[key]
		if _, dup := seen[key]; dup || key == "" || value == "" {
			continue
		}
		labels = append(labels, prompb.Label{Name: key, Value: value})
	}

	// remote_write receivers expect labels sorted by name
	sort.Slice(labels, func(i, j int) bool { return labels[i].Name < labels[j].Name })
	return labels
}

func sampleValue(kind dto.MetricType, m *dto.Metric) (float64, bool) {
	switch {
	case m == nil:
		return 0, false
	case kind == dto.MetricType_COUNTER && m.GetCounter() != nil:
		return m.GetCounter().GetValue(), true
	case kind == dto.MetricType_GAUGE && m.GetGauge() != nil:
		return m.GetGauge().GetValue(), true
	}
	return 0, false
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
