package cloudmetrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/prometheus/prompb"
	linkrepository "github.com/smallbiznis/kolaffiliate/internal/affiliatelink/repository"
	"github.com/smallbiznis/kolaffiliate/internal/affiliatetest"
	"github.com/smallbiznis/kolaffiliate/internal/clock"
	"github.com/smallbiznis/kolaffiliate/internal/config"
	ledgerrepository "github.com/smallbiznis/kolaffiliate/internal/ledger/repository"
	ledgerservice "github.com/smallbiznis/kolaffiliate/internal/ledger/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturePusher struct {
	calls    int
	families map[string]float64
	err      error
}

func (p *capturePusher) Push(_ context.Context, registry *prometheus.Registry) error {
	p.calls++
	if p.err != nil {
		return p.err
	}
	families, err := registry.Gather()
	if err != nil {
		return err
	}
	p.families = map[string]float64{}
	for _, f := range families {
		for _, m := range f.GetMetric() {
			key := f.GetName()
			for _, l := range m.GetLabel() {
				if l.GetName() == "status" {
					key += "/" + l.GetValue()
				}
			}
			p.families[key] = m.GetGauge().GetValue()
		}
	}
	return nil
}

func newAccounting(t *testing.T, pusher Pusher) *CloudMetrics {
	t.Helper()
	db := affiliatetest.OpenDB(t)
	seed := affiliatetest.NewSeeder(db)
	node, err := snowflake.NewNode(9)
	require.NoError(t, err)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	fc := clock.NewFakeClock(now)
	log := zap.NewNop()

	seed.Kol(t, affiliatetest.KolFixture{ID: 1, RatePercent: 5})
	seed.Product(t, 10, "Serum", 100)
	past := now.Add(-time.Hour)
	seed.Link(t, affiliatetest.LinkFixture{ID: 100, KolID: 1, ProductID: 10, ShortCode: "live0001", CreatedAt: past})
	seed.Link(t, affiliatetest.LinkFixture{ID: 101, KolID: 1, ProductID: 10, ShortCode: "dead0001", ExpiresAt: &past, CreatedAt: past.Add(-time.Hour)})
	seed.Order(t, affiliatetest.OrderFixture{ID: 1000, KolID: 1, OrderID: "o-1", ProductID: 10, LinkID: 100, Quantity: 1, UnitPrice: 100, Revenue: 100, RatePercent: 5, Commission: 5})
	seed.Order(t, affiliatetest.OrderFixture{ID: 1001, KolID: 1, OrderID: "o-2", ProductID: 10, LinkID: 100, Quantity: 2, UnitPrice: 100, Revenue: 200, RatePercent: 5, Commission: 10, Status: "completed"})

	ledger := ledgerservice.NewService(ledgerservice.Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    fc,
		Repo:     ledgerrepository.Provide(),
		LinkRepo: linkrepository.Provide(),
	})

	return New(Params{
		Config:   config.Config{AppName: "kolaffiliate", Environment: "test"},
		DB:       db,
		Log:      log,
		Clock:    fc,
		Ledger:   ledger,
		LinkRepo: linkrepository.Provide(),
		Pusher:   pusher,
	})
}

func TestNewWithoutPusherIsDisabled(t *testing.T) {
	assert.Nil(t, New(Params{}))
	assert.Nil(t, provideSchedulerPusher(nil))
}

func TestPushRefreshesAccountingGauges(t *testing.T) {
	pusher := &capturePusher{}
	c := newAccounting(t, pusher)

	require.NoError(t, c.Push(context.Background()))
	assert.Equal(t, 1, pusher.calls)
	assert.Equal(t, 5.0, pusher.families["kolaffiliate_ledger_commission_amount/pending"])
	assert.Equal(t, 10.0, pusher.families["kolaffiliate_ledger_commission_amount/completed"])
	assert.Equal(t, 0.0, pusher.families["kolaffiliate_ledger_commission_amount/cancelled"])
	assert.Equal(t, 1.0, pusher.families["kolaffiliate_ledger_commission_rows/completed"])
	assert.Equal(t, 1.0, pusher.families["kolaffiliate_active_links"])
}

func TestPushReturnsPusherError(t *testing.T) {
	pusher := &capturePusher{err: errors.New("boom")}
	c := newAccounting(t, pusher)
	assert.EqualError(t, c.Push(context.Background()), "boom")
}

func TestRemoteWritePusherSendsSnappyProtobuf(t *testing.T) {
	var received prompb.WriteRequest
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		decoded, err := snappy.Decode(nil, body)
		require.NoError(t, err)
		require.NoError(t, received.Unmarshal(decoded))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	registry := prometheus.NewRegistry()
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "kolaffiliate_active_links", Help: "x"})
	registry.MustRegister(gauge)
	gauge.Set(3)

	pusher := NewRemoteWritePusher(srv.URL, "secret")
	pusher.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	require.NoError(t, pusher.Push(context.Background(), registry))

	assert.Equal(t, "snappy", headers.Get("Content-Encoding"))
	assert.Equal(t, "Bearer secret", headers.Get("Authorization"))
	require.Len(t, received.Timeseries, 1)
	series := received.Timeseries[0]
	assert.Equal(t, "__name__", series.Labels[0].Name)
	assert.Equal(t, "kolaffiliate_active_links", series.Labels[0].Value)
	require.Len(t, series.Samples, 1)
	assert.Equal(t, 3.0, series.Samples[0].Value)
	assert.Equal(t, int64(1_700_000_000_000), series.Samples[0].Timestamp)
}

func TestRemoteWritePusherReportsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	registry := prometheus.NewRegistry()
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "g", Help: "x"})
	registry.MustRegister(gauge)

	err := NewRemoteWritePusher(srv.URL, "").Push(context.Background(), registry)
	assert.ErrorContains(t, err, "502")
}

func TestNewPusherSelectsExporter(t *testing.T) {
	log := zap.NewNop()
	cases := []struct {
		name string
		cfg  config.CloudMetricsConfig
		want any
	}{
		{name: "disabled", cfg: config.CloudMetricsConfig{}, want: nil},
		{name: "missing endpoint", cfg: config.CloudMetricsConfig{Enabled: true, Exporter: exporterPrometheusRemoteWrite}, want: nil},
		{name: "unknown exporter", cfg: config.CloudMetricsConfig{Enabled: true, Exporter: "statsd", Endpoint: "http://x"}, want: nil},
		{name: "remote write", cfg: config.CloudMetricsConfig{Enabled: true, Exporter: exporterPrometheusRemoteWrite, Endpoint: "http://x/api/v1/write"}, want: &RemoteWritePusher{}},
		{name: "pushgateway", cfg: config.CloudMetricsConfig{Enabled: true, Exporter: exporterPrometheusPushgateway, Endpoint: "http://x"}, want: &PushgatewayPusher{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewPusher(config.Config{AppName: "kolaffiliate", Metrics: tc.cfg}, log)
			if tc.want == nil {
				assert.Nil(t, p)
				return
			}
			assert.IsType(t, tc.want, p)
		})
	}
}

func TestSeriesLabelsAddsExternalLabelsWithoutOverride(t *testing.T) {
	name, region := "region", "id"
	labels := seriesLabels("kolaffiliate_active_links", []*dto.LabelPair{{Name: &name, Value: &region}}, map[string]string{
		"service": "kolaffiliate",
		"region":  "ignored",
		"empty":   "",
	})

	require.Len(t, labels, 3)
	assert.Equal(t, "__name__", labels[0].Name)
	assert.Equal(t, prompb.Label{Name: "region", Value: "id"}, labels[1])
	assert.Equal(t, prompb.Label{Name: "service", Value: "kolaffiliate"}, labels[2])
}

func TestExporterTargetRejectsRelativeEndpoint(t *testing.T) {
	_, _, err := exporterTarget(config.CloudMetricsConfig{Exporter: "Prometheus_Remote_Write", Endpoint: "/api/v1/write"})
	assert.ErrorContains(t, err, "missing host")

	exporter, endpoint, err := exporterTarget(config.CloudMetricsConfig{Exporter: " Prometheus_Remote_Write ", Endpoint: " http://x/api/v1/write "})
	require.NoError(t, err)
	assert.Equal(t, exporterPrometheusRemoteWrite, exporter)
	assert.Equal(t, "http://x/api/v1/write", endpoint)
}
