package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/mgdispatch/core/metrics"
	"github.com/kilianp07/mgdispatch/infra/logger"
)

const (
	measurementSetpoint = "actor_setpoint"
	measurementSummary  = "dispatch_summary"
)

// InfluxConfig holds the InfluxDB connection settings.
type InfluxConfig struct {
	URL     string        `json:"url"`
	Token   string        `json:"token"`
	Org     string        `json:"org"`
	Bucket  string        `json:"bucket"`
	Timeout time.Duration `json:"timeout"`
}

// InfluxSink writes dispatch records to InfluxDB using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	timeout  time.Duration
	log      logger.Logger
}

// NewInfluxSink creates a sink for the given endpoint. A URL ending with the
// write path is accepted.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		timeout:  cfg.Timeout,
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback checks the instance health and returns a NopSink
// when it is unreachable.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), sink.timeout)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordDispatch writes one point per actor record.
func (s *InfluxSink) RecordDispatch(recs []coremetrics.DispatchRecord) error {
	if len(recs) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	points := make([]*write.Point, len(recs))
	for i, r := range recs {
		points[i] = setpointPoint(r)
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

// RecordSummary writes the run summary point.
func (s *InfluxSink) RecordSummary(rec coremetrics.SummaryRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, summaryPoint(rec))
}

// Close releases the client resources.
func (s *InfluxSink) Close() { s.client.Close() }

func setpointPoint(r coremetrics.DispatchRecord) *write.Point {
	p := write.NewPointWithMeasurement(measurementSetpoint).
		AddTag("label", r.Label).
		AddTag("run_id", r.RunID)
	if r.Kind != "" {
		p = p.AddTag("kind", string(r.Kind))
	}
	return p.AddField("power", round3(r.Power)).SetTime(r.Timestamp)
}

func summaryPoint(rec coremetrics.SummaryRecord) *write.Point {
	return write.NewPointWithMeasurement(measurementSummary).
		AddTag("run_id", rec.RunID).
		AddField("supplied", round3(rec.Supplied)).
		AddField("consumed", round3(rec.Consumed)).
		AddField("circuits", rec.Circuits).
		AddField("warnings", rec.Warnings).
		AddField("unserved", rec.Unserved).
		AddField("duration_ms", round3(rec.Duration.Seconds()*1000)).
		SetTime(rec.Timestamp)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
