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

	coremetrics "github.com/kilianp07/dutysched/core/metrics"
	"github.com/kilianp07/dutysched/core/model"
	"github.com/kilianp07/dutysched/infra/logger"
)

// InfluxSink writes duty transitions and fleet summaries to InfluxDB.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a
// NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
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

// RecordTransition writes a duty_transition point.
func (s *InfluxSink) RecordTransition(ev model.TransitionEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, transitionPoint(ev))
}

// RecordDashboard writes a fleet_dashboard point.
func (s *InfluxSink) RecordDashboard(ev coremetrics.DashboardEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, dashboardPoint(ev))
}

// Close releases the underlying HTTP client.
func (s *InfluxSink) Close() { s.client.Close() }

func transitionPoint(ev model.TransitionEvent) *write.Point {
	from := string(ev.Previous)
	if from == "" {
		from = "new"
	}
	p := write.NewPointWithMeasurement("duty_transition").
		AddTag("duty_id", ev.DutyID).
		AddTag("kind", string(ev.Kind)).
		AddTag("from", from).
		AddTag("to", string(ev.Next))
	if ev.DriverID != "" {
		p = p.AddTag("driver_id", ev.DriverID)
	}
	if ev.VehicleID != "" {
		p = p.AddTag("vehicle_id", ev.VehicleID)
	}
	return p.AddField("seq", int64(ev.Seq)).SetTime(ev.At)
}

func dashboardPoint(ev coremetrics.DashboardEvent) *write.Point {
	d := ev.Dashboard
	return write.NewPointWithMeasurement("fleet_dashboard").
		AddTag("component", "status_feed").
		AddField("total", d.Total).
		AddField("completed", d.Completed).
		AddField("ongoing", d.Ongoing).
		AddField("scheduled", d.Scheduled).
		AddField("unassigned", d.Unassigned).
		AddField("cancelled", d.Cancelled).
		AddField("utilization", round3(d.UtilizationRate)).
		AddField("seq", int64(ev.Seq)).
		SetTime(ev.Time)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
