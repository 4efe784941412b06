package influx

import (
	"context"
	"fmt"
	"log/slog"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/couchcryptid/biobasis-merge/internal/config"
	"github.com/couchcryptid/biobasis-merge/internal/grid"
	"github.com/couchcryptid/biobasis-merge/internal/pipeline"
)

// Measurement is the InfluxDB measurement merged rows are written to.
const Measurement = "biobasis"

const pointsPerRequest = 5000

// Writer stores each merged row as one point tagged with the station.
// Missing fields are left out of the point; rows with no values are skipped.
// It implements pipeline.Sink.
type Writer struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	org      string
	bucket   string
	logger   *slog.Logger
}

// NewWriter creates an InfluxDB client for the configured bucket.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	client := influxdb2.NewClient(cfg.InfluxURL, cfg.InfluxToken)
	return &Writer{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket),
		org:      cfg.InfluxOrg,
		bucket:   cfg.InfluxBucket,
		logger:   logger,
	}
}

func (w *Writer) Name() string { return "influx" }

// Destinations implements pipeline.Describer.
func (w *Writer) Destinations(_ grid.DateRange) []string {
	return []string{fmt.Sprintf("influx bucket %s/%s", w.org, w.bucket)}
}

// Write converts run into points and writes them in blocking batches.
func (w *Writer) Write(ctx context.Context, run *pipeline.Run) error {
	points := Points(run)
	for start := 0; start < len(points); start += pointsPerRequest {
		end := min(start+pointsPerRequest, len(points))
		if err := w.writeAPI.WritePoint(ctx, points[start:end]...); err != nil {
			return fmt.Errorf("write points to influx bucket %s: %w", w.bucket, err)
		}
	}
	w.logger.Info("wrote points to influx", "bucket", w.bucket, "points", len(points), "run_id", run.ID)
	return nil
}

// CheckReadiness pings the InfluxDB server.
func (w *Writer) CheckReadiness(ctx context.Context) error {
	ok, err := w.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("influx ping: %w", err)
	}
	if !ok {
		return fmt.Errorf("influx at %s not ready", w.client.ServerURL())
	}
	return nil
}

func (w *Writer) Close() error {
	w.client.Close()
	return nil
}

// Points builds one point per row that has at least one present value.
func Points(run *pipeline.Run) []*write.Point {
	fields := run.Series.DataColumns(run.TimestampField)
	tags := map[string]string{"station": run.Station}

	points := make([]*write.Point, 0, run.Series.Len())
	for _, rec := range run.Series.Records {
		values := make(map[string]interface{}, len(fields))
		for _, f := range fields {
			if v, ok := rec.Get(f).Get(); ok {
				values[f] = v
			}
		}
		if len(values) == 0 {
			continue
		}
		points = append(points, influxdb2.NewPoint(Measurement, tags, values, rec.Timestamp))
	}
	return points
}

var _ pipeline.Sink = (*Writer)(nil)
