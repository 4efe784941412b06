package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/biobasis-merge/internal/config"
	"github.com/couchcryptid/biobasis-merge/internal/domain"
	"github.com/couchcryptid/biobasis-merge/internal/grid"
	"github.com/couchcryptid/biobasis-merge/internal/pipeline"
)

// RowMessage is the JSON value of one published grid row. Missing values
// are encoded as null.
type RowMessage struct {
	RunID     string              `json:"run_id"`
	Station   string              `json:"station"`
	Timestamp string              `json:"timestamp"`
	Fields    map[string]*float64 `json:"fields"`
}

// messageWriter is the subset of *kafkago.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes each merged row as one message, keyed by timestamp.
// It implements pipeline.Sink.
type Writer struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, topic: cfg.KafkaTopic, logger: logger}
}

func (w *Writer) Name() string { return "kafka" }

// Destinations implements pipeline.Describer.
func (w *Writer) Destinations(_ grid.DateRange) []string {
	return []string{"kafka topic " + w.topic}
}

// Write serializes every row of run and publishes them in a single
// WriteMessages call.
func (w *Writer) Write(ctx context.Context, run *pipeline.Run) error {
	if run.Series.Len() == 0 {
		return nil
	}
	fields := run.Series.DataColumns(run.TimestampField)
	msgs := make([]kafkago.Message, run.Series.Len())
	for i, rec := range run.Series.Records {
		msg, err := serializeToMessage(run, rec, fields)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d rows to %s: %w", len(msgs), w.topic, err)
	}
	w.logger.Info("published rows to kafka", "topic", w.topic, "rows", len(msgs), "run_id", run.ID)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals one grid row into a Kafka message.
func serializeToMessage(run *pipeline.Run, rec domain.Record, fields []string) (kafkago.Message, error) {
	ts := rec.Timestamp.Format(domain.TimestampLayout)
	row := RowMessage{
		RunID:     run.ID,
		Station:   run.Station,
		Timestamp: ts,
		Fields:    make(map[string]*float64, len(fields)),
	}
	for _, f := range fields {
		if v, ok := rec.Get(f).Get(); ok {
			row.Fields[f] = &v
		} else {
			row.Fields[f] = nil
		}
	}
	data, err := json.Marshal(row)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize row %s: %w", ts, err)
	}
	return kafkago.Message{
		Key:   []byte(ts),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "station", Value: []byte(run.Station)},
			{Key: "run_id", Value: []byte(run.ID)},
			{Key: "created_at", Value: []byte(run.CreatedAt.Format(time.RFC3339))},
		},
	}, nil
}
