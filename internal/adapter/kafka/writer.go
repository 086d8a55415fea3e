package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/paulmach/orb/geojson"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/firms-osm-xref/internal/domain"
)

// Writer publishes association rows to a Kafka topic.
// It implements pipeline.AssociationSink.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// AssociationMessage is the JSON value of a published association.
type AssociationMessage struct {
	RunID       string            `json:"run_id"`
	BBoxID      string            `json:"bbox_id"`
	ElementType string            `json:"element_type"`
	OSMID       int64             `json:"osmid"`
	Tags        map[string]string `json:"tags"`
	Geometry    *geojson.Geometry `json:"geometry"`
	EventIDs    []string          `json:"event_ids"`
}

// LoadBatch serializes and publishes every row in a single WriteMessages
// call. Rows are keyed by "<element_type>/<osmid>" so all matches of one
// feature land on one partition.
func (w *Writer) LoadBatch(ctx context.Context, runID string, rows []domain.Association) error {
	if len(rows) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(rows))
	for i := range rows {
		msg, err := serializeToMessage(runID, rows[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish associations: %w", err)
	}
	w.logger.Info("associations published", "topic", w.writer.Topic, "count", len(msgs), "run_id", runID)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func serializeToMessage(runID string, row domain.Association) (kafkago.Message, error) {
	msg := AssociationMessage{
		RunID:       runID,
		BBoxID:      row.BBoxID,
		ElementType: row.Feature.ElementType,
		OSMID:       row.Feature.OSMID,
		Tags:        row.Feature.Tags,
		EventIDs:    row.EventIDs,
	}
	if row.Feature.Geometry != nil {
		msg.Geometry = geojson.NewGeometry(row.Feature.Geometry)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize association %s: %w", row.Feature.Key(), err)
	}
	return kafkago.Message{
		Key:   []byte(row.Feature.Key()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(runID)},
			{Key: "bbox_id", Value: []byte(row.BBoxID)},
		},
	}, nil
}
