//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/paulmach/orb"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/firms-osm-xref/internal/adapter/kafka"
	"github.com/couchcryptid/firms-osm-xref/internal/domain"
	"github.com/couchcryptid/firms-osm-xref/internal/observability"
	"github.com/couchcryptid/firms-osm-xref/internal/pipeline"
)

const testTopic = "test-associations"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node Kafka container and returns its broker address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("test-cluster"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(container)
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// publishedMessage holds a deserialized association read back from the topic.
type publishedMessage struct {
	Assoc   kafka.AssociationMessage
	Key     string
	Headers map[string]string
}

func readPublished(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from association topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var assoc kafka.AssociationMessage
	require.NoError(t, json.Unmarshal(msg.Value, &assoc), "unmarshal association message")

	return publishedMessage{Assoc: assoc, Key: string(msg.Key), Headers: headers}
}

// --- in-memory stages ---

type staticResolver struct{ boundary domain.Boundary }

func (r staticResolver) Resolve(context.Context, string) (domain.Boundary, error) {
	return r.boundary, nil
}

type staticFetcher struct{ rows map[string][]domain.Detection }

func (f staticFetcher) Fetch(_ context.Context, sensor string, day time.Time) domain.FetchResult {
	return domain.FetchResult{Sensor: sensor, Day: day, Attempts: 1, Rows: f.rows[sensor]}
}

type staticSource struct{ features []domain.MapFeature }

func (s staticSource) Features(_ context.Context, box domain.BoundingBox, _ domain.TagFilter) ([]domain.MapFeature, error) {
	var out []domain.MapFeature
	for _, f := range s.features {
		if f.Geometry.Bound().Intersects(box.Bound()) {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return nil, domain.ErrNoFeatures
	}
	return out, nil
}

func detection(sensor string, lat, lon float64) domain.Detection {
	return domain.Detection{
		Source:  sensor,
		Lat:     lat,
		Lon:     lon,
		AcqDate: "2024-01-05",
		AcqTime: "1200",
		Columns: []string{"latitude", "longitude", "acq_date", "acq_time"},
		Attributes: map[string]string{
			"latitude":  strconv.FormatFloat(lat, 'f', -1, 64),
			"longitude": strconv.FormatFloat(lon, 'f', -1, 64),
			"acq_date":  "2024-01-05",
			"acq_time":  "1200",
		},
	}
}

func rect(minLon, minLat, maxLon, maxLat float64) orb.Polygon {
	return orb.Polygon{{
		{minLon, minLat}, {maxLon, minLat}, {maxLon, maxLat}, {minLon, maxLat}, {minLon, minLat},
	}}
}

// TestKafkaWriterRoundTrip verifies the adapter: a published association
// comes back with its key, headers and GeoJSON geometry intact.
func TestKafkaWriterRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	writer := kafka.NewWriter([]string{broker}, testTopic, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	row := domain.Association{
		BBoxID: "bbox_00003",
		Feature: domain.MapFeature{
			ElementType: domain.ElementWay,
			OSMID:       4242,
			Tags:        map[string]string{"landuse": "forest"},
			Geometry:    rect(150.50, -33.50, 150.51, -33.49),
		},
		EventIDs: []string{"EVENT_0007", "EVENT_0009"},
	}
	require.NoError(t, writer.LoadBatch(ctx, "run-1", []domain.Association{row}))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	pm := readPublished(ctx, t, consumer)
	assert.Equal(t, "way/4242", pm.Key)
	assert.Equal(t, "run-1", pm.Headers["run_id"])
	assert.Equal(t, "bbox_00003", pm.Headers["bbox_id"])
	assert.Equal(t, []string{"EVENT_0007", "EVENT_0009"}, pm.Assoc.EventIDs)
	assert.Equal(t, "forest", pm.Assoc.Tags["landuse"])
	require.NotNil(t, pm.Assoc.Geometry)
	assert.Equal(t, row.Feature.Geometry, pm.Assoc.Geometry.Geometry())
}

// TestPipelinePublishesAssociations runs a full pipeline over in-memory
// stages and publishes its association table to a real broker.
func TestPipelinePublishesAssociations(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	writer := kafka.NewWriter([]string{broker}, testTopic, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	p := pipeline.New(
		staticResolver{boundary: domain.Boundary{Name: "Testland", Geometry: rect(150, -34, 151, -33)}},
		staticFetcher{rows: map[string][]domain.Detection{
			"MODIS_SP": {
				detection("MODIS_SP", -33.495, 150.505),
				detection("MODIS_SP", -33.205, 150.905),
			},
			"VIIRS_SNPP_SP": {
				detection("VIIRS_SNPP_SP", -33.492, 150.508),
			},
		}},
		staticSource{features: []domain.MapFeature{
			{ElementType: "way", OSMID: 100, Tags: map[string]string{"landuse": "forest"}, Geometry: rect(150.50, -33.50, 150.51, -33.49)},
			{ElementType: "way", OSMID: 200, Tags: map[string]string{"landuse": "farmland"}, Geometry: rect(150.90, -33.21, 150.91, -33.20)},
		}},
		writer,
		pipeline.Options{Sensors: []string{"MODIS_SP", "VIIRS_SNPP_SP"}},
		discardLogger(),
		observability.NewMetricsForTesting(),
	)

	res, err := p.Run(ctx, pipeline.Request{Location: "Testland", Start: "2024-01-05", End: "2024-01-05"})
	require.NoError(t, err)
	require.Len(t, res.Table.Rows, 2)
	require.NoError(t, p.Publish(ctx, res))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-pipeline-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	byKey := make(map[string]publishedMessage)
	for len(byKey) < 2 {
		pm := readPublished(ctx, t, consumer)
		assert.Equal(t, res.RunID, pm.Headers["run_id"])
		byKey[pm.Key] = pm
	}

	require.Contains(t, byKey, "way/100")
	require.Contains(t, byKey, "way/200")
	assert.Equal(t, []string{"EVENT_0001", "EVENT_0003"}, byKey["way/100"].Assoc.EventIDs)
	assert.Equal(t, []string{"EVENT_0002"}, byKey["way/200"].Assoc.EventIDs)
	assert.NotEqual(t, byKey["way/100"].Headers["bbox_id"], byKey["way/200"].Headers["bbox_id"])
}
