package test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gartstein/staffing/internal/crm/blob"
	"github.com/gartstein/staffing/internal/crm/controller"
	"github.com/gartstein/staffing/internal/crm/db"
	e "github.com/gartstein/staffing/internal/crm/errors"
	"github.com/gartstein/staffing/internal/crm/events"
	"github.com/gartstein/staffing/internal/crm/models"
	"github.com/gartstein/staffing/internal/crm/pipeline"
	"github.com/gartstein/staffing/internal/crm/store"
	"github.com/gartstein/staffing/internal/crm/upload"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

const (
	testTopic  = "crm_events_test"
	testBroker = "localhost:9092"
	testDSN    = "host=localhost port=5432 user=test password=test dbname=test sslmode=disable"
)

type IntegrationTestSuite struct {
	suite.Suite
	mirror       *db.Mirror
	kafkaReader  *kafka.Reader
	producer     *events.Producer
	logger       *zap.Logger
	testTimeout  time.Duration
	cleanupFuncs []func()
}

func TestIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests")
	}
	suite.Run(t, new(IntegrationTestSuite))
}

func (s *IntegrationTestSuite) SetupSuite() {
	s.logger = zap.NewNop()
	s.testTimeout = 20 * time.Second

	mirror, err := openMirrorWithRetry(s.logger)
	if err != nil {
		s.T().Fatal("Database initialization failed:", err)
	}
	s.mirror = mirror
	s.cleanupFuncs = append(s.cleanupFuncs, func() { _ = mirror.Close() })

	s.producer, s.kafkaReader, err = initializeKafkaWithRetry(s.logger)
	if err != nil {
		s.T().Fatal("Kafka initialization failed:", err)
	}
	s.cleanupFuncs = append(s.cleanupFuncs, s.producer.Close, func() { _ = s.kafkaReader.Close() })
}

func (s *IntegrationTestSuite) TearDownSuite() {
	for i := len(s.cleanupFuncs) - 1; i >= 0; i-- {
		s.cleanupFuncs[i]()
	}
}

func openMirrorWithRetry(logger *zap.Logger) (*db.Mirror, error) {
	var mirror *db.Mirror
	err := backoff.Retry(func() error {
		m, err := db.Open(db.Config{Driver: "postgres", DSN: testDSN}, logger)
		if err != nil {
			return err
		}
		mirror = m
		return nil
	}, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 10))
	return mirror, err
}

func initializeKafkaWithRetry(logger *zap.Logger) (*events.Producer, *kafka.Reader, error) {
	producer, err := events.NewProducer([]string{testBroker}, logger, testTopic)
	if err != nil {
		return nil, nil, fmt.Errorf("Kafka producer initialization failed: %w", err)
	}

	// the topic is created asynchronously by the broker
	err = backoff.Retry(func() error {
		conn, err := kafka.Dial("tcp", testBroker)
		if err != nil {
			return err
		}
		defer conn.Close()

		partitions, err := conn.ReadPartitions(testTopic)
		if err != nil || len(partitions) == 0 {
			return fmt.Errorf("topic %s not found", testTopic)
		}
		return nil
	}, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5))
	if err != nil {
		producer.Close()
		return nil, nil, fmt.Errorf("Kafka topic check failed: %w", err)
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     []string{testBroker},
		Topic:       testTopic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	})
	return producer, reader, nil
}

// newService builds a service whose store mirrors into the suite database.
// The returned func drains the mirror queue.
func (s *IntegrationTestSuite) newService() (*controller.CRMService, func()) {
	ctx, cancel := context.WithTimeout(context.Background(), s.testTimeout)
	defer cancel()

	st, err := store.New(ctx, store.NewMemoryPersister(nil),
		store.WithLogger(s.logger),
		store.WithoutSeed(),
		store.WithMirror(s.mirror),
	)
	if err != nil {
		s.T().Fatal("store.New failed:", err)
	}

	objects, err := blob.NewDiskStore(s.T().TempDir(), "http://localhost:8080/files")
	if err != nil {
		s.T().Fatal("NewDiskStore failed:", err)
	}
	proxy := upload.NewProxy(objects, s.logger)
	return controller.NewCRMService(st, proxy, s.producer, s.logger), st.Close
}

func (s *IntegrationTestSuite) TestVendorCreate() {
	ctx, cancel := context.WithTimeout(context.Background(), s.testTimeout)
	defer cancel()

	svc, drain := s.newService()
	created, err := svc.CreateVendor(ctx, models.Vendor{
		Name:    "Integration Vendor",
		Company: "Integration Ltd",
		Email:   "hr@integration.test",
	})
	if err != nil {
		s.T().Fatal("CreateVendor failed:", err)
	}
	drain()

	snap, err := s.mirror.Load(ctx)
	s.Require().NoError(err)
	s.Require().NotNil(snap)
	s.Require().Len(snap.Vendors, 1)
	assert.Equal(s.T(), created.ID, snap.Vendors[0].ID)

	ev := s.consumeKafkaEvent(ctx, events.VendorCreated, created.ID)
	var payload models.Vendor
	s.Require().NoError(json.Unmarshal(ev.Payload, &payload))
	assert.Equal(s.T(), "Integration Vendor", payload.Name)
}

func (s *IntegrationTestSuite) TestProcessFlowPipeline() {
	ctx, cancel := context.WithTimeout(context.Background(), s.testTimeout)
	defer cancel()

	svc, drain := s.newService()
	res, err := svc.CreateResource(ctx, models.Resource{Name: "Ann Gopher", Email: "ann@integration.test"})
	s.Require().NoError(err)
	job, err := svc.CreateJobRequirement(ctx, models.JobRequirement{Title: "Go Engineer", Description: "Backend"})
	s.Require().NoError(err)
	flow, err := svc.CreateProcessFlow(ctx, models.ProcessFlow{JobID: job.ID, ResourceID: res.ID})
	s.Require().NoError(err)

	moved, err := svc.UpdateProcessFlowStatus(ctx, flow.ID, pipeline.ScreeningScheduled, "phone screen", "admin")
	s.Require().NoError(err)
	assert.Equal(s.T(), pipeline.ScreeningScheduled, moved.Status)

	history, err := svc.ProcessFlowHistory(flow.ID)
	s.Require().NoError(err)
	s.Require().NotEmpty(history)
	assert.Equal(s.T(), pipeline.ScreeningScheduled, history[0].Status)
	drain()

	counts, err := s.mirror.StatusCounts(ctx)
	s.Require().NoError(err)
	assert.Equal(s.T(), int64(1), counts[pipeline.ScreeningScheduled])

	s.consumeKafkaEvent(ctx, events.ProcessStatusChanged, flow.ID)
}

func (s *IntegrationTestSuite) TestVendorDelete() {
	ctx, cancel := context.WithTimeout(context.Background(), s.testTimeout)
	defer cancel()

	svc, drain := s.newService()
	created, err := svc.CreateVendor(ctx, models.Vendor{
		Name:    "Short Lived",
		Company: "Gone Ltd",
		Email:   "hr@gone.test",
	})
	s.Require().NoError(err)
	s.Require().NoError(svc.DeleteVendor(ctx, created.ID))

	_, err = svc.GetVendor(created.ID)
	assert.ErrorIs(s.T(), err, e.ErrNotFound)
	drain()

	snap, err := s.mirror.Load(ctx)
	s.Require().NoError(err)
	s.Require().NotNil(snap)
	assert.Empty(s.T(), snap.Vendors)

	s.consumeKafkaEvent(ctx, events.VendorDeleted, created.ID)
}

type kafkaEvent struct {
	Type     events.EventType `json:"type"`
	EntityID string           `json:"entityId"`
	Payload  json.RawMessage  `json:"payload"`
}

func (s *IntegrationTestSuite) consumeKafkaEvent(ctx context.Context, eventType events.EventType, entityID string) kafkaEvent {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	for attempts := 0; attempts < 200; attempts++ {
		msg, err := s.kafkaReader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			s.T().Logf("Kafka read attempt %d failed: %v", attempts, err)
			time.Sleep(time.Second)
			continue
		}
		if string(msg.Key) != entityID {
			continue
		}
		var ev kafkaEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			s.T().Fatalf("Failed to unmarshal Kafka message: %v", err)
		}
		if ev.Type != eventType {
			continue
		}
		return ev
	}
	s.T().Fatalf("No %s event received for %s", eventType, entityID)
	return kafkaEvent{}
}
