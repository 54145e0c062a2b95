package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/TRAXX-Intelligence/internal/testutil"
)

type mockConn struct {
	existing map[string]bool
	created  []kafka.TopicConfig
	failOn   string
}

func (m *mockConn) CreateTopics(topics ...kafka.TopicConfig) error {
	for _, t := range topics {
		if t.Topic == m.failOn {
			return errors.New("not controller")
		}
	}
	m.created = append(m.created, topics...)
	return nil
}

func (m *mockConn) ReadPartitions(topics ...string) ([]kafka.Partition, error) {
	var out []kafka.Partition
	for _, t := range topics {
		if m.existing[t] {
			out = append(out, kafka.Partition{Topic: t})
		}
	}
	return out, nil
}

func (m *mockConn) Close() error { return nil }

func TestEnsureTopics_CreatesMissingOnly(t *testing.T) {
	conn := &mockConn{existing: map[string]bool{"alerts": true}}
	m := NewTopicManagerWithConn(conn, testutil.NewMockLogger())

	require.NoError(t, m.EnsureTopics(context.Background(), DefaultTopics(testKafkaConfig())))

	var names []string
	for _, c := range conn.created {
		names = append(names, c.Topic)
	}
	assert.Equal(t, []string{"scans", "scans.dlq"}, names)
	require.NotEmpty(t, conn.created[0].ConfigEntries)
	assert.Equal(t, "retention.ms", conn.created[0].ConfigEntries[0].ConfigName)
}

func TestEnsureTopics_Failure(t *testing.T) {
	conn := &mockConn{failOn: "scans"}
	m := NewTopicManagerWithConn(conn, nil)
	assert.Error(t, m.EnsureTopics(context.Background(), DefaultTopics(testKafkaConfig())))
}

func TestUnwrap(t *testing.T) {
	payload, typ := Unwrap([]byte(`[{"tracker_id":"a"}]`))
	assert.Equal(t, "", typ)
	assert.Equal(t, `[{"tracker_id":"a"}]`, string(payload))

	payload, typ = Unwrap([]byte(`{"tracker_id":"a"}`))
	assert.Equal(t, "", typ)
	assert.Equal(t, `{"tracker_id":"a"}`, string(payload))

	payload, typ = Unwrap([]byte(`{"event_type":"tracker.scan","payload":{"tracker_id":"b"}}`))
	assert.Equal(t, EventTrackerScan, typ)
	assert.JSONEq(t, `{"tracker_id":"b"}`, string(payload))
}

//Personal.AI order the ending
