package mqtt

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/TRAXX-Intelligence/internal/application/ingestion"
	"github.com/turtacn/TRAXX-Intelligence/internal/config"
	"github.com/turtacn/TRAXX-Intelligence/internal/domain/fleet"
	"github.com/turtacn/TRAXX-Intelligence/internal/testutil"
	apperrors "github.com/turtacn/TRAXX-Intelligence/pkg/errors"
)

// fakeConn delivers messages synchronously through Publish.
type fakeConn struct {
	mu           sync.Mutex
	handlers     map[string]MessageHandler
	subErr       error
	unsubscribed []string
	disconnected bool
}

func (f *fakeConn) Subscribe(topic string, qos byte, h MessageHandler) error {
	if f.subErr != nil {
		return f.subErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers == nil {
		f.handlers = make(map[string]MessageHandler)
	}
	f.handlers[topic] = h
	return nil
}

func (f *fakeConn) Unsubscribe(topics ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed = append(f.unsubscribed, topics...)
	for _, t := range topics {
		delete(f.handlers, t)
	}
	return nil
}

func (f *fakeConn) IsConnected() bool { return !f.disconnected }

func (f *fakeConn) Disconnect() { f.disconnected = true }

func (f *fakeConn) Publish(filter, topic string, payload string) error {
	f.mu.Lock()
	h := f.handlers[filter]
	f.mu.Unlock()
	if h == nil {
		return errors.New("no subscription")
	}
	return h(topic, []byte(payload))
}

func newSubscriber(t *testing.T, conn Conn) (*Subscriber, *fleet.Store) {
	t.Helper()
	store := testutil.Store([]fleet.Tracker{testutil.Tracker("trk-1", 41.8, -87.6)}, nil, nil)
	svc := ingestion.NewService(store, testutil.NewMockLogger(),
		ingestion.WithClock(testutil.NewFakeClock(testutil.Epoch)))
	sub, err := NewSubscriber(conn, svc, config.MQTTConfig{QoS: 1}, testutil.NewMockLogger())
	require.NoError(t, err)
	return sub, store
}

func TestNewSubscriber_Validation(t *testing.T) {
	_, err := NewSubscriber(nil, nil, config.MQTTConfig{}, nil)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))

	svc := ingestion.NewService(fleet.NewStore(), nil)
	_, err = NewSubscriber(&fakeConn{}, svc, config.MQTTConfig{QoS: 3}, nil)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
}

func TestSubscriber_TrackerIDFromTopic(t *testing.T) {
	sub, _ := newSubscriber(t, &fakeConn{})
	assert.Equal(t, "trk-9", sub.TrackerID("traxx/trackers/trk-9/scan"))
	assert.Equal(t, "", sub.TrackerID("traxx"))

	svc := ingestion.NewService(fleet.NewStore(), nil)
	flat, err := NewSubscriber(&fakeConn{}, svc, config.MQTTConfig{Topic: "scans"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "", flat.TrackerID("scans"))
}

func TestSubscriber_AppliesScans(t *testing.T) {
	conn := &fakeConn{}
	sub, store := newSubscriber(t, conn)
	require.NoError(t, sub.Start(context.Background()))

	require.NoError(t, conn.Publish(config.DefaultMQTTTopic, "traxx/trackers/trk-1/scan", `{"battery_pct": 5}`))

	trk, ok := store.Snapshot().Tracker("trk-1")
	require.True(t, ok)
	assert.Equal(t, 5, trk.BatteryPct)
	assert.Len(t, store.Snapshot().AlertsFor("trk-1"), 1)

	received, rejected := sub.Stats()
	assert.Equal(t, int64(1), received)
	assert.Zero(t, rejected)
}

func TestSubscriber_RejectsUndecodable(t *testing.T) {
	conn := &fakeConn{}
	sub, _ := newSubscriber(t, conn)
	require.NoError(t, sub.Start(context.Background()))

	err := conn.Publish(config.DefaultMQTTTopic, "traxx/trackers/trk-1/scan", `not json`)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeIngestDecodeFailed))
	_, rejected := sub.Stats()
	assert.Equal(t, int64(1), rejected)
}

func TestSubscriber_StartTwiceAndStop(t *testing.T) {
	conn := &fakeConn{}
	sub, _ := newSubscriber(t, conn)
	require.NoError(t, sub.Start(context.Background()))
	assert.True(t, apperrors.IsCode(sub.Start(context.Background()), apperrors.ErrCodeConflict))

	sub.Stop()
	assert.Equal(t, []string{config.DefaultMQTTTopic}, conn.unsubscribed)
	assert.True(t, conn.disconnected)

	sub.Stop()
	assert.Len(t, conn.unsubscribed, 1)
}

func TestSubscriber_SubscribeFailure(t *testing.T) {
	conn := &fakeConn{subErr: errors.New("not authorized")}
	sub, _ := newSubscriber(t, conn)
	assert.Error(t, sub.Start(context.Background()))
	assert.True(t, conn.disconnected)
}

//Personal.AI order the ending
