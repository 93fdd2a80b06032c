package synclog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventRoundTrip(t *testing.T) {
	event := NewEvent(SourcePush, KindConnect)
	event.ConnectionID = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"
	event.Topic = "meters/7"
	event.Detail = "filter=meters/7"

	data, err := EncodeEvent(event)
	require.NoError(t, err)

	decoded, err := DecodeEvent(data)
	require.NoError(t, err)

	assert.Equal(t, SourcePush, decoded.Source)
	assert.Equal(t, KindConnect, decoded.Kind)
	assert.Equal(t, event.ConnectionID, decoded.ConnectionID)
	assert.Equal(t, event.Topic, decoded.Topic)
	assert.Equal(t, event.Detail, decoded.Detail)
	assert.WithinDuration(t, event.Timestamp, decoded.Timestamp, time.Millisecond)
}

func TestEventOmitsEmptyFields(t *testing.T) {
	minimal := NewEvent(SourceAggregate, KindFetch)
	withEntity := minimal
	withEntity.Entity = "meter-7"

	a, err := EncodeEvent(minimal)
	require.NoError(t, err)
	b, err := EncodeEvent(withEntity)
	require.NoError(t, err)

	assert.Less(t, len(a), len(b), "empty optional fields should not be encoded")
}

func TestDecodeEventRejectsGarbage(t *testing.T) {
	_, err := DecodeEvent([]byte{0xff, 0x00, 0x01})
	assert.Error(t, err)
}

func TestSourceAndKindStrings(t *testing.T) {
	assert.Equal(t, "AGGREGATE", SourceAggregate.String())
	assert.Equal(t, "PUSH", SourcePush.String())
	assert.Equal(t, "UNKNOWN", Source(99).String())

	assert.Equal(t, "FETCH", KindFetch.String())
	assert.Equal(t, "PUSH_DROPPED", KindPushDropped.String())
	assert.Equal(t, "UNKNOWN", Kind(99).String())
}

func TestFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.cbor")

	logger, err := NewFileLogger(path)
	require.NoError(t, err)

	first := NewEvent(SourceAggregate, KindFetch)
	first.Entity = "meter-7"
	second := NewEvent(SourcePush, KindDisconnect)
	second.Error = "connection reset"

	logger.Log(first)
	logger.Log(second)
	require.NoError(t, logger.Close())

	// Log after Close is silently ignored
	logger.Log(NewEvent(SourceRest, KindFetchFailed))
	require.NoError(t, logger.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := NewDecoder(f)

	var events []Event
	for {
		var event Event
		if err := dec.Decode(&event); err != nil {
			break
		}
		events = append(events, event)
	}

	require.Len(t, events, 2)
	assert.Equal(t, "meter-7", events[0].Entity)
	assert.Equal(t, KindDisconnect, events[1].Kind)
	assert.Equal(t, "connection reset", events[1].Error)
}

func TestFileLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.cbor")

	logger, err := NewFileLogger(path)
	require.NoError(t, err)
	logger.Log(NewEvent(SourceAggregate, KindFetch))
	require.NoError(t, logger.Close())

	logger, err = NewFileLogger(path)
	require.NoError(t, err)
	logger.Log(NewEvent(SourceAggregate, KindStateChange))
	require.NoError(t, logger.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := NewDecoder(f)
	count := 0
	for {
		var event Event
		if err := dec.Decode(&event); err != nil {
			break
		}
		count++
	}
	assert.Equal(t, 2, count)
}

func TestNoopLogger(t *testing.T) {
	// Must not panic.
	var logger NoopLogger
	logger.Log(NewEvent(SourceObservable, KindStateChange))
}
