package synclog

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCapture(t *testing.T, events ...Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.cbor")
	logger, err := NewFileLogger(path)
	require.NoError(t, err)
	for _, event := range events {
		logger.Log(event)
	}
	require.NoError(t, logger.Close())
	return path
}

func TestReaderReadsAll(t *testing.T) {
	a := NewEvent(SourceAggregate, KindFetch)
	a.Entity = "meter-7"
	b := NewEvent(SourcePush, KindConnect)
	path := writeCapture(t, a, b)

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	first, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "meter-7", first.Entity)

	second, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, KindConnect, second.Kind)

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestFilteredReader(t *testing.T) {
	fetch := NewEvent(SourceAggregate, KindFetch)
	fetch.Entity = "a"
	connect := NewEvent(SourcePush, KindConnect)
	failed := NewEvent(SourceAggregate, KindFetchFailed)
	failed.Entity = "b"
	path := writeCapture(t, fetch, connect, failed)

	source := SourceAggregate
	r, err := NewFilteredReader(path, Filter{Source: &source})
	require.NoError(t, err)
	defer r.Close()

	count := 0
	for {
		event, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, SourceAggregate, event.Source)
		count++
	}
	assert.Equal(t, 2, count)
}

func TestFilterByEntityAndKind(t *testing.T) {
	fetch := NewEvent(SourceAggregate, KindFetch)
	fetch.Entity = "a"
	failed := NewEvent(SourceAggregate, KindFetchFailed)
	failed.Entity = "a"
	path := writeCapture(t, fetch, failed)

	kind := KindFetchFailed
	r, err := NewFilteredReader(path, Filter{Entity: "a", Kind: &kind})
	require.NoError(t, err)
	defer r.Close()

	event, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, KindFetchFailed, event.Kind)

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestMultiLogger(t *testing.T) {
	pathA := filepath.Join(t.TempDir(), "a.cbor")
	pathB := filepath.Join(t.TempDir(), "b.cbor")

	a, err := NewFileLogger(pathA)
	require.NoError(t, err)
	b, err := NewFileLogger(pathB)
	require.NoError(t, err)

	multi := NewMultiLogger(a, b)
	multi.Log(NewEvent(SourceRest, KindFetch))
	require.NoError(t, a.Close())
	require.NoError(t, b.Close())

	for _, path := range []string{pathA, pathB} {
		r, err := NewReader(path)
		require.NoError(t, err)
		_, err = r.Next()
		assert.NoError(t, err, "path %s", path)
		r.Close()
	}
}
