package services

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// captureSink collects emitted events for assertions.
type captureSink struct {
	mu     sync.Mutex
	events []interface{}
}

func (s *captureSink) Emit(event interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *captureSink) all() []interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]interface{}, len(s.events))
	copy(out, s.events)
	return out
}

func TestProgressStream_PerIndexAtMostOnce(t *testing.T) {
	sink := &captureSink{}
	stream := NewProgressStream(sink)

	stream.Start(3, 60)
	stream.Image(0, "img-0", "https://cdn/0.png")
	stream.Error(0) // same index, must be dropped
	stream.Image(0, "img-0-again", "https://cdn/0b.png")
	stream.Error(1)
	stream.Image(1, "img-1", "https://cdn/1.png") // already reported as error
	stream.Image(2, "img-2", "https://cdn/2.png")
	stream.Done(2, 1, "", "")

	events := sink.all()
	assert.Len(t, events, 5)
	assert.IsType(t, StartEvent{}, events[0])
	assert.IsType(t, ImageEvent{}, events[1])
	assert.IsType(t, ErrorEvent{}, events[2])
	assert.IsType(t, ImageEvent{}, events[3])
	assert.IsType(t, DoneEvent{}, events[4])

	done := events[4].(DoneEvent)
	assert.Equal(t, 2, done.Total)
	assert.Equal(t, 1, done.Failed)
}

func TestProgressStream_DoneExactlyOnce(t *testing.T) {
	sink := &captureSink{}
	stream := NewProgressStream(sink)

	stream.Start(1, 20)
	stream.Done(1, 0, "", "")
	stream.Done(0, 1, "again", "image_generation_failed")
	stream.Image(0, "late", "https://cdn/late.png")
	stream.Start(5, 100)

	events := sink.all()
	assert.Len(t, events, 2)
	done := events[1].(DoneEvent)
	assert.Equal(t, 1, done.Total)
	assert.Empty(t, done.Error)
}

func TestNDJSONSink_WritesOneJSONObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	stream := NewProgressStream(&NDJSONSink{W: &buf})

	stream.Start(2, 40)
	stream.Image(0, "img-a", "https://cdn/a.png")
	stream.Error(1)
	stream.Done(1, 1, "", "")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 4)

	var types []string
	for _, line := range lines {
		var obj map[string]interface{}
		assert.NoError(t, json.Unmarshal([]byte(line), &obj))
		types = append(types, obj["type"].(string))
	}
	assert.Equal(t, []string{"start", "image", "error", "done"}, types)

	var img ImageEvent
	assert.NoError(t, json.Unmarshal([]byte(lines[1]), &img))
	assert.Equal(t, "img-a", img.ImageID)
	assert.Equal(t, "https://cdn/a.png", img.URL)
}
