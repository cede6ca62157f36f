package services

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
)

// Progress events, one JSON object per line. The stream is always exactly:
// one start, zero or more image/error events (at most one per unit index),
// one done. The done event is emitted even when the run is cut short.

type StartEvent struct {
	Type             string `json:"type"` // "start"
	Count            int    `json:"count"`
	EstimatedSeconds int    `json:"estimated_seconds,omitempty"`
}

type ImageEvent struct {
	Type    string `json:"type"` // "image"
	Index   int    `json:"index"`
	ImageID string `json:"image_id"`
	URL     string `json:"url"`
}

type ErrorEvent struct {
	Type  string `json:"type"` // "error"
	Index int    `json:"index"`
}

type DoneEvent struct {
	Type   string `json:"type"` // "done"
	Total  int    `json:"total"`
	Failed int    `json:"failed"`
	Error  string `json:"error,omitempty"`
	Code   string `json:"code,omitempty"`
}

// ProgressSink receives encoded event lines. The HTTP layer supplies a
// flushing writer; tests supply a collector.
type ProgressSink interface {
	Emit(event interface{}) error
}

// ProgressStream enforces the stream's ordering contract on top of any sink:
// per-index events at most once, terminal done exactly once.
type ProgressStream struct {
	mu   sync.Mutex
	sink ProgressSink
	seen map[int]bool
	done bool
}

func NewProgressStream(sink ProgressSink) *ProgressStream {
	return &ProgressStream{sink: sink, seen: make(map[int]bool)}
}

func (p *ProgressStream) Start(count, estimatedSeconds int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return
	}
	p.sink.Emit(StartEvent{Type: "start", Count: count, EstimatedSeconds: estimatedSeconds})
}

func (p *ProgressStream) Image(index int, imageID, url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done || p.seen[index] {
		return
	}
	p.seen[index] = true
	p.sink.Emit(ImageEvent{Type: "image", Index: index, ImageID: imageID, URL: url})
}

func (p *ProgressStream) Error(index int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done || p.seen[index] {
		return
	}
	p.seen[index] = true
	p.sink.Emit(ErrorEvent{Type: "error", Index: index})
}

func (p *ProgressStream) Done(total, failed int, errMsg, code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return
	}
	p.done = true
	p.sink.Emit(DoneEvent{Type: "done", Total: total, Failed: failed, Error: errMsg, Code: code})
}

// NDJSONSink writes newline-delimited JSON and flushes after every event so
// a streaming client renders thumbnails as soon as each unit lands.
type NDJSONSink struct {
	W io.Writer
}

func (s *NDJSONSink) Emit(event interface{}) error {
	line, err := json.Marshal(event)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	if _, err := s.W.Write(line); err != nil {
		return err
	}
	if f, ok := s.W.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
