// Package measure collects per-stage throughput metrics for a pipeline run.
package measure

import (
	"sync"
	"time"
)

// Metric collects the output of one stage.
type Metric interface {
	// AddChunk records one emitted chunk of the given size.
	AddChunk(size int)
	// Chunks returns the number of chunks emitted so far.
	Chunks() int64
	// Bytes returns the number of bytes emitted so far.
	Bytes() int64
	// SetTotalDuration sets the total duration of the run.
	SetTotalDuration(d time.Duration)
	// TotalDuration returns the total duration of the run.
	TotalDuration() time.Duration
}

// Measure holds the metrics of all stages of a run.
type Measure interface {
	AddMetric(name string) Metric
	GetMetric(name string) Metric
	AllMetrics() map[string]Metric
}

// DefaultMeasure is the default Measure implementation.
type DefaultMeasure struct {
	mu     sync.Mutex
	Stages map[string]Metric
}

// NewDefaultMeasure creates a DefaultMeasure.
func NewDefaultMeasure() *DefaultMeasure {
	return &DefaultMeasure{
		Stages: make(map[string]Metric),
	}
}

func (m *DefaultMeasure) AddMetric(name string) Metric {
	m.mu.Lock()
	defer m.mu.Unlock()

	mt := &DefaultMetric{}
	m.Stages[name] = mt

	return mt
}

func (m *DefaultMeasure) GetMetric(name string) Metric {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.Stages[name]
}

func (m *DefaultMeasure) AllMetrics() map[string]Metric {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := make(map[string]Metric, len(m.Stages))
	for name, mt := range m.Stages {
		all[name] = mt
	}

	return all
}

var _ Measure = (*DefaultMeasure)(nil)

// DefaultMetric is the default Metric implementation.
type DefaultMetric struct {
	mu     sync.Mutex
	chunks int64
	bytes  int64
	total  time.Duration
}

func (mt *DefaultMetric) AddChunk(size int) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.chunks++
	mt.bytes += int64(size)
}

func (mt *DefaultMetric) Chunks() int64 {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	return mt.chunks
}

func (mt *DefaultMetric) Bytes() int64 {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	return mt.bytes
}

func (mt *DefaultMetric) SetTotalDuration(d time.Duration) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.total = d
}

func (mt *DefaultMetric) TotalDuration() time.Duration {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	return mt.total
}

var _ Metric = (*DefaultMetric)(nil)
