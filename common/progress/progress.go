// Copyright 2026 recsys Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package progress

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type spanKeyType string

var spanKeyName = spanKeyType(uuid.New().String())

type Status string

const (
	StatusRunning  Status = "Running"
	StatusComplete Status = "Complete"
	StatusFailed   Status = "Failed"
)

// Tracer collects the root spans of long-running jobs such as model training.
type Tracer struct {
	name  string
	spans sync.Map
}

func NewTracer(name string) *Tracer {
	return &Tracer{name: name}
}

// Start creates a root span.
func (t *Tracer) Start(ctx context.Context, name string, total int) (context.Context, *Span) {
	span := newSpan(name, total, nil)
	t.spans.Store(name, span)
	return context.WithValue(ctx, spanKeyName, span), span
}

// List reports every root span sorted by start time. A running child span refines the
// progress of its parent: the parent total is scaled by the child total.
func (t *Tracer) List() []Progress {
	var progress []Progress
	t.spans.Range(func(_, value interface{}) bool {
		p := value.(*Span).progress()
		p.Tracer = t.name
		progress = append(progress, p)
		return true
	})
	sort.Slice(progress, func(i, j int) bool {
		return progress[i].StartTime.Before(progress[j].StartTime)
	})
	return progress
}

type Span struct {
	mu       sync.Mutex
	name     string
	status   Status
	total    int
	count    int
	err      string
	start    time.Time
	finish   time.Time
	parent   *Span
	children sync.Map
}

func newSpan(name string, total int, parent *Span) *Span {
	return &Span{
		name:   name,
		status: StatusRunning,
		total:  total,
		start:  time.Now(),
		parent: parent,
	}
}

func (s *Span) Add(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count += n
}

func (s *Span) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusRunning {
		s.status = StatusComplete
		s.count = s.total
		s.finish = time.Now()
	}
}

// Fail marks the span and all its ancestors as failed.
func (s *Span) Fail(err error) {
	for span := s; span != nil; span = span.parent {
		span.mu.Lock()
		span.status = StatusFailed
		span.err = err.Error()
		span.finish = time.Now()
		span.mu.Unlock()
	}
}

func (s *Span) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

func (s *Span) progress() Progress {
	s.mu.Lock()
	p := Progress{
		Name:       s.name,
		Status:     s.status,
		Error:      s.err,
		Count:      s.count,
		Total:      s.total,
		StartTime:  s.start,
		FinishTime: s.finish,
	}
	s.mu.Unlock()
	if p.Status != StatusRunning {
		return p
	}
	s.children.Range(func(_, value interface{}) bool {
		child := value.(*Span).progress()
		if child.Status == StatusRunning && child.Total > 0 {
			p.Count = p.Count*child.Total + child.Count
			p.Total = p.Total * child.Total
			return false
		}
		return true
	})
	return p
}

// Start creates a child span of the span carried by ctx. Without a parent span the new
// span is detached and only visible to the caller.
func Start(ctx context.Context, name string, total int) (context.Context, *Span) {
	if ctx == nil {
		return nil, newSpan(name, total, nil)
	}
	parent, ok := ctx.Value(spanKeyName).(*Span)
	if !ok {
		span := newSpan(name, total, nil)
		return context.WithValue(ctx, spanKeyName, span), span
	}
	span := newSpan(name, total, parent)
	parent.children.Store(name, span)
	return context.WithValue(ctx, spanKeyName, span), span
}

type Progress struct {
	Tracer     string
	Name       string
	Status     Status
	Error      string
	Count      int
	Total      int
	StartTime  time.Time
	FinishTime time.Time
}
