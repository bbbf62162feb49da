//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.
// All rights reserved.
//
// If you have downloaded a copy of the trpc-workflow-go source code from Tencent,
// please note that trpc-workflow-go source code is licensed under the  Apache 2.0 License,
// A copy of the Apache 2.0 License is included in this file.
//
//

package runner

import (
	"context"
	"sync"

	"trpc.group/trpc-go/trpc-workflow-go/event"
)

// eventLog keeps every event of a run so late subscribers can replay it.
// Appends never block on readers.
type eventLog struct {
	mu     sync.Mutex
	events []*event.Event
	closed bool
	wake   chan struct{}
}

func newEventLog() *eventLog {
	return &eventLog{wake: make(chan struct{})}
}

// Observe implements engine.Observer.
func (l *eventLog) Observe(e *event.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.events = append(l.events, e)
	if e.Final() {
		l.closed = true
	}
	close(l.wake)
	l.wake = make(chan struct{})
}

// since returns the events from index from onwards, whether the log is
// complete, and a channel closed on the next append.
func (l *eventLog) since(from int) ([]*event.Event, bool, <-chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*event.Event
	if from < len(l.events) {
		out = l.events[from:len(l.events):len(l.events)]
	}
	return out, l.closed, l.wake
}

func (l *eventLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// subscribe streams the log from the start. The channel closes after the
// final event or when ctx ends.
func (l *eventLog) subscribe(ctx context.Context, buf int) <-chan *event.Event {
	ch := make(chan *event.Event, buf)
	go func() {
		defer close(ch)
		next := 0
		for {
			evs, closed, wake := l.since(next)
			for _, e := range evs {
				select {
				case ch <- e:
				case <-ctx.Done():
					return
				}
			}
			next += len(evs)
			if len(evs) > 0 {
				continue
			}
			if closed {
				return
			}
			select {
			case <-wake:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}
