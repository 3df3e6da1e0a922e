// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package event

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	EventQueueSize      = 20
	AsyncQueueSize      = 1000
	AsyncWorkerPoolSize = 4
)

type EventType string

type EventSubscriberId int

type EventHandlerFunc func(Event)

type Event struct {
	Timestamp time.Time
	Data      any
	Type      EventType
}

func NewEvent(eventType EventType, eventData any) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      eventData,
	}
}

// subscriber delivers events to an in-memory channel. Deliver blocks while
// the channel is full
type subscriber struct {
	ch     chan Event
	mu     sync.RWMutex
	closed bool
}

func newSubscriber(buffer int) *subscriber {
	return &subscriber{
		ch: make(chan Event, buffer),
	}
}

func (s *subscriber) deliver(evt Event) {
	// The read lock makes close() wait for in-flight sends
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	s.ch <- evt
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

type EventBus struct {
	subscribers map[EventType]map[EventSubscriberId]*subscriber
	metrics     *eventMetrics
	logger      *slog.Logger
	asyncQueue  chan Event
	lastSubId   EventSubscriberId
	mu          sync.RWMutex
	asyncWg     sync.WaitGroup
	stopMu      sync.RWMutex
	stopped     bool
}

// NewEventBus creates a new EventBus and starts its async worker pool
func NewEventBus(
	promRegistry prometheus.Registerer,
	logger *slog.Logger,
) *EventBus {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	e := &EventBus{
		subscribers: make(map[EventType]map[EventSubscriberId]*subscriber),
		logger:      logger,
		asyncQueue:  make(chan Event, AsyncQueueSize),
	}
	if promRegistry != nil {
		e.initMetrics(promRegistry)
	}
	for range AsyncWorkerPoolSize {
		e.asyncWg.Add(1)
		go e.asyncWorker()
	}
	return e
}

// asyncWorker delivers queued events until the queue is closed and drained
func (e *EventBus) asyncWorker() {
	defer e.asyncWg.Done()
	for evt := range e.asyncQueue {
		e.Publish(evt.Type, evt)
	}
}

// Subscribe allows a consumer to receive events of a particular type via a channel
func (e *EventBus) Subscribe(
	eventType EventType,
) (EventSubscriberId, <-chan Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sub := newSubscriber(EventQueueSize)
	e.lastSubId++
	subId := e.lastSubId
	if _, ok := e.subscribers[eventType]; !ok {
		e.subscribers[eventType] = make(map[EventSubscriberId]*subscriber)
	}
	e.subscribers[eventType][subId] = sub
	if e.metrics != nil {
		e.metrics.subscribers.WithLabelValues(string(eventType)).Inc()
	}
	return subId, sub.ch
}

// SubscribeFunc allows a consumer to receive events of a particular type via a callback function
func (e *EventBus) SubscribeFunc(
	eventType EventType,
	handlerFunc EventHandlerFunc,
) EventSubscriberId {
	subId, evtCh := e.Subscribe(eventType)
	go func() {
		for evt := range evtCh {
			e.handle(eventType, evt, handlerFunc)
		}
	}()
	return subId
}

// handle runs a subscriber callback, keeping a panicking handler from taking
// down the process
func (e *EventBus) handle(
	eventType EventType,
	evt Event,
	handlerFunc EventHandlerFunc,
) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error(
				fmt.Sprintf("event handler panic: %v", r),
				"component", "event",
				"type", eventType,
			)
			if e.metrics != nil {
				e.metrics.deliveryErrors.WithLabelValues(string(eventType), "handler-panic").Inc()
			}
		}
	}()
	handlerFunc(evt)
}

// Unsubscribe stops delivery of events for a particular type for an existing subscriber
func (e *EventBus) Unsubscribe(eventType EventType, subId EventSubscriberId) {
	e.mu.Lock()
	var subToClose *subscriber
	if evtTypeSubs, ok := e.subscribers[eventType]; ok {
		if sub, ok := evtTypeSubs[subId]; ok {
			subToClose = sub
			delete(evtTypeSubs, subId)
			if len(evtTypeSubs) == 0 {
				delete(e.subscribers, eventType)
			}
			if e.metrics != nil {
				e.metrics.subscribers.WithLabelValues(string(eventType)).Dec()
			}
		}
	}
	e.mu.Unlock()
	if subToClose != nil {
		subToClose.close()
	}
}

// Publish sends an event of a particular type to all subscribers, blocking
// until each one has accepted it
func (e *EventBus) Publish(eventType EventType, evt Event) {
	// Gather subscribers inside the read lock to avoid a map race
	e.mu.RLock()
	subList := make([]*subscriber, 0, len(e.subscribers[eventType]))
	for _, sub := range e.subscribers[eventType] {
		subList = append(subList, sub)
	}
	e.mu.RUnlock()
	for _, sub := range subList {
		sub.deliver(evt)
	}
	if e.metrics != nil {
		e.metrics.eventsTotal.WithLabelValues(string(eventType)).Inc()
	}
}

// PublishAsync enqueues an event for delivery by the worker pool and returns
// immediately. It returns false if the EventBus is stopped or the queue is full
func (e *EventBus) PublishAsync(eventType EventType, evt Event) bool {
	evt.Type = eventType
	e.stopMu.RLock()
	defer e.stopMu.RUnlock()
	if e.stopped {
		return false
	}
	select {
	case e.asyncQueue <- evt:
		return true
	default:
		e.logger.Warn(
			"async event queue full, dropping event",
			"component", "event",
			"type", eventType,
		)
		if e.metrics != nil {
			e.metrics.deliveryErrors.WithLabelValues(string(eventType), "async-dropped").Inc()
		}
		return false
	}
}

// Stop delivers any queued async events, stops the worker pool, and closes
// all subscriber channels so that SubscribeFunc goroutines exit
func (e *EventBus) Stop() {
	e.stopMu.Lock()
	if e.stopped {
		e.stopMu.Unlock()
		return
	}
	e.stopped = true
	close(e.asyncQueue)
	e.stopMu.Unlock()
	e.asyncWg.Wait()

	e.mu.Lock()
	subsCopy := e.subscribers
	e.subscribers = make(map[EventType]map[EventSubscriberId]*subscriber)
	e.mu.Unlock()
	for _, evtTypeSubs := range subsCopy {
		for _, sub := range evtTypeSubs {
			sub.close()
		}
	}
	if e.metrics != nil {
		e.metrics.subscribers.Reset()
	}
}
