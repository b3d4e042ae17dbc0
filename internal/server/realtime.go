package server

import (
	"context"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/seatplan/internal/plan"
)

const (
	RealtimeEventPlanChanged = "plan-change"
	realtimeEventHeartbeat   = "heartbeat"
	realtimeSourceBackend    = "seatplan-backend"
)

// RealtimeMessage announces a committed plan change to the plan's subscribers.
type RealtimeMessage struct {
	PlanID      string
	EventType   string
	Version     int64
	Operation   string
	AttendeeIDs []string
	Timestamp   time.Time
}

type RealtimeDispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*realtimeSubscriber
	nextID      int64
	bufferSize  int
	clock       func() time.Time
}

type realtimeSubscriber struct {
	id     int64
	stream chan RealtimeMessage
}

func NewRealtimeDispatcher() *RealtimeDispatcher {
	return &RealtimeDispatcher{
		subscribers: make(map[string]map[int64]*realtimeSubscriber),
		bufferSize:  16,
		clock:       time.Now,
	}
}

// Subscribe registers a stream for planID until ctx ends or cleanup is called.
func (d *RealtimeDispatcher) Subscribe(ctx context.Context, planID string) (<-chan RealtimeMessage, func()) {
	if planID == "" {
		ch := make(chan RealtimeMessage)
		close(ch)
		return ch, func() {}
	}
	subscriber := &realtimeSubscriber{
		id:     d.nextSequence(),
		stream: make(chan RealtimeMessage, d.bufferSize),
	}
	d.registerSubscriber(planID, subscriber)
	cleanup := func() {
		d.unregisterSubscriber(planID, subscriber.id)
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

// Publish delivers message without blocking; full subscriber buffers drop it.
func (d *RealtimeDispatcher) Publish(message RealtimeMessage) {
	if message.PlanID == "" || message.EventType == "" {
		return
	}
	d.mu.RLock()
	subscribers := d.subscribers[message.PlanID]
	if len(subscribers) == 0 {
		d.mu.RUnlock()
		return
	}
	copies := make([]*realtimeSubscriber, 0, len(subscribers))
	for _, subscriber := range subscribers {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()
	for _, subscriber := range copies {
		select {
		case subscriber.stream <- message:
		default:
		}
	}
}

// PublishChange is a plan.ChangeListener forwarding applied changes.
func (d *RealtimeDispatcher) PublishChange(change plan.Change) {
	if !change.Applied {
		return
	}
	attendeeIDs := make([]string, 0, len(change.Released))
	for _, attendeeID := range change.Released {
		attendeeIDs = append(attendeeIDs, attendeeID.String())
	}
	d.Publish(RealtimeMessage{
		PlanID:      change.PlanID,
		EventType:   RealtimeEventPlanChanged,
		Version:     change.Version,
		Operation:   change.Operation,
		AttendeeIDs: attendeeIDs,
		Timestamp:   d.clock().UTC(),
	})
}

func (d *RealtimeDispatcher) subscriberCount(planID string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers[planID])
}

func (d *RealtimeDispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *RealtimeDispatcher) registerSubscriber(planID string, subscriber *realtimeSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[planID]; !ok {
		d.subscribers[planID] = make(map[int64]*realtimeSubscriber)
	}
	d.subscribers[planID][subscriber.id] = subscriber
}

func (d *RealtimeDispatcher) unregisterSubscriber(planID string, subscriberID int64) {
	d.mu.Lock()
	subscribers := d.subscribers[planID]
	if subscribers != nil {
		delete(subscribers, subscriberID)
		if len(subscribers) == 0 {
			delete(d.subscribers, planID)
		}
	}
	d.mu.Unlock()
}
