// Package notify keeps the bounded, in-memory list of user notifications
// and fans new ones out to live clients.
package notify

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coursetrack/coursetrack/internal/domain"
	"github.com/coursetrack/coursetrack/internal/errors"
	"github.com/coursetrack/coursetrack/internal/sse"
	"github.com/coursetrack/coursetrack/internal/store"
)

// Defaults.
const (
	DefaultCapacity = 10
	DefaultAutoRead = 5 * time.Second
)

// ErrNotificationNotFound is returned by MarkRead for an unknown id.
var ErrNotificationNotFound = errors.ErrNotFound.WithMessage("notification not found")

// Timer is the part of *time.Timer the Center uses.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d. time.AfterFunc satisfies it via AfterFunc.
type Scheduler func(d time.Duration, f func()) Timer

// AfterFunc schedules with the real clock.
func AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Options configure a Center.
type Options struct {
	Capacity  int
	AutoRead  time.Duration
	Emitter   store.EventEmitter
	Logger    *slog.Logger
	Scheduler Scheduler
	Clock     func() time.Time
	// OnPush is called for every accepted notification, after it is stored.
	OnPush func(domain.Notification)
}

// Center holds notifications newest first. Beyond capacity the oldest are
// dropped. Each notification is marked read automatically after AutoRead.
type Center struct {
	mu     sync.Mutex
	items  []domain.Notification
	timers map[string]Timer
	closed bool

	capacity int
	autoRead time.Duration
	emitter  store.EventEmitter
	logger   *slog.Logger
	schedule Scheduler
	now      func() time.Time
	onPush   func(domain.Notification)
}

// NewCenter creates a Center.
func NewCenter(opts Options) *Center {
	c := &Center{
		timers:   make(map[string]Timer),
		capacity: opts.Capacity,
		autoRead: opts.AutoRead,
		emitter:  opts.Emitter,
		logger:   opts.Logger,
		schedule: opts.Scheduler,
		now:      opts.Clock,
		onPush:   opts.OnPush,
	}
	if c.capacity <= 0 {
		c.capacity = DefaultCapacity
	}
	if c.autoRead <= 0 {
		c.autoRead = DefaultAutoRead
	}
	if c.emitter == nil {
		c.emitter = store.NewNoopEmitter()
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.schedule == nil {
		c.schedule = AfterFunc
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Push stores n at the front of the list and returns the stored copy.
// A missing id or timestamp is filled in and Read is reset to false. An id
// already in the list replaces that entry.
// After Close, Push only returns the normalized notification.
func (c *Center) Push(n domain.Notification) domain.Notification {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = c.now()
	}
	if !n.Type.Valid() {
		n.Type = domain.NotificationProgress
	}
	n.Read = false

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return n
	}

	// A repeated id replaces the earlier entry and restarts its auto-read.
	if idx := c.indexLocked(n.ID); idx >= 0 {
		c.items = slices.Delete(c.items, idx, idx+1)
		c.stopTimerLocked(n.ID)
	}
	c.items = slices.Insert(c.items, 0, n)
	for len(c.items) > c.capacity {
		evicted := c.items[len(c.items)-1]
		c.items = c.items[:len(c.items)-1]
		c.stopTimerLocked(evicted.ID)
	}

	notifID := n.ID
	c.timers[notifID] = c.schedule(c.autoRead, func() { c.autoMarkRead(notifID) })
	unread, total := c.countsLocked()
	c.mu.Unlock()

	c.logger.Debug("notification pushed", "id", n.ID, "type", n.Type, "title", n.Title)
	c.emitter.Emit(sse.NewNotificationCreatedEvent(n))
	c.emitter.Emit(sse.NewNotificationsChangedEvent(unread, total))
	if c.onPush != nil {
		c.onPush(n)
	}
	return n
}

// MarkRead marks one notification read.
func (c *Center) MarkRead(notificationID string) error {
	c.mu.Lock()
	idx := c.indexLocked(notificationID)
	if idx < 0 {
		c.mu.Unlock()
		return ErrNotificationNotFound.WithMessage("notification " + notificationID + " not found")
	}
	changed := !c.items[idx].Read
	c.items[idx].Read = true
	c.stopTimerLocked(notificationID)
	unread, total := c.countsLocked()
	c.mu.Unlock()

	if changed {
		c.emitter.Emit(sse.NewNotificationsChangedEvent(unread, total))
	}
	return nil
}

// MarkAllRead marks every notification read.
func (c *Center) MarkAllRead() {
	c.mu.Lock()
	for i := range c.items {
		c.items[i].Read = true
	}
	c.stopAllTimersLocked()
	total := len(c.items)
	c.mu.Unlock()

	c.emitter.Emit(sse.NewNotificationsChangedEvent(0, total))
}

// Clear removes every notification.
func (c *Center) Clear() {
	c.mu.Lock()
	c.items = nil
	c.stopAllTimersLocked()
	c.mu.Unlock()

	c.emitter.Emit(sse.NewNotificationsChangedEvent(0, 0))
}

// List returns a copy of the notifications, newest first.
func (c *Center) List() []domain.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.items)
}

// UnreadCount returns the number of unread notifications.
func (c *Center) UnreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	unread, _ := c.countsLocked()
	return unread
}

// Close stops all pending auto-read timers. Later pushes are not stored.
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.stopAllTimersLocked()
}

func (c *Center) autoMarkRead(notificationID string) {
	c.mu.Lock()
	if _, pending := c.timers[notificationID]; !pending {
		// Already read, evicted, or cleared.
		c.mu.Unlock()
		return
	}
	delete(c.timers, notificationID)
	idx := c.indexLocked(notificationID)
	if idx < 0 || c.items[idx].Read {
		c.mu.Unlock()
		return
	}
	c.items[idx].Read = true
	unread, total := c.countsLocked()
	c.mu.Unlock()

	c.emitter.Emit(sse.NewNotificationsChangedEvent(unread, total))
}

func (c *Center) indexLocked(notificationID string) int {
	return slices.IndexFunc(c.items, func(n domain.Notification) bool { return n.ID == notificationID })
}

func (c *Center) countsLocked() (unread, total int) {
	for _, n := range c.items {
		if !n.Read {
			unread++
		}
	}
	return unread, len(c.items)
}

func (c *Center) stopTimerLocked(notificationID string) {
	if t, ok := c.timers[notificationID]; ok {
		t.Stop()
		delete(c.timers, notificationID)
	}
}

func (c *Center) stopAllTimersLocked() {
	for notifID, t := range c.timers {
		t.Stop()
		delete(c.timers, notifID)
	}
}
