package dashboard

import (
	"container/heap"
	"time"

	"postdeck/internal/util"
	"postdeck/pkg/domain"
)

// defaultNotificationTTL is how long a notification stays visible before
// it is dismissed automatically.
const defaultNotificationTTL = 5 * time.Second

// AddNotification shows a notification and schedules its auto-dismissal.
// A missing ID gets one assigned; the stored record is returned.
func (s *Store) AddNotification(n domain.Notification) domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == "" {
		n.ID = util.NewID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	s.notifications = append(s.notifications, n)
	if !s.closed {
		heap.Push(&s.expiries, expiryEntry{id: n.ID, expireAt: time.Now().Add(s.notificationTTL)})
		s.rearmLocked()
	}
	return n
}

// RemoveNotification dismisses a notification by ID. Dismissing an unknown
// or already expired ID is a no-op.
func (s *Store) RemoveNotification(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeNotificationLocked(id)
}

// Notifications returns a snapshot of the visible notifications.
func (s *Store) Notifications() []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Notification, len(s.notifications))
	copy(out, s.notifications)
	return out
}

func (s *Store) removeNotificationLocked(id string) {
	for i := range s.notifications {
		if s.notifications[i].ID == id {
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
			return
		}
	}
}

// rearmLocked points the single expiry timer at the earliest pending
// deadline. Entries for notifications dismissed by hand are skipped when
// they fire.
func (s *Store) rearmLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.closed || s.expiries.Len() == 0 {
		return
	}
	wait := time.Until(s.expiries[0].expireAt)
	if wait < 0 {
		wait = 0
	}
	s.timer = time.AfterFunc(wait, s.expireDue)
}

func (s *Store) expireDue() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	now := time.Now()
	for s.expiries.Len() > 0 && !s.expiries[0].expireAt.After(now) {
		entry := heap.Pop(&s.expiries).(expiryEntry)
		s.removeNotificationLocked(entry.id)
	}
	s.rearmLocked()
}

type expiryEntry struct {
	id       string
	expireAt time.Time
}

type expiryHeap []expiryEntry

func (h expiryHeap) Len() int           { return len(h) }
func (h expiryHeap) Less(i, j int) bool { return h[i].expireAt.Before(h[j].expireAt) }
func (h expiryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *expiryHeap) Push(x any)        { *h = append(*h, x.(expiryEntry)) }
func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	entry := old[n-1]
	*h = old[:n-1]
	return entry
}
