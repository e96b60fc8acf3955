package dashboard

import (
	"testing"
	"time"

	"postdeck/pkg/domain"
)

func TestNotificationAddAndDismiss(t *testing.T) {
	s := newTestStore(t, &fakeGateway{ready: true})

	first := s.AddNotification(domain.Notification{Severity: domain.SeverityInfo, Message: "post published"})
	second := s.AddNotification(domain.Notification{Severity: domain.SeverityError, Message: "publish failed"})
	if first.ID == "" || second.ID == "" {
		t.Fatal("expected assigned IDs")
	}
	if got := len(s.Notifications()); got != 2 {
		t.Fatalf("expected 2 notifications, got %d", got)
	}

	s.RemoveNotification(first.ID)
	remaining := s.Notifications()
	if len(remaining) != 1 || remaining[0].ID != second.ID {
		t.Fatalf("expected only second notification, got %+v", remaining)
	}

	// Dismissing again must be a no-op.
	s.RemoveNotification(first.ID)
	if got := len(s.Notifications()); got != 1 {
		t.Fatalf("expected 1 notification, got %d", got)
	}
}

func TestNotificationAutoExpiry(t *testing.T) {
	s := newTestStore(t, &fakeGateway{ready: true}, WithNotificationTTL(30*time.Millisecond))

	s.AddNotification(domain.Notification{Message: "first"})
	time.Sleep(10 * time.Millisecond)
	s.AddNotification(domain.Notification{Message: "second"})

	deadline := time.Now().Add(2 * time.Second)
	for len(s.Notifications()) > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("notifications never expired: %+v", s.Notifications())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDismissedNotificationNotRevivedByTimer(t *testing.T) {
	s := newTestStore(t, &fakeGateway{ready: true}, WithNotificationTTL(200*time.Millisecond))

	n := s.AddNotification(domain.Notification{Message: "short lived"})
	s.RemoveNotification(n.ID)
	if got := len(s.Notifications()); got != 0 {
		t.Fatalf("expected dismissed notification gone, got %d", got)
	}

	// The keeper's deadline lands after the dismissed entry's, so when the
	// stale heap entry fires the keeper must survive it.
	time.Sleep(100 * time.Millisecond)
	keeper := s.AddNotification(domain.Notification{Message: "kept"})
	time.Sleep(150 * time.Millisecond)
	remaining := s.Notifications()
	if len(remaining) != 1 || remaining[0].ID != keeper.ID {
		t.Fatalf("expected keeper to survive stale expiry, got %+v", remaining)
	}
}

func TestCloseStopsScheduler(t *testing.T) {
	s := New(&fakeGateway{ready: true}, WithNotificationTTL(50*time.Millisecond))
	s.AddNotification(domain.Notification{Message: "pending"})
	s.Close()

	time.Sleep(100 * time.Millisecond)
	// After Close the timer is stopped; the notification stays as-is.
	if got := len(s.Notifications()); got != 1 {
		t.Fatalf("expected notification untouched after Close, got %d", got)
	}
}
