package live

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/analfistt/ArbiWeb/internal/model"
)

func newTestClient(identity string, admin bool) *Client {
	return NewClient(Credential{Identity: identity, IsAdmin: admin}, nil, nil)
}

func drain(c *Client) []model.Event {
	var events []model.Event
	for {
		select {
		case event := <-c.send:
			events = append(events, event)
		default:
			return events
		}
	}
}

func fillQueue(c *Client) {
	for len(c.send) < cap(c.send) {
		c.deliver(model.Event{Type: "filler"})
	}
}

func TestRegisterGreetsConnection(t *testing.T) {
	hub := NewHub(time.Minute, nil)
	client := newTestClient("user-1", false)

	hub.Register(client)

	events := drain(client)
	if len(events) != 1 || events[0].Type != model.EventConnected {
		t.Fatalf("Expected a connected event, got %+v", events)
	}
	if hub.Connections("user-1") != 1 {
		t.Errorf("Expected 1 connection registered")
	}
}

func TestRegisterTracksAdmins(t *testing.T) {
	hub := NewHub(time.Minute, nil)

	hub.Register(newTestClient("user-1", false))
	hub.Register(newTestClient("admin-1", true))

	if hub.AdminConnections() != 1 {
		t.Errorf("Expected 1 admin connection, got %d", hub.AdminConnections())
	}
	if hub.TotalConnections() != 2 {
		t.Errorf("Expected 2 total connections, got %d", hub.TotalConnections())
	}
}

func TestUnregisterRemovesFromBothRegistries(t *testing.T) {
	hub := NewHub(time.Minute, nil)
	admin := newTestClient("admin-1", true)

	hub.Register(admin)
	hub.Unregister(admin)

	if hub.Connections("admin-1") != 0 {
		t.Error("Connection still present after unregister")
	}
	if hub.AdminConnections() != 0 {
		t.Error("Admin set still holds unregistered connection")
	}

	// Unregistering again must be safe.
	hub.Unregister(admin)
}

func TestSendToSubscriber(t *testing.T) {
	hub := NewHub(time.Minute, nil)

	first := newTestClient("user-1", false)
	second := newTestClient("user-1", false)
	other := newTestClient("user-2", false)
	hub.Register(first)
	hub.Register(second)
	hub.Register(other)
	drain(first)
	drain(second)
	drain(other)

	hub.SendToSubscriber("user-1", "deposit_updated", map[string]string{"status": "completed"})

	if events := drain(first); len(events) != 1 || events[0].Type != "deposit_updated" {
		t.Errorf("First connection missed the event: %+v", events)
	}
	if events := drain(second); len(events) != 1 {
		t.Errorf("Second connection missed the event: %+v", events)
	}
	if events := drain(other); len(events) != 0 {
		t.Errorf("Other identity received a targeted event: %+v", events)
	}
}

func TestSendToAbsentSubscriberIsNoOp(t *testing.T) {
	hub := NewHub(time.Minute, nil)

	// Must not panic or error; delivery is best-effort.
	hub.SendToSubscriber("ghost", "deposit_updated", nil)
	hub.SendToAdmins("user_registered", nil)
}

func TestSendToAdmins(t *testing.T) {
	hub := NewHub(time.Minute, nil)

	user := newTestClient("user-1", false)
	admin := newTestClient("admin-1", true)
	hub.Register(user)
	hub.Register(admin)
	drain(user)
	drain(admin)

	hub.SendToAdmins("user_registered", nil)

	if events := drain(admin); len(events) != 1 || events[0].Type != "user_registered" {
		t.Errorf("Admin missed the event: %+v", events)
	}
	if events := drain(user); len(events) != 0 {
		t.Errorf("Non-admin received admin event: %+v", events)
	}
}

func TestBroadcastAll(t *testing.T) {
	hub := NewHub(time.Minute, nil)

	clients := []*Client{
		newTestClient("user-1", false),
		newTestClient("user-2", false),
		newTestClient("admin-1", true),
	}
	for _, c := range clients {
		hub.Register(c)
		drain(c)
	}

	hub.BroadcastAll(model.EventPriceUpdate, []model.PriceSample{{Symbol: "BTC", Price: 50000}})

	for _, c := range clients {
		events := drain(c)
		if len(events) != 1 || events[0].Type != model.EventPriceUpdate {
			t.Errorf("Connection %s missed the broadcast: %+v", c.Identity, events)
		}
	}
}

func TestSweepTerminatesUnresponsiveConnections(t *testing.T) {
	hub := NewHub(time.Minute, nil)

	responsive := newTestClient("user-1", false)
	silent := newTestClient("admin-2", true)
	hub.Register(responsive)
	hub.Register(silent)

	// First sweep: both were alive at registration, both get pinged.
	hub.sweep()
	if hub.Connections("user-1") != 1 || hub.Connections("admin-2") != 1 {
		t.Fatal("Connections dropped on first sweep")
	}

	// Only one answers before the next sweep.
	responsive.markAlive()
	hub.sweep()

	if hub.Connections("user-1") != 1 {
		t.Error("Responsive connection was terminated")
	}
	if hub.Connections("admin-2") != 0 {
		t.Error("Unresponsive connection still in per-identity registry")
	}
	if hub.AdminConnections() != 0 {
		t.Error("Unresponsive connection still in admin set")
	}
}

func TestDispatchDropsLaggingSubscriber(t *testing.T) {
	hub := NewHub(time.Minute, nil)
	client := newTestClient("user-1", false)
	hub.Register(client)

	// Fill the send queue; the next dispatch cannot enqueue and the hub
	// must disconnect the subscriber instead of blocking.
	fillQueue(client)

	hub.BroadcastAll(model.EventPriceUpdate, nil)

	if hub.Connections("user-1") != 0 {
		t.Error("Lagging subscriber was not disconnected")
	}
}

func TestConcurrentBroadcastsToLaggingSubscribers(t *testing.T) {
	hub := NewHub(time.Minute, nil)

	// Many saturated subscribers force every broadcast down the
	// disconnect path at once. Delivery must never touch a channel
	// another goroutine is tearing down.
	for i := 0; i < 64; i++ {
		client := newTestClient(fmt.Sprintf("user-%d", i), i%4 == 0)
		hub.Register(client)
		fillQueue(client)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.BroadcastAll(model.EventPriceUpdate, nil)
		}()
	}
	wg.Wait()

	if hub.TotalConnections() != 0 {
		t.Errorf("Expected all lagging subscribers disconnected, %d remain", hub.TotalConnections())
	}
	if hub.AdminConnections() != 0 {
		t.Errorf("Expected admin set emptied, %d remain", hub.AdminConnections())
	}
}

func TestDeliverAfterCloseIsNotLagging(t *testing.T) {
	client := newTestClient("user-1", false)
	fillQueue(client)
	client.close()

	// A closed client swallows events instead of reporting a full queue,
	// so a racing dispatch does not try to disconnect it again.
	if !client.deliver(model.Event{Type: "late"}) {
		t.Error("Delivery to a closed client reported a lagging queue")
	}
}
