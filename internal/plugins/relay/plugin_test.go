package relay_test

import (
	"strings"
	"testing"
	"time"

	"github.com/imWorldy/StarfishPlugins/internal/dispatcher/dispatchertest"
	"github.com/imWorldy/StarfishPlugins/internal/host"
	"github.com/imWorldy/StarfishPlugins/internal/host/hosttest"
	"github.com/imWorldy/StarfishPlugins/internal/notifier"
	"github.com/imWorldy/StarfishPlugins/internal/plugins/relay"
)

const webhook = "https://discord.com/api/webhooks/42/secret"

type relayHarness struct {
	loop    *hosttest.ManualLoop
	runtime *host.Runtime
	fake    *dispatchertest.FakeDoer
	chat    []string
	sentAt  []time.Time
}

func newRelay(t *testing.T, seed map[string]any) *relayHarness {
	t.Helper()
	h := &relayHarness{
		loop: hosttest.NewManualLoop(time.Date(2024, 5, 6, 7, 8, 9, 0, time.Local)),
		fake: &dispatchertest.FakeDoer{},
	}
	h.fake.Handler = func(dispatchertest.Call) dispatchertest.Reply {
		h.sentAt = append(h.sentAt, h.loop.Now())
		return dispatchertest.Reply{Status: 204}
	}
	h.runtime = host.NewRuntime(host.Options{
		Scheduler: h.loop,
		Chat:      func(m string) { h.chat = append(h.chat, m) },
		Seeds:     map[string]map[string]any{relay.Name: seed},
	})
	if err := h.runtime.Load(relay.Metadata(), relay.New(notifier.NewWebhookClient(h.fake))); err != nil {
		t.Fatalf("load: %v", err)
	}
	return h
}

func (h *relayHarness) say(msg string) {
	h.runtime.Publish(host.EventChat, host.ChatEvent{Message: msg})
}

func (h *relayHarness) chatContaining(s string) int {
	n := 0
	for _, line := range h.chat {
		if strings.Contains(line, s) {
			n++
		}
	}
	return n
}

func TestDeliversInOrderWithSpacing(t *testing.T) {
	h := newRelay(t, map[string]any{"webhook.url": webhook})

	for _, msg := range []string{"one", "two", "three", "four"} {
		h.say(msg)
	}
	h.loop.Advance(10 * time.Second)

	calls := h.fake.Calls()
	if len(calls) != 4 {
		t.Fatalf("expected 4 deliveries, got %d", len(calls))
	}
	for i, want := range []string{"one", "two", "three", "four"} {
		if !strings.Contains(calls[i].Body, `"content":"[07:08:09] `+want+`"`) {
			t.Fatalf("delivery %d out of order: %s", i, calls[i].Body)
		}
		if !strings.Contains(calls[i].Body, `"username":"Starfish Relay"`) ||
			!strings.Contains(calls[i].Body, `"allowed_mentions":{"parse":[]`) {
			t.Fatalf("unexpected payload %s", calls[i].Body)
		}
	}
	for i := 1; i < len(h.sentAt); i++ {
		if gap := h.sentAt[i].Sub(h.sentAt[i-1]); gap < 1250*time.Millisecond {
			t.Fatalf("deliveries %d and %d only %v apart", i-1, i, gap)
		}
	}
}

func TestSpacingHoldsForLateArrivals(t *testing.T) {
	h := newRelay(t, map[string]any{"webhook.url": webhook})

	h.say("first")
	h.loop.Advance(100 * time.Millisecond)
	h.say("second")
	h.loop.Advance(5 * time.Second)

	if len(h.sentAt) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(h.sentAt))
	}
	if gap := h.sentAt[1].Sub(h.sentAt[0]); gap < 1250*time.Millisecond {
		t.Fatalf("second delivery only %v after the first", gap)
	}
}

func TestSingleRequestInFlight(t *testing.T) {
	h := newRelay(t, map[string]any{"webhook.url": webhook})
	h.loop.HoldAsync = true

	h.say("a")
	h.say("b")
	h.loop.Advance(5 * time.Second)
	if h.loop.Pending() != 1 {
		t.Fatalf("expected one request in flight, got %d", h.loop.Pending())
	}

	h.loop.SettleOne()
	h.loop.Advance(1249 * time.Millisecond)
	if h.loop.Pending() != 0 {
		t.Fatalf("next request started before spacing elapsed")
	}
	h.loop.Advance(time.Millisecond)
	if h.loop.Pending() != 1 {
		t.Fatalf("next request not started after spacing")
	}
}

func TestClearsQueueAfterThreeFailures(t *testing.T) {
	h := newRelay(t, map[string]any{"webhook.url": webhook})
	h.fake.Handler = nil
	h.fake.Default = dispatchertest.Reply{Status: 500, Body: "oops"}

	for i := 0; i < 6; i++ {
		h.say("msg")
	}
	h.loop.Advance(30 * time.Second)

	if n := h.fake.CallCount(); n != 3 {
		t.Fatalf("expected 3 attempts before clearing, got %d", n)
	}
	if n := h.chatContaining("Failed to send chat to Discord: §7Discord responded with status 500 oops"); n != 1 {
		t.Fatalf("expected one latched error, got %d in %v", n, h.chat)
	}

	h.runtime.SendOutgoingChat("/discordrelay status")
	if h.chatContaining("Queue: §b0 §7pending") != 1 {
		t.Fatalf("queue not empty: %v", h.chat)
	}

	h.say("again")
	h.loop.Advance(5 * time.Second)
	if n := h.fake.CallCount(); n != 4 {
		t.Fatalf("new message not attempted, calls=%d", n)
	}
	if n := h.chatContaining("Failed to send chat"); n != 1 {
		t.Fatalf("error repeated within the same episode: %d", n)
	}

	h.fake.Default = dispatchertest.Reply{Status: 204}
	h.say("recovered")
	h.loop.Advance(5 * time.Second)
	h.fake.Default = dispatchertest.Reply{Status: 500}
	h.say("broken again")
	h.loop.Advance(5 * time.Second)
	if n := h.chatContaining("Failed to send chat"); n != 2 {
		t.Fatalf("success did not reset the latch: %d", n)
	}
}

func TestMissingWebhookWarnsOnce(t *testing.T) {
	h := newRelay(t, nil)

	h.say("one")
	h.say("two")
	if n := h.chatContaining("No Discord webhook configured"); n != 1 {
		t.Fatalf("expected one warning, got %d", n)
	}
	if h.loop.Pending() != 0 || h.fake.CallCount() != 0 {
		t.Fatalf("message queued without webhook")
	}

	h.runtime.SendOutgoingChat("/discordrelay config webhook.url " + webhook)
	h.say("three")
	h.loop.Advance(time.Second)
	if h.fake.CallCount() != 1 {
		t.Fatalf("message not delivered after configuring webhook")
	}
}

func TestInsecureWebhookWarnsOnce(t *testing.T) {
	h := newRelay(t, map[string]any{"webhook.url": "http://discord.com/api/webhooks/1/a"})

	h.say("one")
	h.say("two")
	if n := h.chatContaining("Webhook URL must use HTTPS"); n != 1 {
		t.Fatalf("expected one warning, got %d: %v", n, h.chat)
	}
	if h.fake.CallCount() != 0 {
		t.Fatalf("request sent to insecure webhook")
	}
}

func TestPositionFilterAndOptions(t *testing.T) {
	h := newRelay(t, map[string]any{
		"webhook.url":       webhook,
		"includeTimestamps": false,
		"allowMentions":     true,
		"webhookUsername":   "  ",
	})

	h.runtime.Publish(host.EventChat, host.ChatEvent{Message: "system", Position: 1})
	h.runtime.Publish(host.EventChat, host.ChatEvent{Message: "bar", Position: 2})
	h.say("chat")
	h.loop.Advance(5 * time.Second)

	calls := h.fake.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected only chat forwarded, got %d", len(calls))
	}
	body := calls[0].Body
	if !strings.Contains(body, `"content":"chat"`) || strings.Contains(body, "username") || strings.Contains(body, "allowed_mentions") {
		t.Fatalf("unexpected payload %s", body)
	}
}

func TestTestAndStatusCommands(t *testing.T) {
	h := newRelay(t, map[string]any{"webhook.url": webhook})

	h.runtime.SendOutgoingChat("/discordrelay test")
	if h.chatContaining("Test message queued for delivery.") != 1 {
		t.Fatalf("test command did not confirm: %v", h.chat)
	}
	h.loop.Advance(3 * time.Second)
	if calls := h.fake.Calls(); len(calls) != 1 || !strings.Contains(calls[0].Body, "[TEST] Discord relay is active at 07:08:09") {
		t.Fatalf("unexpected test delivery %+v", calls)
	}

	h.runtime.SendOutgoingChat("/discordrelay status")
	for _, want := range []string{"Status: §aenabled", "Webhook: §aset", "Delivered: §a1", "last: §f3 seconds ago"} {
		if h.chatContaining(want) != 1 {
			t.Fatalf("status missing %q: %v", want, h.chat)
		}
	}

	h.runtime.SendOutgoingChat("/discordrelay config enabled off")
	h.runtime.SendOutgoingChat("/discordrelay test")
	if h.chatContaining("disabled in the config") != 1 {
		t.Fatalf("disabled test not reported")
	}
	h.say("ignored")
	h.loop.Advance(3 * time.Second)
	if h.fake.CallCount() != 1 {
		t.Fatalf("disabled relay still forwarded")
	}
}

func TestDisableDropsQueueAndTimers(t *testing.T) {
	h := newRelay(t, map[string]any{"webhook.url": webhook})
	h.loop.HoldAsync = true

	h.say("a")
	h.say("b")
	h.say("c")
	h.runtime.DisableAll()

	h.loop.Settle()
	h.loop.Advance(10 * time.Second)
	if n := h.fake.CallCount(); n != 1 {
		t.Fatalf("expected only the in-flight request, got %d", n)
	}
	if h.loop.ActiveTimers() != 0 {
		t.Fatalf("timers left after disable")
	}

	h.say("after")
	h.loop.Settle()
	if h.fake.CallCount() != 1 {
		t.Fatalf("events delivered after disable")
	}
}
