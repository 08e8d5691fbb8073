package ingest

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/imWorldy/StarfishPlugins/internal/host"
	"github.com/imWorldy/StarfishPlugins/internal/host/hosttest"
)

type recorder struct {
	events []host.Event
}

func (r *recorder) Disable() {}

func newLoopback(t *testing.T, cfg ServerConfig) (*hosttest.ManualLoop, *LoopbackServer, *host.Runtime, *recorder) {
	t.Helper()
	loop := hosttest.NewManualLoop(time.Unix(1_700_000_000, 0))
	server := NewLoopbackServer(loop, cfg)
	rt := host.NewRuntime(host.Options{
		Scheduler: loop,
		Chat:      func(string) {},
		Upstream:  server.Upstream,
	})
	server.Attach(rt)

	rec := &recorder{}
	err := rt.Load(host.Metadata{Name: "recorder"}, func(api host.API) (host.Plugin, error) {
		for _, name := range []string{host.EventWorldTime, host.EventServerKeepAlive, host.EventClientKeepAlive, host.EventChat} {
			api.On(name, func(ev host.Event) { rec.events = append(rec.events, ev) })
		}
		return rec, nil
	})
	if err != nil {
		t.Fatalf("load recorder: %v", err)
	}
	return loop, server, rt, rec
}

func (r *recorder) named(name string) []host.Event {
	var out []host.Event
	for _, ev := range r.events {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

func TestLoopbackWorldTime(t *testing.T) {
	loop, server, _, rec := newLoopback(t, ServerConfig{TicksPerSecond: 20, KeepAliveInterval: time.Hour})
	server.Start()
	loop.Advance(3 * time.Second)

	times := rec.named(host.EventWorldTime)
	if len(times) != 3 {
		t.Fatalf("expected 3 time updates, got %d", len(times))
	}
	last := times[2].Data.(host.WorldTimeEvent)
	if last.Age != int64(60) {
		t.Fatalf("unexpected age %v", last.Age)
	}

	server.Stop()
	loop.Advance(5 * time.Second)
	if got := len(rec.named(host.EventWorldTime)); got != 3 {
		t.Fatalf("updates after stop: %d", got)
	}
}

func TestLoopbackKeepAlivePairs(t *testing.T) {
	loop, server, _, rec := newLoopback(t, ServerConfig{
		KeepAliveInterval: 5 * time.Second,
		SimulatedRTT:      40 * time.Millisecond,
	})
	server.Start()
	loop.Advance(5*time.Second + 20*time.Millisecond)

	if len(rec.named(host.EventServerKeepAlive)) != 1 || len(rec.named(host.EventClientKeepAlive)) != 0 {
		t.Fatalf("reply arrived before the round trip: %+v", rec.events)
	}

	loop.Advance(20 * time.Millisecond)
	replies := rec.named(host.EventClientKeepAlive)
	if len(replies) != 1 || replies[0].Data.(host.KeepAliveEvent).KeepAliveID != int64(1) {
		t.Fatalf("unexpected replies %+v", replies)
	}
	if got := server.Monitor().GetLatency(); got != 40*time.Millisecond {
		t.Fatalf("monitor latency = %v", got)
	}
}

func TestLoopbackEchoesChat(t *testing.T) {
	loop, server, rt, rec := newLoopback(t, ServerConfig{PlayerName: "Alex", KeepAliveInterval: time.Hour})

	if rt.SendOutgoingChat("before start") {
		t.Fatalf("stopped server accepted chat")
	}

	server.Start()
	if !rt.SendOutgoingChat("hello") {
		t.Fatalf("chat not accepted")
	}
	loop.Flush()

	chats := rec.named(host.EventChat)
	if len(chats) != 1 || chats[0].Data.(host.ChatEvent).Message != "<Alex> hello" {
		t.Fatalf("unexpected echo %+v", chats)
	}
	if server.Received() != 1 {
		t.Fatalf("received = %d", server.Received())
	}
}

func TestLoopbackPing(t *testing.T) {
	server := NewLoopbackServer(hosttest.NewManualLoop(time.Now()), ServerConfig{SimulatedRTT: time.Millisecond})
	res, err := server.Ping(time.Second)
	if err != nil || !res.Success || res.Latency != time.Millisecond {
		t.Fatalf("unexpected ping %+v %v", res, err)
	}

	slow := NewLoopbackServer(hosttest.NewManualLoop(time.Now()), ServerConfig{SimulatedRTT: time.Second})
	res, _ = slow.Ping(time.Millisecond)
	if res.Success || res.Error == 0 {
		t.Fatalf("expected timeout result, got %+v", res)
	}
}

func TestHeartbeatMonitorMissedBeats(t *testing.T) {
	hm := NewHeartbeatMonitor()
	now := time.Unix(0, 0)
	for i := 0; i < 4; i++ {
		hm.RecordSent(now)
	}
	if hm.IsHealthy() || hm.GetMissedCount() != 3 {
		t.Fatalf("expected unhealthy after 3 missed, got %d", hm.GetMissedCount())
	}
	hm.RecordACK(now.Add(time.Millisecond))
	if !hm.IsHealthy() || hm.GetMissedCount() != 0 {
		t.Fatalf("ack did not restore health")
	}
}

func TestConsole(t *testing.T) {
	var sent []string
	var out bytes.Buffer
	c := NewConsole(strings.NewReader("hello\r\n\n   \n/ping\n"), &out,
		func(fn func()) { fn() },
		func(m string) bool { sent = append(sent, m); return true })

	if err := c.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.Join(sent, "|") != "hello|/ping" {
		t.Fatalf("sent = %q", sent)
	}

	c.Chat("§bPT §7Latency: §a70ms")
	c.ActionBar("§dSG §aok")
	if out.String() != "PT Latency: 70ms\n[action bar] SG ok\n" {
		t.Fatalf("unexpected output %q", out.String())
	}
}
