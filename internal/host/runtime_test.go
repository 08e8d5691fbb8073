package host_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/imWorldy/StarfishPlugins/internal/host"
	"github.com/imWorldy/StarfishPlugins/internal/host/hosttest"
)

type memPersister struct {
	values map[string]map[string]any
}

func (m *memPersister) LoadPluginConfig(plugin string) (map[string]any, error) {
	out := make(map[string]any)
	for k, v := range m.values[plugin] {
		out[k] = v
	}
	return out, nil
}

func (m *memPersister) SavePluginValue(plugin, key string, value any) error {
	if m.values == nil {
		m.values = make(map[string]map[string]any)
	}
	if m.values[plugin] == nil {
		m.values[plugin] = make(map[string]any)
	}
	m.values[plugin][key] = value
	return nil
}

type testPlugin struct {
	name     string
	disabled *[]string
}

func (p *testPlugin) Disable() {
	*p.disabled = append(*p.disabled, p.name)
}

type harness struct {
	loop     *hosttest.ManualLoop
	runtime  *host.Runtime
	chat     []string
	upstream []string
}

func newHarness(t *testing.T, persister host.Persister) *harness {
	t.Helper()
	h := &harness{loop: hosttest.NewManualLoop(time.Unix(0, 0))}
	h.runtime = host.NewRuntime(host.Options{
		Scheduler: h.loop,
		Chat:      func(m string) { h.chat = append(h.chat, m) },
		Upstream: func(m string) bool {
			h.upstream = append(h.upstream, m)
			return true
		},
		Persister: persister,
		Seeds: map[string]map[string]any{
			"demo": {"webhook": map[string]any{"url": "https://example.invalid/hook"}},
		},
	})
	return h
}

var demoSchema = host.Schema{
	{
		Label:    "General",
		Defaults: map[string]any{"enabled": true, "webhook": map[string]any{"url": ""}},
		Settings: []host.Setting{
			{Type: host.SettingToggle, Key: "enabled", Text: []string{"OFF", "ON"}},
			{Type: host.SettingText, Key: "webhook.url"},
			{Type: host.SettingCycle, Key: "timeoutMs", Values: []host.CycleValue{
				{Text: "1500", Value: 1500}, {Text: "3000", Value: 3000},
			}},
		},
	},
}

func TestConfigDefaultsSeedsAndPersistence(t *testing.T) {
	persister := &memPersister{values: map[string]map[string]any{
		"demo": {"timeoutMs": float64(1500)},
	}}
	h := newHarness(t, persister)

	var api host.API
	err := h.runtime.Load(host.Metadata{Name: "Demo", Prefix: "§9D"}, func(a host.API) (host.Plugin, error) {
		api = a
		a.InitializeConfig(demoSchema)
		return &testPlugin{name: "demo", disabled: new([]string)}, nil
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	cfg := api.Config()
	if !cfg.Bool("enabled", false) {
		t.Fatalf("default not applied")
	}
	if cfg.String("webhook.url", "") != "https://example.invalid/hook" {
		t.Fatalf("seed lost to default: %q", cfg.String("webhook.url", ""))
	}
	if cfg.Int("timeoutMs", 0) != 1500 {
		t.Fatalf("persisted value not loaded: %d", cfg.Int("timeoutMs", 0))
	}

	if err := cfg.Set("timeoutMs", 2000); err == nil {
		t.Fatalf("cycle accepted value outside choices")
	}
	if err := cfg.Set("enabled", "yes"); err == nil {
		t.Fatalf("toggle accepted a string")
	}
	if err := cfg.Set("nope", 1); !errors.Is(err, host.ErrUnknownSetting) {
		t.Fatalf("expected unknown setting, got %v", err)
	}

	h.runtime.SendOutgoingChat("/demo config timeoutMs 3000")
	if cfg.Int("timeoutMs", 0) != 3000 || persister.values["demo"]["timeoutMs"] != 3000 {
		t.Fatalf("config command did not set and persist: %v", persister.values)
	}
	h.runtime.SendOutgoingChat("/demo config enabled off")
	if cfg.Bool("enabled", true) {
		t.Fatalf("toggle not switched off")
	}
	h.runtime.SendOutgoingChat("/demo config enabled maybe")
	if last := h.chat[len(h.chat)-1]; !strings.Contains(last, "expected on or off") {
		t.Fatalf("unexpected reply %q", last)
	}
	if len(h.upstream) != 0 {
		t.Fatalf("plugin command leaked upstream: %v", h.upstream)
	}
}

func TestCommandsAndInterceptors(t *testing.T) {
	h := newHarness(t, nil)
	var order []string
	var previewed string

	err := h.runtime.Load(host.Metadata{Name: "demo"}, func(a host.API) (host.Plugin, error) {
		a.Commands(func(r *host.CommandRegistry) {
			r.Command("preview").
				Description("Preview a message").
				Argument("<message>", host.ArgGreedy, "Message").
				Handler(func(ctx *host.CommandContext) {
					previewed = ctx.Arg("message")
					ctx.Send("ok")
				})
		})
		a.Intercept(host.EventClientChat, func(p *host.Intercepted) {
			order = append(order, "first")
			if p.Data.(host.ChatPacket).Message == "/ping" {
				p.Cancel()
			}
		})
		return &testPlugin{name: "demo", disabled: new([]string)}, nil
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	err = h.runtime.Load(host.Metadata{Name: "other"}, func(a host.API) (host.Plugin, error) {
		a.Intercept(host.EventClientChat, func(p *host.Intercepted) {
			order = append(order, "second")
		})
		return &testPlugin{name: "other", disabled: new([]string)}, nil
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	h.runtime.SendOutgoingChat("/demo preview teh   quick fox")
	if previewed != "teh quick fox" {
		t.Fatalf("greedy argument = %q", previewed)
	}
	h.runtime.SendOutgoingChat("/demo preview")
	if last := h.chat[len(h.chat)-1]; !strings.Contains(last, "missing argument <message>") {
		t.Fatalf("unexpected reply %q", last)
	}

	h.runtime.SendOutgoingChat("hello")
	if strings.Join(order, ",") != "first,second" || len(h.upstream) != 1 {
		t.Fatalf("chain order %v upstream %v", order, h.upstream)
	}

	order = nil
	h.runtime.SendOutgoingChat("/ping")
	if strings.Join(order, ",") != "first" || len(h.upstream) != 1 {
		t.Fatalf("cancel did not stop chain: %v %v", order, h.upstream)
	}
}

func TestDisableAllReverseOrderAndUnsubscribes(t *testing.T) {
	h := newHarness(t, nil)
	var disabled []string
	events := 0

	for _, name := range []string{"a", "b", "c"} {
		name := name
		err := h.runtime.Load(host.Metadata{Name: name}, func(a host.API) (host.Plugin, error) {
			a.On(host.EventChat, func(host.Event) { events++ })
			return &testPlugin{name: name, disabled: &disabled}, nil
		})
		if err != nil {
			t.Fatalf("load %s: %v", name, err)
		}
	}

	h.runtime.Publish(host.EventChat, host.ChatEvent{Message: "hi"})
	if events != 3 {
		t.Fatalf("expected 3 deliveries, got %d", events)
	}

	h.runtime.DisableAll()
	if strings.Join(disabled, ",") != "c,b,a" {
		t.Fatalf("disable order %v", disabled)
	}
	h.runtime.Publish(host.EventChat, host.ChatEvent{Message: "hi"})
	if events != 3 {
		t.Fatalf("events delivered after disable")
	}
}

func TestLoadFailureLeavesNothingSubscribed(t *testing.T) {
	h := newHarness(t, nil)
	called := false
	err := h.runtime.Load(host.Metadata{Name: "broken"}, func(a host.API) (host.Plugin, error) {
		a.On(host.EventChat, func(host.Event) { called = true })
		return nil, errors.New("boom")
	})
	if err == nil {
		t.Fatalf("expected load error")
	}
	h.runtime.Publish(host.EventChat, host.ChatEvent{})
	if called || len(h.runtime.Plugins()) != 0 {
		t.Fatalf("failed plugin still wired")
	}
}

func TestGetPingWithoutPinger(t *testing.T) {
	h := newHarness(t, nil)
	var api host.API
	_ = h.runtime.Load(host.Metadata{Name: "demo"}, func(a host.API) (host.Plugin, error) {
		api = a
		return &testPlugin{name: "demo", disabled: new([]string)}, nil
	})
	if api.Capabilities().Ping {
		t.Fatalf("ping capability reported without pinger")
	}

	var got error
	api.GetPing(time.Second, func(_ host.PingResult, err error) { got = err })
	h.loop.Flush()
	if !errors.Is(got, host.ErrPingUnavailable) {
		t.Fatalf("expected ErrPingUnavailable, got %v", got)
	}
}

type stubPinger struct {
	result host.PingResult
}

func (s stubPinger) Ping(time.Duration) (host.PingResult, error) {
	return s.result, nil
}

func TestGetPingRunsOffLoop(t *testing.T) {
	loop := hosttest.NewManualLoop(time.Unix(0, 0))
	rt := host.NewRuntime(host.Options{
		Scheduler: loop,
		Pinger:    stubPinger{result: host.PingResult{Success: true, Latency: 42 * time.Millisecond}},
	})
	var api host.API
	_ = rt.Load(host.Metadata{Name: "demo"}, func(a host.API) (host.Plugin, error) {
		api = a
		return &testPlugin{name: "demo", disabled: new([]string)}, nil
	})

	var got host.PingResult
	api.GetPing(time.Second, func(r host.PingResult, _ error) { got = r })
	if loop.Pending() != 1 || got.Success {
		t.Fatalf("ping ran synchronously")
	}
	loop.Settle()
	if !got.Success || got.Latency != 42*time.Millisecond {
		t.Fatalf("unexpected result %+v", got)
	}
}
