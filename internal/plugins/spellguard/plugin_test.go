package spellguard_test

import (
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/imWorldy/StarfishPlugins/internal/dispatcher/dispatchertest"
	"github.com/imWorldy/StarfishPlugins/internal/host"
	"github.com/imWorldy/StarfishPlugins/internal/host/hosttest"
	"github.com/imWorldy/StarfishPlugins/internal/plugins/spellguard"
)

type guardHarness struct {
	loop      *hosttest.ManualLoop
	runtime   *host.Runtime
	fake      *dispatchertest.FakeDoer
	chat      []string
	actionBar []string
	upstream  []string
	accept    bool
}

func newGuard(t *testing.T, seed map[string]any) *guardHarness {
	t.Helper()
	h := &guardHarness{
		loop:   hosttest.NewManualLoop(time.Unix(1_700_000_000, 0)),
		fake:   &dispatchertest.FakeDoer{Default: dispatchertest.Reply{Status: 200, Body: `{"matches":[]}`}},
		accept: true,
	}
	h.runtime = host.NewRuntime(host.Options{
		Scheduler: h.loop,
		Chat:      func(m string) { h.chat = append(h.chat, m) },
		ActionBar: func(m string) { h.actionBar = append(h.actionBar, m) },
		Upstream: func(m string) bool {
			if h.accept {
				h.upstream = append(h.upstream, m)
			}
			return h.accept
		},
		Seeds: map[string]map[string]any{spellguard.Name: seed},
	})
	if err := h.runtime.Load(spellguard.Metadata(), spellguard.New(spellguard.NewLanguageTool(h.fake))); err != nil {
		t.Fatalf("load: %v", err)
	}
	return h
}

func (h *guardHarness) send(msg string) {
	h.runtime.SendOutgoingChat(msg)
	h.loop.Settle()
}

func TestStaticReplacementOnlyWhenAPIFails(t *testing.T) {
	h := newGuard(t, map[string]any{"autoCapitalize": false})
	h.fake.Default = dispatchertest.Reply{Status: 503}

	h.send("teh wether is nice")
	if strings.Join(h.upstream, "|") != "the wether is nice" {
		t.Fatalf("upstream = %v", h.upstream)
	}
}

func TestAPICorrectionAndPostProcessing(t *testing.T) {
	h := newGuard(t, map[string]any{"ensurePunctuation": true})
	h.fake.Default = dispatchertest.Reply{
		Status: 200,
		Body:   `{"matches":[{"offset":4,"length":6,"replacements":[{"value":"weather"}]}]}`,
	}

	h.send("teh wether is nice. see you")
	if len(h.upstream) != 1 || h.upstream[0] != "The weather is nice. See you." {
		t.Fatalf("upstream = %v", h.upstream)
	}

	form, _ := url.ParseQuery(h.fake.Calls()[0].Body)
	if form.Get("text") != "the wether is nice. see you" || form.Get("language") != "en-US" {
		t.Fatalf("API saw %v", form)
	}

	if len(h.actionBar) != 1 || !strings.Contains(h.actionBar[0], "§dSG §aAPI §7teh wether is nice. see you §8→ §fThe weather is nice. See you.") {
		t.Fatalf("action bar = %v", h.actionBar)
	}
}

func TestCorrectedMessageIsNotInterceptedAgain(t *testing.T) {
	h := newGuard(t, nil)

	h.send("hello there")
	if h.fake.CallCount() != 1 {
		t.Fatalf("API called %d times for one message", h.fake.CallCount())
	}
	if strings.Join(h.upstream, "|") != "Hello there" {
		t.Fatalf("upstream = %v", h.upstream)
	}
}

func TestPassThroughCases(t *testing.T) {
	h := newGuard(t, nil)

	h.send("/msg friend teh")
	h.send("   ")
	if h.fake.CallCount() != 0 {
		t.Fatalf("API called for commands or blank lines")
	}
	if len(h.upstream) != 2 || h.upstream[0] != "/msg friend teh" {
		t.Fatalf("upstream = %q", h.upstream)
	}

	h.runtime.SendOutgoingChat("/spellguard config enabled off")
	h.send("teh raw text")
	if h.upstream[len(h.upstream)-1] != "teh raw text" || h.fake.CallCount() != 0 {
		t.Fatalf("disabled guard still corrected: %v", h.upstream)
	}
}

func TestNoPreviewWhenUnchanged(t *testing.T) {
	h := newGuard(t, nil)
	h.send("Fine as is")
	if len(h.actionBar) != 0 {
		t.Fatalf("preview shown for unchanged message: %v", h.actionBar)
	}
}

func TestUpstreamFailureIsReported(t *testing.T) {
	h := newGuard(t, nil)
	h.accept = false

	h.send("hello")
	if len(h.chat) != 1 || h.chat[0] != "§dSG §cCould not send the message." {
		t.Fatalf("chat = %v", h.chat)
	}
}

func TestRequestBudgetFallsBackToBaseline(t *testing.T) {
	h := newGuard(t, map[string]any{"autoCapitalize": false})

	for i := 0; i < 6; i++ {
		h.runtime.SendOutgoingChat("teh message")
	}
	h.loop.Settle()

	if h.fake.CallCount() != 5 {
		t.Fatalf("expected 5 API calls inside the burst, got %d", h.fake.CallCount())
	}
	if len(h.upstream) != 6 {
		t.Fatalf("expected every message sent, got %v", h.upstream)
	}
	for _, m := range h.upstream {
		if m != "the message" {
			t.Fatalf("unexpected message %q", m)
		}
	}
}

func TestOutgoingMessageIsSingleLineAndCapped(t *testing.T) {
	h := newGuard(t, map[string]any{"autoCapitalize": false, "fixCommon": false})

	h.send("first line\nsecond " + strings.Repeat("a", 300))
	if len(h.upstream) != 1 {
		t.Fatalf("upstream = %v", h.upstream)
	}
	got := h.upstream[0]
	if strings.Contains(got, "\n") || len([]rune(got)) != 256 || !strings.HasPrefix(got, "first line second ") {
		t.Fatalf("unexpected outgoing message %q", got)
	}
}

func TestPreviewCommand(t *testing.T) {
	h := newGuard(t, map[string]any{"api.language": "de-DE", "api.key": "k"})
	h.fake.Default = dispatchertest.Reply{
		Status: 200,
		Body:   `{"matches":[{"offset":0,"length":5,"replacements":[{"value":"Hallo"}]}]}`,
	}

	h.send("/spellguard preview hallo   wärend")
	if len(h.upstream) != 0 {
		t.Fatalf("preview leaked upstream: %v", h.upstream)
	}
	if len(h.chat) != 1 || h.chat[0] != "§dSG §7API: §fHallo während" {
		t.Fatalf("chat = %v", h.chat)
	}
	call := h.fake.Calls()[0]
	if form, _ := url.ParseQuery(call.Body); form.Get("language") != "de-DE" || call.Headers["authorization"] != "Bearer k" {
		t.Fatalf("unexpected request %+v", call)
	}

	h.fake.Default = dispatchertest.Reply{Status: 500, Body: "down"}
	h.send("/spellguard preview test")
	if last := h.chat[len(h.chat)-1]; last != "§dSG §cAPI preview failed: API error 500: down" {
		t.Fatalf("unexpected failure reply %q", last)
	}
}

func TestResultAfterDisableIsDropped(t *testing.T) {
	h := newGuard(t, nil)

	h.runtime.SendOutgoingChat("hello")
	h.runtime.DisableAll()
	h.loop.Settle()
	if len(h.upstream) != 0 {
		t.Fatalf("message sent after disable: %v", h.upstream)
	}
}

func TestBudgetedMessagesKeepTypedOrder(t *testing.T) {
	h := newGuard(t, map[string]any{"autoCapitalize": false})

	var want []string
	for i := 1; i <= 6; i++ {
		msg := fmt.Sprintf("message %d", i)
		want = append(want, msg)
		h.runtime.SendOutgoingChat(msg)
		h.loop.Flush()
	}
	if len(h.upstream) != 0 {
		t.Fatalf("message sent ahead of pending corrections: %v", h.upstream)
	}

	h.loop.Settle()
	if strings.Join(h.upstream, "|") != strings.Join(want, "|") {
		t.Fatalf("upstream order = %q", h.upstream)
	}
}

func TestSlowCorrectionHoldsLaterMessages(t *testing.T) {
	h := newGuard(t, map[string]any{"autoCapitalize": false})

	h.runtime.SendOutgoingChat("first")
	h.runtime.SendOutgoingChat("second")
	if !h.loop.SettleOne() || len(h.upstream) != 1 || h.upstream[0] != "first" {
		t.Fatalf("first message not released: %v", h.upstream)
	}
	h.loop.Settle()
	if strings.Join(h.upstream, "|") != "first|second" {
		t.Fatalf("upstream order = %q", h.upstream)
	}
}
