// Package spellguard autocorrects outgoing chat before it reaches the server.
package spellguard

import (
	"fmt"
	"strings"
	"time"

	"github.com/imWorldy/StarfishPlugins/internal/host"
)

const Name = "spellguard"

func Metadata() host.Metadata {
	return host.Metadata{
		Name:        Name,
		DisplayName: "Spell Guard",
		Prefix:      "§dSG",
		Version:     "1.1.0",
		Author:      "Codex",
		Description: "Autocorrects outgoing chat using a LanguageTool-compatible API before forwarding to the server.",
	}
}

var configSchema = host.Schema{
	{
		Label: "General",
		Defaults: map[string]any{
			"enabled":           true,
			"fixCommon":         true,
			"autoCapitalize":    true,
			"capitalizeFirst":   true,
			"ensurePunctuation": false,
			"notifyFix":         true,
		},
		Settings: []host.Setting{
			{Type: host.SettingToggle, Key: "enabled", Text: []string{"OFF", "ON"},
				Description: "Enable automatic corrections for outgoing chat."},
			{Type: host.SettingToggle, Key: "fixCommon", Text: []string{"OFF", "ON"},
				Description: "Apply quick replacements for well-known typos before contacting the API."},
			{Type: host.SettingToggle, Key: "autoCapitalize", Text: []string{"KEEP", "AUTO"},
				Description: "Capitalise the first letter after sentence boundaries."},
			{Type: host.SettingToggle, Key: "capitalizeFirst", Text: []string{"KEEP", "AUTO"},
				Description: "Also capitalise the first letter of the message (needs autoCapitalize)."},
			{Type: host.SettingToggle, Key: "ensurePunctuation", Text: []string{"NO", "ADD"},
				Description: "Append a full stop if a sentence ends without punctuation (ignored for very short messages)."},
			{Type: host.SettingToggle, Key: "notifyFix", Text: []string{"SILENT", "SHOW"},
				Description: "Show an action bar preview whenever a message is adjusted."},
		},
	},
	{
		Label: "API Service",
		Defaults: map[string]any{
			"api": map[string]any{
				"endpoint":  DefaultEndpoint,
				"language":  "auto",
				"level":     "default",
				"timeoutMs": 3000,
				"key":       "",
			},
		},
		Settings: []host.Setting{
			{Type: host.SettingText, Key: "api.endpoint", Placeholder: DefaultEndpoint,
				Description: "LanguageTool-compatible endpoint. Example: " + DefaultEndpoint},
			{Type: host.SettingCycle, Key: "api.language", Description: "Language profile to send to the API.",
				Values: []host.CycleValue{
					{Text: "Auto", Value: "auto"},
					{Text: "English (US)", Value: "en-US"},
					{Text: "English (GB)", Value: "en-GB"},
					{Text: "German (DE)", Value: "de-DE"},
				}},
			{Type: host.SettingCycle, Key: "api.level", Description: "LanguageTool rule level.",
				Values: []host.CycleValue{
					{Text: "Default", Value: "default"},
					{Text: "Picky", Value: "picky"},
				}},
			{Type: host.SettingCycle, Key: "api.timeoutMs", Description: "Timeout before abandoning the API request (milliseconds).",
				Values: []host.CycleValue{
					{Text: "1500", Value: 1500},
					{Text: "2500", Value: 2500},
					{Text: "3000", Value: 3000},
					{Text: "4000", Value: 4000},
				}},
			{Type: host.SettingText, Key: "api.key", Placeholder: "LT_API_KEY",
				Description: "Optional API key (sent as Bearer token). Leave blank for the public LanguageTool endpoint."},
		},
	},
}

type Plugin struct {
	api          host.API
	cfg          host.ConfigView
	tool         *LanguageTool
	replacements *Replacements
	offs         []func()
	disabled     bool

	// sendingDirect is set while a corrected message goes back through the
	// interceptor chain so it is not corrected twice.
	sendingDirect bool

	// outbox holds intercepted messages in typed order. A message is sent
	// only once it and everything before it are ready.
	outbox []*pendingSend
}

type pendingSend struct {
	original string
	text     string
	ready    bool
}

// New returns the plugin factory. API checks go through tool.
func New(tool *LanguageTool) host.Factory {
	return func(api host.API) (host.Plugin, error) {
		p := &Plugin{
			api:          api,
			tool:         tool,
			replacements: NewReplacements(),
		}
		p.register()
		return p, nil
	}
}

func (p *Plugin) register() {
	p.api.InitializeConfig(configSchema)
	p.cfg = p.api.Config()

	p.api.Commands(func(r *host.CommandRegistry) {
		r.Command("preview").
			Description("Preview Spell Guard corrections for a message without sending it.").
			Argument("<message>", host.ArgGreedy, "Message to evaluate").
			Handler(p.handlePreview)
	})

	p.offs = append(p.offs, p.api.Intercept(host.EventClientChat, p.handleOutgoingChat))
}

func (p *Plugin) Disable() {
	p.disabled = true
	p.outbox = nil
	for _, off := range p.offs {
		off()
	}
	p.offs = nil
}

func (p *Plugin) handlePreview(ctx *host.CommandContext) {
	input := strings.TrimSpace(ctx.Arg("message"))
	if input == "" {
		ctx.Send(p.api.Prefix() + " §7Provide a message to preview.")
		return
	}

	p.correct(p.applyCommonReplacements(input), func(corrected string, err error) {
		if err != nil {
			ctx.Send(fmt.Sprintf("%s §cAPI preview failed: %v", p.api.Prefix(), err))
			return
		}
		ctx.Send(fmt.Sprintf("%s §7API: §f%s", p.api.Prefix(), corrected))
	})
}

func (p *Plugin) handleOutgoingChat(packet *host.Intercepted) {
	if !p.cfg.Bool("enabled", true) || p.sendingDirect {
		return
	}
	data, ok := packet.Data.(host.ChatPacket)
	if !ok {
		return
	}
	message := data.Message
	if strings.TrimSpace(message) == "" || strings.HasPrefix(message, "/") {
		return
	}

	packet.Cancel()

	baseline := p.applyCommonReplacements(message)
	entry := &pendingSend{original: message}
	p.outbox = append(p.outbox, entry)

	p.correct(baseline, func(corrected string, err error) {
		if p.disabled {
			p.api.DebugLog("dropping correction after disable")
			return
		}
		if err != nil {
			p.api.DebugLog("API correction failed: %v", err)
			corrected = baseline
		}
		entry.text = corrected
		entry.ready = true
		p.flushOutbox()
	})
}

// flushOutbox sends ready messages from the front of the outbox, stopping at
// the first one still waiting for its correction.
func (p *Plugin) flushOutbox() {
	for len(p.outbox) > 0 && p.outbox[0].ready {
		next := p.outbox[0]
		p.outbox[0] = nil
		p.outbox = p.outbox[1:]
		p.sendCorrected(next.original, next.text)
	}
}

func (p *Plugin) applyCommonReplacements(message string) string {
	if !p.cfg.Bool("fixCommon", true) {
		return message
	}
	return p.replacements.Apply(message)
}

// correct runs text through the API off the loop and post-processes the
// result. done runs on the loop.
func (p *Plugin) correct(text string, done func(string, error)) {
	sched := p.api.Scheduler()
	req := CheckRequest{
		Endpoint: p.cfg.String("api.endpoint", DefaultEndpoint),
		Text:     text,
		Language: detectLanguage(p.cfg.String("api.language", "auto"), text),
		Level:    p.cfg.String("api.level", "default"),
		APIKey:   p.cfg.String("api.key", ""),
		Timeout:  p.timeout(),
	}
	opts := postOptions{
		autoCapitalize:    p.cfg.Bool("autoCapitalize", true),
		capitalizeFirst:   p.cfg.Bool("capitalizeFirst", true),
		ensurePunctuation: p.cfg.Bool("ensurePunctuation", false),
	}

	if !p.tool.Allow(sched.Now()) {
		sched.Post(func() { done("", ErrAPIRateLimited) })
		return
	}

	var (
		result string
		err    error
	)
	sched.Go(func() {
		result, err = p.tool.Check(req)
	}, func() {
		if err != nil {
			done("", err)
			return
		}
		done(postProcess(result, opts), nil)
	})
}

func (p *Plugin) timeout() time.Duration {
	ms := p.cfg.Int("api.timeoutMs", 3000)
	if ms <= 0 {
		ms = 3000
	}
	return time.Duration(ms) * time.Millisecond
}

func (p *Plugin) sendCorrected(original, corrected string) {
	if corrected == "" {
		corrected = original
	}
	final := prepareOutgoing(corrected)

	p.sendingDirect = true
	sent := p.api.SendChatToServer(final)
	p.sendingDirect = false

	if !sent {
		p.api.Chat(p.api.Prefix() + " §cCould not send the message.")
		return
	}

	if p.cfg.Bool("notifyFix", true) && final != strings.TrimSpace(original) {
		p.api.SendActionBar(fmt.Sprintf("%s §aAPI §7%s §8→ §f%s", p.api.Prefix(), original, previewText(final)))
	}
}
