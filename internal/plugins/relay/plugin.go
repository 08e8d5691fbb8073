// Package relay forwards in-game chat to a Discord webhook.
package relay

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"
	"github.com/imWorldy/StarfishPlugins/internal/host"
	"github.com/imWorldy/StarfishPlugins/internal/notifier"
)

const Name = "discordrelay"

func Metadata() host.Metadata {
	return host.Metadata{
		Name:        Name,
		DisplayName: "Discord Chat Relay",
		Prefix:      "§9DR",
		Version:     "1.0.0",
		Author:      "imWorldy",
		Description: "Relays chat messages to a Discord webhook with simple formatting and rate limiting.",
	}
}

var configSchema = host.Schema{
	{
		Label: "General",
		Defaults: map[string]any{
			"enabled":               true,
			"webhookUsername":       "Starfish Relay",
			"stripColors":           true,
			"includeTimestamps":     true,
			"forwardSystemMessages": false,
			"forwardActionBar":      false,
			"allowMentions":         false,
		},
		Settings: []host.Setting{
			{Type: host.SettingToggle, Key: "enabled", Text: []string{"OFF", "ON"},
				Description: "Enable or disable forwarding chat messages to Discord."},
			{Type: host.SettingText, Key: "webhookUsername", Placeholder: "Starfish Relay",
				Description: "Optional username override for the webhook."},
			{Type: host.SettingToggle, Key: "stripColors", Text: []string{"RAW", "CLEAN"},
				Description: "Remove Minecraft colour codes before sending messages."},
			{Type: host.SettingToggle, Key: "includeTimestamps", Text: []string{"OFF", "ON"},
				Description: "Prefix forwarded messages with the local time (HH:MM:SS)."},
			{Type: host.SettingToggle, Key: "forwardSystemMessages", Text: []string{"CHAT ONLY", "INCLUDE"},
				Description: "Forward system/announcement messages (position 1)."},
			{Type: host.SettingToggle, Key: "forwardActionBar", Text: []string{"IGNORE", "FORWARD"},
				Description: "Forward action bar updates (position 2)."},
			{Type: host.SettingToggle, Key: "allowMentions", Text: []string{"BLOCK", "ALLOW"},
				Description: "Allow Discord to parse @mentions in forwarded messages."},
		},
	},
	{
		Label:    "Discord Webhook",
		Defaults: map[string]any{"webhook": map[string]any{"url": ""}},
		Settings: []host.Setting{
			{Type: host.SettingText, Key: "webhook.url", Placeholder: "https://discord.com/api/webhooks/...",
				Description: "The Discord webhook URL to receive forwarded messages."},
		},
	},
}

type Plugin struct {
	api    host.API
	cfg    host.ConfigView
	client *notifier.WebhookClient
	queue  *Queue
	offs   []func()

	warnedMissingWebhook bool
	warnedInvalidWebhook bool
}

// New returns the plugin factory. Deliveries go through client.
func New(client *notifier.WebhookClient) host.Factory {
	return func(api host.API) (host.Plugin, error) {
		p := &Plugin{api: api, client: client}
		p.register()
		return p, nil
	}
}

func (p *Plugin) register() {
	p.api.InitializeConfig(configSchema)
	p.cfg = p.api.Config()

	p.queue = NewQueue(p.api.Scheduler(), p.client.Send, queueHooks{
		failure: func(err error) {
			p.api.DebugLog("Discord webhook send failed: %v", err)
		},
		firstFailure: func(err error) {
			p.sendPrefixed(fmt.Sprintf("§cFailed to send chat to Discord: §7%v", err))
		},
		cleared: func(dropped int) {
			p.api.DebugLog("Cleared message queue after repeated failures (%d dropped).", dropped)
		},
	})

	p.api.Commands(func(r *host.CommandRegistry) {
		r.Command("test").
			Description("Send a test message to the configured Discord webhook.").
			Handler(func(*host.CommandContext) { p.handleTest() })
		r.Command("status").
			Description("Show the Discord relay configuration and queue status.").
			Handler(func(*host.CommandContext) { p.showStatus() })
	})

	p.offs = append(p.offs, p.api.On(host.EventChat, p.handleChat))
}

func (p *Plugin) Disable() {
	p.queue.Close()
	for _, off := range p.offs {
		off()
	}
	p.offs = nil
}

func (p *Plugin) handleChat(ev host.Event) {
	if !p.enabled() {
		return
	}
	chat, ok := ev.Data.(host.ChatEvent)
	if !ok {
		return
	}

	webhookURL := p.webhookURL()
	if webhookURL == "" {
		p.notifyMissingWebhook()
		return
	}
	p.warnedMissingWebhook = false

	if _, err := notifier.ParseWebhookURL(webhookURL); err != nil {
		if !p.warnedInvalidWebhook {
			p.warnedInvalidWebhook = true
			p.sendPrefixed(fmt.Sprintf("§cDiscord webhook rejected: §7%v", err))
		}
		return
	}
	p.warnedInvalidWebhook = false

	if !shouldForward(chat.Position, p.cfg.Bool("forwardSystemMessages", false), p.cfg.Bool("forwardActionBar", false)) {
		return
	}

	content := formatMessage(chat, formatOptions{
		stripColors:       p.cfg.Bool("stripColors", true),
		includeTimestamps: p.cfg.Bool("includeTimestamps", true),
	}, p.api.Scheduler().Now())
	if content == "" {
		return
	}

	p.enqueue(content, webhookURL)
}

func (p *Plugin) enqueue(content, webhookURL string) {
	params := notifier.BuildParams(content, p.cfg.String("webhookUsername", "Starfish Relay"), p.cfg.Bool("allowMentions", false))
	body, err := json.Marshal(params)
	if err != nil {
		p.api.DebugLog("encode webhook payload: %v", err)
		return
	}
	p.queue.Enqueue(Entry{Payload: body, WebhookURL: webhookURL})
}

func (p *Plugin) handleTest() {
	if !p.enabled() {
		p.sendPrefixed("§cThe Discord relay plugin is disabled in the config.")
		return
	}
	webhookURL := p.webhookURL()
	if webhookURL == "" {
		p.notifyMissingWebhook()
		return
	}

	stamp := p.api.Scheduler().Now().Format("15:04:05")
	p.enqueue("[TEST] Discord relay is active at "+stamp, webhookURL)
	p.sendPrefixed("§aTest message queued for delivery.")
}

func (p *Plugin) showStatus() {
	now := p.api.Scheduler().Now()
	webhookURL := p.webhookURL()
	stats := p.queue.Stats()

	p.sendPrefixed("Status: " + onOff(p.enabled(), "§aenabled", "§cdisabled"))
	p.sendPrefixed("Webhook: " + onOff(webhookURL != "", "§aset", "§cmissing"))
	p.sendPrefixed(fmt.Sprintf("Queue: §b%d §7pending", stats.Pending))
	p.sendPrefixed(fmt.Sprintf("System messages: %s, action bar: %s",
		onOff(p.cfg.Bool("forwardSystemMessages", false), "§aON", "§cOFF"),
		onOff(p.cfg.Bool("forwardActionBar", false), "§aON", "§cOFF")))

	last := "never"
	if !stats.LastDelivery.IsZero() {
		last = humanize.RelTime(stats.LastDelivery, now, "ago", "from now")
	}
	p.sendPrefixed(fmt.Sprintf("Delivered: §a%s §7failed: §c%s §7dropped: §c%s §7last: §f%s",
		humanize.Comma(int64(stats.Delivered)), humanize.Comma(int64(stats.Failed)),
		humanize.Comma(int64(stats.Dropped)), last))

	if bucket, blocked := p.client.Bucket(webhookURL); bucket != nil && blocked {
		wait := bucket.ResetAt.Sub(now)
		p.sendPrefixed(fmt.Sprintf("Discord rate limit: §cexhausted §7for %s", durafmt.Parse(wait).LimitFirstN(2)))
	}
}

func (p *Plugin) notifyMissingWebhook() {
	if p.warnedMissingWebhook {
		return
	}
	p.warnedMissingWebhook = true
	p.sendPrefixed("§cNo Discord webhook configured. Set it via /discordrelay config.")
}

func (p *Plugin) enabled() bool {
	return p.cfg.Bool("enabled", true)
}

func (p *Plugin) webhookURL() string {
	return strings.TrimSpace(p.cfg.String("webhook.url", ""))
}

func (p *Plugin) sendPrefixed(message string) {
	p.api.Chat(p.api.Prefix() + " §7" + message)
}

func onOff(v bool, on, off string) string {
	if v {
		return on
	}
	return off
}
