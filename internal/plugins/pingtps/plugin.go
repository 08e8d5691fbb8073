// Package pingtps answers /ping and /tps from keep-alive round trips and
// world time updates.
package pingtps

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/imWorldy/StarfishPlugins/internal/host"
	"github.com/imWorldy/StarfishPlugins/pkg/util"
)

const (
	Name = "pingtps"

	pingTimeout   = 5 * time.Second
	sourcePingAPI = "ping API"
)

var rateLimitPattern = regexp.MustCompile(`(?i)rate\s*limit`)

func Metadata() host.Metadata {
	return host.Metadata{
		Name:        Name,
		DisplayName: "Ping & TPS",
		Prefix:      "§bPT",
		Version:     "1.0.0",
		Author:      "imWorldy",
		Description: "Allows using /ping and /tps anywhere. Uses the host ping API and estimates TPS from world time updates.",
	}
}

var configSchema = host.Schema{
	{
		Label:    "General",
		Defaults: map[string]any{"enabled": true},
		Settings: []host.Setting{
			{Type: host.SettingToggle, Key: "enabled", Text: []string{"OFF", "ON"}, Description: "Enable Ping & TPS plugin"},
		},
	},
}

type Plugin struct {
	api      host.API
	cfg      host.ConfigView
	tps      *TPSEstimator
	latency  *LatencyTracker
	offs     []func()
	disabled bool
}

func New(api host.API) (host.Plugin, error) {
	p := &Plugin{
		api:     api,
		tps:     NewTPSEstimator(),
		latency: NewLatencyTracker(),
	}
	p.register()
	return p, nil
}

func (p *Plugin) register() {
	p.api.InitializeConfig(configSchema)
	p.cfg = p.api.Config()

	p.offs = append(p.offs,
		p.api.On(host.EventWorldTime, p.handleWorldTime),
		p.api.On(host.EventServerKeepAlive, p.handleServerKeepAlive),
		p.api.On(host.EventClientKeepAlive, p.handleClientKeepAlive),
		p.api.Intercept(host.EventClientChat, p.handleOutgoingChat),
	)
}

func (p *Plugin) Disable() {
	p.disabled = true
	p.tps.Reset()
	p.latency.Reset()
	for _, off := range p.offs {
		off()
	}
	p.offs = nil
}

func (p *Plugin) handleWorldTime(ev host.Event) {
	data, ok := ev.Data.(host.WorldTimeEvent)
	if !ok {
		return
	}
	age, ok := util.NormalizeTick(data.Age)
	if !ok {
		p.api.DebugLog("TPS calc: unusable world age %T", data.Age)
		return
	}
	p.tps.Observe(age, p.api.Scheduler().Now())
}

func (p *Plugin) handleServerKeepAlive(ev host.Event) {
	data, ok := ev.Data.(host.KeepAliveEvent)
	if !ok {
		return
	}
	if id, ok := util.NormalizeTick(data.KeepAliveID); ok {
		p.latency.ServerKeepAlive(id, p.api.Scheduler().Now())
	}
}

func (p *Plugin) handleClientKeepAlive(ev host.Event) {
	data, ok := ev.Data.(host.KeepAliveEvent)
	if !ok {
		return
	}
	if id, ok := util.NormalizeTick(data.KeepAliveID); ok {
		p.latency.ClientKeepAlive(id, p.api.Scheduler().Now())
	}
}

func (p *Plugin) handleOutgoingChat(packet *host.Intercepted) {
	data, ok := packet.Data.(host.ChatPacket)
	if !ok {
		return
	}
	raw := strings.TrimSpace(data.Message)
	if !strings.HasPrefix(raw, "/") {
		return
	}
	base := strings.ToLower(strings.Fields(raw)[0])
	if base != "/ping" && base != "/tps" {
		return
	}
	if !p.cfg.Bool("enabled", true) {
		return
	}

	packet.Cancel()
	if base == "/ping" {
		p.handlePing()
	} else {
		p.handleTPS()
	}
}

func (p *Plugin) handlePing() {
	if ms, ok := p.latency.Estimate(); ok {
		p.emitLatency(ms, p.latency.Label(), false, true)
		return
	}

	if !p.api.Capabilities().Ping {
		p.api.Chat(p.api.Prefix() + " §7Latency: §8calculating... (waiting for keep-alive packets)")
		return
	}

	p.api.GetPing(pingTimeout, func(res host.PingResult, err error) {
		if p.disabled {
			return
		}
		if err != nil {
			if rateLimitPattern.MatchString(err.Error()) {
				p.rateLimitFallback()
				return
			}
			p.api.Chat(fmt.Sprintf("%s §cPing failed: §7%v", p.api.Prefix(), err))
			return
		}
		p.sendPingResult(res)
	})
}

func (p *Plugin) sendPingResult(res host.PingResult) {
	if !res.Success {
		msg := res.ErrorMessage
		if msg == "" {
			msg = "Unknown error"
		}
		if res.Error == host.PingErrorRateLimited || rateLimitPattern.MatchString(msg) {
			p.rateLimitFallback()
			return
		}
		p.api.Chat(fmt.Sprintf("%s §cPing unavailable: §7%s", p.api.Prefix(), msg))
		return
	}

	ms := int(math.Round(float64(res.Latency) / float64(time.Millisecond)))
	if ms < 0 {
		ms = 0
	}
	p.emitLatency(ms, sourcePingAPI, false, true)
}

// rateLimitFallback reports the best cached figure when the ping API refuses.
func (p *Plugin) rateLimitFallback() {
	if ms, ok := p.latency.Estimate(); ok {
		p.emitLatency(ms, p.latency.Label(), true, true)
		return
	}
	if ms, source, ok := p.latency.Last(); ok {
		p.emitLatency(ms, source, true, false)
		return
	}
	p.api.Chat(p.api.Prefix() + " §cPing unavailable: §7No keep-alive samples recorded yet.")
}

func (p *Plugin) emitLatency(ms int, source string, cached, store bool) {
	if store {
		p.latency.setLast(ms, source)
	}

	label := source
	if cached {
		if label != "" {
			label += " cached"
		} else {
			label = "cached"
		}
	}
	suffix := ""
	if label != "" {
		suffix = " §8(" + label + ")"
	}
	p.api.Chat(fmt.Sprintf("%s §7Latency: %s%dms%s", p.api.Prefix(), latencyColor(ms), ms, suffix))
}

func (p *Plugin) handleTPS() {
	tps, ok := p.tps.TPS()
	if !ok {
		p.api.Chat(p.api.Prefix() + " §7TPS: §8calculating... (move around for a few seconds)")
		return
	}
	p.api.Chat(fmt.Sprintf("%s §7TPS: %s%.2f", p.api.Prefix(), tpsColor(tps), tps))
}

func latencyColor(ms int) string {
	switch {
	case ms <= 80:
		return "§a"
	case ms <= 150:
		return "§e"
	default:
		return "§c"
	}
}

func tpsColor(tps float64) string {
	switch {
	case tps >= 19.5:
		return "§a"
	case tps >= 18:
		return "§e"
	default:
		return "§c"
	}
}
