package host

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/imWorldy/StarfishPlugins/internal/logging"
)

var ErrPingUnavailable = errors.New("ping API not available")

// Pinger is the host ping primitive.
type Pinger interface {
	Ping(timeout time.Duration) (PingResult, error)
}

// Options wires the runtime to the outside world. Nil ActionBar, Upstream
// or Pinger leave the matching capability off.
type Options struct {
	Scheduler Scheduler
	Chat      func(message string)
	ActionBar func(message string)
	Upstream  func(message string) bool
	Pinger    Pinger
	Persister Persister
	Seeds     map[string]map[string]any
}

// Runtime loads plugins and routes events to them. All methods must be
// called on the Scheduler's loop.
type Runtime struct {
	opts    Options
	bus     *Bus
	plugins []*loadedPlugin
}

type loadedPlugin struct {
	meta     Metadata
	plugin   Plugin
	api      *pluginAPI
	disabled bool
}

func NewRuntime(opts Options) *Runtime {
	if opts.Chat == nil {
		opts.Chat = func(message string) { logging.Info("[chat] %s", message) }
	}
	return &Runtime{
		opts: opts,
		bus:  NewBus(),
	}
}

// Load builds a plugin through factory. A factory error leaves nothing subscribed.
func (r *Runtime) Load(meta Metadata, factory Factory) error {
	name := strings.ToLower(meta.Name)
	if name == "" {
		return fmt.Errorf("plugin metadata has no name")
	}
	for _, lp := range r.plugins {
		if lp.meta.Name == name {
			return fmt.Errorf("plugin %s already loaded", name)
		}
	}
	meta.Name = name

	api := &pluginAPI{
		runtime:  r,
		meta:     meta,
		config:   NewConfigStore(name, r.opts.Seeds[name], r.opts.Persister),
		commands: NewCommandRegistry(),
	}

	plugin, err := factory(api)
	if err != nil {
		api.unsubscribeAll()
		return fmt.Errorf("load plugin %s: %w", name, err)
	}

	r.plugins = append(r.plugins, &loadedPlugin{meta: meta, plugin: plugin, api: api})
	logging.Info("Loaded plugin %s v%s", meta.DisplayName, meta.Version)
	return nil
}

// Publish delivers a host event to every subscriber.
func (r *Runtime) Publish(name string, data any) {
	r.bus.Publish(Event{Name: name, Data: data})
}

// SendOutgoingChat handles a line the player typed. /<plugin> lines go to
// that plugin's commands; everything else runs through the interceptors and,
// unless cancelled, upstream.
func (r *Runtime) SendOutgoingChat(message string) bool {
	if lp, tokens := r.commandTarget(message); lp != nil {
		r.runCommand(lp, tokens)
		return true
	}
	return r.sendUpstream(message)
}

func (r *Runtime) sendUpstream(message string) bool {
	packet := r.bus.RunInterceptors(EventClientChat, ChatPacket{Message: message})
	if packet.Cancelled() {
		return true
	}
	if r.opts.Upstream == nil {
		return false
	}
	return r.opts.Upstream(message)
}

func (r *Runtime) commandTarget(message string) (*loadedPlugin, []string) {
	trimmed := strings.TrimSpace(message)
	if !strings.HasPrefix(trimmed, "/") {
		return nil, nil
	}
	tokens := strings.Fields(trimmed[1:])
	if len(tokens) == 0 {
		return nil, nil
	}
	name := strings.ToLower(tokens[0])
	for _, lp := range r.plugins {
		if lp.meta.Name == name && !lp.disabled {
			return lp, tokens[1:]
		}
	}
	return nil, nil
}

func (r *Runtime) runCommand(lp *loadedPlugin, tokens []string) {
	api := lp.api
	if len(tokens) == 0 || strings.EqualFold(tokens[0], "help") {
		api.Chat(fmt.Sprintf("%s §7%s v%s", api.Prefix(), lp.meta.DisplayName, lp.meta.Version))
		for _, cmd := range api.commands.List() {
			api.Chat(fmt.Sprintf("§7  /%s %s §8- %s", lp.meta.Name, cmd.Usage(), cmd.description))
		}
		api.Chat(fmt.Sprintf("§7  /%s config [key] [value] §8- Show or change settings", lp.meta.Name))
		return
	}

	if strings.EqualFold(tokens[0], "config") {
		r.runConfigCommand(lp, tokens[1:])
		return
	}

	if err := api.commands.Execute(tokens, api.Chat); err != nil {
		api.Chat(fmt.Sprintf("%s §c%v", api.Prefix(), err))
	}
}

func (r *Runtime) runConfigCommand(lp *loadedPlugin, tokens []string) {
	api := lp.api
	store := api.config

	switch len(tokens) {
	case 0:
		for _, key := range store.Keys() {
			api.Chat(fmt.Sprintf("§7  %s §8= §f%s", key, displayValue(store, key)))
		}
		return
	case 1:
		if _, ok := store.Get(tokens[0]); !ok {
			api.Chat(fmt.Sprintf("%s §cUnknown setting: %s", api.Prefix(), tokens[0]))
			return
		}
		line := fmt.Sprintf("§7%s §8= §f%s", tokens[0], displayValue(store, tokens[0]))
		if setting, ok := store.Setting(tokens[0]); ok && setting.Description != "" {
			line += " §8(" + setting.Description + ")"
		}
		api.Chat(fmt.Sprintf("%s %s", api.Prefix(), line))
		return
	}

	key := tokens[0]
	value, err := store.ParseValue(key, strings.Join(tokens[1:], " "))
	if err == nil {
		err = store.Set(key, value)
	}
	if err != nil {
		api.Chat(fmt.Sprintf("%s §c%v", api.Prefix(), err))
		return
	}
	api.Chat(fmt.Sprintf("%s §a%s set to §f%s", api.Prefix(), key, displayValue(store, key)))
}

func displayValue(store *ConfigStore, key string) string {
	v, _ := store.Get(key)
	if strings.Contains(strings.ToLower(key), "key") || strings.Contains(strings.ToLower(key), "url") {
		if s, ok := v.(string); ok && s != "" {
			return "(set)"
		}
	}
	if s, ok := v.(string); ok && s == "" {
		return "(empty)"
	}
	return fmt.Sprint(v)
}

// DisableAll disables plugins in reverse load order and drops whatever
// subscriptions they left behind.
func (r *Runtime) DisableAll() {
	for i := len(r.plugins) - 1; i >= 0; i-- {
		lp := r.plugins[i]
		if lp.disabled {
			continue
		}
		lp.disabled = true
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					logging.Error("[%s] disable panicked: %v", lp.meta.Name, rec)
				}
			}()
			lp.plugin.Disable()
		}()
		lp.api.unsubscribeAll()
		logging.Info("Disabled plugin %s", lp.meta.DisplayName)
	}
}

func (r *Runtime) Plugins() []Metadata {
	out := make([]Metadata, 0, len(r.plugins))
	for _, lp := range r.plugins {
		out = append(out, lp.meta)
	}
	return out
}

// pluginAPI is the API handed to one plugin.
type pluginAPI struct {
	runtime  *Runtime
	meta     Metadata
	config   *ConfigStore
	commands *CommandRegistry
	offs     []func()
}

func (a *pluginAPI) Metadata() Metadata {
	return a.meta
}

func (a *pluginAPI) Prefix() string {
	if a.meta.Prefix != "" {
		return a.meta.Prefix
	}
	return "§7" + a.meta.Name
}

func (a *pluginAPI) Capabilities() Capabilities {
	return Capabilities{
		ActionBar: a.runtime.opts.ActionBar != nil,
		SendChat:  a.runtime.opts.Upstream != nil,
		Ping:      a.runtime.opts.Pinger != nil,
	}
}

func (a *pluginAPI) Scheduler() Scheduler {
	return a.runtime.opts.Scheduler
}

func (a *pluginAPI) InitializeConfig(schema Schema) {
	a.config.Initialize(schema)
}

func (a *pluginAPI) Config() ConfigView {
	return a.config
}

func (a *pluginAPI) Commands(register func(*CommandRegistry)) {
	register(a.commands)
}

func (a *pluginAPI) On(event string, handler func(Event)) func() {
	off := a.runtime.bus.On(a.meta.Name, event, handler)
	a.offs = append(a.offs, off)
	return off
}

func (a *pluginAPI) Intercept(event string, handler func(*Intercepted)) func() {
	off := a.runtime.bus.Intercept(a.meta.Name, event, handler)
	a.offs = append(a.offs, off)
	return off
}

func (a *pluginAPI) unsubscribeAll() {
	for _, off := range a.offs {
		off()
	}
	a.offs = nil
}

func (a *pluginAPI) Chat(message string) {
	a.runtime.opts.Chat(message)
}

func (a *pluginAPI) SendActionBar(message string) {
	if a.runtime.opts.ActionBar != nil {
		a.runtime.opts.ActionBar(message)
		return
	}
	a.runtime.opts.Chat(message)
}

func (a *pluginAPI) SendChatToServer(message string) bool {
	if a.runtime.opts.Upstream == nil {
		return false
	}
	return a.runtime.sendUpstream(message)
}

func (a *pluginAPI) GetPing(timeout time.Duration, done func(PingResult, error)) {
	sched := a.runtime.opts.Scheduler
	pinger := a.runtime.opts.Pinger
	if pinger == nil {
		sched.Post(func() { done(PingResult{}, ErrPingUnavailable) })
		return
	}

	var (
		result PingResult
		err    error
	)
	sched.Go(func() {
		result, err = pinger.Ping(timeout)
	}, func() {
		done(result, err)
	})
}

func (a *pluginAPI) DebugLog(format string, args ...interface{}) {
	logging.Debug("[%s] "+format, append([]interface{}{a.meta.Name}, args...)...)
}
