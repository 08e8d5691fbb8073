package host

import (
	"github.com/imWorldy/StarfishPlugins/internal/logging"
)

const (
	EventChat            = "chat"
	EventWorldTime       = "world_time"
	EventServerKeepAlive = "packet:server:keep_alive"
	EventClientKeepAlive = "packet:client:keep_alive"
	EventClientChat      = "packet:client:chat"
)

// Event is a host event. Data holds one of the payload types below.
type Event struct {
	Name string
	Data any
}

// ChatEvent is an incoming chat line. Position 0 is player chat, 1 system,
// 2 action bar. JSON is the decoded chat component when present.
type ChatEvent struct {
	Message  string
	JSON     any
	Position int
}

// WorldTimeEvent carries the raw world age, normalized by the plugin.
type WorldTimeEvent struct {
	Age       any
	TimeOfDay any
}

type KeepAliveEvent struct {
	KeepAliveID any
}

// ChatPacket is an outgoing chat line as the client typed it.
type ChatPacket struct {
	Message string
}

// Intercepted wraps an outgoing packet. Cancel stops the chain and keeps the
// packet from being sent.
type Intercepted struct {
	Name      string
	Data      any
	cancelled bool
}

func (i *Intercepted) Cancel() {
	i.cancelled = true
}

func (i *Intercepted) Cancelled() bool {
	return i.cancelled
}

type subscription struct {
	id     uint64
	owner  string
	handle func(Event)
}

type interceptor struct {
	id     uint64
	owner  string
	handle func(*Intercepted)
}

// Bus fans events out to subscribers. It is only touched on the loop.
type Bus struct {
	nextID       uint64
	subs         map[string][]subscription
	interceptors map[string][]interceptor
}

func NewBus() *Bus {
	return &Bus{
		subs:         make(map[string][]subscription),
		interceptors: make(map[string][]interceptor),
	}
}

func (b *Bus) On(owner, event string, handler func(Event)) func() {
	b.nextID++
	id := b.nextID
	b.subs[event] = append(b.subs[event], subscription{id: id, owner: owner, handle: handler})
	return func() {
		list := b.subs[event]
		for i, s := range list {
			if s.id == id {
				b.subs[event] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

func (b *Bus) Intercept(owner, event string, handler func(*Intercepted)) func() {
	b.nextID++
	id := b.nextID
	b.interceptors[event] = append(b.interceptors[event], interceptor{id: id, owner: owner, handle: handler})
	return func() {
		list := b.interceptors[event]
		for i, ic := range list {
			if ic.id == id {
				b.interceptors[event] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers ev to every subscriber in registration order. A panicking
// handler is logged and skipped.
func (b *Bus) Publish(ev Event) {
	for _, s := range append([]subscription(nil), b.subs[ev.Name]...) {
		b.safeCall(s.owner, ev.Name, func() { s.handle(ev) })
	}
}

// RunInterceptors passes the packet through the chain until one cancels it.
func (b *Bus) RunInterceptors(name string, data any) *Intercepted {
	packet := &Intercepted{Name: name, Data: data}
	for _, ic := range append([]interceptor(nil), b.interceptors[name]...) {
		b.safeCall(ic.owner, name, func() { ic.handle(packet) })
		if packet.cancelled {
			break
		}
	}
	return packet
}

func (b *Bus) Count(event string) int {
	return len(b.subs[event]) + len(b.interceptors[event])
}

func (b *Bus) safeCall(owner, event string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("[%s] handler for %s panicked: %v", owner, event, r)
		}
	}()
	fn()
}
