// Package host defines the plugin API the Starfish plugins are written
// against and a small reference runtime that drives them.
package host

import (
	"time"
)

type Metadata struct {
	Name        string
	DisplayName string
	Prefix      string
	Version     string
	Author      string
	Description string
}

// Capabilities lists the optional host features a plugin may use.
type Capabilities struct {
	ActionBar bool
	SendChat  bool
	Ping      bool
}

// PingResult mirrors the host ping API. Error 3 means rate limited.
type PingResult struct {
	Success      bool
	Latency      time.Duration
	Error        int
	ErrorMessage string
}

const PingErrorRateLimited = 3

// Timer is a pending Scheduler callback.
type Timer interface {
	// Stop prevents the callback from running. It reports whether the
	// timer was still pending. Must be called on the loop.
	Stop() bool
}

// Scheduler is the host's single event loop. Every plugin callback runs on it.
type Scheduler interface {
	Now() time.Time
	Post(fn func())
	AfterFunc(d time.Duration, fn func()) Timer
	// Go runs work off the loop and then posts done back onto it.
	Go(work func(), done func())
}

// ConfigView is a dotted-path view of one plugin's configuration.
type ConfigView interface {
	Get(key string) (any, bool)
	Bool(key string, fallback bool) bool
	String(key string, fallback string) string
	Int(key string, fallback int) int
	Set(key string, value any) error
}

// API is handed to each plugin factory. Handlers registered through it run
// on the Scheduler.
type API interface {
	Metadata() Metadata
	Prefix() string
	Capabilities() Capabilities
	Scheduler() Scheduler

	InitializeConfig(schema Schema)
	Config() ConfigView
	Commands(register func(*CommandRegistry))

	On(event string, handler func(Event)) (unsubscribe func())
	Intercept(event string, handler func(*Intercepted)) (unsubscribe func())

	Chat(message string)
	SendActionBar(message string)
	// SendChatToServer sends message upstream through the interceptor chain.
	// It returns false when the message could not be delivered.
	SendChatToServer(message string) bool
	// GetPing queries the host ping API and calls done on the loop.
	GetPing(timeout time.Duration, done func(PingResult, error))
	DebugLog(format string, args ...interface{})
}

// Plugin is what a factory returns.
type Plugin interface {
	Disable()
}

type Factory func(api API) (Plugin, error)
