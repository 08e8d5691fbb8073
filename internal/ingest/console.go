package ingest

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
)

var colorCodes = regexp.MustCompile(`§.`)

// Console reads outgoing chat from in and prints plugin output to out.
type Console struct {
	in   io.Reader
	out  io.Writer
	mu   sync.Mutex
	post func(func())
	send func(string) bool
}

// NewConsole builds a console. post schedules work on the event loop and send
// is called on the loop for every non-blank input line.
func NewConsole(in io.Reader, out io.Writer, post func(func()), send func(string) bool) *Console {
	return &Console{in: in, out: out, post: post, send: send}
}

// Bind sets the send function when it is not known at construction time.
func (c *Console) Bind(send func(string) bool) {
	c.send = send
}

// Run reads lines until in is exhausted.
func (c *Console) Run() error {
	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		c.post(func() {
			c.send(line)
		})
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("console input: %w", err)
	}
	return nil
}

// Chat prints a chat line for the local player with color codes removed.
func (c *Console) Chat(message string) {
	c.println("", message)
}

func (c *Console) ActionBar(message string) {
	c.println("[action bar] ", message)
}

func (c *Console) println(prefix, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, prefix+StripColors(message))
}

func StripColors(message string) string {
	return colorCodes.ReplaceAllString(message, "")
}
