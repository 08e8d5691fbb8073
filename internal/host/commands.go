package host

import (
	"fmt"
	"strings"
)

type ArgKind string

const (
	ArgWord   ArgKind = "word"
	ArgGreedy ArgKind = "greedy"
)

type Argument struct {
	Name        string
	Kind        ArgKind
	Description string
	Optional    bool
}

// CommandContext is passed to a command handler.
type CommandContext struct {
	Command string
	Args    map[string]string
	send    func(string)
}

func (c *CommandContext) Arg(name string) string {
	return c.Args[name]
}

// Send writes a line to the player's chat.
func (c *CommandContext) Send(message string) {
	if c.send != nil {
		c.send(message)
	}
}

type Command struct {
	name        string
	description string
	args        []Argument
	handler     func(*CommandContext)
}

func (c *Command) Description(text string) *Command {
	c.description = text
	return c
}

// Argument declares a positional argument. Names written as <name> are
// required, [name] optional.
func (c *Command) Argument(name string, kind ArgKind, description string) *Command {
	arg := Argument{Kind: kind, Description: description}
	switch {
	case strings.HasPrefix(name, "[") && strings.HasSuffix(name, "]"):
		arg.Optional = true
		arg.Name = strings.Trim(name, "[]")
	default:
		arg.Name = strings.Trim(name, "<>")
	}
	c.args = append(c.args, arg)
	return c
}

func (c *Command) Handler(fn func(*CommandContext)) *Command {
	c.handler = fn
	return c
}

func (c *Command) Name() string {
	return c.name
}

func (c *Command) Usage() string {
	parts := []string{c.name}
	for _, a := range c.args {
		if a.Optional {
			parts = append(parts, "["+a.Name+"]")
		} else {
			parts = append(parts, "<"+a.Name+">")
		}
	}
	return strings.Join(parts, " ")
}

func (c *Command) parse(tokens []string) (map[string]string, error) {
	values := make(map[string]string, len(c.args))
	for i, a := range c.args {
		if i >= len(tokens) {
			if a.Optional {
				continue
			}
			return nil, fmt.Errorf("missing argument <%s>", a.Name)
		}
		if a.Kind == ArgGreedy {
			values[a.Name] = strings.Join(tokens[i:], " ")
			return values, nil
		}
		values[a.Name] = tokens[i]
	}
	return values, nil
}

// CommandRegistry holds the commands of one plugin.
type CommandRegistry struct {
	commands map[string]*Command
	order    []string
}

func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{commands: make(map[string]*Command)}
}

// Command returns the builder for name, creating it on first use.
func (r *CommandRegistry) Command(name string) *Command {
	key := strings.ToLower(name)
	if cmd, ok := r.commands[key]; ok {
		return cmd
	}
	cmd := &Command{name: key}
	r.commands[key] = cmd
	r.order = append(r.order, key)
	return cmd
}

func (r *CommandRegistry) Lookup(name string) (*Command, bool) {
	cmd, ok := r.commands[strings.ToLower(name)]
	return cmd, ok
}

func (r *CommandRegistry) List() []*Command {
	out := make([]*Command, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.commands[name])
	}
	return out
}

// Execute runs the command named by tokens[0].
func (r *CommandRegistry) Execute(tokens []string, send func(string)) error {
	if len(tokens) == 0 {
		return fmt.Errorf("no command given")
	}
	cmd, ok := r.Lookup(tokens[0])
	if !ok {
		return fmt.Errorf("unknown command: %s", tokens[0])
	}
	if cmd.handler == nil {
		return fmt.Errorf("command %s has no handler", cmd.name)
	}
	args, err := cmd.parse(tokens[1:])
	if err != nil {
		return fmt.Errorf("%v. Usage: %s", err, cmd.Usage())
	}
	cmd.handler(&CommandContext{Command: cmd.name, Args: args, send: send})
	return nil
}
