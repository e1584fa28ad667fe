package channel

import (
	"strings"
)

// Chat commands understood by every chat surface.
const (
	CommandFaucet  = "!faucet"
	CommandBalance = "!balance"
	CommandDrip    = "!drip"
)

// DefaultStrategy is used when a request names none.
const DefaultStrategy = "normal"

// Command is a parsed chat message.
type Command struct {
	Name string
	Args []string
}

// Parse splits a chat message into a command and its arguments.
// It reports false for messages that are not a known command.
func Parse(text string) (Command, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Command{}, false
	}

	name := strings.ToLower(fields[0])
	switch name {
	case CommandFaucet, CommandBalance, CommandDrip:
		return Command{Name: name, Args: fields[1:]}, true
	default:
		return Command{}, false
	}
}

// Arg returns the i-th argument or "".
func (c Command) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}
