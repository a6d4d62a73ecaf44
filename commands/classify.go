package commands

import "strings"

// DefaultPrefix is the command prefix unless overridden in config.
const DefaultPrefix = "!gptbot"

// Classify decides whether a message body is a command. A body is a command
// iff it starts with the prefix (or the "!help" alias). The first non-empty
// token after the prefix is the command name; a bare prefix means help.
// Argument tokenization happens in Parse once the handler's raw-args
// preference is known.
func Classify(prefix, body string) (name, rest string, isCommand bool) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	trimmed := strings.TrimSpace(body)

	if strings.EqualFold(trimmed, "!help") {
		return "help", "", true
	}

	if !hasPrefixFold(trimmed, prefix) {
		return "", "", false
	}
	after := strings.TrimSpace(trimmed[len(prefix):])
	if after == "" {
		return "help", "", true
	}
	// The prefix must be its own token: "!gptbotx" is not a command.
	if trimmed[len(prefix)] != ' ' && trimmed[len(prefix)] != '\t' && trimmed[len(prefix)] != '\n' {
		return "", "", false
	}

	name, rest, _ = strings.Cut(after, " ")
	return strings.ToLower(name), strings.TrimSpace(rest), true
}

// Parse builds the invocation for a classified command, tokenizing the
// argument text unless the handler asked for raw trailing text.
func Parse(reg *Registry, name, rest, roomID, sender, eventID string) *Invocation {
	inv := &Invocation{
		Name:    name,
		RawArgs: rest,
		RoomID:  roomID,
		Sender:  sender,
		EventID: eventID,
	}
	if cmd, ok := reg.Get(name); ok && cmd.RawArgs() {
		return inv
	}
	inv.Args = strings.Fields(rest)
	return inv
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
