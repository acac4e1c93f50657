// Package command turns raw message text and callback payloads into invocations.
//
// Grammar: the first token names the command when it starts with the configured
// prefix or with the callback marker "cmd:". Any later token holding a ':' past its
// first byte opens a flag; tokens without ':' that follow are appended to the open
// flag's value. Everything not consumed by a flag forms the remainder text.
//
// Known limitation: a flag value can never contain a token with ':' because that
// token would open a new flag.
package command

import (
	"strings"
)

// CallbackMarker prefixes callback data produced by inline keyboards
const CallbackMarker = "cmd:"

// Invocation is a parsed command request
type Invocation struct {
	Name  string
	Text  string
	Flags map[string]string
	Raw   string
}

// Parse splits raw into an Invocation. Name is empty when raw is not a command.
func Parse(raw, prefix string) Invocation {
	inv := Invocation{
		Flags: make(map[string]string),
		Raw:   raw,
	}

	tokens := strings.Fields(raw)
	if len(tokens) > 0 {
		first := tokens[0]
		switch {
		case prefix != "" && strings.HasPrefix(first, prefix):
			inv.Name = normalizeName(first[len(prefix):])
			tokens = tokens[1:]
		case strings.HasPrefix(first, CallbackMarker):
			inv.Name = normalizeName(first[len(CallbackMarker):])
			tokens = tokens[1:]
		}
	}

	var text []string
	for i := 0; i < len(tokens); {
		token := tokens[i]
		key, value, ok := splitFlag(token)
		if !ok {
			text = append(text, token)
			i++
			continue
		}

		i++
		for i < len(tokens) && !strings.Contains(tokens[i], ":") {
			value += " " + tokens[i]
			i++
		}
		inv.Flags[key] = value
	}
	inv.Text = strings.Join(text, " ")

	return inv
}

// Flag returns the value of a flag and whether it was present
func (inv Invocation) Flag(key string) (string, bool) {
	v, ok := inv.Flags[key]
	return v, ok
}

// Callback encodes a command name and key/value pairs as inline keyboard callback data
func Callback(name string, pairs ...string) string {
	var b strings.Builder
	b.WriteString(CallbackMarker)
	b.WriteString(name)
	for i := 0; i+1 < len(pairs); i += 2 {
		b.WriteByte(' ')
		b.WriteString(pairs[i])
		b.WriteByte(':')
		b.WriteString(pairs[i+1])
	}
	return b.String()
}

// normalizeName lower-cases a command name and drops a trailing @botname mention
func normalizeName(name string) string {
	name, _, _ = strings.Cut(name, "@")
	return strings.ToLower(name)
}

func splitFlag(token string) (key, value string, ok bool) {
	idx := strings.IndexByte(token, ':')
	if idx <= 0 {
		return "", "", false
	}
	return token[:idx], token[idx+1:], true
}
