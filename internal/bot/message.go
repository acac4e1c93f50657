package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Target is a user a command acts on
type Target struct {
	UserID   int64
	UserName string
	FullName string
}

// Mention returns the @-handle of the target, falling back to the full name
func (t Target) Mention() string {
	if t.UserName != "" {
		return "@" + t.UserName
	}
	if t.FullName != "" {
		return t.FullName
	}
	return "User"
}

// Message is an incoming message or callback query normalized for the dispatcher
type Message struct {
	ChatID    int64
	ChatType  string
	ChatTitle string
	MessageID int
	// Text is the message text or caption, or the callback data
	Text string
	From *tgbotapi.User

	IsCallback bool
	CallbackID string

	// ReplyTo is the replied-to message; for callbacks, the one the keyboard belongs to
	ReplyTo *tgbotapi.Message
	Raw     *tgbotapi.Message

	// ReplyToUser is the author of ReplyTo unless it is the sender
	ReplyToUser *Target
	Mentioned   []Target
}

// IsPrivate reports whether the message comes from a private chat
func (m *Message) IsPrivate() bool {
	return m.ChatType == "private"
}

// Sender returns the sender as a Target
func (m *Message) Sender() Target {
	return targetFromUser(m.From)
}

// Targets returns the replied-to user, or else the mentioned users
func (m *Message) Targets() []Target {
	if m.ReplyToUser != nil {
		return []Target{*m.ReplyToUser}
	}
	return m.Mentioned
}

func targetFromUser(u *tgbotapi.User) Target {
	if u == nil {
		return Target{}
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	return Target{UserID: u.ID, UserName: u.UserName, FullName: name}
}

// newMessage wraps a regular message
func newMessage(msg *tgbotapi.Message) *Message {
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	m := &Message{
		MessageID: msg.MessageID,
		Text:      text,
		From:      msg.From,
		ReplyTo:   msg.ReplyToMessage,
		Raw:       msg,
	}
	if msg.Chat != nil {
		m.ChatID = msg.Chat.ID
		m.ChatType = msg.Chat.Type
		m.ChatTitle = msg.Chat.Title
	}
	return m
}

// newCallbackMessage wraps a callback query; MessageID refers to the message carrying the keyboard
func newCallbackMessage(query *tgbotapi.CallbackQuery) *Message {
	m := &Message{
		Text:       query.Data,
		From:       query.From,
		IsCallback: true,
		CallbackID: query.ID,
	}
	if query.Message != nil {
		m.MessageID = query.Message.MessageID
		m.ReplyTo = query.Message.ReplyToMessage
		m.Raw = query.Message
		if query.Message.Chat != nil {
			m.ChatID = query.Message.Chat.ID
			m.ChatType = query.Message.Chat.Type
			m.ChatTitle = query.Message.Chat.Title
		}
	}
	return m
}

// resolveTargets fills ReplyToUser and Mentioned. @username mentions are looked up
// among users the bot has already seen; unknown handles are skipped.
func (b *Bot) resolveTargets(ctx context.Context, m *Message) {
	if m.ReplyTo != nil && m.ReplyTo.From != nil && (m.From == nil || m.ReplyTo.From.ID != m.From.ID) {
		t := targetFromUser(m.ReplyTo.From)
		m.ReplyToUser = &t
	}

	if m.IsCallback || m.Raw == nil {
		return
	}

	seen := make(map[int64]bool)
	for _, e := range m.Raw.Entities {
		if e.Type == "text_mention" && e.User != nil && !seen[e.User.ID] {
			seen[e.User.ID] = true
			m.Mentioned = append(m.Mentioned, targetFromUser(e.User))
		}
	}

	for _, word := range strings.Fields(m.Text) {
		if !strings.HasPrefix(word, "@") {
			continue
		}
		name := strings.TrimRight(word[1:], ".,!?:;")
		if name == "" || strings.EqualFold(name, b.self.UserName) {
			continue
		}
		user, err := b.db.FindUserByUserName(ctx, name)
		if err != nil {
			b.logger.Warn("Failed to resolve mention", zap.String("mention", name), zap.Error(err))
			continue
		}
		if user == nil || seen[user.UserID] {
			continue
		}
		seen[user.UserID] = true
		m.Mentioned = append(m.Mentioned, Target{UserID: user.UserID, UserName: user.UserName})
	}
}

// stripMentions removes @handles from free text such as a ban reason
func stripMentions(text string) string {
	var kept []string
	for _, word := range strings.Fields(text) {
		if !strings.HasPrefix(word, "@") {
			kept = append(kept, word)
		}
	}
	return strings.Join(kept, " ")
}
