package bot

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"grouphelper/internal/command"
	"grouphelper/internal/models"
	"grouphelper/internal/rank"
	"grouphelper/internal/reporting"
)

var returnVerbs = []string{"re-active", "returned", "came back", "re-appeared"}

// dispatch runs one message or callback through parse, AFK return, gates, execution and post-effects
func (b *Bot) dispatch(ctx context.Context, m *Message) {
	if m.From == nil {
		return
	}

	if !m.IsCallback && !strings.HasPrefix(m.Text, b.prefix) {
		b.logger.Debug("Message received",
			zap.Int64("chat_id", m.ChatID),
			zap.Int64("user_id", m.From.ID),
		)
		return
	}

	inv := command.Parse(m.Text, b.prefix)
	cmd, _ := b.registry.Resolve(inv.Name)

	sender, err := b.db.GetUser(ctx, m.From.ID)
	if err != nil {
		b.logger.Error("Failed to load sender", zap.Error(err), zap.Int64("user_id", m.From.ID))
		b.reply(m, genericFailure)
		return
	}
	b.rememberUserName(ctx, sender, m.From.UserName)

	if sender.AFK.Status && (cmd == nil || cmd.Name != "afk") {
		b.announceReturn(ctx, m, sender)
	}

	b.logger.Info("Command received",
		zap.String("command", inv.Name),
		zap.Bool("callback", m.IsCallback),
		zap.Int64("chat_id", m.ChatID),
		zap.Int64("user_id", m.From.ID),
		zap.String("username", m.From.UserName),
	)

	b.resolveTargets(ctx, m)

	rejection, err := b.checkGates(ctx, m, inv, cmd, sender)
	if err != nil {
		b.logger.Error("Gate check failed", zap.Error(err), zap.String("command", inv.Name))
		reporting.CaptureError(err, map[string]string{"command": inv.Name, "stage": "gates"})
		b.reply(m, genericFailure)
		return
	}
	if rejection != nil {
		b.sendRejection(m, rejection)
		return
	}

	if err := b.execute(ctx, cmd, m, inv); err != nil {
		return
	}

	if b.notifyAFKMentions(ctx, m) {
		return
	}

	b.awardXP(ctx, m, cmd)
}

// execute runs a handler, containing errors and panics to this invocation
func (b *Bot) execute(ctx context.Context, cmd *Command, m *Message, inv command.Invocation) (err error) {
	tags := map[string]string{
		"command": cmd.Name,
		"chat_id": strconv.FormatInt(m.ChatID, 10),
	}

	defer func() {
		if r := recover(); r != nil {
			reporting.CapturePanic(r, tags)
			err = fmt.Errorf("panic in %s: %v", cmd.Name, r)
			b.logger.Error("Recovered from panic in command",
				zap.String("command", cmd.Name),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			b.reply(m, genericFailure)
		}
	}()

	if err = cmd.Exec(ctx, m, inv); err != nil {
		reporting.CaptureError(err, tags)
		b.logger.Error("Command failed",
			zap.String("command", cmd.Name),
			zap.Int64("chat_id", m.ChatID),
			zap.Int64("user_id", m.From.ID),
			zap.Error(err),
		)
		b.reply(m, genericFailure)
	}
	return err
}

func (b *Bot) sendRejection(m *Message, r *Rejection) {
	switch {
	case r.HTML && r.Reply:
		b.replyHTML(m, r.Text)
	case r.HTML:
		b.sendHTML(m.ChatID, r.Text)
	case r.Reply:
		b.reply(m, r.Text)
	default:
		b.sendText(m.ChatID, r.Text)
	}
}

// rememberUserName keeps the stored @username current so mentions can be resolved
func (b *Bot) rememberUserName(ctx context.Context, user *models.User, userName string) {
	if userName == "" || user.UserName == userName {
		return
	}
	if err := b.db.SetUserName(ctx, user.UserID, userName); err != nil {
		b.logger.Warn("Failed to store username", zap.Error(err), zap.Int64("user_id", user.UserID))
	}
}

// announceReturn clears the AFK status and greets the user coming back. Only the
// dispatch that actually clears the status announces.
func (b *Bot) announceReturn(ctx context.Context, m *Message, user *models.User) {
	afk, err := b.db.SwapAFK(ctx, user.UserID, models.AFKInfo{})
	if err != nil {
		b.logger.Error("Failed to clear AFK", zap.Error(err), zap.Int64("user_id", user.UserID))
		return
	}
	if !afk.Status {
		return
	}

	away := time.Since(afk.Since)
	text := fmt.Sprintf("%s %s after %s!",
		m.Sender().Mention(),
		returnVerbs[rand.IntN(len(returnVerbs))],
		formatDuration(away),
	)

	if ids := afk.MentionedMessageIDs; len(ids) > 0 {
		var links []string
		for i, id := range ids {
			links = append(links, fmt.Sprintf("%d. %s", i+1, messageLink(m.ChatID, id)))
		}
		text += "\n\nTagged messages:\n" + strings.Join(links, "\n")
	}

	b.reply(m, text)
}

// notifyAFKMentions tells the chat about the first AFK user the message targets and
// records the message for them. It reports whether a notice was sent.
func (b *Bot) notifyAFKMentions(ctx context.Context, m *Message) bool {
	for _, target := range m.Targets() {
		user, err := b.db.GetUser(ctx, target.UserID)
		if err != nil {
			b.logger.Warn("Failed to load mentioned user", zap.Error(err), zap.Int64("user_id", target.UserID))
			continue
		}
		if !user.AFK.Status {
			continue
		}

		afk, err := b.db.AddAFKMention(ctx, user.UserID, m.MessageID)
		if err != nil {
			b.logger.Error("Failed to record AFK mention", zap.Error(err), zap.Int64("user_id", user.UserID))
		} else if !afk {
			continue
		}

		text := target.Mention() + " is currently AFK. 💤"
		if user.AFK.Reason != "" {
			text += "\nReason: " + user.AFK.Reason
		}
		b.reply(m, text)
		return true
	}
	return false
}

// awardXP credits the command's XP and shows the rank card on level up
func (b *Bot) awardXP(ctx context.Context, m *Message, cmd *Command) {
	if cmd.XP <= 0 {
		return
	}

	total, err := b.db.AddXP(ctx, m.From.ID, cmd.XP)
	if err != nil {
		b.logger.Error("Failed to award XP", zap.Error(err), zap.Int64("user_id", m.From.ID))
		return
	}
	oldLevel := rank.LevelFor(total - cmd.XP)
	newLevel := rank.LevelFor(total)
	if newLevel == oldLevel {
		return
	}

	rankCmd, ok := b.registry.Resolve("rank")
	if !ok {
		return
	}
	inv := command.Invocation{
		Name: rankCmd.Name,
		Flags: map[string]string{
			"caption": fmt.Sprintf("%s you levelled up 🎉!\n%d -> %d", m.Sender().Mention(), oldLevel, newLevel),
			"user_id": strconv.FormatInt(m.From.ID, 10),
		},
	}
	b.execute(ctx, rankCmd, m, inv)
}
