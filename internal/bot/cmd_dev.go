package bot

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/net/html"

	"grouphelper/internal/command"
	"grouphelper/internal/models"
)

// protectedCommands can never be disabled, or nobody could turn anything back on
var protectedCommands = map[string]bool{"enable": true, "disable": true}

var startedAt = time.Now()

// commandArg resolves the command named by the invocation text
func (b *Bot) commandArg(m *Message, inv command.Invocation) (*Command, bool) {
	name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(inv.Text), b.prefix))
	if name == "" {
		b.reply(m, "❗ Please name a command.")
		return nil, false
	}
	cmd, ok := b.registry.Resolve(name)
	if !ok {
		b.reply(m, fmt.Sprintf("❌ No command named %s.", name))
		return nil, false
	}
	return cmd, true
}

func (b *Bot) handleEnable(ctx context.Context, m *Message, inv command.Invocation) error {
	cmd, ok := b.commandArg(m, inv)
	if !ok {
		return nil
	}

	cfg, err := b.db.GetCommandConfig(ctx, cmd.Name)
	if err != nil {
		return err
	}
	if cfg.Enabled {
		_, err := b.reply(m, fmt.Sprintf("⚠️ %s is already enabled.", cmd.Name))
		return err
	}

	cfg.Enabled = true
	cfg.DisabledReason = ""
	if err := b.db.SaveCommandConfig(ctx, cfg); err != nil {
		return fmt.Errorf("failed to enable %s: %w", cmd.Name, err)
	}
	_, err = b.reply(m, fmt.Sprintf("✅ %s has been enabled.", cmd.Name))
	return err
}

func (b *Bot) handleDisable(ctx context.Context, m *Message, inv command.Invocation) error {
	cmd, ok := b.commandArg(m, inv)
	if !ok {
		return nil
	}
	if protectedCommands[cmd.Name] {
		_, err := b.reply(m, fmt.Sprintf("❌ %s cannot be disabled.", cmd.Name))
		return err
	}

	cfg, err := b.db.GetCommandConfig(ctx, cmd.Name)
	if err != nil {
		return err
	}
	reason, _ := inv.Flag("reason")

	cfg.Enabled = false
	cfg.DisabledReason = strings.TrimSpace(reason)
	if err := b.db.SaveCommandConfig(ctx, cfg); err != nil {
		return fmt.Errorf("failed to disable %s: %w", cmd.Name, err)
	}

	text := fmt.Sprintf("🚫 %s has been disabled.", cmd.Name)
	if cfg.DisabledReason != "" {
		text += "\nReason: " + cfg.DisabledReason
	}
	_, err = b.reply(m, text)
	return err
}

// handleBotBan stops users from running any command
func (b *Bot) handleBotBan(ctx context.Context, m *Message, inv command.Invocation) error {
	targets := m.Targets()
	if len(targets) == 0 {
		_, err := b.reply(m, "❗ Please mention at least one user or reply to their message.")
		return err
	}
	reason, _ := inv.Flag("reason")
	reason = strings.TrimSpace(reason)

	for _, target := range targets {
		if b.isDev(target.UserID) || target.UserID == b.self.ID {
			b.reply(m, "❌ Cannot bot-ban "+target.Mention())
			continue
		}
		ban := models.BanInfo{Status: true, Reason: reason, Since: time.Now()}
		if _, err := b.db.SwapBan(ctx, target.UserID, ban); err != nil {
			return fmt.Errorf("failed to bot-ban %d: %w", target.UserID, err)
		}
		b.sendText(m.ChatID, fmt.Sprintf("⛔ %s can no longer use the bot.", target.Mention()))
	}
	return nil
}

func (b *Bot) handleBotUnban(ctx context.Context, m *Message, inv command.Invocation) error {
	targets := m.Targets()
	if len(targets) == 0 {
		_, err := b.reply(m, "❗ Please mention at least one user or reply to their message.")
		return err
	}

	for _, target := range targets {
		prev, err := b.db.SwapBan(ctx, target.UserID, models.BanInfo{})
		if err != nil {
			return fmt.Errorf("failed to bot-unban %d: %w", target.UserID, err)
		}
		if !prev.Status {
			b.sendText(m.ChatID, fmt.Sprintf("⚠️ %s is not banned.", target.Mention()))
			continue
		}
		b.sendText(m.ChatID, fmt.Sprintf("✅ %s can use the bot again.", target.Mention()))
	}
	return nil
}

// handleSysInfo reports host and process statistics
func (b *Bot) handleSysInfo(ctx context.Context, m *Message, inv command.Invocation) error {
	var sb strings.Builder
	sb.WriteString("<blockquote>🖥 <b>System Information</b>\n")

	if h, err := host.InfoWithContext(ctx); err == nil {
		sb.WriteString(fmt.Sprintf("├ <b>Host:</b> %s\n", html.EscapeString(h.Hostname)))
		sb.WriteString(fmt.Sprintf("├ <b>OS:</b> %s %s\n", html.EscapeString(h.Platform), html.EscapeString(h.PlatformVersion)))
		sb.WriteString(fmt.Sprintf("├ <b>Uptime:</b> %s\n", formatDuration(time.Duration(h.Uptime)*time.Second)))
	}
	if info, err := cpu.InfoWithContext(ctx); err == nil && len(info) > 0 {
		sb.WriteString(fmt.Sprintf("├ <b>CPU:</b> %s (%d logical)\n", html.EscapeString(info[0].ModelName), runtime.NumCPU()))
	}
	if pct, err := cpu.PercentWithContext(ctx, 200*time.Millisecond, false); err == nil && len(pct) > 0 {
		sb.WriteString(fmt.Sprintf("├ <b>CPU load:</b> %.1f%%\n", pct[0]))
	}
	if v, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		sb.WriteString(fmt.Sprintf("├ <b>RAM:</b> %s / %s (%.1f%%)\n", formatBytes(v.Used), formatBytes(v.Total), v.UsedPercent))
	}
	if p, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if rss, err := p.MemoryInfoWithContext(ctx); err == nil {
			sb.WriteString(fmt.Sprintf("├ <b>Bot memory:</b> %s\n", formatBytes(rss.RSS)))
		}
	}
	sb.WriteString(fmt.Sprintf("├ <b>Goroutines:</b> %d\n", runtime.NumGoroutine()))
	sb.WriteString(fmt.Sprintf("├ <b>Pending interactions:</b> %d\n", b.interactions.Len()))
	sb.WriteString(fmt.Sprintf("├ <b>Go:</b> %s\n", runtime.Version()))
	sb.WriteString(fmt.Sprintf("└ <b>Bot uptime:</b> %s", formatDuration(time.Since(startedAt))))
	sb.WriteString("</blockquote>")

	_, err := b.replyHTML(m, sb.String())
	return err
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
