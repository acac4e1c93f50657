package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"grouphelper/internal/command"
	"grouphelper/internal/models"
)

// Command categories
const (
	CategoryChat    = "chat"
	CategoryGeneral = "general"
	CategoryAnime   = "anime"
	CategoryDev     = "dev"
)

// registerCommands loads every built-in command into the registry
func (b *Bot) registerCommands() error {
	restrict := []string{models.PermRestrictMembers}

	commands := []*Command{
		// Chat
		{Name: "afk", Category: CategoryChat, OnlyChat: true, Usage: "[reason]",
			Description: "Set yourself as AFK. Mentions get an auto-reply and you get the links when you return.",
			Exec:        b.handleAFK},
		{Name: "ban", Category: CategoryChat, OnlyChat: true, OnlyAdmin: true, AdminPermissions: restrict,
			Usage: "<@mention> or <reply> [reason]", Description: "Ban one or more users from the chat.",
			Exec: b.handleBan},
		{Name: "unban", Category: CategoryChat, OnlyChat: true, OnlyAdmin: true, AdminPermissions: restrict,
			Usage: "<@mention> or <reply>", Description: "Unban one or more users.",
			Exec: b.handleUnban},
		{Name: "mute", Category: CategoryChat, OnlyChat: true, OnlyAdmin: true, AdminPermissions: restrict,
			Usage: "<@mention> or <reply> [time:<minutes>]", Description: "Mute one or more users, optionally for a while.",
			Exec: b.handleMute},
		{Name: "unmute", Category: CategoryChat, OnlyChat: true, OnlyAdmin: true, AdminPermissions: restrict,
			Usage: "<@mention> or <reply>", Description: "Unmute one or more users.",
			Exec: b.handleUnmute},
		{Name: "demote", Category: CategoryChat, OnlyChat: true, OnlyAdmin: true,
			AdminPermissions: []string{models.PermPromoteMembers},
			Usage:            "<@mention> or <reply>", Description: "Demote one or more admins to regular users.",
			Exec: b.handleDemote},
		{Name: "lock", Category: CategoryChat, OnlyChat: true, OnlyAdmin: true,
			AdminPermissions: []string{models.PermRestrictMembers, models.PermChangeInfo},
			Description:      "Lock the chat (mute everyone).",
			Exec:             b.handleLock},
		{Name: "unlock", Category: CategoryChat, OnlyChat: true, OnlyAdmin: true,
			AdminPermissions: []string{models.PermRestrictMembers, models.PermChangeInfo},
			Description:      "Unlock the chat, restoring the permissions it had before the lock.",
			Exec:             b.handleUnlock},
		{Name: "settings", Category: CategoryChat, OnlyChat: true, OnlyAdmin: true,
			AdminPermissions: []string{models.PermChangeInfo},
			Description:      "Enable or disable greetings and captcha.",
			Exec:             b.handleSettings},
		{Name: "setchatpfp", Aliases: []string{"setpfp", "setgpic"}, Category: CategoryChat, OnlyChat: true, OnlyAdmin: true,
			AdminPermissions: []string{models.PermChangeInfo},
			Usage:            "<reply to a photo or send with caption>", Description: "Set a new chat profile photo.",
			Exec: b.handleSetChatPhoto},
		{Name: "verify", Category: CategoryChat, OnlyChat: true, Hidden: true, Exec: b.handleVerify},
		{Name: "captcha", Category: CategoryChat, OnlyChat: true, Hidden: true, Exec: b.handleCaptchaRetry},

		// General
		{Name: "help", Aliases: []string{"menu", "commands"}, Category: CategoryGeneral, Usage: "[command]",
			Description: "List commands or show details about one.", Exec: b.handleHelp},
		{Name: "rank", Category: CategoryGeneral, Usage: "[<@mention> or <reply>]",
			Description: "Show the rank of a user based on XP.", Exec: b.handleRank},
		{Name: "profile", Category: CategoryGeneral, Usage: "[<@mention> or <reply>]",
			Description: "Show user profile picture and details.", Exec: b.handleProfile},
		{Name: "sticker", Aliases: []string{"createset", "newpack", "sset"}, Category: CategoryGeneral,
			Usage:       "<reply to photo | gif | video> [emoji:<emoji>] [title:<title>]",
			Description: "Turn the replied photo, GIF or video into a sticker in one of your sets.",
			Exec:        b.handleSticker},
		{Name: "deleteset", Aliases: []string{"delset"}, Category: CategoryGeneral, Usage: "<reply to a sticker>",
			Description: "Delete a sticker set created by this bot.", Exec: b.handleDeleteSet},
		{Name: "stealpack", Aliases: []string{"clonepack"}, Category: CategoryGeneral, Usage: "<reply to a sticker>",
			Description: "Clone a sticker pack by replying to a sticker.", Exec: b.handleStealPack},

		// Anime
		{Name: "anime", Aliases: []string{"ani"}, Category: CategoryAnime, Usage: "<name>", XP: 1,
			Description: "Search anime by name.", Exec: b.handleAnimeSearch},
		{Name: "aid", Aliases: []string{"animeid"}, Category: CategoryAnime, Usage: "<id>", XP: 1,
			Description: "Show anime details by id.", Exec: b.handleAnimeByID},
		{Name: "manga", Aliases: []string{"mang", "manhwa"}, Category: CategoryAnime, Usage: "<name>", XP: 1,
			Description: "Search manga by name.", Exec: b.handleMangaSearch},
		{Name: "mid", Aliases: []string{"mangaid"}, Category: CategoryAnime, Usage: "<id>", XP: 1,
			Description: "Show manga details by id.", Exec: b.handleMangaByID},
		{Name: "character", Aliases: []string{"char", "csearch"}, Category: CategoryAnime, Usage: "<name>", XP: 1,
			Description: "Search characters by name.", Exec: b.handleCharacterSearch},
		{Name: "cid", Aliases: []string{"charid", "characterid"}, Category: CategoryAnime, Usage: "<id>", XP: 1,
			Description: "Show character details by id.", Exec: b.handleCharacterByID},
		{Name: "neko", Aliases: []string{"catgirl"}, Category: CategoryAnime, XP: 1,
			Description: "Send a random neko image.", Exec: b.randomImageHandler("neko")},
		{Name: "husbu", Aliases: []string{"husbando"}, Category: CategoryAnime, XP: 1,
			Description: "Send a random husbando image.", Exec: b.randomImageHandler("husbando")},
		{Name: "kitsune", Aliases: []string{"foxgirl"}, Category: CategoryAnime, XP: 1,
			Description: "Send a random kitsune image.", Exec: b.randomImageHandler("kitsune")},

		// Dev
		{Name: "enable", Category: CategoryDev, DevOnly: true, Usage: "<command>",
			Description: "Enable a command.", Exec: b.handleEnable},
		{Name: "disable", Category: CategoryDev, DevOnly: true, Usage: "<command> [reason:<text>]",
			Description: "Disable a command.", Exec: b.handleDisable},
		{Name: "botban", Category: CategoryDev, DevOnly: true, Usage: "<@mention> or <reply> [reason:<text>]",
			Description: "Ban users from using the bot.", Exec: b.handleBotBan},
		{Name: "botunban", Category: CategoryDev, DevOnly: true, Usage: "<@mention> or <reply>",
			Description: "Allow banned users to use the bot again.", Exec: b.handleBotUnban},
		{Name: "sysinfo", Aliases: []string{"stats"}, Category: CategoryDev, DevOnly: true,
			Description: "Show host and process statistics.", Exec: b.handleSysInfo},
	}

	for _, cmd := range commands {
		if err := b.registry.Register(cmd); err != nil {
			return err
		}
	}
	return nil
}

// handleHelp lists visible commands by category, or details one command
func (b *Bot) handleHelp(ctx context.Context, m *Message, inv command.Invocation) error {
	if name := strings.ToLower(strings.TrimSpace(inv.Text)); name != "" {
		name = strings.TrimPrefix(name, b.prefix)
		cmd, ok := b.registry.Resolve(name)
		if !ok || cmd.Hidden {
			_, err := b.reply(m, fmt.Sprintf("❌ No command named %s.", name))
			return err
		}

		var sb strings.Builder
		sb.WriteString("<blockquote>")
		sb.WriteString(fmt.Sprintf("📖 <b>%s%s</b>\n", html.EscapeString(b.prefix), cmd.Name))
		if len(cmd.Aliases) > 0 {
			sb.WriteString(fmt.Sprintf("├ <b>Aliases:</b> %s\n", strings.Join(cmd.Aliases, ", ")))
		}
		sb.WriteString(fmt.Sprintf("├ <b>Category:</b> %s\n", cmd.Category))
		if cmd.Usage != "" {
			sb.WriteString(fmt.Sprintf("├ <b>Usage:</b> %s%s %s\n",
				html.EscapeString(b.prefix), cmd.Name, html.EscapeString(cmd.Usage)))
		}
		sb.WriteString(fmt.Sprintf("└ <b>Description:</b> %s", html.EscapeString(cmd.Description)))
		sb.WriteString("</blockquote>")
		_, err := b.replyHTML(m, sb.String())
		return err
	}

	byCategory := make(map[string][]string)
	for _, cmd := range b.registry.Commands() {
		if cmd.Hidden || (cmd.DevOnly && !b.isDev(m.From.ID)) {
			continue
		}
		byCategory[cmd.Category] = append(byCategory[cmd.Category], cmd.Name)
	}

	categories := make([]string, 0, len(byCategory))
	for category := range byCategory {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	var sb strings.Builder
	sb.WriteString("📚 <b>Available commands</b>\n")
	for _, category := range categories {
		sb.WriteString(fmt.Sprintf("\n<b>%s</b>\n", strings.ToUpper(category)))
		sb.WriteString("<code>" + strings.Join(byCategory[category], ", ") + "</code>\n")
	}
	sb.WriteString(fmt.Sprintf("\nUse %shelp &lt;command&gt; for details.", html.EscapeString(b.prefix)))

	_, err := b.replyHTML(m, sb.String())
	return err
}
