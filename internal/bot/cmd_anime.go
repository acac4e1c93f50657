package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"grouphelper/internal/command"
	"grouphelper/internal/reporting"
	"grouphelper/internal/weeb"
)

// maxCaptionLength is Telegram's photo caption limit
const maxCaptionLength = 1024

var randomImageTitles = map[string]string{
	"neko":     "🐾 <b>Here's a Neko for you!</b>",
	"husbando": "🧔 <b>Husbando</b>",
	"kitsune":  "🦊 <b>Kitsune</b>",
}

// plainText turns an HTML description into escaped text, keeping line breaks
func plainText(s string) string {
	var sb strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() != io.EOF {
				return html.EscapeString(s)
			}
			return strings.TrimSpace(sb.String())
		case html.TextToken:
			sb.WriteString(html.EscapeString(string(z.Text())))
		case html.StartTagToken, html.SelfClosingTagToken:
			if name, _ := z.TagName(); string(name) == "br" {
				sb.WriteString("\n")
			}
		}
	}
}

func esc(t weeb.Text) string {
	return html.EscapeString(t.Or("N/A"))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func genderSymbol(gender string) string {
	switch gender {
	case "Female":
		return "🚺"
	case "Male":
		return "🚹"
	}
	return "🚻"
}

// replyLookupError maps weeb client failures onto user replies. Remote failures are
// logged and reported here so the dispatcher does not answer a second time.
func (b *Bot) replyLookupError(m *Message, err error, notFound, failed string) error {
	if errors.Is(err, weeb.ErrNotFound) {
		_, err := b.replyHTML(m, "<blockquote>🤔 <b>"+notFound+"</b></blockquote>")
		return err
	}
	b.logger.Warn("Lookup failed", zap.Error(err), zap.Int64("chat_id", m.ChatID))
	reporting.CaptureError(err, map[string]string{"stage": "lookup"})
	_, sendErr := b.replyHTML(m, "⚠️ <b>"+failed+"</b>")
	return sendErr
}

// sendPhotoCard sends a photo with an HTML caption, falling back to text when the photo is rejected
func (b *Bot) sendPhotoCard(m *Message, imageURL, caption string) error {
	if imageURL != "" {
		photo := tgbotapi.NewPhoto(m.ChatID, tgbotapi.FileURL(imageURL))
		photo.Caption = caption
		photo.ParseMode = tgbotapi.ModeHTML
		photo.ReplyToMessageID = m.MessageID
		photo.AllowSendingWithoutReply = true
		if _, err := b.send(photo); err == nil {
			return nil
		}
	}
	_, err := b.replyHTML(m, caption)
	return err
}

// parseID reads a positive numeric id from the invocation text
func parseID(inv command.Invocation) (int, bool) {
	id, err := strconv.Atoi(strings.TrimSpace(inv.Text))
	return id, err == nil && id > 0
}

func (b *Bot) handleAnimeSearch(ctx context.Context, m *Message, inv command.Invocation) error {
	query := strings.TrimSpace(inv.Text)
	if query == "" {
		_, err := b.replyHTML(m, "<blockquote>❌ <b>Please provide an anime name.</b></blockquote>")
		return err
	}

	results, err := b.weeb.SearchAnime(ctx, query)
	if err != nil {
		return b.replyLookupError(m, err, "No results found.", "Failed to fetch anime data.")
	}

	var sb strings.Builder
	sb.WriteString("<blockquote>🎬 <b>Anime Search Results</b>\n")
	sb.WriteString(fmt.Sprintf("├ <b>Query:</b> %s\n\n", html.EscapeString(query)))
	for i, anime := range results {
		sb.WriteString(fmt.Sprintf("#%d\n", i+1))
		sb.WriteString(fmt.Sprintf("├ <b>English:</b> %s\n", esc(anime.Title.English)))
		sb.WriteString(fmt.Sprintf("├ <b>Romaji:</b> %s\n", esc(anime.Title.Romaji)))
		sb.WriteString(fmt.Sprintf("├ <b>Type:</b> %s\n", esc(anime.Format)))
		sb.WriteString(fmt.Sprintf("├ <b>Status:</b> %s\n", esc(anime.Status)))
		sb.WriteString(fmt.Sprintf("└ <b>More Info:</b> %said %d\n\n", html.EscapeString(b.prefix), anime.ID))
	}
	_, err = b.replyHTML(m, strings.TrimSpace(sb.String())+"</blockquote>")
	return err
}

func (b *Bot) handleAnimeByID(ctx context.Context, m *Message, inv command.Invocation) error {
	id, ok := parseID(inv)
	if !ok {
		_, err := b.replyHTML(m, "<blockquote>❌ <b>You must provide a valid anime ID.</b></blockquote>")
		return err
	}

	anime, err := b.weeb.AnimeByID(ctx, id)
	if err != nil {
		return b.replyLookupError(m, err, "No anime found for this ID.", "Failed to fetch anime data.")
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🎬 <b>%s | %s</b>\n", esc(anime.Title.English), esc(anime.Title.Romaji)))
	sb.WriteString(fmt.Sprintf("├ <b>Japanese:</b> %s\n", esc(anime.Title.Native)))
	sb.WriteString(fmt.Sprintf("├ <b>Type:</b> %s\n", esc(anime.Format)))
	sb.WriteString(fmt.Sprintf("├ <b>Adult:</b> %s\n", yesNo(anime.IsAdult)))
	sb.WriteString(fmt.Sprintf("├ <b>Status:</b> %s\n", esc(anime.Status)))
	sb.WriteString(fmt.Sprintf("├ <b>Episodes:</b> %s\n", esc(anime.Episodes)))
	sb.WriteString(fmt.Sprintf("├ <b>Duration:</b> %s min\n", esc(anime.Duration)))
	sb.WriteString(fmt.Sprintf("├ <b>First Aired:</b> %s\n", esc(anime.StartDate)))
	sb.WriteString(fmt.Sprintf("├ <b>Last Aired:</b> %s\n", esc(anime.EndDate)))
	sb.WriteString(fmt.Sprintf("├ <b>Genres:</b> %s\n", html.EscapeString(orNA(strings.Join(anime.Genres, ", ")))))
	sb.WriteString(fmt.Sprintf("├ <b>Studios:</b> %s\n", esc(anime.Studios)))
	sb.WriteString(fmt.Sprintf("└ <b>Trailer:</b> %s\n\n", trailerLink(anime.Trailer)))

	return b.sendPhotoCard(m, anime.Image(), mediaCaption(sb.String(), anime.Description))
}

func (b *Bot) handleMangaSearch(ctx context.Context, m *Message, inv command.Invocation) error {
	query := strings.TrimSpace(inv.Text)
	if query == "" {
		_, err := b.replyHTML(m, "<blockquote>❌ <b>You forgot to provide a manga name.</b></blockquote>")
		return err
	}

	results, err := b.weeb.SearchManga(ctx, query)
	if err != nil {
		return b.replyLookupError(m, err, "No results found.", "Failed to fetch manga information.")
	}

	var sb strings.Builder
	sb.WriteString("<blockquote>📚 <b>Manga Search Results</b>\n")
	sb.WriteString(fmt.Sprintf("├ <b>Query:</b> %s\n\n", html.EscapeString(query)))
	for i, manga := range results {
		symbol := "🟢"
		if manga.IsAdult {
			symbol = "🔞"
		}
		sb.WriteString(fmt.Sprintf("#%d\n", i+1))
		sb.WriteString(fmt.Sprintf("├ <b>English:</b> %s\n", esc(manga.Title.English)))
		sb.WriteString(fmt.Sprintf("├ <b>Romaji:</b> %s\n", esc(manga.Title.Romaji)))
		sb.WriteString(fmt.Sprintf("├ <b>Status:</b> %s\n", esc(manga.Status)))
		sb.WriteString(fmt.Sprintf("├ <b>Adult:</b> %s %s\n", yesNo(manga.IsAdult), symbol))
		sb.WriteString(fmt.Sprintf("└ <b>More:</b> %smid %d\n\n", html.EscapeString(b.prefix), manga.ID))
	}
	_, err = b.replyHTML(m, strings.TrimSpace(sb.String())+"</blockquote>")
	return err
}

func (b *Bot) handleMangaByID(ctx context.Context, m *Message, inv command.Invocation) error {
	id, ok := parseID(inv)
	if !ok {
		_, err := b.replyHTML(m, "<blockquote>❌ <b>You must provide a valid manga ID.</b></blockquote>")
		return err
	}

	manga, err := b.weeb.MangaByID(ctx, id)
	if err != nil {
		return b.replyLookupError(m, err, "No manga found for this ID.", "Failed to fetch manga details.")
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📚 <b>%s | %s</b>\n", esc(manga.Title.English), esc(manga.Title.Romaji)))
	sb.WriteString(fmt.Sprintf("├ <b>Japanese:</b> %s\n", esc(manga.Title.Native)))
	sb.WriteString(fmt.Sprintf("├ <b>Type:</b> %s\n", esc(manga.Format)))
	sb.WriteString(fmt.Sprintf("├ <b>Adult:</b> %s\n", yesNo(manga.IsAdult)))
	sb.WriteString(fmt.Sprintf("├ <b>Status:</b> %s\n", esc(manga.Status)))
	sb.WriteString(fmt.Sprintf("├ <b>Chapters:</b> %s\n", esc(manga.Chapters)))
	sb.WriteString(fmt.Sprintf("├ <b>Volumes:</b> %s\n", esc(manga.Volumes)))
	sb.WriteString(fmt.Sprintf("├ <b>First Aired:</b> %s\n", esc(manga.StartDate)))
	sb.WriteString(fmt.Sprintf("├ <b>Last Aired:</b> %s\n", esc(manga.EndDate)))
	sb.WriteString(fmt.Sprintf("├ <b>Genres:</b> %s\n", html.EscapeString(orNA(strings.Join(manga.Genres, ", ")))))
	sb.WriteString(fmt.Sprintf("└ <b>Trailer:</b> %s\n\n", trailerLink(manga.Trailer)))

	return b.sendPhotoCard(m, manga.Image(), mediaCaption(sb.String(), manga.Description))
}

func (b *Bot) handleCharacterSearch(ctx context.Context, m *Message, inv command.Invocation) error {
	query := strings.TrimSpace(inv.Text)
	if query == "" {
		_, err := b.replyHTML(m, "<blockquote>❌ <b>Please provide a character name.</b></blockquote>")
		return err
	}

	results, err := b.weeb.SearchCharacters(ctx, query)
	if err != nil {
		return b.replyLookupError(m, err, "No characters found.", "Failed to fetch character data.")
	}

	var sb strings.Builder
	sb.WriteString("<blockquote>👤 <b>Character Search Results</b>\n")
	sb.WriteString(fmt.Sprintf("├ <b>Query:</b> %s\n\n", html.EscapeString(query)))
	for i, char := range results {
		gender := char.Gender.Or("Unknown")
		sb.WriteString(fmt.Sprintf("#%d\n", i+1))
		sb.WriteString(fmt.Sprintf("├ <b>Full Name:</b> %s\n", esc(char.Name.Full)))
		sb.WriteString(fmt.Sprintf("├ <b>Native Name:</b> %s\n", esc(char.Name.Native)))
		sb.WriteString(fmt.Sprintf("├ <b>Gender:</b> %s %s\n", html.EscapeString(gender), genderSymbol(gender)))
		sb.WriteString(fmt.Sprintf("└ <b>More Info:</b> %scid %d\n\n", html.EscapeString(b.prefix), char.ID))
	}
	_, err = b.replyHTML(m, strings.TrimSpace(sb.String())+"</blockquote>")
	return err
}

func (b *Bot) handleCharacterByID(ctx context.Context, m *Message, inv command.Invocation) error {
	id, ok := parseID(inv)
	if !ok {
		_, err := b.replyHTML(m, "<blockquote>❌ <b>Please provide a valid character ID.</b></blockquote>")
		return err
	}

	char, err := b.weeb.CharacterByID(ctx, id)
	if err != nil {
		return b.replyLookupError(m, err, "No character found.", "Failed to fetch character information.")
	}

	gender := char.Gender.Or("Unknown")
	var sb strings.Builder
	sb.WriteString("👤 <b>Character Information</b>\n")
	sb.WriteString(fmt.Sprintf("├ <b>Name:</b> %s\n", esc(char.Name.Full)))
	sb.WriteString(fmt.Sprintf("├ <b>Native:</b> %s\n", esc(char.Name.Native)))
	sb.WriteString(fmt.Sprintf("├ <b>ID:</b> <code>%d</code>\n", char.ID))
	sb.WriteString(fmt.Sprintf("├ <b>Age:</b> %s\n", html.EscapeString(char.Age.Or("Unknown"))))
	sb.WriteString(fmt.Sprintf("├ <b>Gender:</b> %s %s\n", html.EscapeString(gender), genderSymbol(gender)))
	sb.WriteString(fmt.Sprintf("└ <b>AniList:</b> %s\n\n", esc(char.SiteURL)))

	return b.sendPhotoCard(m, char.ImageURL.String(), mediaCaption(sb.String(), char.Description))
}

// randomImageHandler returns a handler posting a random nekos.best image of category
func (b *Bot) randomImageHandler(category string) HandlerFunc {
	return func(ctx context.Context, m *Message, inv command.Invocation) error {
		img, err := b.weeb.RandomImage(ctx, category)
		if err != nil {
			return b.replyLookupError(m, err, "Nothing found right now.", "Failed to fetch image.")
		}

		var sb strings.Builder
		sb.WriteString("<blockquote>")
		sb.WriteString(randomImageTitles[category] + "\n")
		if img.AnimeName != "" {
			sb.WriteString(fmt.Sprintf("├ <b>Anime:</b> %s\n", html.EscapeString(img.AnimeName)))
		}
		sb.WriteString(fmt.Sprintf("├ <b>Artist:</b> %s\n", html.EscapeString(orNA(img.ArtistName))))
		sb.WriteString(fmt.Sprintf("├ <b>Source:</b> %s\n", html.EscapeString(orNA(img.SourceURL))))
		sb.WriteString(fmt.Sprintf("├ <b>Artist Profile:</b> %s\n", html.EscapeString(orNA(img.ArtistHref))))
		sb.WriteString(fmt.Sprintf("└ <b>Image:</b> %s", html.EscapeString(img.URL)))
		sb.WriteString("</blockquote>")

		return b.sendPhotoCard(m, img.URL, sb.String())
	}
}

// mediaCaption wraps details and a description into a blockquote that fits a photo caption
func mediaCaption(details string, description weeb.Text) string {
	const openTag, closeTag, heading = "<blockquote>", "</blockquote>", "📖 <b>Description</b>\n"
	desc := plainText(description.Or("N/A"))
	room := maxCaptionLength - len([]rune(openTag+details+heading+closeTag))
	if room < 16 {
		return openTag + strings.TrimSpace(details) + closeTag
	}
	return openTag + details + heading + truncateEscaped(desc, room) + closeTag
}

// truncateEscaped shortens escaped text without splitting an entity
func truncateEscaped(s string, n int) string {
	out := truncate(s, n)
	if amp := strings.LastIndexByte(out, '&'); amp >= 0 && !strings.Contains(out[amp:], ";") {
		out = out[:amp] + "…"
	}
	return out
}

func trailerLink(t *weeb.Trailer) string {
	if t == nil || t.ID == "" {
		return "N/A"
	}
	return "https://youtu.be/" + html.EscapeString(t.ID.String())
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
