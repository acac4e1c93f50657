package bot

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"grouphelper/internal/weeb"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0h 0m 0s"},
		{90 * time.Second, "0h 1m 30s"},
		{26*time.Hour + 3*time.Minute + 4*time.Second, "1d 2h 3m 4s"},
		{-time.Second, "0h 0m 0s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.in), tt.in.String())
	}
}

func TestMessageLink(t *testing.T) {
	assert.Equal(t, "https://t.me/c/1234567890/77", messageLink(-1001234567890, 77))
}

func TestStripMentions(t *testing.T) {
	assert.Equal(t, "spamming links", stripMentions("@bob spamming @carol links"))
	assert.Equal(t, "", stripMentions("@bob"))
}

func TestTargetMention(t *testing.T) {
	assert.Equal(t, "@bob", Target{UserName: "bob", FullName: "Bob"}.Mention())
	assert.Equal(t, "Bob B", Target{FullName: "Bob B"}.Mention())
	assert.Equal(t, "User", Target{}.Mention())
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "Line one\nLine &lt;two&gt; &amp; more", plainText("Line one<br>Line &lt;two&gt; &amp; <i>more</i>"))
	assert.Equal(t, "", plainText(""))
}

func TestMediaCaptionFitsPhotoLimit(t *testing.T) {
	long := weeb.Text(strings.Repeat("word &amp; ", 500))
	caption := mediaCaption("🎬 <b>Title</b>\n", long)

	assert.LessOrEqual(t, len([]rune(caption)), maxCaptionLength)
	assert.True(t, strings.HasSuffix(caption, "</blockquote>"))
	assert.NotContains(t, caption, "&am…")
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KiB", formatBytes(1536))
	assert.Equal(t, "2.0 GiB", formatBytes(2<<30))
}

func TestNewSetName(t *testing.T) {
	b, _, _ := newTestBot(t, Options{})

	name := b.newSetName("pack", 42, "video")
	assert.True(t, strings.HasPrefix(name, "pack_"))
	assert.True(t, strings.HasSuffix(name, "_42_video_by_helper_bot"))
	assert.LessOrEqual(t, len(name), 64)
}
