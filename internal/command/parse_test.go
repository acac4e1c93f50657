package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name         string
		raw          string
		expectedName string
		expectedText string
		expectedFlag map[string]string
	}{
		{
			name:         "name, text and greedy flags",
			raw:          "/name arg1 key:val1 key2:val2 val3",
			expectedName: "name",
			expectedText: "arg1",
			expectedFlag: map[string]string{"key": "val1", "key2": "val2 val3"},
		},
		{
			name:         "bare prefix",
			raw:          "/",
			expectedName: "",
			expectedText: "",
			expectedFlag: map[string]string{},
		},
		{
			name:         "command is lower-cased",
			raw:          "/AFK Going Out",
			expectedName: "afk",
			expectedText: "Going Out",
			expectedFlag: map[string]string{},
		},
		{
			name:         "callback marker",
			raw:          "cmd:verify user_id:42 val:123456",
			expectedName: "verify",
			expectedText: "",
			expectedFlag: map[string]string{"user_id": "42", "val": "123456"},
		},
		{
			name:         "bot mention suffix is dropped",
			raw:          "/rank@GroupHelperBot",
			expectedName: "rank",
			expectedText: "",
			expectedFlag: map[string]string{},
		},
		{
			name:         "not a command",
			raw:          "hello there friend",
			expectedName: "",
			expectedText: "hello there friend",
			expectedFlag: map[string]string{},
		},
		{
			name:         "leading colon does not open a flag",
			raw:          "/help :smile: topic",
			expectedName: "help",
			expectedText: ":smile: topic",
			expectedFlag: map[string]string{},
		},
		{
			name:         "text after flags is absorbed",
			raw:          "/sticker emoji:🔥 title:My Cool Pack",
			expectedName: "sticker",
			expectedText: "",
			expectedFlag: map[string]string{"emoji": "🔥", "title": "My Cool Pack"},
		},
		{
			name:         "empty flag value",
			raw:          "/settings toggle:",
			expectedName: "settings",
			expectedText: "",
			expectedFlag: map[string]string{"toggle": ""},
		},
		{
			name:         "extra whitespace",
			raw:          "  /ban   spam   bot  ",
			expectedName: "ban",
			expectedText: "spam bot",
			expectedFlag: map[string]string{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			inv := Parse(tc.raw, "/")
			assert.Equal(t, tc.expectedName, inv.Name)
			assert.Equal(t, tc.expectedText, inv.Text)
			assert.Equal(t, tc.expectedFlag, inv.Flags)
			assert.Equal(t, tc.raw, inv.Raw)
		})
	}
}

func TestParse_CustomPrefix(t *testing.T) {
	inv := Parse("!mute time:10", "!")
	assert.Equal(t, "mute", inv.Name)
	assert.Equal(t, "10", inv.Flags["time"])

	inv = Parse("/mute time:10", "!")
	assert.Empty(t, inv.Name)
}

func TestParse_FlagValueCannotHoldColon(t *testing.T) {
	inv := Parse("/anime title:Re:Zero", "/")
	assert.Equal(t, "Re:Zero", inv.Flags["title"])

	inv = Parse("/anime title:Steins Gate 0 at:12:00", "/")
	assert.Equal(t, "Steins Gate 0", inv.Flags["title"])
	assert.Equal(t, "12:00", inv.Flags["at"])
}

func TestInvocation_Flag(t *testing.T) {
	inv := Parse("/mute time:5", "/")

	v, ok := inv.Flag("time")
	assert.True(t, ok)
	assert.Equal(t, "5", v)

	_, ok = inv.Flag("missing")
	assert.False(t, ok)
}

func TestCallback(t *testing.T) {
	data := Callback("verify", "user_id", "42", "val", "123456")
	assert.Equal(t, "cmd:verify user_id:42 val:123456", data)

	inv := Parse(data, "/")
	assert.Equal(t, "verify", inv.Name)
	assert.Equal(t, "42", inv.Flags["user_id"])
	assert.Equal(t, "123456", inv.Flags["val"])

	assert.Equal(t, "cmd:captcha", Callback("captcha"))
}
