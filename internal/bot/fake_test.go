package bot

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"grouphelper/internal/storage/stubs"
)

const (
	testBotID  int64 = 999
	testChatID int64 = -1001234567890
	testDevID  int64 = 42
)

// fakeAPI records every call made through the gateway
type fakeAPI struct {
	mu       sync.Mutex
	nextID   int
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	raw      []string
	params   []tgbotapi.Params
	// results holds canned JSON results of raw endpoints
	results map[string]string

	members map[int64]tgbotapi.ChatMember
	chat    tgbotapi.Chat

	// onRequest runs before a request is recorded, outside the lock
	onRequest func(c tgbotapi.Chattable)
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		nextID:  100,
		results: make(map[string]string),
		members: map[int64]tgbotapi.ChatMember{
			testBotID: {
				Status:             "administrator",
				User:               &tgbotapi.User{ID: testBotID, IsBot: true, UserName: "helper_bot"},
				CanRestrictMembers: true,
				CanPromoteMembers:  true,
				CanChangeInfo:      true,
				CanDeleteMessages:  true,
				CanPinMessages:     true,
				CanInviteUsers:     true,
			},
		},
	}
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	hook := f.onRequest
	f.mu.Unlock()
	if hook != nil {
		hook(c)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetChat(config tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chat := f.chat
	chat.ID = config.ChatID
	return chat, nil
}

func (f *fakeAPI) GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cm, ok := f.members[config.UserID]; ok {
		return cm, nil
	}
	return tgbotapi.ChatMember{Status: "member", User: &tgbotapi.User{ID: config.UserID}}, nil
}

func (f *fakeAPI) GetUserProfilePhotos(config tgbotapi.UserProfilePhotosConfig) (tgbotapi.UserProfilePhotos, error) {
	return tgbotapi.UserProfilePhotos{}, nil
}

func (f *fakeAPI) GetFileDirectURL(fileID string) (string, error) {
	return "https://example.invalid/" + fileID, nil
}

func (f *fakeAPI) MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raw = append(f.raw, endpoint)
	f.params = append(f.params, params)
	result := `{}`
	if r, ok := f.results[endpoint]; ok {
		result = r
	}
	return &tgbotapi.APIResponse{Ok: true, Result: json.RawMessage(result)}, nil
}

func (f *fakeAPI) UploadFiles(endpoint string, params tgbotapi.Params, files []tgbotapi.RequestFile) (*tgbotapi.APIResponse, error) {
	return f.MakeRequest(endpoint, params)
}

func (f *fakeAPI) setMember(userID int64, cm tgbotapi.ChatMember) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cm.User == nil {
		cm.User = &tgbotapi.User{ID: userID}
	}
	f.members[userID] = cm
}

func (f *fakeAPI) setOnRequest(hook func(c tgbotapi.Chattable)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onRequest = hook
}

// texts returns the text or caption of every sent message
func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		switch v := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, v.Text)
		case tgbotapi.PhotoConfig:
			out = append(out, v.Caption)
		}
	}
	return out
}

// requestsOf returns the recorded requests of type T
func requestsOf[T tgbotapi.Chattable](f *fakeAPI) []T {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []T
	for _, c := range f.requests {
		if v, ok := c.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func (f *fakeAPI) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
	f.requests = nil
	f.raw = nil
	f.params = nil
}

// calls returns how often a raw endpoint was hit
func (f *fakeAPI) calls(endpoint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.raw {
		if e == endpoint {
			n++
		}
	}
	return n
}

func newTestBot(t *testing.T, opts Options) (*Bot, *fakeAPI, *stubs.MockDB) {
	t.Helper()

	db := stubs.NewMockDB()
	require.NoError(t, db.Initialize(context.Background()))

	api := newFakeAPI()
	if opts.DevIDs == nil {
		opts.DevIDs = []int64{testDevID}
	}
	b, err := newBot(api, tgbotapi.User{ID: testBotID, IsBot: true, UserName: "helper_bot"}, opts, db, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(b.Stop)

	return b, api, db
}

func groupMessage(from *tgbotapi.User, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 10,
		From:      from,
		Chat:      &tgbotapi.Chat{ID: testChatID, Type: "supergroup", Title: "Test Chat"},
		Text:      text,
		Date:      int(time.Now().Unix()),
	}
}

func callback(from *tgbotapi.User, messageID int, data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:   "cb",
		From: from,
		Data: data,
		Message: &tgbotapi.Message{
			MessageID: messageID,
			Chat:      &tgbotapi.Chat{ID: testChatID, Type: "supergroup"},
		},
	}
}
