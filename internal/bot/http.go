package bot

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"grouphelper/internal/rank"
)

// initDataMaxAge bounds how old a Mini App login may be
const initDataMaxAge = 24 * time.Hour

type userIDKey struct{}

// HTTPServer serves the Mini App JSON API
type HTTPServer struct {
	bot         *Bot
	webhookMode bool // If false (polling mode), skip authentication for easier local dev
	now         func() time.Time
}

// NewHTTPServer creates a new HTTP server for the Mini App
func NewHTTPServer(bot *Bot, webhookMode bool) *HTTPServer {
	return &HTTPServer{
		bot:         bot,
		webhookMode: webhookMode,
		now:         time.Now,
	}
}

// RegisterRoutes registers Mini App routes on the provided mux
func (hs *HTTPServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/rank", hs.authMiddleware(hs.handleRank))
	mux.HandleFunc("/api/sticker-sets", hs.authMiddleware(hs.handleStickerSets))
}

// validateTelegramInitData checks the Mini App initData signature and returns the user id
func (hs *HTTPServer) validateTelegramInitData(initData string) (int64, error) {
	if initData == "" {
		return 0, fmt.Errorf("missing initData")
	}

	values, err := url.ParseQuery(initData)
	if err != nil {
		return 0, fmt.Errorf("invalid initData format: %w", err)
	}

	hash := values.Get("hash")
	if hash == "" {
		return 0, fmt.Errorf("missing hash in initData")
	}
	values.Del("hash")

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var dataCheckString strings.Builder
	for i, k := range keys {
		if i > 0 {
			dataCheckString.WriteByte('\n')
		}
		dataCheckString.WriteString(k)
		dataCheckString.WriteByte('=')
		dataCheckString.WriteString(values.Get(k))
	}

	if !hmac.Equal([]byte(signInitData(hs.bot.token, dataCheckString.String())), []byte(hash)) {
		return 0, fmt.Errorf("invalid hash")
	}

	authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("missing auth_date")
	}
	if hs.now().Sub(time.Unix(authDate, 0)) > initDataMaxAge {
		return 0, fmt.Errorf("initData is too old")
	}

	userStr := values.Get("user")
	if userStr == "" {
		return 0, fmt.Errorf("missing user data")
	}
	var userData struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal([]byte(userStr), &userData); err != nil {
		return 0, fmt.Errorf("invalid user data: %w", err)
	}
	if userData.ID == 0 {
		return 0, fmt.Errorf("missing user id")
	}

	return userData.ID, nil
}

// signInitData computes the hex hash Telegram attaches to Mini App initData
func signInitData(token, dataCheckString string) string {
	secretKey := hmac.New(sha256.New, []byte("WebAppData"))
	secretKey.Write([]byte(token))

	h := hmac.New(sha256.New, secretKey.Sum(nil))
	h.Write([]byte(dataCheckString))
	return hex.EncodeToString(h.Sum(nil))
}

// authMiddleware validates Telegram Mini App authentication.
// In polling mode the user id may be passed as ?user_id= instead.
func (hs *HTTPServer) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, `{"error":"Method not allowed"}`, http.StatusMethodNotAllowed)
			return
		}

		if !hs.webhookMode {
			userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
			if err != nil {
				http.Error(w, `{"error":"user_id is required"}`, http.StatusBadRequest)
				return
			}
			hs.bot.logger.Debug("Skipping authentication (polling mode)",
				zap.String("path", r.URL.Path),
				zap.Int64("user_id", userID),
			)
			next(w, r.WithContext(context.WithValue(r.Context(), userIDKey{}, userID)))
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "tma ") {
			hs.bot.logger.Warn("Missing or invalid authorization header")
			http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
			return
		}

		userID, err := hs.validateTelegramInitData(strings.TrimPrefix(authHeader, "tma "))
		if err != nil {
			hs.bot.logger.Warn("Failed to validate initData",
				zap.Error(err),
				zap.String("remote_addr", r.RemoteAddr),
			)
			http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
			return
		}

		hs.bot.logger.Debug("Authenticated request",
			zap.Int64("user_id", userID),
			zap.String("path", r.URL.Path),
		)
		next(w, r.WithContext(context.WithValue(r.Context(), userIDKey{}, userID)))
	}
}

// RankResponse is the body of GET /api/rank
type RankResponse struct {
	UserID      int64  `json:"user_id"`
	XP          int    `json:"xp"`
	Level       int    `json:"level"`
	Title       string `json:"title"`
	NextLevelXP int    `json:"next_level_xp"`
	NextTitle   string `json:"next_title"`
	AFK         bool   `json:"afk"`
}

// handleRank returns the caller's XP standing
func (hs *HTTPServer) handleRank(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(userIDKey{}).(int64)

	user, err := hs.bot.db.GetUser(r.Context(), userID)
	if err != nil {
		hs.bot.logger.Error("Failed to get user", zap.Error(err), zap.Int64("user_id", userID))
		http.Error(w, `{"error":"Failed to fetch user"}`, http.StatusInternalServerError)
		return
	}

	rk := rank.For(user.XP)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(RankResponse{
		UserID:      userID,
		XP:          rk.XP,
		Level:       rk.Level,
		Title:       rk.Title.Name,
		NextLevelXP: rk.NextLevelXP,
		NextTitle:   rk.Next.Name,
		AFK:         user.AFK.Status,
	})
}

// StickerSetResponse is one entry of GET /api/sticker-sets
type StickerSetResponse struct {
	Name      string    `json:"name"`
	Title     string    `json:"title"`
	Format    string    `json:"format"`
	Link      string    `json:"link"`
	CreatedAt time.Time `json:"created_at"`
}

// handleStickerSets lists the sticker sets the caller created through the bot
func (hs *HTTPServer) handleStickerSets(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(userIDKey{}).(int64)

	sets, err := hs.bot.db.ListStickerSets(r.Context(), userID)
	if err != nil {
		hs.bot.logger.Error("Failed to list sticker sets", zap.Error(err), zap.Int64("user_id", userID))
		http.Error(w, `{"error":"Failed to fetch sticker sets"}`, http.StatusInternalServerError)
		return
	}

	out := make([]StickerSetResponse, 0, len(sets))
	for _, set := range sets {
		out = append(out, StickerSetResponse{
			Name:      set.PackName,
			Title:     set.PackTitle,
			Format:    set.Format,
			Link:      "https://t.me/addstickers/" + set.PackName,
			CreatedAt: set.CreatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}
