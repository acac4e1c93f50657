package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"grouphelper/internal/models"
)

// EncodePermissions serializes a permission snapshot; nil becomes an empty string
func EncodePermissions(perms *models.ChatPermissions) (string, error) {
	if perms == nil {
		return "", nil
	}
	data, err := json.Marshal(perms)
	if err != nil {
		return "", fmt.Errorf("failed to encode permissions: %w", err)
	}
	return string(data), nil
}

// DecodePermissions is the inverse of EncodePermissions
func DecodePermissions(raw string) (*models.ChatPermissions, error) {
	if raw == "" {
		return nil, nil
	}
	var perms models.ChatPermissions
	if err := json.Unmarshal([]byte(raw), &perms); err != nil {
		return nil, fmt.Errorf("failed to decode permissions: %w", err)
	}
	return &perms, nil
}

// UnixTime converts a stored unix timestamp, keeping 0 as the zero time
func UnixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}

// TimeUnix converts a time for storage, keeping the zero time as 0
func TimeUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

// MessageIDs converts stored message ids
func MessageIDs(ids []int64) []int {
	if len(ids) == 0 {
		return nil
	}
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out
}

// StoredMessageIDs converts message ids for storage
func StoredMessageIDs(ids []int) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
