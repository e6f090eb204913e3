package models

import "time"

// PresenceRecord is the denormalized view of one collaboration subscriber,
// used for presence broadcasts and snapshots. Never persisted.
type PresenceRecord struct {
	UserID      string         `json:"user_id"`
	UserInfo    map[string]any `json:"user_info"`
	ConnectedAt time.Time      `json:"connected_at"`
	Editing     *string        `json:"editing"`
	LastSeen    time.Time      `json:"last_seen"`
}
