package document

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

const unknownPlayer = "Unknown Hero"

// Summary is the listing view of a document.
type Summary struct {
	ID             string    `json:"game_id"`
	PlayerName     string    `json:"player_name"`
	PlayerLevel    int64     `json:"player_level"`
	Day            int64     `json:"day"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	Expired        bool      `json:"is_expired"`
	Remaining      string    `json:"remaining_time"`
}

// Summarize builds a Summary for doc, reading display fields straight from
// the encoded bytes.
func Summarize(raw []byte, doc *Document, now time.Time) Summary {
	s := Summary{
		ID:             doc.Metadata.ID,
		PlayerName:     firstString(raw, unknownPlayer, "game_state.player.name", "game_state.player.basic_info.name"),
		PlayerLevel:    firstInt(raw, 1, "game_state.player.level", "game_state.player.basic_info.level"),
		Day:            firstInt(raw, 1, "game_state.day"),
		CreatedAt:      doc.Metadata.CreatedAt,
		LastAccessedAt: doc.Metadata.LastAccessedAt,
		ExpiresAt:      doc.Metadata.ExpiresAt,
		Expired:        doc.Expired(now),
	}
	remaining, _ := doc.Remaining(now)
	s.Remaining = FormatRemaining(remaining)
	return s
}

func firstString(raw []byte, def string, paths ...string) string {
	for _, p := range paths {
		if r := gjson.GetBytes(raw, p); r.Type == gjson.String && r.Str != "" {
			return r.Str
		}
	}
	return def
}

func firstInt(raw []byte, def int64, paths ...string) int64 {
	for _, p := range paths {
		if r := gjson.GetBytes(raw, p); r.Type == gjson.Number {
			return r.Int()
		}
	}
	return def
}

// FormatRemaining renders d as "3d 4h 5m", dropping leading zero units.
// Zero or negative durations render as "expired".
func FormatRemaining(d time.Duration) string {
	if d <= 0 {
		return "expired"
	}
	days := int(d / (24 * time.Hour))
	hours := int(d%(24*time.Hour)) / int(time.Hour)
	minutes := int(d%time.Hour) / int(time.Minute)

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}
