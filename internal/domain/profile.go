package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Profile maps an identity to display metadata. Profiles are upserted
// independently of any arena and carry no escrow significance.
type Profile struct {
	Address     common.Address `json:"address"`
	DisplayName string         `json:"display_name"`
	AvatarURL   string         `json:"avatar_url"`
	Bio         string         `json:"bio"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// MaxRoastLength bounds roast text at the API boundary. This is a
// presentation-layer limit, not a ledger invariant.
const MaxRoastLength = 500

// Roast is the free-text/media content an author attaches to an arena.
// One submission per (arena, author).
type Roast struct {
	ArenaID   int64          `json:"arena_id"`
	Author    common.Address `json:"author"`
	Text      string         `json:"text"`
	MediaURL  string         `json:"media_url,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
