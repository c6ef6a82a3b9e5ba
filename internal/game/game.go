package game

import (
	"hash/fnv"
	"strings"
	"time"
	"unicode"
)

// State is a player's preference for a game in their collection.
type State int

const (
	StateIncluded State = 0
	StateStarred  State = 1
	StateExcluded State = 2
)

func (s State) String() string {
	switch s {
	case StateStarred:
		return "starred"
	case StateExcluded:
		return "excluded"
	default:
		return "included"
	}
}

// Tier is the coarse complexity bucket derived from BGG weight.
type Tier int

const (
	TierLight Tier = iota
	TierMedium
	TierHeavy
	TierUnrated
)

// Tiers lists tiers in the order polls are emitted.
var Tiers = []Tier{TierLight, TierMedium, TierHeavy, TierUnrated}

func TierOf(weight float64) Tier {
	switch {
	case weight <= 0:
		return TierUnrated
	case weight < 2.0:
		return TierLight
	case weight < 3.0:
		return TierMedium
	default:
		return TierHeavy
	}
}

func (t Tier) String() string {
	switch t {
	case TierLight:
		return "Light"
	case TierMedium:
		return "Medium"
	case TierHeavy:
		return "Heavy"
	default:
		return "Unrated"
	}
}

type Game struct {
	ID             int64 // BGG id, negative for manually added games
	Name           string
	MinPlayers     int
	MaxPlayers     int
	PlayingTime    int
	MinPlayingTime int
	MaxPlayingTime int
	Weight         float64
	Thumbnail      string
}

// Supports reports whether the game can be played by the given number of players.
func (g Game) Supports(players int) bool {
	return players >= g.MinPlayers && players <= g.MaxPlayers
}

func (g Game) Tier() Tier {
	return TierOf(g.Weight)
}

func (g Game) IsManual() bool {
	return g.ID < 0
}

type User struct {
	TelegramID   int64
	TelegramName string
	BGGUsername  string
	IsGuest      bool
	AddedBy      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Entry is a game in a user's collection.
type Entry struct {
	UserID int64
	Game   Game
	State  State
	IsNew  bool
	// EffectiveMax is the player count the user's expansions reach, 0 when
	// they own none that adds players.
	EffectiveMax int
}

// MaxPlayers is the most players this copy of the game seats.
func (e Entry) MaxPlayers() int {
	return max(e.Game.MaxPlayers, e.EffectiveMax)
}

func (e Entry) Excluded() bool { return e.State == StateExcluded }
func (e Entry) Starred() bool  { return e.State == StateStarred }

// NormalizeName lowercases and strips punctuation so that "Ticket to Ride:  Europe"
// and "ticket to ride europe" compare equal.
func NormalizeName(name string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			space = true
		}
	}
	return b.String()
}

// ManualGameID derives a stable negative id for a game that has no BGG record.
func ManualGameID(name string) int64 {
	return negativeHash(NormalizeName(name))
}

func negativeHash(parts ...string) int64 {
	h := fnv.New64a()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return -int64(h.Sum64()>>1) - 1
}

// GuestID derives a stable negative user id for a guest scoped to a lobby.
func GuestID(lobbyID, name string) int64 {
	return negativeHash("guest", lobbyID, NormalizeName(name))
}
