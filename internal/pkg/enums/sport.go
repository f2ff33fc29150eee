package enums

// Sport represents supported sports types
type Sport string

const (
	Football   Sport = "football"
	Basketball Sport = "basketball"
	Tennis     Sport = "tennis"
	Hockey     Sport = "hockey"
	Volleyball Sport = "volleyball"
	// Esports disciplines (map-based scoring)
	Dota2    Sport = "dota2"
	CS       Sport = "cs"
	Valorant Sport = "valorant"
	LOL      Sport = "lol"
	Unknown  Sport = "unknown"
)

// sportAliases maps feed-specific sport spellings to canonical sports.
// Feeds disagree a lot here ("ice-hockey" vs "hockey", "league-of-legends" vs "lol").
var sportAliases = map[string]Sport{
	"football":          Football,
	"soccer":            Football,
	"futbol":            Football,
	"basketball":        Basketball,
	"basket":            Basketball,
	"tennis":            Tennis,
	"hockey":            Hockey,
	"ice-hockey":        Hockey,
	"ice hockey":        Hockey,
	"icehockey":         Hockey,
	"volleyball":        Volleyball,
	"dota2":             Dota2,
	"dota 2":            Dota2,
	"dota":              Dota2,
	"cs":                CS,
	"cs2":               CS,
	"csgo":              CS,
	"cs:go":             CS,
	"counter-strike":    CS,
	"counter strike":    CS,
	"valorant":          Valorant,
	"lol":               LOL,
	"league of legends": LOL,
	"league-of-legends": LOL,
}

// IsValid checks if sport is supported
func (s Sport) IsValid() bool {
	switch s {
	case Football, Basketball, Tennis, Hockey, Volleyball, Dota2, CS, Valorant, LOL:
		return true
	default:
		return false
	}
}

// IsEsports reports whether the sport uses map-based scoring.
func (s Sport) IsEsports() bool {
	switch s {
	case Dota2, CS, Valorant, LOL:
		return true
	default:
		return false
	}
}

// String returns string representation
func (s Sport) String() string {
	return string(s)
}

// GetAllSports returns all supported sports
func GetAllSports() []Sport {
	return []Sport{Football, Basketball, Tennis, Hockey, Volleyball, Dota2, CS, Valorant, LOL}
}

// ParseSport resolves a raw sport string through the alias table.
// Unknown sports are passed through as-is (lowercased) rather than dropped,
// so downstream can still group observations for a sport we have no model for.
func ParseSport(raw string) (Sport, bool) {
	key := normalizeAliasKey(raw)
	if key == "" {
		return Unknown, false
	}
	if s, ok := sportAliases[key]; ok {
		return s, true
	}
	return Sport(key), false
}

func normalizeAliasKey(raw string) string {
	out := make([]rune, 0, len(raw))
	space := false
	for _, r := range raw {
		switch {
		case r >= 'A' && r <= 'Z':
			r += 'a' - 'A'
			fallthrough
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == ':':
			if space && len(out) > 0 {
				out = append(out, ' ')
			}
			space = false
			out = append(out, r)
		default:
			space = true
		}
	}
	return string(out)
}
