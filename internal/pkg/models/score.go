package models

// DetailedScore carries the live situation of a match. Exactly one of the
// per-sport shapes is expected to be set; which one depends on the sport.
// A score with no shape set means the feed gave us a live flag but no
// usable detail, and the models treat it as "no opinion".
type DetailedScore struct {
	Tennis     *TennisScore     `json:"tennis,omitempty"`
	Football   *FootballScore   `json:"football,omitempty"`
	Basketball *BasketballScore `json:"basketball,omitempty"`
	Esports    *EsportsScore    `json:"esports,omitempty"`
}

// IsEmpty reports whether no sport-specific shape is present.
func (s DetailedScore) IsEmpty() bool {
	return s.Tennis == nil && s.Football == nil && s.Basketball == nil && s.Esports == nil
}

// TennisScore is sets/games/points for the pair (side 1 = TeamA of the key).
type TennisScore struct {
	Sets1   int `json:"sets1"`
	Sets2   int `json:"sets2"`
	Games1  int `json:"games1"`
	Games2  int `json:"games2"`
	Points1 int `json:"points1"` // 0,15,30,40; 50 = advantage
	Points2 int `json:"points2"`
	BestOf  int `json:"best_of"` // 3 or 5, 0 = unknown (assume 3)
	Serving int `json:"serving"` // 1, 2 or 0 = unknown
}

// FootballScore is goals plus match clock.
type FootballScore struct {
	Goals1    int `json:"goals1"`
	Goals2    int `json:"goals2"`
	Minute    int `json:"minute"`
	Period    int `json:"period"` // 1, 2; 3+ = extra time
	AddedTime int `json:"added_time,omitempty"`
}

// BasketballScore is points plus quarter clock.
type BasketballScore struct {
	Points1     int `json:"points1"`
	Points2     int `json:"points2"`
	Quarter     int `json:"quarter"` // 1..4, 5+ = overtime
	SecondsLeft int `json:"seconds_left"`
}

// EsportsScore is map score plus intra-map round/score state.
type EsportsScore struct {
	Maps1       int `json:"maps1"`
	Maps2       int `json:"maps2"`
	BestOf      int `json:"best_of"` // series length, 0 = unknown (assume 3)
	Rounds1     int `json:"rounds1"`
	Rounds2     int `json:"rounds2"`
	RoundTarget int `json:"round_target"` // rounds needed to take the map (13 for cs2), 0 = unknown
}
