package protocol

// PlayerRecord is one player entry of a match report.
type PlayerRecord struct {
	FullID    string `json:"full_id"`
	PersonaID int    `json:"persona_id"`
	Faction   int    `json:"faction"`
	Team      int    `json:"team"`
	IsWinner  bool   `json:"is_winner"`
}

// MatchReport is a decoded match result.
type MatchReport struct {
	ProtocolVersion  uint16         `json:"protocol_version"`
	DeveloperVersion uint16         `json:"developer_version"`
	GameStatus       uint32         `json:"game_status"`
	Duration         uint32         `json:"duration"`
	RawGameType      uint32         `json:"raw_game_type"`
	Flags            uint32         `json:"flags"`
	PlayerCount      uint16         `json:"player_count"`
	TeamCount        uint16         `json:"team_count"`
	Map              string         `json:"map_path"`
	Replay           string         `json:"replay_guid"`
	Players          []PlayerRecord `json:"players"`
}

// Result returns the match outcome from the game status word.
func (r *MatchReport) Result() Result {
	return Result(r.GameStatus & resultMask)
}

func (r *MatchReport) GameType() GameType {
	return LookupGameType(r.RawGameType)
}

func (r *MatchReport) IsAutoMatch() bool {
	return r.Flags&FlagAutoMatch != 0
}

func (r *MatchReport) MapPath() string {
	return r.Map
}

func (r *MatchReport) ReplayGUID() string {
	return r.Replay
}

// WinnerIDs returns the persona ids of winning players in stream order.
func (r *MatchReport) WinnerIDs() []int {
	return r.personaIDs(true)
}

// LoserIDs returns the persona ids of the remaining players in stream order.
func (r *MatchReport) LoserIDs() []int {
	return r.personaIDs(false)
}

func (r *MatchReport) personaIDs(winners bool) []int {
	ids := make([]int, 0, len(r.Players))
	for _, p := range r.Players {
		if p.IsWinner == winners {
			ids = append(ids, p.PersonaID)
		}
	}
	return ids
}

// Summary returns the coarse fields in the same form DecodeSummary does.
func (r *MatchReport) Summary() *Summary {
	return &Summary{
		Result:   r.Result(),
		Duration: r.Duration,
		GameType: r.RawGameType & gameTypeMask,
	}
}

// Summary holds the fields read from the first twelve bytes of a report.
type Summary struct {
	Result   Result `json:"result"`
	Duration uint32 `json:"duration"`
	// GameType is the low nibble of the raw gametype word.
	GameType uint32 `json:"game_type"`
}

// Type maps the summary's gametype nibble to its category.
func (s *Summary) Type() GameType {
	return LookupGameType(s.GameType)
}
