// Package protocol implements the binary match report codec. Reports are
// little-endian and positional: a fixed header, a run of fixed-size player
// records, then length-prefixed strings. Field placement comes from a
// Layout so that new client builds can be supported through configuration.
package protocol

import "errors"

// MinHeaderSize is the smallest report the summary decoder accepts.
const MinHeaderSize = 12

var (
	// ErrTruncatedReport is returned when the report ends before a required
	// field.
	ErrTruncatedReport = errors.New("match report truncated")
	// ErrMalformedReport is returned when a decoded value is out of bounds.
	ErrMalformedReport = errors.New("malformed match report")
)

// Result is the outcome carried in the low two bits of the game status.
type Result uint8

const (
	ResultWin        Result = 0
	ResultLoss       Result = 1
	ResultUnknown    Result = 2
	ResultDisconnect Result = 3
)

const resultMask = 0x3

func (r Result) String() string {
	switch r {
	case ResultWin:
		return "win"
	case ResultLoss:
		return "loss"
	case ResultDisconnect:
		return "disconnect"
	default:
		return "unknown"
	}
}

// GameType is the coarse match category.
type GameType string

const (
	GameTypeUnranked  GameType = "unranked"
	GameTypeRanked1v1 GameType = "ranked_1v1"
	GameTypeRanked2v2 GameType = "ranked_2v2"
	GameTypeClan1v1   GameType = "clan_1v1"
	GameTypeClan2v2   GameType = "clan_2v2"
	GameTypeUnknown   GameType = "unknown"
)

const gameTypeMask = 0xF

var gameTypes = map[uint32]GameType{
	0: GameTypeUnranked,
	1: GameTypeRanked1v1,
	2: GameTypeRanked2v2,
	3: GameTypeClan1v1,
	4: GameTypeClan2v2,
}

// LookupGameType maps a raw gametype word to its category.
func LookupGameType(raw uint32) GameType {
	if gt, ok := gameTypes[raw&gameTypeMask]; ok {
		return gt
	}
	return GameTypeUnknown
}

// Header flag bits.
const (
	FlagAutoMatch uint32 = 1 << 0
)

// Player flag bits.
const (
	PlayerFlagWinner uint16 = 1 << 0
)
