package protocol

import "fmt"

// StringEncoding selects how map path and replay GUID are length-delimited.
type StringEncoding string

const (
	StringU8Prefix      StringEncoding = "u8"
	StringU16Prefix     StringEncoding = "u16"
	StringNulTerminated StringEncoding = "nul"
)

// Layout describes where each field of a report lives. Offsets are in bytes;
// field widths are fixed: u32 for game status, duration, gametype, flags,
// persona id and faction; u16 for versions, counts, team and player flags.
type Layout struct {
	GameStatusOffset       int `json:"game_status_offset"`
	DurationOffset         int `json:"duration_offset"`
	GameTypeOffset         int `json:"game_type_offset"`
	ProtocolVersionOffset  int `json:"protocol_version_offset"`
	DeveloperVersionOffset int `json:"developer_version_offset"`
	FlagsOffset            int `json:"flags_offset"`
	PlayerCountOffset      int `json:"player_count_offset"`
	TeamCountOffset        int `json:"team_count_offset"`
	HeaderSize             int `json:"header_size"`

	PlayerRecordSize  int `json:"player_record_size"`
	PersonaIDOffset   int `json:"persona_id_offset"`
	FactionOffset     int `json:"faction_offset"`
	TeamOffset        int `json:"team_offset"`
	PlayerFlagsOffset int `json:"player_flags_offset"`
	FullIDOffset      int `json:"full_id_offset"`
	FullIDSize        int `json:"full_id_size"`

	StringEncoding StringEncoding `json:"string_encoding"`
	MaxPlayers     int            `json:"max_players"`
}

// DefaultLayout returns the layout used by the retail client.
func DefaultLayout() Layout {
	return Layout{
		GameStatusOffset:       0,
		DurationOffset:         4,
		GameTypeOffset:         8,
		ProtocolVersionOffset:  12,
		DeveloperVersionOffset: 14,
		FlagsOffset:            16,
		PlayerCountOffset:      20,
		TeamCountOffset:        22,
		HeaderSize:             24,

		PlayerRecordSize:  32,
		PersonaIDOffset:   0,
		FactionOffset:     4,
		TeamOffset:        8,
		PlayerFlagsOffset: 10,
		FullIDOffset:      12,
		FullIDSize:        20,

		StringEncoding: StringU16Prefix,
		MaxPlayers:     16,
	}
}

// Validate checks that every field fits inside its section.
func (l Layout) Validate() error {
	if l.HeaderSize < MinHeaderSize {
		return fmt.Errorf("header_size %d is below the minimum of %d", l.HeaderSize, MinHeaderSize)
	}

	header := []struct {
		name   string
		offset int
		width  int
	}{
		{"game_status_offset", l.GameStatusOffset, 4},
		{"duration_offset", l.DurationOffset, 4},
		{"game_type_offset", l.GameTypeOffset, 4},
		{"protocol_version_offset", l.ProtocolVersionOffset, 2},
		{"developer_version_offset", l.DeveloperVersionOffset, 2},
		{"flags_offset", l.FlagsOffset, 4},
		{"player_count_offset", l.PlayerCountOffset, 2},
		{"team_count_offset", l.TeamCountOffset, 2},
	}
	for _, f := range header {
		if f.offset < 0 || f.offset+f.width > l.HeaderSize {
			return fmt.Errorf("%s %d does not fit a %d byte header", f.name, f.offset, l.HeaderSize)
		}
	}

	if l.PlayerRecordSize <= 0 {
		return fmt.Errorf("player_record_size must be positive")
	}
	if l.FullIDSize < 0 {
		return fmt.Errorf("full_id_size must not be negative")
	}
	record := []struct {
		name   string
		offset int
		width  int
	}{
		{"persona_id_offset", l.PersonaIDOffset, 4},
		{"faction_offset", l.FactionOffset, 4},
		{"team_offset", l.TeamOffset, 2},
		{"player_flags_offset", l.PlayerFlagsOffset, 2},
		{"full_id_offset", l.FullIDOffset, l.FullIDSize},
	}
	for _, f := range record {
		if f.offset < 0 || f.offset+f.width > l.PlayerRecordSize {
			return fmt.Errorf("%s %d does not fit a %d byte player record", f.name, f.offset, l.PlayerRecordSize)
		}
	}

	switch l.StringEncoding {
	case StringU8Prefix, StringU16Prefix, StringNulTerminated:
	default:
		return fmt.Errorf("unknown string_encoding %q", l.StringEncoding)
	}

	if l.MaxPlayers <= 0 {
		return fmt.Errorf("max_players must be positive")
	}
	return nil
}
