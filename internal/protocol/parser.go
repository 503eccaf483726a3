package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ReportParser decodes match reports with a fixed layout.
type ReportParser struct {
	layout Layout
	logger zerolog.Logger
}

// NewReportParser creates a parser for the given layout.
func NewReportParser(layout Layout) *ReportParser {
	return &ReportParser{
		layout: layout,
		logger: log.With().Str("component", "report_parser").Logger(),
	}
}

// Layout returns the parser's layout.
func (p *ReportParser) Layout() Layout {
	return p.layout
}

// Decode decodes data with layout. See ReportParser.Decode.
func Decode(data []byte, layout Layout) (*MatchReport, error) {
	return NewReportParser(layout).Decode(data)
}

// Decode parses a full match report.
//
// Reports shorter than MinHeaderSize yield a nil report. Any later
// truncation returns the fields decoded so far together with an error
// wrapping ErrTruncatedReport. Bytes after the last string are ignored.
func (p *ReportParser) Decode(data []byte) (*MatchReport, error) {
	l := p.layout
	if len(data) < MinHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrTruncatedReport, len(data), MinHeaderSize)
	}

	report := &MatchReport{Players: []PlayerRecord{}}
	if fits(data, l.GameStatusOffset, 4) {
		report.GameStatus = binary.LittleEndian.Uint32(data[l.GameStatusOffset:])
	}
	if fits(data, l.DurationOffset, 4) {
		report.Duration = binary.LittleEndian.Uint32(data[l.DurationOffset:])
	}
	if fits(data, l.GameTypeOffset, 4) {
		report.RawGameType = binary.LittleEndian.Uint32(data[l.GameTypeOffset:])
	}

	if len(data) < l.HeaderSize {
		return report, fmt.Errorf("%w: header needs %d bytes, got %d", ErrTruncatedReport, l.HeaderSize, len(data))
	}

	report.ProtocolVersion = binary.LittleEndian.Uint16(data[l.ProtocolVersionOffset:])
	report.DeveloperVersion = binary.LittleEndian.Uint16(data[l.DeveloperVersionOffset:])
	report.Flags = binary.LittleEndian.Uint32(data[l.FlagsOffset:])
	report.PlayerCount = binary.LittleEndian.Uint16(data[l.PlayerCountOffset:])
	report.TeamCount = binary.LittleEndian.Uint16(data[l.TeamCountOffset:])

	if int(report.PlayerCount) > l.MaxPlayers {
		return report, fmt.Errorf("%w: player count %d exceeds limit of %d", ErrMalformedReport, report.PlayerCount, l.MaxPlayers)
	}

	offset := l.HeaderSize
	for i := 0; i < int(report.PlayerCount); i++ {
		if offset+l.PlayerRecordSize > len(data) {
			return report, fmt.Errorf("%w: player %d of %d", ErrTruncatedReport, i+1, report.PlayerCount)
		}
		report.Players = append(report.Players, p.parsePlayer(data[offset:offset+l.PlayerRecordSize]))
		offset += l.PlayerRecordSize
	}

	reader := bytes.NewReader(data[offset:])

	mapPath, err := readString(reader, l.StringEncoding)
	if err != nil {
		return report, fmt.Errorf("%w: failed to parse map path: %v", ErrTruncatedReport, err)
	}
	report.Map = mapPath

	replay, err := readString(reader, l.StringEncoding)
	if err != nil {
		return report, fmt.Errorf("%w: failed to parse replay guid: %v", ErrTruncatedReport, err)
	}
	report.Replay = replay

	p.logger.Debug().
		Int("players", len(report.Players)).
		Str("map", report.Map).
		Str("game_type", string(report.GameType())).
		Msg("match report decoded")

	return report, nil
}

func (p *ReportParser) parsePlayer(rec []byte) PlayerRecord {
	l := p.layout
	flags := binary.LittleEndian.Uint16(rec[l.PlayerFlagsOffset:])
	return PlayerRecord{
		PersonaID: int(binary.LittleEndian.Uint32(rec[l.PersonaIDOffset:])),
		Faction:   int(binary.LittleEndian.Uint32(rec[l.FactionOffset:])),
		Team:      int(binary.LittleEndian.Uint16(rec[l.TeamOffset:])),
		IsWinner:  flags&PlayerFlagWinner != 0,
		FullID:    string(bytes.TrimRight(rec[l.FullIDOffset:l.FullIDOffset+l.FullIDSize], "\x00")),
	}
}

// DecodeSummary reads result, duration and gametype from the first twelve
// bytes.
func DecodeSummary(data []byte) (*Summary, error) {
	if len(data) < MinHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrTruncatedReport, len(data), MinHeaderSize)
	}

	var header struct {
		Status   uint32
		Duration uint32
		GameType uint32
	}
	if err := binary.Read(bytes.NewReader(data[:MinHeaderSize]), binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to parse report summary: %w", err)
	}

	return &Summary{
		Result:   Result(header.Status & resultMask),
		Duration: header.Duration,
		GameType: header.GameType & gameTypeMask,
	}, nil
}

func readString(r *bytes.Reader, enc StringEncoding) (string, error) {
	var length int
	switch enc {
	case StringU8Prefix:
		var n uint8
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return "", err
		}
		length = int(n)
	case StringU16Prefix:
		var n uint16
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return "", err
		}
		length = int(n)
	case StringNulTerminated:
		return readNullString(r)
	default:
		return "", fmt.Errorf("unknown string encoding %q", enc)
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readNullString(r *bytes.Reader) (string, error) {
	var buf bytes.Buffer
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		if b == 0 {
			return buf.String(), nil
		}
		buf.WriteByte(b)
	}
}

func fits(data []byte, offset, width int) bool {
	return offset >= 0 && offset+width <= len(data)
}
