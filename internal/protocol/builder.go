package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// ReportBuilder constructs report bytes. It is used for fixtures and the
// sample command; the server itself only decodes.
type ReportBuilder struct {
	buf bytes.Buffer
}

// NewReportBuilder creates a new ReportBuilder.
func NewReportBuilder() *ReportBuilder {
	return &ReportBuilder{}
}

func (b *ReportBuilder) Reset() {
	b.buf.Reset()
}

func (b *ReportBuilder) WriteUint16(v uint16) *ReportBuilder {
	binary.Write(&b.buf, binary.LittleEndian, v)
	return b
}

func (b *ReportBuilder) WriteUint32(v uint32) *ReportBuilder {
	binary.Write(&b.buf, binary.LittleEndian, v)
	return b
}

// WriteString writes a string with the given length convention. Prefixed
// strings longer than the prefix can express are cut.
func (b *ReportBuilder) WriteString(s string, enc StringEncoding) *ReportBuilder {
	data := []byte(s)
	switch enc {
	case StringU8Prefix:
		if len(data) > 0xFF {
			data = data[:0xFF]
		}
		b.buf.WriteByte(byte(len(data)))
		b.buf.Write(data)
	case StringNulTerminated:
		b.buf.Write(data)
		b.buf.WriteByte(0)
	default:
		if len(data) > 0xFFFF {
			data = data[:0xFFFF]
		}
		b.WriteUint16(uint16(len(data)))
		b.buf.Write(data)
	}
	return b
}

// WriteBytes writes raw bytes.
func (b *ReportBuilder) WriteBytes(data []byte) *ReportBuilder {
	b.buf.Write(data)
	return b
}

// Build returns the constructed bytes.
func (b *ReportBuilder) Build() []byte {
	return b.buf.Bytes()
}

func (b *ReportBuilder) Len() int {
	return b.buf.Len()
}

// String returns a hex dump of the current report for debugging.
func (b *ReportBuilder) String() string {
	data := b.buf.Bytes()
	return fmt.Sprintf("ReportBuilder[%d bytes]: %x", len(data), data)
}

// Encode serializes report with layout. PlayerCount is taken from the
// Players slice.
func Encode(report *MatchReport, layout Layout) []byte {
	header := make([]byte, layout.HeaderSize)
	binary.LittleEndian.PutUint32(header[layout.GameStatusOffset:], report.GameStatus)
	binary.LittleEndian.PutUint32(header[layout.DurationOffset:], report.Duration)
	binary.LittleEndian.PutUint32(header[layout.GameTypeOffset:], report.RawGameType)
	binary.LittleEndian.PutUint16(header[layout.ProtocolVersionOffset:], report.ProtocolVersion)
	binary.LittleEndian.PutUint16(header[layout.DeveloperVersionOffset:], report.DeveloperVersion)
	binary.LittleEndian.PutUint32(header[layout.FlagsOffset:], report.Flags)
	binary.LittleEndian.PutUint16(header[layout.PlayerCountOffset:], uint16(len(report.Players)))
	binary.LittleEndian.PutUint16(header[layout.TeamCountOffset:], report.TeamCount)

	b := NewReportBuilder()
	b.WriteBytes(header)

	for _, p := range report.Players {
		rec := make([]byte, layout.PlayerRecordSize)
		binary.LittleEndian.PutUint32(rec[layout.PersonaIDOffset:], uint32(p.PersonaID))
		binary.LittleEndian.PutUint32(rec[layout.FactionOffset:], uint32(p.Faction))
		binary.LittleEndian.PutUint16(rec[layout.TeamOffset:], uint16(p.Team))
		var flags uint16
		if p.IsWinner {
			flags |= PlayerFlagWinner
		}
		binary.LittleEndian.PutUint16(rec[layout.PlayerFlagsOffset:], flags)
		copy(rec[layout.FullIDOffset:layout.FullIDOffset+layout.FullIDSize], p.FullID)
		b.WriteBytes(rec)
	}

	b.WriteString(report.Map, layout.StringEncoding)
	b.WriteString(report.Replay, layout.StringEncoding)
	return b.Build()
}

// SampleReport returns a four player two-versus-two report.
func SampleReport() *MatchReport {
	return &MatchReport{
		ProtocolVersion:  3,
		DeveloperVersion: 1,
		GameStatus:       uint32(ResultWin),
		Duration:         1260,
		RawGameType:      0x20 | 2,
		Flags:            FlagAutoMatch,
		PlayerCount:      4,
		TeamCount:        2,
		Map:              "data/maps/official/map_mp_4_feasel3/map_mp_4_feasel3.map",
		Replay:           "9f6c1a2e-4b7d-4e1f-8a3c-2d5b6e7f8091",
		Players: []PlayerRecord{
			{FullID: "Commander01", PersonaID: 1001, Faction: 1, Team: 0, IsWinner: true},
			{FullID: "Commander02", PersonaID: 1002, Faction: 2, Team: 1, IsWinner: false},
			{FullID: "Commander03", PersonaID: 1003, Faction: 3, Team: 0, IsWinner: true},
			{FullID: "Commander04", PersonaID: 1004, Faction: 1, Team: 1, IsWinner: false},
		},
	}
}
