package protocol

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRoundTrip(t *testing.T) {
	layout := DefaultLayout()
	want := SampleReport()

	got, err := Decode(Encode(want, layout), layout)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	assert.Equal(t, ResultWin, got.Result())
	assert.Equal(t, GameTypeRanked2v2, got.GameType())
	assert.True(t, got.IsAutoMatch())
	assert.Equal(t, want.Map, got.MapPath())
	assert.Equal(t, want.Replay, got.ReplayGUID())
}

func TestDecodePlayersAndPartition(t *testing.T) {
	layout := DefaultLayout()

	for n := 0; n <= layout.MaxPlayers; n += 3 {
		report := &MatchReport{PlayerCount: uint16(n), Players: []PlayerRecord{}}
		for i := 0; i < n; i++ {
			report.Players = append(report.Players, PlayerRecord{
				FullID:    "player",
				PersonaID: 100 + i,
				Faction:   i % 3,
				Team:      i % 2,
				IsWinner:  i%2 == 0,
			})
		}

		got, err := Decode(Encode(report, layout), layout)
		require.NoError(t, err)
		require.Len(t, got.Players, n)

		winners, losers := got.WinnerIDs(), got.LoserIDs()
		assert.Len(t, append(winners, losers...), n)
		for i, p := range got.Players {
			assert.Equal(t, 100+i, p.PersonaID, "stream order is preserved")
			if p.IsWinner {
				assert.Contains(t, winners, p.PersonaID)
				assert.NotContains(t, losers, p.PersonaID)
			} else {
				assert.Contains(t, losers, p.PersonaID)
			}
		}
	}
}

func TestDecodeTooShort(t *testing.T) {
	for n := 0; n < MinHeaderSize; n++ {
		report, err := Decode(make([]byte, n), DefaultLayout())
		assert.ErrorIs(t, err, ErrTruncatedReport)
		assert.Nil(t, report)

		summary, err := DecodeSummary(make([]byte, n))
		assert.ErrorIs(t, err, ErrTruncatedReport)
		assert.Nil(t, summary)
	}
}

func TestDecodePartialHeader(t *testing.T) {
	data := Encode(SampleReport(), DefaultLayout())[:16]

	report, err := Decode(data, DefaultLayout())
	assert.ErrorIs(t, err, ErrTruncatedReport)
	require.NotNil(t, report)
	assert.Equal(t, uint32(1260), report.Duration)
	assert.Equal(t, GameTypeRanked2v2, report.GameType())
	assert.Empty(t, report.Players)
}

func TestDecodeTruncatedPlayers(t *testing.T) {
	layout := DefaultLayout()
	data := Encode(SampleReport(), layout)
	cut := layout.HeaderSize + 2*layout.PlayerRecordSize + 5

	report, err := Decode(data[:cut], layout)
	assert.ErrorIs(t, err, ErrTruncatedReport)
	require.NotNil(t, report)
	assert.Len(t, report.Players, 2)
	assert.Equal(t, 1001, report.Players[0].PersonaID)
}

func TestDecodeTruncatedStrings(t *testing.T) {
	layout := DefaultLayout()
	data := Encode(SampleReport(), layout)

	report, err := Decode(data[:len(data)-3], layout)
	assert.ErrorIs(t, err, ErrTruncatedReport)
	require.NotNil(t, report)
	assert.Len(t, report.Players, 4)
	assert.NotEmpty(t, report.MapPath())
	assert.Empty(t, report.ReplayGUID())
}

func TestDecodeTooManyPlayers(t *testing.T) {
	layout := DefaultLayout()
	data := Encode(SampleReport(), layout)
	binary.LittleEndian.PutUint16(data[layout.PlayerCountOffset:], uint16(layout.MaxPlayers+1))

	report, err := Decode(data, layout)
	assert.ErrorIs(t, err, ErrMalformedReport)
	assert.NotNil(t, report)
}

func TestDecodeIgnoresTrailingBytes(t *testing.T) {
	layout := DefaultLayout()
	data := append(Encode(SampleReport(), layout), 0xde, 0xad, 0xbe, 0xef)

	report, err := Decode(data, layout)
	require.NoError(t, err)
	assert.Equal(t, SampleReport(), report)
}

func TestSummaryAgreesWithDecode(t *testing.T) {
	layout := DefaultLayout()
	cases := []struct {
		status   uint32
		gameType uint32
		result   Result
	}{
		{0x10, 0x21, ResultWin},
		{0x01, 0x03, ResultLoss},
		{0xff, 0x7f, ResultDisconnect},
	}

	for _, tc := range cases {
		r := SampleReport()
		r.GameStatus = tc.status
		r.RawGameType = tc.gameType
		data := Encode(r, layout)

		full, err := Decode(data, layout)
		require.NoError(t, err)
		summary, err := DecodeSummary(data)
		require.NoError(t, err)

		assert.Equal(t, tc.result, summary.Result)
		assert.Equal(t, full.Result(), summary.Result)
		assert.Equal(t, full.GameType(), summary.Type())
		assert.Equal(t, full.Summary(), summary)
	}
}

func TestSummaryOnly(t *testing.T) {
	data := make([]byte, MinHeaderSize)
	binary.LittleEndian.PutUint32(data[0:], 3)
	binary.LittleEndian.PutUint32(data[4:], 600)
	binary.LittleEndian.PutUint32(data[8:], 0x14)

	summary, err := DecodeSummary(data)
	require.NoError(t, err)
	assert.Equal(t, ResultDisconnect, summary.Result)
	assert.Equal(t, uint32(600), summary.Duration)
	assert.Equal(t, uint32(4), summary.GameType)
	assert.Equal(t, GameTypeClan2v2, summary.Type())
}

func TestStringEncodings(t *testing.T) {
	for _, enc := range []StringEncoding{StringU8Prefix, StringU16Prefix, StringNulTerminated} {
		t.Run(string(enc), func(t *testing.T) {
			layout := DefaultLayout()
			layout.StringEncoding = enc

			got, err := Decode(Encode(SampleReport(), layout), layout)
			require.NoError(t, err)
			assert.Equal(t, SampleReport().Map, got.MapPath())
			assert.Equal(t, SampleReport().Replay, got.ReplayGUID())
		})
	}
}

func TestLookupGameType(t *testing.T) {
	assert.Equal(t, GameTypeUnranked, LookupGameType(0))
	assert.Equal(t, GameTypeRanked1v1, LookupGameType(0x31))
	assert.Equal(t, GameTypeClan1v1, LookupGameType(3))
	assert.Equal(t, GameTypeUnknown, LookupGameType(9))
}

func TestLayoutValidate(t *testing.T) {
	require.NoError(t, DefaultLayout().Validate())

	bad := DefaultLayout()
	bad.HeaderSize = 8
	assert.Error(t, bad.Validate())

	bad = DefaultLayout()
	bad.TeamCountOffset = 23
	assert.Error(t, bad.Validate())

	bad = DefaultLayout()
	bad.FullIDSize = 40
	assert.Error(t, bad.Validate())

	bad = DefaultLayout()
	bad.StringEncoding = "utf16"
	assert.Error(t, bad.Validate())

	bad = DefaultLayout()
	bad.MaxPlayers = 0
	assert.Error(t, bad.Validate())
}
