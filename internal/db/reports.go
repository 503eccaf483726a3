package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/energizer-project/matchgate/internal/protocol"
)

// ReportRecord is a stored match report. One row exists per reporting
// player of a session; resubmission replaces it.
type ReportRecord struct {
	ID        int64  `json:"id"`
	CSID      string `json:"csid"`
	CCID      string `json:"ccid"`
	ProfileID int    `json:"profile_id"`
	Raw       []byte `json:"-"`

	Result           string                  `json:"result"`
	Duration         uint32                  `json:"duration"`
	GameType         string                  `json:"game_type"`
	RawGameType      uint32                  `json:"raw_game_type"`
	ProtocolVersion  uint16                  `json:"protocol_version"`
	DeveloperVersion uint16                  `json:"developer_version"`
	GameStatus       uint32                  `json:"game_status"`
	Flags            uint32                  `json:"flags"`
	PlayerCount      uint16                  `json:"player_count"`
	TeamCount        uint16                  `json:"team_count"`
	AutoMatch        bool                    `json:"is_auto_match"`
	MapPath          string                  `json:"map_path"`
	ReplayGUID       string                  `json:"replay_guid"`
	Players          []protocol.PlayerRecord `json:"players"`
	WinnerIDs        []int                   `json:"winner_ids"`
	LoserIDs         []int                   `json:"loser_ids"`
	DecodeError      string                  `json:"decode_error,omitempty"`
	SubmittedAt      time.Time               `json:"submitted_at"`
}

// RawSize returns the length of the stored report payload.
func (r *ReportRecord) RawSize() int {
	return len(r.Raw)
}

// SaveReport inserts or replaces the report for (csid, profile_id).
func (s *Store) SaveReport(ctx context.Context, rec *ReportRecord) error {
	players, err := marshalList(rec.Players)
	if err != nil {
		return fmt.Errorf("failed to encode players: %w", err)
	}
	winners, err := marshalList(rec.WinnerIDs)
	if err != nil {
		return fmt.Errorf("failed to encode winner ids: %w", err)
	}
	losers, err := marshalList(rec.LoserIDs)
	if err != nil {
		return fmt.Errorf("failed to encode loser ids: %w", err)
	}

	raw := rec.Raw
	if raw == nil {
		raw = []byte{}
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO match_reports (
			csid, ccid, profile_id, raw_report,
			result, duration, game_type, raw_game_type,
			protocol_version, developer_version, game_status, flags,
			player_count, team_count, auto_match, map_path, replay_guid,
			players, winner_ids, loser_ids, decode_error, submitted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (csid, profile_id) DO UPDATE SET
			ccid = excluded.ccid,
			raw_report = excluded.raw_report,
			result = excluded.result,
			duration = excluded.duration,
			game_type = excluded.game_type,
			raw_game_type = excluded.raw_game_type,
			protocol_version = excluded.protocol_version,
			developer_version = excluded.developer_version,
			game_status = excluded.game_status,
			flags = excluded.flags,
			player_count = excluded.player_count,
			team_count = excluded.team_count,
			auto_match = excluded.auto_match,
			map_path = excluded.map_path,
			replay_guid = excluded.replay_guid,
			players = excluded.players,
			winner_ids = excluded.winner_ids,
			loser_ids = excluded.loser_ids,
			decode_error = excluded.decode_error,
			submitted_at = excluded.submitted_at`,
		rec.CSID, rec.CCID, rec.ProfileID, raw,
		rec.Result, rec.Duration, rec.GameType, rec.RawGameType,
		rec.ProtocolVersion, rec.DeveloperVersion, rec.GameStatus, rec.Flags,
		rec.PlayerCount, rec.TeamCount, rec.AutoMatch, rec.MapPath, rec.ReplayGUID,
		players, winners, losers, rec.DecodeError, formatTime(rec.SubmittedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save report for %s/%d: %w", rec.CSID, rec.ProfileID, err)
	}
	return nil
}

// GetReports returns the reports of a session. An empty ccid matches any.
func (s *Store) GetReports(ctx context.Context, csid, ccid string) ([]ReportRecord, error) {
	query := `
		SELECT id, csid, ccid, profile_id, raw_report,
			result, duration, game_type, raw_game_type,
			protocol_version, developer_version, game_status, flags,
			player_count, team_count, auto_match, map_path, replay_guid,
			players, winner_ids, loser_ids, decode_error, submitted_at
		FROM match_reports WHERE csid = ?`
	args := []any{csid}
	if ccid != "" {
		query += " AND ccid = ?"
		args = append(args, ccid)
	}
	query += " ORDER BY id"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports for %s: %w", csid, err)
	}
	defer rows.Close()

	reports := []ReportRecord{}
	for rows.Next() {
		var (
			rec                      ReportRecord
			players, winners, losers string
			submitted                string
		)
		if err := rows.Scan(&rec.ID, &rec.CSID, &rec.CCID, &rec.ProfileID, &rec.Raw,
			&rec.Result, &rec.Duration, &rec.GameType, &rec.RawGameType,
			&rec.ProtocolVersion, &rec.DeveloperVersion, &rec.GameStatus, &rec.Flags,
			&rec.PlayerCount, &rec.TeamCount, &rec.AutoMatch, &rec.MapPath, &rec.ReplayGUID,
			&players, &winners, &losers, &rec.DecodeError, &submitted); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		if err := json.Unmarshal([]byte(players), &rec.Players); err != nil {
			return nil, fmt.Errorf("failed to decode players: %w", err)
		}
		if err := json.Unmarshal([]byte(winners), &rec.WinnerIDs); err != nil {
			return nil, fmt.Errorf("failed to decode winner ids: %w", err)
		}
		if err := json.Unmarshal([]byte(losers), &rec.LoserIDs); err != nil {
			return nil, fmt.Errorf("failed to decode loser ids: %w", err)
		}
		rec.SubmittedAt = parseTime(submitted)
		reports = append(reports, rec)
	}
	return reports, rows.Err()
}

// ReportStats counts stored reports and those that failed to decode.
type ReportStats struct {
	Total        int `json:"total"`
	DecodeFailed int `json:"decode_failed"`
}

func (s *Store) ReportStats(ctx context.Context) (ReportStats, error) {
	var stats ReportStats
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN decode_error != '' THEN 1 ELSE 0 END), 0)
		FROM match_reports`).Scan(&stats.Total, &stats.DecodeFailed)
	if err != nil {
		return stats, fmt.Errorf("failed to count reports: %w", err)
	}
	return stats, nil
}

// marshalList encodes a slice as JSON, writing nil as an empty list.
func marshalList[T any](items []T) (string, error) {
	if items == nil {
		items = []T{}
	}
	out, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
