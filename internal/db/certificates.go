package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Certificate is a pooled authentication certificate.
type Certificate struct {
	ID          int64     `json:"id"`
	Data        string    `json:"certificate_data"`
	Available   bool      `json:"available"`
	AllocatedAt time.Time `json:"allocated_at,omitempty"`
}

// CertificateStats summarizes the pool.
type CertificateStats struct {
	Total     int `json:"total"`
	Available int `json:"available"`
	Allocated int `json:"allocated"`
}

// AddCertificates inserts available certificates and returns how many were
// added. Empty entries are skipped.
func (s *Store) AddCertificates(ctx context.Context, data ...string) (int, error) {
	added := 0
	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			"INSERT INTO certificates (certificate_data, available, created_at) VALUES (?, 1, ?)")
		if err != nil {
			return err
		}
		defer stmt.Close()

		now := formatTime(time.Now())
		for _, d := range data {
			if d == "" {
				continue
			}
			if _, err := stmt.ExecContext(ctx, d, now); err != nil {
				return fmt.Errorf("failed to insert certificate: %w", err)
			}
			added++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// ClaimCertificate marks one available certificate as allocated and returns
// it. The select and the update are a single statement, so two callers can
// never receive the same row. Returns ErrNotFound when the pool is empty.
func (s *Store) ClaimCertificate(ctx context.Context, now time.Time) (*Certificate, error) {
	const query = `
		UPDATE certificates
		SET available = 0, allocated_at = ?
		WHERE id = (SELECT id FROM certificates WHERE available = 1 ORDER BY id LIMIT 1)
		  AND available = 1
		RETURNING id, certificate_data`

	cert := &Certificate{AllocatedAt: now.UTC()}
	err := s.db.WriteRow(ctx, query, []any{formatTime(now)}, &cert.ID, &cert.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim certificate: %w", err)
	}
	return cert, nil
}

// ReleaseCertificate makes a certificate available again.
func (s *Store) ReleaseCertificate(ctx context.Context, id int64) error {
	res, err := s.db.Exec(ctx,
		"UPDATE certificates SET available = 1, allocated_at = NULL WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to release certificate %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ReleaseExpiredCertificates returns certificates allocated before cutoff to
// the pool.
func (s *Store) ReleaseExpiredCertificates(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(ctx, `
		UPDATE certificates
		SET available = 1, allocated_at = NULL
		WHERE available = 0 AND allocated_at IS NOT NULL AND allocated_at < ?`,
		formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to release expired certificates: %w", err)
	}
	return res.RowsAffected()
}

// CertificateStats counts pooled certificates.
func (s *Store) CertificateStats(ctx context.Context) (CertificateStats, error) {
	var stats CertificateStats
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN available = 1 THEN 1 ELSE 0 END), 0)
		FROM certificates`).Scan(&stats.Total, &stats.Available)
	if err != nil {
		return stats, fmt.Errorf("failed to count certificates: %w", err)
	}
	stats.Allocated = stats.Total - stats.Available
	return stats, nil
}
