// Package certpool hands out short-lived authentication certificates from
// a pre-provisioned pool.
package certpool

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/energizer-project/matchgate/internal/db"
	"github.com/energizer-project/matchgate/internal/events"
)

const (
	// DefaultExpiry is how long a handed-out certificate is valid.
	DefaultExpiry = 180 * time.Second

	// ExpiryLayout is the wire format of expiry timestamps.
	ExpiryLayout = "2006-01-02T15:04:05Z"

	PlaceholderCertificate = "PLACEHOLDER_CERTIFICATE"
)

// Store is the storage the pool needs.
type Store interface {
	ClaimCertificate(ctx context.Context, now time.Time) (*db.Certificate, error)
	AddCertificates(ctx context.Context, data ...string) (int, error)
	ReleaseCertificate(ctx context.Context, id int64) error
	ReleaseExpiredCertificates(ctx context.Context, cutoff time.Time) (int64, error)
	CertificateStats(ctx context.Context) (db.CertificateStats, error)
}

// Options configures a Pool. Zero values select the defaults.
type Options struct {
	Expiry      time.Duration
	Placeholder string
	EventBus    *events.EventBus
	Clock       func() time.Time
}

// Allocation is the result of Allocate.
type Allocation struct {
	CertificateID int64
	Data          string
	Expiry        time.Time
	// Placeholder is set when the pool was empty. It is never sent to the
	// client, which sees an ordinary certificate.
	Placeholder bool
}

// ExpiryString returns the expiry in wire format.
func (a Allocation) ExpiryString() string {
	return FormatExpiry(a.Expiry)
}

// Pool allocates certificates.
type Pool struct {
	store       Store
	expiry      time.Duration
	placeholder string
	eventBus    *events.EventBus
	now         func() time.Time
	logger      zerolog.Logger
}

// New creates a Pool backed by store.
func New(store Store, opts Options) *Pool {
	p := &Pool{
		store:       store,
		expiry:      opts.Expiry,
		placeholder: opts.Placeholder,
		eventBus:    opts.EventBus,
		now:         opts.Clock,
		logger:      log.With().Str("component", "certpool").Logger(),
	}
	if p.expiry <= 0 {
		p.expiry = DefaultExpiry
	}
	if p.placeholder == "" {
		p.placeholder = PlaceholderCertificate
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Expiry returns the certificate lifetime.
func (p *Pool) Expiry() time.Duration {
	return p.expiry
}

// Allocate claims one available certificate. When none is left the
// placeholder is returned instead; only storage failures are errors.
func (p *Pool) Allocate(ctx context.Context) (Allocation, error) {
	now := p.now()
	alloc := Allocation{Expiry: now.Add(p.expiry)}

	cert, err := p.store.ClaimCertificate(ctx, now)
	switch {
	case errors.Is(err, db.ErrNotFound):
		alloc.Data = p.placeholder
		alloc.Placeholder = true
		p.logger.Warn().Msg("certificate pool empty, issuing placeholder")
	case err != nil:
		return Allocation{}, fmt.Errorf("failed to allocate certificate: %w", err)
	default:
		alloc.CertificateID = cert.ID
		alloc.Data = cert.Data
		p.logger.Debug().Int64("certificate_id", cert.ID).Msg("certificate allocated")
	}

	p.eventBus.Emit(ctx, events.Event{
		Type:   events.EventCertificateAllocated,
		Source: "certpool",
		Payload: events.CertificatePayload{
			CertificateID: alloc.CertificateID,
			Placeholder:   alloc.Placeholder,
			Expiry:        alloc.ExpiryString(),
		},
	})

	return alloc, nil
}

// Provision adds certificates to the pool.
func (p *Pool) Provision(ctx context.Context, data ...string) (int, error) {
	n, err := p.store.AddCertificates(ctx, data...)
	if err != nil {
		return 0, fmt.Errorf("failed to provision certificates: %w", err)
	}
	p.logger.Info().Int("count", n).Msg("certificates provisioned")
	return n, nil
}

// ProvisionFrom adds one certificate per non-empty line of r. Lines
// starting with # are skipped.
func (p *Pool) ProvisionFrom(ctx context.Context, r io.Reader) (int, error) {
	var data []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		data = append(data, line)
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("failed to read certificates: %w", err)
	}
	return p.Provision(ctx, data...)
}

// Stats reports pool occupancy.
func (p *Pool) Stats(ctx context.Context) (db.CertificateStats, error) {
	return p.store.CertificateStats(ctx)
}

// Reclaim returns certificates allocated longer than the expiry window ago.
func (p *Pool) Reclaim(ctx context.Context) (int64, error) {
	cutoff := p.now().Add(-p.expiry)
	n, err := p.store.ReleaseExpiredCertificates(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		p.logger.Info().Int64("count", n).Msg("expired certificates reclaimed")
	}
	return n, nil
}

// Release returns one certificate to the pool before it expires. Unknown ids
// yield db.ErrNotFound.
func (p *Pool) Release(ctx context.Context, id int64) error {
	if err := p.store.ReleaseCertificate(ctx, id); err != nil {
		return err
	}
	p.logger.Info().Int64("certificate_id", id).Msg("certificate released")
	return nil
}

// FormatExpiry renders t as YYYY-MM-DDTHH:MM:SSZ in UTC.
func FormatExpiry(t time.Time) string {
	return t.UTC().Format(ExpiryLayout)
}
