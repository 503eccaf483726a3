// Package competition tracks competition sessions from creation through
// report submission.
package competition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/energizer-project/matchgate/internal/archive"
	"github.com/energizer-project/matchgate/internal/db"
	"github.com/energizer-project/matchgate/internal/events"
	"github.com/energizer-project/matchgate/internal/protocol"
)

// ErrUnknownSession is returned for a csid that was never created.
var ErrUnknownSession = errors.New("unknown competition session")

// Store is the persistence the engine needs.
type Store interface {
	CreateSession(ctx context.Context, csid string, profileID int, now time.Time) (*db.Session, error)
	GetSession(ctx context.Context, csid string) (*db.Session, error)
	AdvanceSession(ctx context.Context, csid string, state db.SessionState, now time.Time) (bool, error)
	ListSessions(ctx context.Context, limit int) ([]db.Session, error)
	SaveReport(ctx context.Context, rec *db.ReportRecord) error
	GetReports(ctx context.Context, csid, ccid string) ([]db.ReportRecord, error)
}

// Options configures an Engine. Zero values select the defaults.
type Options struct {
	Layout   protocol.Layout
	Archiver archive.Archiver
	EventBus *events.EventBus
	Clock    func() time.Time
	NewID    func() string
}

// Engine implements the session state machine:
// created -> intention_set -> completed.
type Engine struct {
	store    Store
	parser   *protocol.ReportParser
	archiver archive.Archiver
	eventBus *events.EventBus
	now      func() time.Time
	newID    func() string
	logger   zerolog.Logger
}

// NewEngine creates an Engine backed by store.
func NewEngine(store Store, opts Options) *Engine {
	layout := opts.Layout
	if layout.HeaderSize == 0 {
		layout = protocol.DefaultLayout()
	}

	e := &Engine{
		store:    store,
		parser:   protocol.NewReportParser(layout),
		archiver: opts.Archiver,
		eventBus: opts.EventBus,
		now:      opts.Clock,
		newID:    opts.NewID,
		logger:   log.With().Str("component", "competition").Logger(),
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	return e
}

// CreateSession opens a new session for profileID.
func (e *Engine) CreateSession(ctx context.Context, profileID int) (*db.Session, error) {
	session, err := e.store.CreateSession(ctx, e.newID(), profileID, e.now())
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	e.logger.Info().
		Str("csid", session.CSID).
		Str("ccid", session.CCID).
		Int("profile_id", profileID).
		Msg("session created")

	e.emit(ctx, events.EventSessionCreated, sessionPayload(session))
	return session, nil
}

// SetReportIntention records that the client is about to report. Sessions
// already past created are left where they are.
func (e *Engine) SetReportIntention(ctx context.Context, csid, ccid string, profileID int) (*db.Session, error) {
	session, err := e.lookup(ctx, csid)
	if err != nil {
		return nil, err
	}
	e.checkChannel(session, ccid, "SetReportIntention")

	advanced, err := e.store.AdvanceSession(ctx, csid, db.SessionIntentionSet, e.now())
	if err != nil {
		return nil, err
	}
	if advanced {
		session.State = db.SessionIntentionSet
	}

	e.logger.Info().
		Str("csid", csid).
		Str("ccid", session.CCID).
		Int("profile_id", profileID).
		Str("state", string(session.State)).
		Msg("report intention set")

	e.emit(ctx, events.EventIntentionSet, sessionPayload(session))
	return session, nil
}

// SubmitResult describes a stored report.
type SubmitResult struct {
	Session *db.Session
	Record  *db.ReportRecord
	// Report is nil when even the summary could not be decoded.
	Report *protocol.MatchReport
	// DecodeErr is the full decode failure, if any. It does not fail the
	// submission.
	DecodeErr error
}

// SubmitReport decodes and stores a report and completes the session. A
// report that cannot be fully decoded is still stored with whatever fields
// could be read.
func (e *Engine) SubmitReport(ctx context.Context, csid, ccid string, profileID int, raw []byte) (*SubmitResult, error) {
	session, err := e.lookup(ctx, csid)
	if err != nil {
		return nil, err
	}
	e.checkChannel(session, ccid, "SubmitReport")
	if ccid == "" {
		ccid = session.CCID
	}

	rec := &db.ReportRecord{
		CSID:        csid,
		CCID:        ccid,
		ProfileID:   profileID,
		Raw:         raw,
		SubmittedAt: e.now().UTC(),
	}

	report, decodeErr := e.parser.Decode(raw)
	if decodeErr != nil {
		e.logger.Warn().
			Err(decodeErr).
			Str("csid", csid).
			Int("profile_id", profileID).
			Int("bytes", len(raw)).
			Msg("match report decode failed, storing summary")
		rec.DecodeError = decodeErr.Error()
		if summary, err := protocol.DecodeSummary(raw); err == nil {
			applySummary(rec, summary)
		}
	}
	if report != nil {
		applyReport(rec, report)
	}

	if err := e.store.SaveReport(ctx, rec); err != nil {
		return nil, err
	}

	if e.archiver != nil {
		key := archive.ReportKey(csid, ccid, profileID)
		if err := e.archiver.Store(ctx, key, raw); err != nil {
			e.logger.Error().Err(err).Str("key", key).Msg("failed to archive raw report")
		}
	}

	advanced, err := e.store.AdvanceSession(ctx, csid, db.SessionCompleted, e.now())
	if err != nil {
		return nil, err
	}
	if advanced {
		session.State = db.SessionCompleted
	}

	payload := events.ReportPayload{
		CSID:        csid,
		CCID:        ccid,
		ProfileID:   profileID,
		Result:      rec.Result,
		GameType:    rec.GameType,
		MapPath:     rec.MapPath,
		Duration:    rec.Duration,
		WinnerIDs:   rec.WinnerIDs,
		LoserIDs:    rec.LoserIDs,
		RawSize:     len(raw),
		DecodeError: rec.DecodeError,
	}
	if decodeErr != nil {
		e.emit(ctx, events.EventReportDecodeFailed, payload)
	}
	e.emit(ctx, events.EventReportSubmitted, payload)

	e.logger.Info().
		Str("csid", csid).
		Str("ccid", ccid).
		Int("profile_id", profileID).
		Str("game_type", rec.GameType).
		Str("result", rec.Result).
		Int("players", len(rec.Players)).
		Msg("match report stored")

	return &SubmitResult{
		Session:   session,
		Record:    rec,
		Report:    report,
		DecodeErr: decodeErr,
	}, nil
}

// GetSession returns the session for csid.
func (e *Engine) GetSession(ctx context.Context, csid string) (*db.Session, error) {
	return e.lookup(ctx, csid)
}

// ListSessions returns recent sessions, newest first.
func (e *Engine) ListSessions(ctx context.Context, limit int) ([]db.Session, error) {
	return e.store.ListSessions(ctx, limit)
}

// GetReports returns the stored reports of a session. An empty ccid matches
// every channel.
func (e *Engine) GetReports(ctx context.Context, csid, ccid string) ([]db.ReportRecord, error) {
	if _, err := e.lookup(ctx, csid); err != nil {
		return nil, err
	}
	return e.store.GetReports(ctx, csid, ccid)
}

// Layout returns the report layout in use.
func (e *Engine) Layout() protocol.Layout {
	return e.parser.Layout()
}

func (e *Engine) lookup(ctx context.Context, csid string) (*db.Session, error) {
	if csid == "" {
		return nil, ErrUnknownSession
	}
	session, err := e.store.GetSession(ctx, csid)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, csid)
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (e *Engine) checkChannel(session *db.Session, ccid, operation string) {
	if ccid != "" && ccid != session.CCID {
		e.logger.Warn().
			Str("csid", session.CSID).
			Str("expected_ccid", session.CCID).
			Str("ccid", ccid).
			Str("operation", operation).
			Msg("ccid does not match session")
	}
}

func (e *Engine) emit(ctx context.Context, eventType events.EventType, payload interface{}) {
	e.eventBus.Emit(ctx, events.Event{
		Type:    eventType,
		Source:  "competition",
		Payload: payload,
	})
}

func sessionPayload(s *db.Session) events.SessionPayload {
	return events.SessionPayload{
		CSID:      s.CSID,
		CCID:      s.CCID,
		ProfileID: s.ProfileID,
		State:     string(s.State),
	}
}

func applySummary(rec *db.ReportRecord, s *protocol.Summary) {
	rec.Result = s.Result.String()
	rec.Duration = s.Duration
	rec.GameType = string(s.Type())
	rec.RawGameType = s.GameType
}

// applyReport copies decoded fields; a partial report overrides the summary
// only where it got further.
func applyReport(rec *db.ReportRecord, r *protocol.MatchReport) {
	rec.Result = r.Result().String()
	rec.Duration = r.Duration
	rec.GameType = string(r.GameType())
	rec.RawGameType = r.RawGameType
	rec.GameStatus = r.GameStatus
	rec.ProtocolVersion = r.ProtocolVersion
	rec.DeveloperVersion = r.DeveloperVersion
	rec.Flags = r.Flags
	rec.PlayerCount = r.PlayerCount
	rec.TeamCount = r.TeamCount
	rec.AutoMatch = r.IsAutoMatch()
	rec.MapPath = r.MapPath()
	rec.ReplayGUID = r.ReplayGUID()
	rec.Players = r.Players
	rec.WinnerIDs = r.WinnerIDs()
	rec.LoserIDs = r.LoserIDs()
}
