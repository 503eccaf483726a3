package api

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/energizer-project/matchgate/internal/competition"
	"github.com/energizer-project/matchgate/internal/framer"
	"github.com/energizer-project/matchgate/internal/soap"
)

// Message returned in-band for a csid the engine has never seen.
const msgUnknownSession = "session not found"

func (s *Server) authService() *soapService {
	return &soapService{
		name: "auth",
		operations: []operation{
			{name: framer.OpLoginRemoteAuth, handle: s.handleLoginRemoteAuth},
		},
		fallback: func() any { return soap.NewLoginRemoteAuthResult(soap.ResultSuccess) },
	}
}

func (s *Server) competitionService() *soapService {
	return &soapService{
		name: "competition",
		operations: []operation{
			{name: framer.OpCreateSession, handle: s.handleCreateSession},
			{name: framer.OpSetReportIntention, handle: s.handleSetReportIntention},
			{name: framer.OpSubmitReport, handle: s.handleSubmitReport},
		},
		fallback: func() any { return soap.NewSubmitReportSuccess() },
	}
}

func (s *Server) handleLoginRemoteAuth(c *gin.Context, req *framer.Request) (any, error) {
	alloc, err := s.deps.Pool.Allocate(c.Request.Context())
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int("profile_id", req.ProfileID).
		Bool("placeholder", alloc.Placeholder).
		Str("expiry", alloc.ExpiryString()).
		Msg("LoginRemoteAuth")

	return soap.NewLoginRemoteAuthSuccess(alloc.Data, alloc.ExpiryString()), nil
}

func (s *Server) handleCreateSession(c *gin.Context, req *framer.Request) (any, error) {
	session, err := s.deps.Engine.CreateSession(c.Request.Context(), req.ProfileID)
	if err != nil {
		return nil, err
	}
	return soap.NewCreateSessionSuccess(session.CSID, session.CCID), nil
}

func (s *Server) handleSetReportIntention(c *gin.Context, req *framer.Request) (any, error) {
	session, err := s.deps.Engine.SetReportIntention(c.Request.Context(), req.CSID, req.CCID, req.ProfileID)
	if errors.Is(err, competition.ErrUnknownSession) {
		s.logger.Warn().Str("csid", req.CSID).Int("profile_id", req.ProfileID).Msg("SetReportIntention for unknown session")
		return soap.NewSetReportIntentionError(msgUnknownSession), nil
	}
	if err != nil {
		return nil, err
	}
	// The client's own ccid is echoed; an empty one falls back to the session's.
	ccid := req.CCID
	if ccid == "" {
		ccid = session.CCID
	}
	return soap.NewSetReportIntentionSuccess(session.CSID, ccid), nil
}

func (s *Server) handleSubmitReport(c *gin.Context, req *framer.Request) (any, error) {
	_, err := s.deps.Engine.SubmitReport(c.Request.Context(), req.CSID, req.CCID, req.ProfileID, req.Report)
	if errors.Is(err, competition.ErrUnknownSession) {
		s.logger.Warn().Str("csid", req.CSID).Int("profile_id", req.ProfileID).Msg("SubmitReport for unknown session")
		return soap.NewSubmitReportError(msgUnknownSession), nil
	}
	if err != nil {
		return nil, err
	}
	return soap.NewSubmitReportSuccess(), nil
}
