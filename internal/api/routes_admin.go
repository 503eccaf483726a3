package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/energizer-project/matchgate/internal/competition"
	"github.com/energizer-project/matchgate/internal/db"
)

// reportView adds the payload size to a stored report; the raw bytes are
// served separately.
type reportView struct {
	db.ReportRecord
	Size int `json:"raw_size"`
}

type provisionRequest struct {
	Certificates []string `json:"certificates" binding:"required"`
}

// handleListSessions returns recent sessions, newest first.
func (s *Server) handleListSessions(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	sessions, err := s.deps.Engine.ListSessions(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"total":    len(sessions),
	})
}

func (s *Server) handleGetSession(c *gin.Context) {
	session, err := s.deps.Engine.GetSession(c.Request.Context(), c.Param("csid"))
	if err != nil {
		s.writeLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// handleGetReports returns the decoded reports of a session, optionally
// narrowed to one ccid.
func (s *Server) handleGetReports(c *gin.Context) {
	csid := c.Param("csid")
	records, err := s.deps.Engine.GetReports(c.Request.Context(), csid, c.Query("ccid"))
	if err != nil {
		s.writeLookupError(c, err)
		return
	}

	views := make([]reportView, 0, len(records))
	for _, r := range records {
		views = append(views, reportView{ReportRecord: r, Size: r.RawSize()})
	}

	c.JSON(http.StatusOK, gin.H{
		"csid":    csid,
		"reports": views,
		"total":   len(views),
	})
}

// handleGetRawReport serves the stored payload. profile_id selects among
// several reporters; without it the first report is served.
func (s *Server) handleGetRawReport(c *gin.Context) {
	csid := c.Param("csid")
	records, err := s.deps.Engine.GetReports(c.Request.Context(), csid, c.Query("ccid"))
	if err != nil {
		s.writeLookupError(c, err)
		return
	}

	var profileID int
	if v := c.Query("profile_id"); v != "" {
		if profileID, err = strconv.Atoi(v); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid profile_id"})
			return
		}
	}

	for _, r := range records {
		if profileID != 0 && r.ProfileID != profileID {
			continue
		}
		c.Header("Content-Disposition",
			fmt.Sprintf(`attachment; filename="%s_%s_%d.bin"`, r.CSID, r.CCID, r.ProfileID))
		c.Data(http.StatusOK, "application/octet-stream", r.Raw)
		return
	}

	c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
}

func (s *Server) handleCertificateStats(c *gin.Context) {
	stats, err := s.deps.Pool.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleProvisionCertificates(c *gin.Context) {
	var req provisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	added, err := s.deps.Pool.Provision(c.Request.Context(), req.Certificates...)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.logger.Info().Int("added", added).Msg("certificates provisioned via API")
	c.JSON(http.StatusOK, gin.H{"added": added})
}

func (s *Server) handleReclaimCertificates(c *gin.Context) {
	n, err := s.deps.Pool.Reclaim(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reclaimed": n})
}

func (s *Server) handleReleaseCertificate(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid certificate id"})
		return
	}

	err = s.deps.Pool.Release(c.Request.Context(), id)
	switch {
	case errors.Is(err, db.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "certificate not found"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"released": id})
	}
}

func (s *Server) writeLookupError(c *gin.Context, err error) {
	if errors.Is(err, competition.ErrUnknownSession) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
