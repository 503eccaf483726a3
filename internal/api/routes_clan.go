package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/energizer-project/matchgate/internal/soap"
)

// handleClanInfo answers every profile with an empty clan.
func (s *Server) handleClanInfo(c *gin.Context) {
	s.logger.Debug().Str("profileid", c.Query("profileid")).Msg("ClanInfoByProfileID")
	s.writeDocument(c, soap.NewClanInfo())
}

// handleLadderRatings answers every player with the default ratings.
func (s *Server) handleLadderRatings(c *gin.Context) {
	s.writeDocument(c, soap.NewLadderRatings())
}

func (s *Server) writeDocument(c *gin.Context, model any) {
	out, err := soap.MarshalDocument(model)
	if err != nil {
		s.writeFault(c, "clan", err)
		return
	}
	c.Data(http.StatusOK, soap.ContentType, []byte(out))
}
