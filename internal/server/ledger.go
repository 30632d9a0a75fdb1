package server

import (
	"net/http"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func (s *Server) ListLedger(c *gin.Context) {
	accountID, ok := s.pathID(c, "accountID")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	entries, err := s.ledgerSvc.ListByAccount(c.Request.Context(), accountID, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func parseID(raw string) (snowflake.ID, error) {
	return snowflake.ParseString(raw)
}
