package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	chatdomain "github.com/chatwire/chatwire/internal/chataccount/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) GetAIConfig(c *gin.Context) {
	accountID, ok := s.pathID(c, "accountID")
	if !ok {
		return
	}
	cfg, err := s.accountSvc.GetConfig(c.Request.Context(), accountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (s *Server) UpdateAIConfig(c *gin.Context) {
	accountID, ok := s.pathID(c, "accountID")
	if !ok {
		return
	}
	var req chatdomain.UpdateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.AccountID = accountID

	cfg, err := s.accountSvc.UpdateConfig(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (s *Server) SetAIEnabled(c *gin.Context) {
	accountID, ok := s.pathID(c, "accountID")
	if !ok {
		return
	}
	var req struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if err := s.accountSvc.SetAIEnabled(c.Request.Context(), accountID, *req.Enabled); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": *req.Enabled})
}

func (s *Server) pathID(c *gin.Context, name string) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(c.Param(name))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return 0, false
	}
	return id, true
}
