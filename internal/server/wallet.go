package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetWallet(c *gin.Context) {
	orgID, ok := s.pathID(c, "orgID")
	if !ok {
		return
	}
	wallet, err := s.walletSvc.Get(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, wallet)
}

func (s *Server) CreditWallet(c *gin.Context) {
	orgID, ok := s.pathID(c, "orgID")
	if !ok {
		return
	}
	var req struct {
		Amount int64 `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if err := s.walletSvc.Credit(c.Request.Context(), orgID, req.Amount); err != nil {
		AbortWithError(c, err)
		return
	}
	wallet, err := s.walletSvc.Get(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, wallet)
}
