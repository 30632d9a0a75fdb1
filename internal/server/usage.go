package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetCurrentCycle(c *gin.Context) {
	subscriptionID, ok := s.pathID(c, "subscriptionID")
	if !ok {
		return
	}
	cycle, err := s.usageSvc.CurrentCycle(c.Request.Context(), subscriptionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, cycle)
}

type openCycleRequest struct {
	OrgID        string    `json:"orgId" binding:"required"`
	PeriodStart  time.Time `json:"periodStart" binding:"required"`
	PeriodEnd    time.Time `json:"periodEnd" binding:"required"`
	PackageLimit int64     `json:"packageLimit"`
}

func (s *Server) OpenCycle(c *gin.Context) {
	subscriptionID, ok := s.pathID(c, "subscriptionID")
	if !ok {
		return
	}
	var req openCycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	orgID, err := parseID(req.OrgID)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	cycle, err := s.usageSvc.OpenCycle(c.Request.Context(), orgID, subscriptionID, req.PeriodStart, req.PeriodEnd, req.PackageLimit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cycle)
}
