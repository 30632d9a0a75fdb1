package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) LinkProduct(c *gin.Context) {
	accountID, ok := s.pathID(c, "accountID")
	if !ok {
		return
	}
	productID, ok := s.pathID(c, "productID")
	if !ok {
		return
	}
	if err := s.productSvc.Link(c.Request.Context(), accountID, productID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"linked": true})
}

func (s *Server) UnlinkProduct(c *gin.Context) {
	accountID, ok := s.pathID(c, "accountID")
	if !ok {
		return
	}
	productID, ok := s.pathID(c, "productID")
	if !ok {
		return
	}
	if err := s.productSvc.Unlink(c.Request.Context(), accountID, productID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"linked": false})
}

func (s *Server) ListLinkedProducts(c *gin.Context) {
	accountID, ok := s.pathID(c, "accountID")
	if !ok {
		return
	}
	products, err := s.productSvc.LinkedActive(c.Request.Context(), accountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}
