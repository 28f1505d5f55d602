package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (s *Server) RebuildProjection(c *gin.Context) {
	if s.projection == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	status, err := s.projection.Rebuild(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.log.Info("projection rebuilt", zap.Int64("checkpoint", status.Checkpoint))

	c.JSON(http.StatusOK, gin.H{"data": status})
}

func (s *Server) ProjectionStatus(c *gin.Context) {
	if s.projection == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	status, err := s.projection.Status(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": status})
}
