package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/daryltucker/subscription-runner/internal/model"
)

// APIName is reported by GET /.
const APIName = "Subscription Prediction API"

func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, model.Status{
		Message:     APIName,
		Status:      "active",
		ModelLoaded: s.svc.Loaded(),
	})
}

func (s *Server) health(c *gin.Context) {
	var info interface{} = gin.H{}
	if meta := s.svc.Metadata(); meta != nil {
		info = meta
	}
	c.JSON(http.StatusOK, model.Health{
		Status:      "healthy",
		ModelLoaded: s.svc.Loaded(),
		ModelInfo:   info,
	})
}

func (s *Server) modelInfo(c *gin.Context) {
	info, err := s.svc.Info()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) predict(c *gin.Context) {
	var req model.PredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	resp, err := s.svc.Predict(*req.Age, *req.Income)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.metrics.Predictions.WithLabelValues(resp.Prediction).Inc()
	c.JSON(http.StatusOK, resp)
}

// fail maps service errors onto status codes.
func (s *Server) fail(c *gin.Context, err error) {
	_ = c.Error(err)

	var predErr *PredictionError
	switch {
	case errors.Is(err, ErrModelUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": ErrModelUnavailable.Error()})
	case errors.As(err, &predErr):
		s.metrics.PredictionError.Inc()
		c.JSON(http.StatusBadRequest, gin.H{"detail": predErr.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
	}
}
