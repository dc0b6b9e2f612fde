package server

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meghna-verma/ENISI-MSM-control/internal/auth"
	"github.com/meghna-verma/ENISI-MSM-control/internal/report"
	"github.com/meghna-verma/ENISI-MSM-control/internal/tissue"
)

func (s *Server) registerRoutes() {
	r := s.router
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Appeared).String(),
			"rank":    s.Rank,
			"version": version,
		})
	})

	r.GET("/ready", func(c *gin.Context) {
		ready := s.provider != nil && s.provider.Ready()
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":   ready,
			"uptime":  time.Since(s.Appeared).String(),
			"rank":    s.Rank,
			"version": version,
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	data := r.Group("/")
	if s.guard != nil {
		data.Use(auth.Require(s.guard))
	}
	data.GET("/status", func(c *gin.Context) {
		if s.provider == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no run attached"})
			return
		}
		c.JSON(http.StatusOK, s.provider.Status())
	})

	data.GET("/status/:compartment", func(c *gin.Context) {
		if s.provider == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no run attached"})
			return
		}
		t, err := tissue.ParseType(c.Param("compartment"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		for _, cs := range s.provider.Status().Compartments {
			if cs.Name == t.String() {
				c.JSON(http.StatusOK, cs)
				return
			}
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "compartment not configured: " + t.String()})
	})

	data.GET("/report", func(c *gin.Context) {
		if s.series == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "reporting disabled"})
			return
		}
		var buf bytes.Buffer
		if err := s.series.WriteTable(&buf, ","); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
	})

	data.GET("/report.png", func(c *gin.Context) {
		if s.series == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "reporting disabled"})
			return
		}
		var buf bytes.Buffer
		err := s.series.RenderPNG(&buf, 800, 400)
		switch {
		case errors.Is(err, report.ErrNotEnoughData):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "image/png", buf.Bytes())
	})
}
