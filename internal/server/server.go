// Package server exposes the data layer over HTTP. Routes are read-mostly
// JSON endpoints plus one mutating cache-clear operation.
package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prophetlabs/prophet-engine/internal/marketdata"
	"github.com/prophetlabs/prophet-engine/internal/observ"
	"github.com/prophetlabs/prophet-engine/internal/ta"
)

type Handler struct {
	svc *marketdata.Service
}

func NewHandler(svc *marketdata.Service) *Handler {
	return &Handler{svc: svc}
}

// NewRouter wires all routes onto a fresh engine.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLog())

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(observ.Handler()))

	api := r.Group("/api")
	{
		api.GET("/bars/:symbol", h.GetBars)
		api.GET("/price/:symbol", h.GetPrice)
		api.GET("/intelligence/:symbol", h.GetIntelligence)
		api.GET("/diagnostics", h.GetDiagnostics)
		api.POST("/cache/clear", h.ClearCache)
	}
	return r
}

// requestLog emits one structured line per request instead of gin's default
// console format.
func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		observ.Log("http_request", map[string]any{
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		observ.RecordDuration("http_request", time.Since(start), map[string]string{
			"path": c.FullPath(),
		})
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"metrics": observ.Summary(),
	})
}

type barsResponse struct {
	Symbol    string           `json:"symbol"`
	Timeframe string           `json:"timeframe"`
	Bars      []marketdata.Bar `json:"bars"`
	Cached    bool             `json:"cached"`
	Quality   any              `json:"quality,omitempty"`
}

func (h *Handler) GetBars(c *gin.Context) {
	symbol := c.Param("symbol")
	timeframe := c.DefaultQuery("timeframe", "5m")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	bars, err := h.svc.GetBars(c.Request.Context(), symbol, timeframe, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := barsResponse{
		Symbol:    marketdata.NormalizeSymbol(symbol),
		Timeframe: timeframe,
		Bars:      bars,
		Cached:    len(bars) > 0 && bars[0].IsCached,
	}
	if c.Query("validate") == "true" {
		resp.Quality = h.svc.ValidateDataQuality(bars, 0)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetPrice(c *gin.Context) {
	price, err := h.svc.GetLatestPrice(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, price)
}

type intelligenceResponse struct {
	Symbol    string                   `json:"symbol"`
	Timeframe string                   `json:"timeframe"`
	Summary   ta.Summary               `json:"summary"`
	Quality   marketdata.QualityReport `json:"quality"`
}

// GetIntelligence serves the indicator summary over recent bars, with the
// quality report attached so consumers can judge how much to trust it.
func (h *Handler) GetIntelligence(c *gin.Context) {
	symbol := c.Param("symbol")
	timeframe := c.DefaultQuery("timeframe", "5m")

	bars, err := h.svc.GetBars(c.Request.Context(), symbol, timeframe, 100)
	if err != nil {
		writeError(c, err)
		return
	}
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	c.JSON(http.StatusOK, intelligenceResponse{
		Symbol:    marketdata.NormalizeSymbol(symbol),
		Timeframe: timeframe,
		Summary:   ta.Summarize(closes),
		Quality:   h.svc.ValidateDataQuality(bars, 0),
	})
}

func (h *Handler) GetDiagnostics(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.GetDiagnostics())
}

func (h *Handler) ClearCache(c *gin.Context) {
	h.svc.ClearCache()
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// writeError maps the data-layer error taxonomy onto status codes. Anything
// untyped is an input problem (bad symbol or timeframe).
func writeError(c *gin.Context, err error) {
	var backoff *marketdata.BackoffError
	if errors.As(err, &backoff) {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":          backoff.Error(),
			"retry_after_ms": backoff.Remaining.Milliseconds(),
		})
		return
	}
	var unavailable *marketdata.UnavailableError
	if errors.As(err, &unavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": unavailable.Error()})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
