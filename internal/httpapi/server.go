// Package httpapi exposes the manual sync trigger, the ticker lookups and a
// health check over HTTP.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rickgao/yf-price-fetcher/internal/fetcher"
	"github.com/rickgao/yf-price-fetcher/internal/lookup"
	"github.com/rickgao/yf-price-fetcher/internal/model"
	"github.com/rickgao/yf-price-fetcher/internal/scheduler"
)

// Trigger runs syncs on demand.
type Trigger interface {
	RunOnce(ctx context.Context) (fetcher.Result, error)
	LastRun() (scheduler.Status, bool)
}

// Lookup answers single-ticker queries.
type Lookup interface {
	HistoryMax(ctx context.Context, ticker string) ([]model.Bar, error)
	LatestPrice(ctx context.Context, ticker string) (float64, error)
}

// Server serves the HTTP API.
type Server struct {
	addr    string
	router  *gin.Engine
	trigger Trigger
	lookup  Lookup
	logger  *slog.Logger
}

// NewServer builds the router.
func NewServer(addr string, trigger Trigger, lookups Lookup, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		addr:    addr,
		router:  gin.New(),
		trigger: trigger,
		lookup:  lookups,
		logger:  logger,
	}
	s.router.Use(gin.Recovery(), s.requestLogger())

	s.router.GET("/health", s.handleHealth)
	s.router.POST("/scheduler/run-once", s.handleRunOnce)
	s.router.GET("/yfinance/history/max/:ticker", s.handleHistoryMax)
	s.router.GET("/yfinance/latest-price/:ticker", s.handleLatestPrice)

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.logger.Info("http server started", "addr", s.addr)

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil {
			s.logger.Warn("http server shutdown", "error", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if st, ok := s.trigger.LastRun(); ok {
		last := gin.H{
			"started_at":  st.StartedAt,
			"finished_at": st.FinishedAt,
			"processed":   st.Result.Processed,
			"inserted":    st.Result.Inserted,
		}
		if st.Err != "" {
			last["error"] = st.Err
		}
		resp["last_run"] = last
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleRunOnce(c *gin.Context) {
	// A client hanging up must not abort a sync halfway.
	res, err := s.trigger.RunOnce(context.WithoutCancel(c.Request.Context()))
	switch {
	case errors.Is(err, scheduler.ErrRunInProgress):
		c.JSON(http.StatusConflict, gin.H{"detail": err.Error()})
		return
	case err != nil:
		s.logger.Error("manual sync failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   "ok",
		"processed": res.Processed,
		"inserted":  res.Inserted,
	})
}

func (s *Server) handleHistoryMax(c *gin.Context) {
	ticker := c.Param("ticker")
	bars, err := s.lookup.HistoryMax(c.Request.Context(), ticker)
	if err != nil {
		s.lookupError(c, ticker, err)
		return
	}
	c.JSON(http.StatusOK, bars)
}

func (s *Server) handleLatestPrice(c *gin.Context) {
	ticker := c.Param("ticker")
	price, err := s.lookup.LatestPrice(c.Request.Context(), ticker)
	if err != nil {
		s.lookupError(c, ticker, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticker": ticker, "latest_price": price})
}

func (s *Server) lookupError(c *gin.Context, ticker string, err error) {
	if errors.Is(err, lookup.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "no data for ticker " + ticker})
		return
	}
	s.logger.Error("lookup failed", "ticker", ticker, "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"ip", c.ClientIP(),
			"duration", time.Since(start),
		)
	}
}
