// Package api serves the SOAP endpoints the game client calls and the JSON
// admin API used to inspect sessions, reports and the certificate pool.
package api

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/energizer-project/matchgate/internal/certpool"
	"github.com/energizer-project/matchgate/internal/competition"
	"github.com/energizer-project/matchgate/internal/config"
	"github.com/energizer-project/matchgate/internal/db"
	"github.com/energizer-project/matchgate/internal/framer"
	"github.com/energizer-project/matchgate/internal/network"
	"github.com/energizer-project/matchgate/internal/util"
)

// SOAP and stub endpoint paths.
const (
	PathAuthService        = "/AuthService/AuthService.asmx"
	PathCompetitionService = "/competitionservice/competitionservice.asmx"
	PathClanInfo           = "/clans/ClanActions.asmx/ClanInfoByProfileID"
	PathLadderRatings      = "/GetPlayerLadderRatings.aspx"
)

// StatsSource provides counters for the info endpoint.
type StatsSource interface {
	SessionCounts(ctx context.Context) (map[db.SessionState]int, error)
	ReportStats(ctx context.Context) (db.ReportStats, error)
}

// Dependencies are the components the handlers call.
type Dependencies struct {
	Engine *competition.Engine
	Pool   *certpool.Pool
	Stats  StatsSource
}

// Server is the HTTP front end.
type Server struct {
	cfg     *config.Config
	deps    Dependencies
	framer  *framer.Framer
	logger  zerolog.Logger
	started time.Time

	routerOnce sync.Once
	router     *gin.Engine
	httpServer *http.Server
}

// NewServer creates a server. Routes are built on first use.
func NewServer(cfg *config.Config, deps Dependencies) *Server {
	if cfg.GetLogging().Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	return &Server{
		cfg:     cfg,
		deps:    deps,
		framer:  framer.New(cfg.GetService().MaxBodyBytes),
		logger:  log.With().Str("component", "api").Logger(),
		started: time.Now(),
	}
}

// Router returns the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	s.routerOnce.Do(func() {
		s.router = s.buildRouter()
	})
	return s.router
}

// Start listens on the configured port and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	svc := s.cfg.GetService()
	sec := s.cfg.GetSecurity()

	addr := fmt.Sprintf("%s:%d", svc.Host, svc.HTTPPort)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ln, err := network.Listen(ctx, addr)
	if err != nil {
		return err
	}

	if sec.TLSEnabled {
		if err := util.EnsureSelfSignedCert(sec.TLSCertFile, sec.TLSKeyFile, []string{svc.Host, "localhost"}); err != nil {
			ln.Close()
			return fmt.Errorf("failed to prepare TLS certificate: %w", err)
		}
		cert, err := tls.LoadX509KeyPair(sec.TLSCertFile, sec.TLSKeyFile)
		if err != nil {
			ln.Close()
			return fmt.Errorf("failed to load TLS certificate: %w", err)
		}
		s.httpServer.TLSConfig = &tls.Config{
			MinVersion:   tls.VersionTLS12,
			Certificates: []tls.Certificate{cert},
		}
		ln = tls.NewListener(ln, s.httpServer.TLSConfig)
	}

	s.logger.Info().Str("addr", addr).Bool("tls", sec.TLSEnabled).Msg("HTTP server starting")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn().Err(err).Msg("HTTP server shutdown error")
		}
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

func (s *Server) buildRouter() *gin.Engine {
	sec := s.cfg.GetSecurity()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger())
	router.Use(SecurityHeaders())
	router.Use(NewRateLimiter(sec.RateLimitRPS).Middleware())

	// Game client endpoints
	router.POST(PathAuthService, s.dispatch(s.authService()))
	router.POST(PathCompetitionService, s.dispatch(s.competitionService()))
	router.GET(PathClanInfo, s.handleClanInfo)
	router.GET(PathLadderRatings, s.handleLadderRatings)

	allowedOrigins := sec.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	corsMiddleware := cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	})

	public := router.Group("/api/public", corsMiddleware)
	{
		public.GET("/ping", s.handlePing)
		public.GET("/info", s.handleInfo)
	}

	admin := router.Group("/api", corsMiddleware, AdminAuth(sec.AdminToken))
	{
		admin.GET("/sessions", s.handleListSessions)
		admin.GET("/sessions/:csid", s.handleGetSession)
		admin.GET("/reports/:csid", s.handleGetReports)
		admin.GET("/reports/:csid/raw", s.handleGetRawReport)
		admin.GET("/certificates", s.handleCertificateStats)
		admin.POST("/certificates", s.handleProvisionCertificates)
		admin.POST("/certificates/reclaim", s.handleReclaimCertificates)
		admin.POST("/certificates/:id/release", s.handleReleaseCertificate)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
	})

	return router
}
