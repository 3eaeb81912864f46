package http

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	echo "github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/edgetalent/smsbot/internal/ai"
	"github.com/edgetalent/smsbot/internal/booking"
	"github.com/edgetalent/smsbot/internal/config"
	"github.com/edgetalent/smsbot/internal/delivery"
	"github.com/edgetalent/smsbot/internal/http/middleware"
	"github.com/edgetalent/smsbot/internal/lifecycle"
	"github.com/edgetalent/smsbot/internal/metrics"
	"github.com/edgetalent/smsbot/internal/repository"
)

type Server struct{ e *echo.Echo }

func NewServer(
	cfg config.Config,
	pgDB, clickhouseDB *sqlx.DB,
	rds *redis.Client,
	chat ai.ChatClient,
	provider delivery.Provider,
	zlog *zap.Logger,
) *Server {
	// repos (Postgres)
	leadsRepo := repository.NewLeadsRepository(pgDB)
	messagesRepo := repository.NewMessagesRepository(pgDB)

	// repos (ClickHouse), optional
	var eventsRepo repository.EventsRepository
	if clickhouseDB != nil {
		eventsRepo = repository.NewEventsRepository(clickhouseDB)
	}

	// conversation stack
	classifier := ai.NewClassifier(chat)
	responder := ai.NewResponder(chat, cfg.Studio.Name)
	ctrl := lifecycle.NewController(
		leadsRepo,
		messagesRepo,
		classifier,
		responder,
		booking.NewCatalog(nil),
		cfg.Studio.Name,
		zlog,
	)

	// echo
	e := echo.New()
	e.HideBanner = true
	e.Use(echoMid.Recover(), echoMid.Logger())

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// inbound webhook, rate limited per sender phone
	rlMW := middleware.RateLimitByPhone(middleware.RateLimitConfig{
		Redis:     rds,
		MaxPerMin: cfg.RateLimit.RPM,
		KeyPrefix: "rl:phone:",
		Window:    time.Minute,
	})
	e.POST("/api/webhook", webhookHandler(ctrl, eventsRepo, rds), rlMW)

	// dashboard + sandbox
	v1 := e.Group("/v1")
	v1.GET("/leads", listLeadsHandler(leadsRepo))
	v1.GET("/leads/:id/messages", leadMessagesHandler(leadsRepo, messagesRepo))
	v1.POST("/leads/:id/takeover", takeoverHandler(leadsRepo))
	v1.POST("/leads/:id/messages", manualMessageHandler(leadsRepo, messagesRepo, provider))
	v1.GET("/reports/conversations", conversationsReportHandler(eventsRepo))
	v1.POST("/sandbox/leads", createSandboxLeadHandler(leadsRepo, messagesRepo, cfg.Studio.Name))
	v1.POST("/sandbox/chat", sandboxChatHandler(leadsRepo, ctrl))

	return &Server{e: e}
}

func (s *Server) Start(addr string) error {
	log.Printf("http: listening on %s", addr)
	return s.e.Start(addr)
}
func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
