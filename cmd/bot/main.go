package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	httptransport "github.com/laggis/Discord-Ticket-bot/internal/api/http"
	"github.com/laggis/Discord-Ticket-bot/internal/api/http/handlers"
	"github.com/laggis/Discord-Ticket-bot/internal/auth"
	"github.com/laggis/Discord-Ticket-bot/internal/config"
	"github.com/laggis/Discord-Ticket-bot/internal/events"
	"github.com/laggis/Discord-Ticket-bot/internal/gateway"
	"github.com/laggis/Discord-Ticket-bot/internal/observability"
	"github.com/laggis/Discord-Ticket-bot/internal/panel"
	"github.com/laggis/Discord-Ticket-bot/internal/persistence"
	"github.com/laggis/Discord-Ticket-bot/internal/ratelimit"
	"github.com/laggis/Discord-Ticket-bot/internal/repository"
	"github.com/laggis/Discord-Ticket-bot/internal/service"
	"github.com/laggis/Discord-Ticket-bot/internal/transcript"
	"github.com/laggis/Discord-Ticket-bot/internal/worker"
	apperrors "github.com/laggis/Discord-Ticket-bot/pkg/util"
)

// interactionTimeout bounds the work done for one interaction, close steps included.
const interactionTimeout = 2 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.Discord.Token == "" {
		logger.Fatal("BOT_TOKEN is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, cfg.Tickets.CooldownBackend, logger)
	defer redis.Close()

	limiter := newLimiter(cfg, redis, logger)
	if ml, ok := limiter.(*ratelimit.MemoryLimiter); ok {
		defer ml.Stop()
	}

	panelStore, err := persistence.OpenPanelStore(cfg.PanelState.Path)
	if err != nil {
		logger.Fatal("failed to open panel state", zap.Error(err))
	}
	defer panelStore.Close()

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		logger.Fatal("failed to create discord session", zap.Error(err))
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentMessageContent
	gw := gateway.NewDiscordGateway(session)

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	banRepo := repository.NewBanRepository(pool)

	dispatcher := events.NewInMemoryDispatcher(logger)
	service.NewAuditService(dispatcher, gw, logger, cfg.Discord.ModLogChannelID).RegisterHandlers()

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  ticketRepo,
		BanRepo:     banRepo,
		Gateway:     gw,
		Limiter:     limiter,
		Transcripts: transcript.NewBuilder(time.Now),
		Dispatcher:  dispatcher,
		Scheduler:   service.TimerScheduler{},
		Metrics:     metrics,
		Logger:      logger,
		Discord:     cfg.Discord,
		Tickets:     cfg.Tickets,
	})
	moderationService := service.NewModerationService(service.ModerationDependencies{
		BanRepo:    banRepo,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})

	router := panel.NewRouter(panel.RouterDependencies{
		Tickets:              ticketService,
		Moderation:           moderationService,
		Limiter:              limiter,
		StaffCommandCooldown: cfg.Tickets.StaffCommandCooldown,
		Metrics:              metrics,
		Logger:               logger,
	})
	publisher := panel.NewPanelPublisher(gw, panelStore, cfg.Discord.PanelChannelID, cfg.Tickets.Categories, logger)

	session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		logger.Info("connected to discord", zap.String("user", r.User.Username), zap.Int("guilds", len(r.Guilds)))
		readyCtx, readyCancel := context.WithTimeout(ctx, 30*time.Second)
		defer readyCancel()
		if _, err := publisher.Ensure(readyCtx); err != nil {
			logger.Error("ensure ticket panel failed", zap.Error(err))
		}
		if err := panel.RegisterCommands(readyCtx, gw, cfg.Discord.GuildID, logger); err != nil {
			logger.Error("register slash commands failed", zap.Error(err))
		}
	})
	session.AddHandler(func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		handleInteraction(ctx, s, ic.Interaction, router, cfg.Tickets.RetryDelay, logger)
	})

	if err := session.Open(); err != nil {
		logger.Fatal("failed to open discord session", zap.Error(err))
	}
	defer session.Close()

	pingers := map[string]handlers.Pinger{"postgres": pg}
	if redis.Enabled() {
		pingers["redis"] = redis
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pingers),
		Admin:          handlers.NewAdminHandler(ticketService, moderationService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		Gatherer:       registry,
		StaffRoleIDs:   cfg.Discord.StaffRoleIDs,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	reconciler := worker.NewReconciler(ticketRepo, gw, cfg.Tickets.ReconcileInterval, metrics, logger)
	go reconciler.Run(ctx)

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
	dispatcher.Wait()
}

func newLimiter(cfg *config.Config, redis *persistence.Redis, logger *zap.Logger) ratelimit.Limiter {
	maxWindow := max(cfg.Tickets.CreateCooldown, cfg.Tickets.CloseCooldown, cfg.Tickets.StaffCommandCooldown)
	if redis.Enabled() {
		logger.Info("using redis cooldown store")
		return ratelimit.NewRedisLimiter(redis.Client, logger, maxWindow)
	}
	return ratelimit.NewMemoryLimiter(ratelimit.MemoryConfig{MaxWindow: maxWindow})
}

func handleInteraction(ctx context.Context, s *discordgo.Session, i *discordgo.Interaction, router *panel.Router, retryDelay time.Duration, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, interactionTimeout)
	defer cancel()

	resp := gateway.NewInteractionResponder(s, i, retryDelay)
	ev, err := panel.ParseInteraction(i)
	if errors.Is(err, panel.ErrUnsupported) {
		return
	}
	if err != nil {
		if replyErr := resp.Reply(ctx, gateway.Reply{Content: panel.UserMessage("handle interaction", err), Ephemeral: true}); replyErr != nil {
			logger.Warn("reply to interaction failed", zap.Error(replyErr))
		}
		return
	}

	if err := router.Handle(ctx, ev, resp); err != nil {
		level := logger.Warn
		if apperrors.IsCode(err, apperrors.CodeExternalService) {
			level = logger.Error
		}
		level("interaction handling failed",
			zap.String("interaction_id", i.ID),
			zap.String("channel_id", i.ChannelID),
			zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
