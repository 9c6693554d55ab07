package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	auth "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-auth-session/kv"
	"github.com/goliatone/go-auth-session/mailer"
	"github.com/goliatone/go-auth-session/middleware/authgate"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type App struct {
	config  *auth.Options
	logger  *glog.BaseLogger
	db      *bun.DB
	store   *kv.RedisStore
	repo    auth.RepositoryManager
	mailer  *mailer.TemplateMailer
	srv     router.Server[*fiber.App]
	sink    auth.ActivitySink
	loggers map[string]auth.Logger
}

func (a *App) GetLogger(name string) auth.Logger {
	if lgr, ok := a.loggers[name]; ok {
		return lgr
	}
	lgr := printfLogger{lgr: a.logger.GetLogger(name)}
	a.loggers[name] = lgr
	return lgr
}

func main() {
	_ = godotenv.Load()

	cfg := auth.MustLoadOptions()

	app := &App{
		config:  cfg,
		logger:  newBaseLogger(),
		loggers: map[string]auth.Logger{},
	}

	lgr := app.GetLogger("app")
	lgr.Debug("options:\n%s", print.MaybePrettyJSON(redacted(cfg)))

	if err := WithSentry(app); err != nil {
		log.Fatal(err)
	}
	defer sentry.Flush(2 * time.Second)

	ctx := context.Background()

	if err := WithPersistence(ctx, app); err != nil {
		log.Fatal(err)
	}
	defer app.db.Close()

	if err := WithSessionStore(ctx, app); err != nil {
		log.Fatal(err)
	}
	defer app.store.Close()

	if err := WithMailer(app); err != nil {
		log.Fatal(err)
	}

	WithHTTPServer(app)

	if err := WithAuthRoutes(app); err != nil {
		log.Fatal(err)
	}

	go func() {
		lgr.Info("listening on %s", cfg.HTTPAddr)
		if err := app.srv.Serve(cfg.HTTPAddr); err != nil {
			lgr.Error("server stopped: %v", err)
		}
	}()

	sig := WaitExitSignal()
	lgr.Info("received %s, shutting down", sig)

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := app.srv.Shutdown(shutdownCtx); err != nil {
		lgr.Error("shutdown: %v", err)
	}

	app.mailer.Wait()
}

func WithSentry(app *App) error {
	app.sink = auth.ActivitySinkFunc(func(context.Context, auth.ActivityEvent) error { return nil })

	if app.config.SentryDSN == "" {
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              app.config.SentryDSN,
		Environment:      app.config.Environment,
		AttachStacktrace: true,
	})
	if err != nil {
		return err
	}

	app.sink = NewSentrySink()
	return nil
}

func WithPersistence(ctx context.Context, app *App) error {
	sqldb, err := sql.Open(sqliteshim.ShimName, app.config.DatabaseDSN)
	if err != nil {
		return err
	}

	app.db = bun.NewDB(sqldb, sqlitedialect.New())

	if err := auth.Migrate(ctx, app.db); err != nil {
		return err
	}

	app.repo = auth.NewRepositoryManager(app.db)
	return app.repo.Validate()
}

func WithSessionStore(ctx context.Context, app *App) error {
	store, err := kv.NewRedisStoreFromURL(app.config.RedisURL)
	if err != nil {
		return err
	}

	if err := store.Ping(ctx); err != nil {
		app.GetLogger("kv").Warn("redis not reachable at startup, requests will fail closed: %v", err)
	}

	app.store = store
	return nil
}

func WithMailer(app *App) error {
	var transport mailer.Transport = mailer.NewLogTransport(app.GetLogger("mail"))

	if app.config.SMTPHost != "" {
		smtpTransport, err := mailer.NewSMTPTransport(mailer.SMTPConfig{
			Host:     app.config.SMTPHost,
			Port:     app.config.SMTPPort,
			Username: app.config.SMTPUser,
			Password: app.config.SMTPPassword,
		})
		if err != nil {
			return err
		}
		transport = smtpTransport
	}

	m, err := mailer.New(transport, mailer.Config{
		From:            app.config.MailFrom,
		PublicURL:       app.config.PublicURL,
		VerificationTTL: app.config.GetVerificationTokenTTL(),
		ResetTTL:        app.config.GetResetTicketTTL(),
		Logger:          app.GetLogger("mail"),
	})
	if err != nil {
		return err
	}

	app.mailer = m
	return nil
}

func WithHTTPServer(app *App) {
	app.srv = router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:      true,
			EnablePrintRoutes: !app.config.IsProduction(),
			StrictRouting:     false,
		}))
	})
}

func WithAuthRoutes(app *App) error {
	cfg := app.config

	tokens, err := auth.NewTokenServiceFromConfig(cfg, app.GetLogger("auth:tokens"))
	if err != nil {
		return err
	}

	sessions := auth.NewSessionStore(app.store, tokens).
		WithTimeout(cfg.GetStoreTimeout()).
		WithResetTicketTTL(cfg.GetResetTicketTTL()).
		WithLogger(app.GetLogger("auth:sessions")).
		WithActivitySink(app.sink)

	gate := auth.NewAuthGate(tokens, sessions).
		WithAuthScheme(cfg.GetAuthScheme()).
		WithLogger(app.GetLogger("auth:gate"))

	users := app.repo.Users()

	auther := auth.NewAuther(users, tokens, sessions).
		WithThrottle(auth.NewLoginThrottle(cfg.LoginAttemptsPerMinute, cfg.LoginBurst)).
		WithLogger(app.GetLogger("auth:auther")).
		WithActivitySink(app.sink)

	ctrl := auth.NewHTTPController(auth.HTTPConfig{
		Auther: auther,
		Users:  users,
		Register: auth.NewRegisterUserHandler(users, tokens).
			WithMailer(app.mailer).
			WithVerificationTTL(cfg.GetVerificationTokenTTL()).
			WithLogger(app.GetLogger("auth:register")).
			WithActivitySink(app.sink),
		Verify: auth.NewAccountVerificationHandler(users, tokens).
			WithLogger(app.GetLogger("auth:verify")).
			WithActivitySink(app.sink),
		InitializeReset: auth.NewInitializePasswordResetHandler(users, sessions).
			WithMailer(app.mailer).
			WithLogger(app.GetLogger("auth:reset")).
			WithActivitySink(app.sink),
		FinalizeReset: auth.NewFinalizePasswordResetHandler(users, sessions).
			WithLogger(app.GetLogger("auth:reset")).
			WithActivitySink(app.sink),
		UpdateCredentials: auth.NewUpdateCredentialsHandler(users).
			WithLogger(app.GetLogger("auth:credentials")).
			WithActivitySink(app.sink),
		Guard: authgate.Guard(authgate.Config{
			Gate:       gate,
			ContextKey: cfg.GetContextKey(),
		}),
		ContextKey:    cfg.GetContextKey(),
		RefreshTTL:    cfg.GetRefreshTokenTTL(),
		SecureCookies: cfg.IsProduction(),
		UseHashid:     cfg.UseHashid,
		Debug:         !cfg.IsProduction(),
		Logger:        app.GetLogger("auth:http"),
		ErrorReporter: func(ctx router.Context, err error) {
			if hub := sentry.CurrentHub(); hub.Client() != nil {
				hub.CaptureException(err)
			}
		},
	})

	ctrl.RegisterRoutes(app.srv.Router().Group(auth.DefaultRoutePrefix))

	return nil
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}

func redacted(cfg *auth.Options) auth.Options {
	out := *cfg
	out.SigningKey = "***"
	if out.SMTPPassword != "" {
		out.SMTPPassword = "***"
	}
	return out
}
