package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/envention-steve/union-ui-sub002/idp"
	"github.com/envention-steve/union-ui-sub002/idp/local"
	oidcidp "github.com/envention-steve/union-ui-sub002/idp/oidc"
	"github.com/envention-steve/union-ui-sub002/internal/config"
	"github.com/envention-steve/union-ui-sub002/internal/metrics"
	"github.com/envention-steve/union-ui-sub002/server"
	"github.com/envention-steve/union-ui-sub002/session"
	"github.com/envention-steve/union-ui-sub002/token"
	"github.com/envention-steve/union-ui-sub002/token/refresh"
	refreshrepofake "github.com/envention-steve/union-ui-sub002/token/refresh/repofake"
	fakeuserrepo "github.com/envention-steve/union-ui-sub002/users/repofake"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultDevUsers = "admin@example.com:admin:Administrator:admin"

func main() {
	_ = godotenv.Load()
	c := config.New()
	setupLogging(c)

	if err := run(c); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run(c config.Config) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	displayAppname(c.GetAppName())

	signer, err := token.NewSessionSigner(c, c)
	if err != nil {
		return err
	}
	codec := session.NewCodec(signer,
		session.WithCookieName(c.GetSessionCookieName()),
		session.WithSecureCookie(c.GetSecureCookies()),
	)

	provider, err := newIdentityProvider(c)
	if err != nil {
		return err
	}

	handler, err := server.New(c, codec, provider, server.WithMetrics(metrics.New()))
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- listenAndServe(srv)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(srv)
}

func newIdentityProvider(c config.Config) (idp.Provider, error) {
	if issuer := c.GetIdPIssuerURL(); issuer != "" {
		log.Info().Str("issuer", issuer).Msg("Using OIDC identity provider")
		return oidcidp.New(c, oidcidp.WithLogger(log.Logger)), nil
	}

	// The local provider signs its access tokens with its own ephemeral key
	secret, err := token.RandomHMACSecret()
	if err != nil {
		return nil, err
	}
	signer, err := token.NewHMACSigner(secret)
	if err != nil {
		return nil, err
	}

	accounts := fakeuserrepo.NewFakeUserRepo()
	seed := c.GetLocalUsers()
	if seed == "" && c.IsDev() {
		seed = defaultDevUsers
		log.Warn().Msg("LOCAL_USERS not set, seeding the default development account admin@example.com")
	}
	count, err := local.Seed(accounts, seed)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		log.Warn().Msg("Local identity provider has no accounts; every login will fail")
	}
	log.Info().Int("accounts", count).Msg("Using local identity provider")

	refreshTokens := refresh.NewManager(refreshrepofake.NewFakeRefreshTokenRepo(), c.GetLocalRefreshTokenTTL())
	return local.New(accounts, signer, refreshTokens, c.GetLocalAccessTokenTTL(), local.WithLogger(log.Logger)), nil
}

func setupLogging(c config.Config) {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.IsDev() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
