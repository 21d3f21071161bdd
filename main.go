package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deemkeen/scronth/accounts"
	"github.com/deemkeen/scronth/db"
	"github.com/deemkeen/scronth/moderation"
	"github.com/deemkeen/scronth/posts"
	"github.com/deemkeen/scronth/profiles"
	"github.com/deemkeen/scronth/storage"
	"github.com/deemkeen/scronth/util"
	"github.com/deemkeen/scronth/web"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func main() {

	conf, err := util.ReadConf()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read configuration")
	}

	util.InitLogger(conf.Conf.LogLevel, conf.Conf.LogFormat)
	log.Info().Str("version", util.GetNameAndVersion()).Msg("Starting")
	log.Debug().Msg("Configuration: " + util.PrettyPrint(redacted(*conf)))

	ctx := context.Background()

	local, err := storage.NewLocalStore(util.ResolveDataDir(conf.Conf.DataDir))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open local store")
	}

	doc := openDocumentStore(ctx, conf)
	defer doc.Close()

	remote := storage.NewRemoteAPI(conf.Conf.RemoteApi,
		storage.WithHTTPClient(&http.Client{Timeout: 10 * time.Second}),
		storage.WithProbeTimeout(time.Duration(conf.Conf.ProbeTimeoutSeconds)*time.Second),
	)

	// The HTTP API never forwards to a remote, so pointing remoteApi at this server cannot loop.
	hub := storage.NewSelector(doc, local)
	app := storage.NewSelector(remote, doc, local)

	repo := posts.NewRepository(app)
	profileSvc := profiles.NewService(local, repo)
	repo.SetCountRefresher(profileSvc)

	bans := moderation.NewBanList(local)
	accountSvc := accounts.NewService(local, bans)
	modSvc := moderation.NewService(local, accountSvc, profileSvc, repo)

	if err := accountSvc.SeedOwner(ctx, conf.Conf.Owner.Username, conf.Conf.Owner.Password); err != nil {
		log.Error().Err(err).Msg("Failed to seed owner account")
	}

	gin.SetMode(gin.ReleaseMode)
	router := web.Router(conf, web.Services{
		Store:      hub,
		Posts:      repo,
		Profiles:   profileSvc,
		Moderation: modSvc,
	})

	startServing(conf, router)
}

// openDocumentStore returns nil when the store is not configured or cannot be migrated,
// which leaves it out of both selectors.
func openDocumentStore(ctx context.Context, conf *util.AppConfig) *db.DB {
	ds := conf.Conf.DocumentStore
	if util.IsPlaceholder(ds.Dsn) {
		log.Info().Str("driver", ds.Driver).Msg("Document store not configured, skipping")
		return nil
	}

	database, err := db.Open(ds.Driver, ds.Dsn)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to open document store, continuing without it")
		return nil
	}

	migrateCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	log.Info().Msg("Running database migrations...")
	if err := database.RunMigrations(migrateCtx); err != nil {
		log.Warn().Err(err).Msg("Document store migrations failed, continuing without it")
		database.Close()
		return nil
	}
	log.Info().Msg("Database migrations complete")
	return database
}

func redacted(conf util.AppConfig) util.AppConfig {
	if conf.Conf.Owner.Password != "" {
		conf.Conf.Owner.Password = "***"
	}
	if conf.Conf.DocumentStore.Dsn != "" {
		conf.Conf.DocumentStore.Dsn = "***"
	}
	return conf
}

func startServing(conf *util.AppConfig, handler http.Handler) {
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", conf.Conf.Host, conf.Conf.HttpPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Str("addr", srv.Addr).Msg("Starting HTTP server")
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-done
	log.Info().Msg("Stopping HTTP server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("HTTP server shutdown failed")
	}
}
