package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cratedig/cratedig"
	"github.com/cratedig/cratedig/accounts"
	"github.com/cratedig/cratedig/config"
	"github.com/cratedig/cratedig/mail"
	"github.com/cratedig/cratedig/render"
	"github.com/cratedig/cratedig/search"
	"github.com/cratedig/cratedig/server"
	"github.com/cratedig/cratedig/utils"
)

func main() {
	cfg := config.Get()
	log := utils.NewDefaultLogger(utils.ParseLevel(cfg.LogLevel))

	if cfg.JWTSecret == "" {
		log.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	store, err := cratedig.OpenStore(cfg.DBPath, log)
	if err != nil {
		log.Error("cannot open store", "path", cfg.DBPath, "err", err)
		os.Exit(1)
	}
	defer store.Close()

	acc := accounts.New(store, log)
	posts := cratedig.NewPostStore(store, log, cratedig.PostStoreOptions{
		Render: render.Notes,
		Names:  acc,
	})
	index := search.NewIndex(store, log, posts)
	worker := search.NewWorker(index, log, cfg.IndexQueueLimit)
	posts.SetIndexer(worker)
	feed := cratedig.NewFeedReader(posts)

	prometheus.MustRegister(cratedig.NewPebbleCollector(store))
	prometheus.MustRegister(search.Metrics()...)

	var mailer mail.Sender
	if cfg.SMTPHost != "" {
		mailer = mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
			StartTLS: cfg.SMTPTLS,
		})
	} else {
		mailer = &mail.LogSender{Log: log}
	}

	handlers := server.NewHandlers(cfg, log, posts, feed, index, acc, mailer)
	router := server.SetupRouter(handlers)

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("listening", "port", cfg.AppPort, "db", cfg.DBPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("forced shutdown", "err", err)
	}
	worker.Close()
}
