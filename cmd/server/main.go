package main

import (
	"context"
	"log"

	"github.com/labstack/echo/v4"

	"github.com/draftpact/nda-negotiation/internal/config"
	"github.com/draftpact/nda-negotiation/internal/database"
	"github.com/draftpact/nda-negotiation/internal/handler"
	"github.com/draftpact/nda-negotiation/internal/mail"
	"github.com/draftpact/nda-negotiation/internal/queue"
	"github.com/draftpact/nda-negotiation/internal/render"
	"github.com/draftpact/nda-negotiation/internal/repository"
	"github.com/draftpact/nda-negotiation/internal/router"
	"github.com/draftpact/nda-negotiation/internal/service"
	"github.com/draftpact/nda-negotiation/internal/storage"
)

func main() {
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	rdb := config.NewRedisClient()

	// Repositories.
	users := repository.NewUserRepo(db)
	sessions := repository.NewTokenRepo(db)
	docs := repository.NewDocumentRepo(db)
	signers := repository.NewSignerRepo(db)
	tokens := repository.NewAccessTokenRepo(db)
	revisions := repository.NewRevisionRepo(db)
	audit := repository.NewAuditRepo(db)

	// Notification pipeline. Artifact archiving is optional; without a
	// bucket the dispatcher just skips the upload.
	var store storage.ObjectStore
	if cfg.S3Bucket != "" {
		s3store, err := storage.NewS3Store(context.Background(), cfg.S3Bucket)
		if err != nil {
			log.Printf("s3 store unavailable, archiving disabled: %v", err)
		} else {
			store = s3store
		}
	}
	renderer := render.NewHTMLRenderer(render.DefaultTemplates())
	dispatcher := service.NewDispatcher(renderer, store, cfg.AppURL, cfg.SignedURLTTL)

	var mailer mail.Mailer = mail.LogMailer{}
	if cfg.SMTPAddr != "" {
		mailer = mail.NewSMTPMailer(cfg.SMTPAddr, cfg.SMTPFrom)
	}
	go func() {
		if err := queue.StartNotificationConsumer(mailer); err != nil {
			log.Printf("notification consumer stopped: %v", err)
		}
	}()

	svc := service.NewWorkflowService(db, docs, signers, tokens, revisions, audit, dispatcher, cfg)

	// Handlers and routes.
	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, sessions), cfg.JWTSecret)
	router.RegisterOwner(e, handler.NewDocumentHandler(svc, docs, signers, users),
		handler.NewHistoryHandler(docs, revisions, audit, users), cfg.JWTSecret)
	router.RegisterTokenRoutes(e, handler.NewTokenHandler(svc, revisions), rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
