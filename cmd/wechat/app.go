package main

import (
	"context"
	"net/http"
	"time"

	"wechat/internal/conversation"
	"wechat/internal/database"
	"wechat/internal/media"
	"wechat/internal/models"
	"wechat/internal/moderation"
	"wechat/internal/realtime"
	"wechat/internal/service"
	"wechat/internal/tracing"
	"wechat/pkg/chatapi"

	"github.com/sirupsen/logrus"
)

// app is the wired client for one configured user.
type app struct {
	cfg       *models.Config
	logger    *logrus.Logger
	tracing   *tracing.TracingManager
	store     *conversation.Store
	filter    *moderation.Filter
	audit     *database.Database
	session   *service.ChatSession
	scheduler *service.Scheduler
}

func newApp(ctx context.Context, cfg *models.Config, logger *logrus.Logger, notifier service.Notifier) (*app, error) {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		tracing: tracing.NewTracingManager(cfg.Tracing, logger),
		store:   conversation.NewStore(),
	}

	if err := a.tracing.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}

	client := chatapi.NewClientWithLogger(cfg.Server.BaseURL, chatapi.Routes{
		Upload:  cfg.Server.UploadPath,
		History: cfg.Server.HistoryPath,
		Users:   cfg.Server.UsersPath,
	}, &http.Client{
		Timeout: time.Duration(cfg.Server.HTTPTimeoutSec) * time.Second,
	}, logger)

	channel, err := realtime.NewChannel(cfg.Realtime, cfg.Session.UserID, logger)
	if err != nil {
		a.close()
		return nil, err
	}

	if cfg.Moderation.IsEnabled() {
		a.filter = moderation.NewFilter(cfg.Moderation.Terms, cfg.Moderation.Threshold, nil)
	}

	var audit service.AuditLog
	var retention service.RetentionStore
	if cfg.Database.Path != "" {
		a.audit, err = database.Open(ctx, cfg.Database.Path, cfg.Retry, logger)
		if err != nil {
			a.close()
			return nil, err
		}
		audit = a.audit
		retention = a.audit
	} else {
		logger.Info("Moderation audit log disabled")
	}

	recorder := media.NewFFmpegRecorder(cfg.Media.Recorder, cfg.Media.TempDir, logger)
	pipeline := media.NewPipeline(media.NewPolicy(cfg.Media), recorder, client, a.store, logger)

	a.session, err = service.NewChatSession(service.SessionDeps{
		UserID:    cfg.Session.UserID,
		Channel:   channel,
		Store:     a.store,
		Filter:    a.filter,
		Pipeline:  pipeline,
		Directory: client,
		Notifier:  notifier,
		Audit:     audit,
		Logger:    logger,
	})
	if err != nil {
		a.close()
		return nil, err
	}

	a.scheduler = service.NewScheduler(retention, cfg.Database.RetentionDays, 0, cfg.Media.TempDir, logger)
	return a, nil
}

// moderationInfo describes the active filter for the status server.
func (a *app) moderationInfo() moderationInfo {
	if a.filter == nil {
		return moderationInfo{}
	}
	return moderationInfo{
		Enabled:   true,
		Threshold: a.filter.Threshold(),
		Terms:     a.filter.Terms(),
	}
}

// flagLog returns the audit log, or nil when it is disabled.
func (a *app) flagLog() flagLog {
	if a.audit == nil {
		return nil
	}
	return a.audit
}

func (a *app) close() {
	if a.session != nil {
		if err := a.session.Stop(); err != nil {
			a.logger.WithError(err).Warn("Failed to stop chat session")
		}
	}
	if a.audit != nil {
		if err := a.audit.Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close audit log")
		}
	}
	if err := a.tracing.Shutdown(context.Background()); err != nil {
		a.logger.Warnf("Failed to shutdown tracing: %v", err)
	}
}
