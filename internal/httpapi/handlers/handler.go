package handlers

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mariogenie/genie-chat/internal/config"
	"github.com/mariogenie/genie-chat/internal/event"
	"github.com/mariogenie/genie-chat/internal/favorite"
	"github.com/mariogenie/genie-chat/internal/genie"
	"github.com/mariogenie/genie-chat/internal/session"
	"github.com/mariogenie/genie-chat/internal/stats"
	"github.com/mariogenie/genie-chat/internal/store/redisstore"
	"github.com/mariogenie/genie-chat/internal/token"
)

type Handler struct {
	DB        *gorm.DB
	Cfg       config.Config
	Log       *zap.Logger
	Events    *event.Service
	Chat      *genie.Service
	Favorites *favorite.Repo
	Stats     *stats.Service
	Sessions  *session.Repo
	Tokens    *token.Source
}

func NewHandler(db *gorm.DB, cfg config.Config, log *zap.Logger, rds *redisstore.Store, notifier event.Notifier) *Handler {
	events := event.NewService(event.NewRepo(db), notifier, log, cfg.QuestionMaxLen)

	tokens := token.NewSource("")
	client := genie.NewClient(cfg.GenieHost, cfg.GenieSpaceID, tokens)
	client.PollInterval = time.Duration(cfg.GeniePollIntervalSec) * time.Second
	chat := genie.NewService(client, events, log, time.Duration(cfg.GenieTimeoutSec)*time.Second)

	var cache stats.Cache
	if rds != nil {
		cache = rds
	}
	statsSvc := stats.NewService(stats.NewRepo(db), cache, log, time.Duration(cfg.StatsCacheTTL)*time.Second)

	return &Handler{
		DB:        db,
		Cfg:       cfg,
		Log:       log,
		Events:    events,
		Chat:      chat,
		Favorites: favorite.NewRepo(db),
		Stats:     statsSvc,
		Sessions:  session.NewRepo(db),
		Tokens:    tokens,
	}
}
