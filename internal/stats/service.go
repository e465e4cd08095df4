package stats

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mariogenie/genie-chat/internal/store/redisstore"
)

const snapshotKey = "stats:dashboard"

// Cache is the snapshot cache. Implemented by redisstore.Store.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Snapshot is everything the dashboard renders in one refresh.
type Snapshot struct {
	GeneratedAt       time.Time         `json:"generated_at"`
	Engagement        Engagement        `json:"engagement"`
	NPS               NPS               `json:"nps"`
	ConversationStats ConversationStats `json:"conversation_stats"`
	TopUsers          []UserActivity    `json:"top_users"`
	TopQuestions      []QuestionCount   `json:"top_questions"`
	HourlyActivity    []HourCount       `json:"hourly_activity"`
	UniqueVisitors    []DateCount       `json:"unique_visitors"`
	FeedbackTrends    []FeedbackTrend   `json:"feedback_trends"`
	Retention         []RetentionCell   `json:"retention"`
}

type Service struct {
	repo  *Repo
	cache Cache
	log   *zap.Logger
	ttl   time.Duration
}

// NewService wires the analytics queries to an optional snapshot cache whose
// TTL should match the dashboard's auto-refresh interval.
func NewService(repo *Repo, cache Cache, log *zap.Logger, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Service{repo: repo, cache: cache, log: log, ttl: ttl}
}

func (s *Service) Repo() *Repo { return s.repo }

// Dashboard returns the cached snapshot when fresh, recomputing otherwise.
// force skips the cache (the dashboard's manual refresh button).
func (s *Service) Dashboard(ctx context.Context, force bool) (*Snapshot, error) {
	if s.cache != nil && !force {
		var cached Snapshot
		err := s.cache.GetJSON(ctx, snapshotKey, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, redisstore.ErrMiss) {
			s.log.Warn("stats cache read failed", zap.Error(err))
		}
	}

	snap, err := s.compute(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, snapshotKey, snap, s.ttl); err != nil {
			s.log.Warn("stats cache write failed", zap.Error(err))
		}
	}
	return snap, nil
}

func (s *Service) compute(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{GeneratedAt: time.Now().UTC()}

	var err error
	if snap.Engagement, err = s.repo.Engagement(ctx); err != nil {
		return nil, err
	}
	if snap.NPS, err = s.repo.NPS(ctx); err != nil {
		return nil, err
	}
	if snap.ConversationStats, err = s.repo.ConversationStats(ctx); err != nil {
		return nil, err
	}
	if snap.TopUsers, err = s.repo.TopUsers(ctx, 10); err != nil {
		return nil, err
	}
	if snap.TopQuestions, err = s.repo.TopQuestions(ctx, 20); err != nil {
		return nil, err
	}
	if snap.HourlyActivity, err = s.repo.HourlyActivity(ctx); err != nil {
		return nil, err
	}
	if snap.UniqueVisitors, err = s.repo.UniqueVisitors(ctx, Daily); err != nil {
		return nil, err
	}
	if snap.FeedbackTrends, err = s.repo.FeedbackTrends(ctx); err != nil {
		return nil, err
	}
	if snap.Retention, err = s.repo.Retention(ctx); err != nil {
		return nil, err
	}
	return snap, nil
}
