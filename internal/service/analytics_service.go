package service

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"fableweaver/internal/cache"
	"fableweaver/internal/models"
	"fableweaver/internal/repository"

	"golang.org/x/sync/errgroup"
)

const (
	dashboardDays   = 30
	dashboardTopN   = 10
	analyticsFanout = 6
)

// UserAnalytics summarizes accounts.
type UserAnalytics struct {
	Total         int64                 `json:"total"`
	New7d         int64                 `json:"new_7d"`
	New30d        int64                 `json:"new_30d"`
	Active7d      int64                 `json:"active_7d"`
	Banned        int64                 `json:"banned"`
	SignupsPerDay []repository.DayCount `json:"signups_per_day"`
}

// GroupAnalytics summarizes group chats and the social graph.
type GroupAnalytics struct {
	SessionsTotal       int64                   `json:"sessions_total"`
	SessionsActive      int64                   `json:"sessions_active"`
	MessagesByRole      []repository.KeyCount   `json:"messages_by_role"`
	SessionsPerDay      []repository.DayCount   `json:"sessions_per_day"`
	TopCharacters       []repository.RankedItem `json:"top_characters"`
	FriendshipsAccepted int64                   `json:"friendships_accepted"`
	FriendshipsPending  int64                   `json:"friendships_pending"`
	DirectMessages7d    int64                   `json:"direct_messages_7d"`
}

// ContentAnalytics summarizes novels, chapters and comments.
type ContentAnalytics struct {
	NovelsByModeration []repository.KeyCount   `json:"novels_by_moderation"`
	NovelsByGenre      []repository.KeyCount   `json:"novels_by_genre"`
	Chapters7d         int64                   `json:"chapters_7d"`
	AIChapterShare     float64                 `json:"ai_chapter_share"`
	Comments7d         int64                   `json:"comments_7d"`
	TopNovels          []repository.RankedItem `json:"top_novels"`
}

// Dashboard is the admin landing page. Warnings name the figures that could
// not be computed; everything else is still filled in.
type Dashboard struct {
	Users       UserAnalytics    `json:"users"`
	Groups      GroupAnalytics   `json:"groups"`
	Content     ContentAnalytics `json:"content"`
	Warnings    []string         `json:"warnings,omitempty"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// AnalyticsService computes the admin dashboards.
type AnalyticsService struct {
	repo repository.AnalyticsRepository
	now  func() time.Time
}

func NewAnalyticsService(repo repository.AnalyticsRepository) *AnalyticsService {
	return &AnalyticsService{repo: repo, now: time.Now}
}

// sections runs named queries concurrently. A failing query becomes a warning
// instead of failing the others.
type sections struct {
	g        *errgroup.Group
	ctx      context.Context
	mu       sync.Mutex
	warnings []string
}

func newSections(ctx context.Context) *sections {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(analyticsFanout)
	return &sections{g: g, ctx: gctx}
}

func (s *sections) run(name string, fn func(ctx context.Context) error) {
	s.g.Go(func() error {
		if err := fn(s.ctx); err != nil {
			slog.WarnContext(s.ctx, "dashboard figure failed", slog.String("figure", name), slog.String("error", err.Error()))
			s.mu.Lock()
			s.warnings = append(s.warnings, name)
			s.mu.Unlock()
		}
		return nil
	})
}

func (s *sections) wait() []string {
	_ = s.g.Wait()
	return s.warnings
}

func (a *AnalyticsService) collectUsers(sec *sections, out *UserAnalytics) {
	now := a.now().UTC()
	count := func(name string, dest *int64, query string, args ...any) {
		sec.run(name, func(ctx context.Context) (err error) {
			*dest, err = a.repo.Count(ctx, &models.User{}, query, args...)
			return err
		})
	}
	count("users.total", &out.Total, "")
	count("users.new_7d", &out.New7d, "created_at >= ?", now.AddDate(0, 0, -7))
	count("users.new_30d", &out.New30d, "created_at >= ?", now.AddDate(0, 0, -30))
	count("users.active_7d", &out.Active7d, "last_active_at >= ?", now.AddDate(0, 0, -7))
	count("users.banned", &out.Banned, "is_banned = ?", true)
	sec.run("users.signups_per_day", func(ctx context.Context) (err error) {
		out.SignupsPerDay, err = a.repo.CreatedPerDay(ctx, &models.User{}, now.AddDate(0, 0, -dashboardDays))
		return err
	})
}

func (a *AnalyticsService) collectGroups(sec *sections, out *GroupAnalytics) {
	now := a.now().UTC()
	count := func(name string, dest *int64, model any, query string, args ...any) {
		sec.run(name, func(ctx context.Context) (err error) {
			*dest, err = a.repo.Count(ctx, model, query, args...)
			return err
		})
	}
	count("groups.sessions_total", &out.SessionsTotal, &models.GroupChatSession{}, "")
	count("groups.sessions_active", &out.SessionsActive, &models.GroupChatSession{}, "is_active = ?", true)
	count("groups.friendships_accepted", &out.FriendshipsAccepted, &models.Friendship{}, "status = ?", models.FriendshipStatusAccepted)
	count("groups.friendships_pending", &out.FriendshipsPending, &models.Friendship{}, "status = ?", models.FriendshipStatusPending)
	count("groups.direct_messages_7d", &out.DirectMessages7d, &models.FriendMessage{}, "created_at >= ?", now.AddDate(0, 0, -7))
	sec.run("groups.messages_by_role", func(ctx context.Context) (err error) {
		out.MessagesByRole, err = a.repo.MessagesByRole(ctx)
		return err
	})
	sec.run("groups.sessions_per_day", func(ctx context.Context) (err error) {
		out.SessionsPerDay, err = a.repo.CreatedPerDay(ctx, &models.GroupChatSession{}, now.AddDate(0, 0, -dashboardDays))
		return err
	})
	sec.run("groups.top_characters", func(ctx context.Context) (err error) {
		out.TopCharacters, err = a.repo.TopCharactersBySessions(ctx, dashboardTopN)
		return err
	})
}

func (a *AnalyticsService) collectContent(sec *sections, out *ContentAnalytics) {
	weekAgo := a.now().UTC().AddDate(0, 0, -7)
	sec.run("content.novels_by_moderation", func(ctx context.Context) (err error) {
		out.NovelsByModeration, err = a.repo.GroupCount(ctx, &models.Novel{}, "moderation_status", "is_deleted = ?", false)
		return err
	})
	sec.run("content.novels_by_genre", func(ctx context.Context) (err error) {
		out.NovelsByGenre, err = a.repo.GroupCount(ctx, &models.Novel{}, "genre", "is_deleted = ? AND genre <> ''", false)
		return err
	})
	sec.run("content.chapters_7d", func(ctx context.Context) (err error) {
		out.Chapters7d, err = a.repo.Count(ctx, &models.Chapter{}, "created_at >= ?", weekAgo)
		return err
	})
	sec.run("content.ai_chapter_share", func(ctx context.Context) error {
		total, err := a.repo.Count(ctx, &models.Chapter{}, "")
		if err != nil {
			return err
		}
		generated, err := a.repo.Count(ctx, &models.Chapter{}, "is_ai_generated = ?", true)
		if err != nil {
			return err
		}
		if total > 0 {
			out.AIChapterShare = math.Round(float64(generated)/float64(total)*1000) / 1000
		}
		return nil
	})
	sec.run("content.comments_7d", func(ctx context.Context) error {
		chapter, err := a.repo.Count(ctx, &models.ChapterComment{}, "created_at >= ?", weekAgo)
		if err != nil {
			return err
		}
		novel, err := a.repo.Count(ctx, &models.NovelComment{}, "created_at >= ?", weekAgo)
		if err != nil {
			return err
		}
		out.Comments7d = chapter + novel
		return nil
	})
	sec.run("content.top_novels", func(ctx context.Context) (err error) {
		out.TopNovels, err = a.repo.TopNovelsByViews(ctx, dashboardTopN)
		return err
	})
}

// Dashboard computes every section, cached for a minute.
func (a *AnalyticsService) Dashboard(ctx context.Context) (*Dashboard, error) {
	var d Dashboard
	err := cache.Aside(ctx, cache.AdminDashboardKey, &d, cache.DashboardTTL, func() error {
		sec := newSections(ctx)
		a.collectUsers(sec, &d.Users)
		a.collectGroups(sec, &d.Groups)
		a.collectContent(sec, &d.Content)
		d.Warnings = sec.wait()
		d.GeneratedAt = a.now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// UserAnalyticsResult wraps one section with its warnings.
type UserAnalyticsResult struct {
	UserAnalytics
	Warnings []string `json:"warnings,omitempty"`
}

func (a *AnalyticsService) Users(ctx context.Context) (*UserAnalyticsResult, error) {
	var res UserAnalyticsResult
	err := cache.Aside(ctx, cache.AdminUserAnalyticsKey, &res, cache.DashboardTTL, func() error {
		sec := newSections(ctx)
		a.collectUsers(sec, &res.UserAnalytics)
		res.Warnings = sec.wait()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// GroupAnalyticsResult wraps one section with its warnings.
type GroupAnalyticsResult struct {
	GroupAnalytics
	Warnings []string `json:"warnings,omitempty"`
}

func (a *AnalyticsService) Groups(ctx context.Context) *GroupAnalyticsResult {
	var res GroupAnalyticsResult
	sec := newSections(ctx)
	a.collectGroups(sec, &res.GroupAnalytics)
	res.Warnings = sec.wait()
	return &res
}

// ContentAnalyticsResult wraps one section with its warnings.
type ContentAnalyticsResult struct {
	ContentAnalytics
	Warnings []string `json:"warnings,omitempty"`
}

func (a *AnalyticsService) Content(ctx context.Context) *ContentAnalyticsResult {
	var res ContentAnalyticsResult
	sec := newSections(ctx)
	a.collectContent(sec, &res.ContentAnalytics)
	res.Warnings = sec.wait()
	return &res
}
