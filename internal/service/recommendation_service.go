package service

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"fableweaver/internal/ai"
	"fableweaver/internal/cache"
	"fableweaver/internal/featureflags"
	"fableweaver/internal/models"
	"fableweaver/internal/repository"

	"github.com/samber/lo"
)

const (
	genreWeight      = 0.5
	popularityWeight = 0.3
	recencyWeight    = 0.2
	recencyHalfLife  = 14 * 24 * time.Hour

	candidatePool = 200
	rerankWindow  = 30
	feedSize      = 50
)

// ScoredNovel is one feed entry with its heuristic breakdown.
type ScoredNovel struct {
	Novel      models.Novel `json:"novel"`
	Score      float64      `json:"score"`
	Genre      float64      `json:"genre_score"`
	Popularity float64      `json:"popularity_score"`
	Recency    float64      `json:"recency_score"`
}

// RecommendationFeed is what a user sees on their home page.
type RecommendationFeed struct {
	Items       []ScoredNovel `json:"items"`
	Reranked    bool          `json:"reranked"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// RecommendationService ranks novels for a reader.
type RecommendationService struct {
	novels    repository.NovelRepository
	reading   repository.ReadingHistoryRepository
	generator ai.Generator
	prompts   *ai.Prompts
	flags     featureflags.Checker
	now       func() time.Time
}

func NewRecommendationService(
	novels repository.NovelRepository,
	reading repository.ReadingHistoryRepository,
	generator ai.Generator,
	prompts *ai.Prompts,
	flags featureflags.Checker,
) *RecommendationService {
	return &RecommendationService{
		novels:    novels,
		reading:   reading,
		generator: generator,
		prompts:   prompts,
		flags:     flags,
		now:       time.Now,
	}
}

// Feed returns up to limit recommendations, cached per user.
func (s *RecommendationService) Feed(ctx context.Context, userID uint, limit int) (*RecommendationFeed, error) {
	limit, _ = ClampPage(limit, 0)
	var feed RecommendationFeed
	err := cache.Aside(ctx, cache.RecommendationKey(userID), &feed, cache.RecommendationTTL, func() error {
		built, err := s.build(ctx, userID)
		if err != nil {
			return err
		}
		feed = *built
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(feed.Items) > limit {
		feed.Items = feed.Items[:limit]
	}
	return &feed, nil
}

func (s *RecommendationService) build(ctx context.Context, userID uint) (*RecommendationFeed, error) {
	read, err := s.reading.ReadNovelIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	genres, err := s.reading.GenreCounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	candidates, err := s.novels.ListCandidates(ctx, userID, read, candidatePool)
	if err != nil {
		return nil, err
	}

	scored := ScoreNovels(candidates, genres, s.now())
	feed := &RecommendationFeed{GeneratedAt: s.now().UTC()}
	if s.flags != nil && s.flags.Enabled(featureflags.AIRecommendations, userID) && len(scored) > 1 {
		if reranked, err := s.rerank(ctx, scored, genres); err != nil {
			slog.WarnContext(ctx, "recommendation rerank failed, using heuristic order",
				slog.Uint64("user_id", uint64(userID)),
				slog.String("error", err.Error()))
		} else {
			scored = reranked
			feed.Reranked = true
		}
	}
	if len(scored) > feedSize {
		scored = scored[:feedSize]
	}
	feed.Items = scored
	return feed, nil
}

// ScoreNovels ranks candidates by genre affinity, popularity and recency.
func ScoreNovels(candidates []models.Novel, genres []repository.GenreCount, now time.Time) []ScoredNovel {
	var totalReads int64
	affinity := make(map[string]int64, len(genres))
	for _, g := range genres {
		affinity[strings.ToLower(g.Genre)] += g.Count
		totalReads += g.Count
	}
	maxPop := 0.0
	for _, n := range candidates {
		maxPop = math.Max(maxPop, math.Log1p(float64(max(n.ViewCount, 0))))
	}

	out := make([]ScoredNovel, 0, len(candidates))
	for _, n := range candidates {
		item := ScoredNovel{Novel: n}
		if totalReads > 0 {
			item.Genre = float64(affinity[strings.ToLower(n.Genre)]) / float64(totalReads)
		}
		if maxPop > 0 {
			item.Popularity = math.Log1p(float64(max(n.ViewCount, 0))) / maxPop
		}
		age := max(now.Sub(n.CreatedAt), 0)
		item.Recency = math.Pow(0.5, float64(age)/float64(recencyHalfLife))
		item.Score = genreWeight*item.Genre + popularityWeight*item.Popularity + recencyWeight*item.Recency
		out = append(out, item)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Novel.ID > out[j].Novel.ID
	})
	return out
}

type rerankCandidate struct {
	ID          uint
	Title       string
	Genre       string
	Description string
}

func (s *RecommendationService) rerank(ctx context.Context, scored []ScoredNovel, genres []repository.GenreCount) ([]ScoredNovel, error) {
	window := scored[:min(len(scored), rerankWindow)]
	favourite := lo.Map(genres, func(g repository.GenreCount, _ int) string { return g.Genre })
	if len(favourite) == 0 {
		favourite = []string{"anything"}
	}
	user, err := s.prompts.Render(ai.PromptRerankUser, map[string]any{
		"Genres": favourite,
		"Candidates": lo.Map(window, func(item ScoredNovel, _ int) rerankCandidate {
			return rerankCandidate{
				ID:          item.Novel.ID,
				Title:       item.Novel.Title,
				Genre:       item.Novel.Genre,
				Description: truncateRunes(item.Novel.Description, 200),
			}
		}),
	})
	if err != nil {
		return nil, err
	}
	system, err := s.prompts.Render(ai.PromptRerankSystem, nil)
	if err != nil {
		return nil, err
	}
	raw, err := s.generator.Generate(ctx, ai.Request{
		Operation:   ai.OpRerank,
		System:      system,
		User:        user,
		JSON:        true,
		Schema:      ai.RerankSchema,
		MaxTokens:   512,
		Temperature: 0.2,
	})
	if err != nil {
		return nil, err
	}
	ids, err := ai.ParseRerank(raw)
	if err != nil {
		return nil, err
	}
	return MergeRanking(scored, ids), nil
}

// MergeRanking orders scored by ids. Unknown and repeated ids are dropped, and
// entries the ranking missed keep their heuristic order after the ranked ones.
func MergeRanking(scored []ScoredNovel, ids []uint) []ScoredNovel {
	byID := lo.KeyBy(scored, func(item ScoredNovel) uint { return item.Novel.ID })
	placed := make(map[uint]bool, len(ids))
	out := make([]ScoredNovel, 0, len(scored))
	for _, id := range ids {
		item, ok := byID[id]
		if !ok || placed[id] {
			continue
		}
		placed[id] = true
		out = append(out, item)
	}
	for _, item := range scored {
		if !placed[item.Novel.ID] {
			out = append(out, item)
		}
	}
	return out
}
