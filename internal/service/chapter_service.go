package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"fableweaver/internal/ai"
	"fableweaver/internal/config"
	"fableweaver/internal/models"
	"fableweaver/internal/notifications"
	"fableweaver/internal/observability"
	"fableweaver/internal/repository"

	"github.com/aryann/difflib"
	"github.com/samber/lo"
)

const (
	maxChapterTitleLen   = 200
	maxChapterContentLen = 200000
	maxPromptLen         = 4000
	recentProgressions   = 10
	chapterMaxTokens     = 4096
	chapterTemperature   = 0.8
)

// ChapterService writes, reads and generates chapters.
type ChapterService struct {
	novels     repository.NovelRepository
	chapters   repository.ChapterRepository
	characters repository.CharacterRepository
	reading    repository.ReadingHistoryRepository
	generator  ai.Generator
	prompts    *ai.Prompts
	tokens     *ai.TokenCounter
	publisher  notifications.Publisher
	retry      RetryPolicy
	budget     int
}

func NewChapterService(
	novels repository.NovelRepository,
	chapters repository.ChapterRepository,
	characters repository.CharacterRepository,
	reading repository.ReadingHistoryRepository,
	generator ai.Generator,
	prompts *ai.Prompts,
	publisher notifications.Publisher,
	cfg *config.Config,
) *ChapterService {
	budget := 6000
	if cfg != nil && cfg.AIContextTokenBudget > 0 {
		budget = cfg.AIContextTokenBudget
	}
	return &ChapterService{
		novels:     novels,
		chapters:   chapters,
		characters: characters,
		reading:    reading,
		generator:  generator,
		prompts:    prompts,
		tokens:     ai.DefaultTokenCounter,
		publisher:  publisher,
		retry:      RetryPolicyFrom(cfg),
		budget:     budget,
	}
}

// authorNovel loads a live novel that userID may write to.
func (s *ChapterService) authorNovel(ctx context.Context, userID, novelID uint) (*models.Novel, error) {
	novel, err := s.novels.GetByID(ctx, novelID)
	if err != nil {
		return nil, err
	}
	if novel.IsDeleted {
		return nil, models.NewNotFoundError("Novel", novelID)
	}
	if novel.AuthorID != userID {
		return nil, models.NewForbiddenError("Only the author can change this novel")
	}
	return novel, nil
}

// readableNovel loads a novel that is listed publicly or written by userID.
func (s *ChapterService) readableNovel(ctx context.Context, userID, novelID uint) (*models.Novel, error) {
	novel, err := s.novels.GetByID(ctx, novelID)
	if err != nil {
		return nil, err
	}
	if novel.IsDeleted || (!novel.Listable() && novel.AuthorID != userID) {
		return nil, models.NewNotFoundError("Novel", novelID)
	}
	return novel, nil
}

// ChapterInput is a manually written chapter.
type ChapterInput struct {
	Title   string
	Content string
	Summary string
}

func (in *ChapterInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	in.Summary = strings.TrimSpace(in.Summary)
	if in.Title == "" || in.Content == "" {
		return models.NewValidationError("Title and content are required")
	}
	if utf8.RuneCountInString(in.Title) > maxChapterTitleLen {
		return models.NewValidationError("Title too long (max 200 characters)")
	}
	if len(in.Content) > maxChapterContentLen {
		return models.NewValidationError("Chapter content too long")
	}
	return nil
}

// Create appends a hand-written chapter.
func (s *ChapterService) Create(ctx context.Context, userID, novelID uint, in ChapterInput) (*models.Chapter, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if _, err := s.authorNovel(ctx, userID, novelID); err != nil {
		return nil, err
	}
	chapter := &models.Chapter{
		NovelID:   novelID,
		Title:     in.Title,
		Content:   in.Content,
		Summary:   in.Summary,
		WordCount: wordCount(in.Content),
	}
	if err := s.chapters.Append(ctx, chapter); err != nil {
		return nil, err
	}
	return chapter, nil
}

// Update edits a chapter and keeps its previous text as a revision.
func (s *ChapterService) Update(ctx context.Context, userID, novelID uint, number int, in ChapterInput) (*models.Chapter, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if _, err := s.authorNovel(ctx, userID, novelID); err != nil {
		return nil, err
	}
	chapter, err := s.chapters.GetByNumber(ctx, novelID, number)
	if err != nil {
		return nil, err
	}
	previous := models.ChapterRevision{
		ChapterID: chapter.ID,
		EditorID:  userID,
		Title:     chapter.Title,
		Content:   chapter.Content,
	}
	chapter.Title = in.Title
	chapter.Content = in.Content
	if in.Summary != "" {
		chapter.Summary = in.Summary
	}
	chapter.WordCount = wordCount(in.Content)
	if err := s.chapters.UpdateWithRevision(ctx, chapter, previous); err != nil {
		return nil, err
	}
	return chapter, nil
}

// List returns the table of contents of a readable novel.
func (s *ChapterService) List(ctx context.Context, userID, novelID uint) ([]models.Chapter, error) {
	if _, err := s.readableNovel(ctx, userID, novelID); err != nil {
		return nil, err
	}
	return s.chapters.ListByNovel(ctx, novelID)
}

// Read returns one chapter, counts the view and moves the reader's position.
func (s *ChapterService) Read(ctx context.Context, userID, novelID uint, number int) (*models.Chapter, error) {
	novel, err := s.readableNovel(ctx, userID, novelID)
	if err != nil {
		return nil, err
	}
	chapter, err := s.chapters.GetByNumber(ctx, novelID, number)
	if err != nil {
		return nil, err
	}
	if novel.AuthorID != userID {
		s.novels.BufferView(ctx, novelID)
	}
	if userID != 0 {
		if err := s.reading.Record(ctx, userID, novelID, number); err != nil {
			slog.WarnContext(ctx, "failed to record reading history",
				slog.Uint64("user_id", uint64(userID)),
				slog.Uint64("novel_id", uint64(novelID)),
				slog.String("error", err.Error()))
		}
	}
	return chapter, nil
}

// Revisions lists stored revisions of a chapter, newest first. Author only.
func (s *ChapterService) Revisions(ctx context.Context, userID, novelID uint, number int) ([]models.ChapterRevision, error) {
	if _, err := s.authorNovel(ctx, userID, novelID); err != nil {
		return nil, err
	}
	chapter, err := s.chapters.GetByNumber(ctx, novelID, number)
	if err != nil {
		return nil, err
	}
	return s.chapters.ListRevisions(ctx, chapter.ID)
}

// Diff ops.
const (
	DiffEqual  = "equal"
	DiffInsert = "insert"
	DiffDelete = "delete"
)

// DiffSegment is a run of words that share one diff op.
type DiffSegment struct {
	Op   string `json:"op"`
	Text string `json:"text"`
}

// ChapterDiff compares two versions of a chapter word by word.
type ChapterDiff struct {
	FromRevisionID uint          `json:"from_revision_id"`
	ToRevisionID   *uint         `json:"to_revision_id"`
	Insertions     int           `json:"insertions"`
	Deletions      int           `json:"deletions"`
	Segments       []DiffSegment `json:"segments"`
}

// Diff compares revision fromID against revision toID, or against the current
// text when toID is nil. Both revisions must belong to the chapter.
func (s *ChapterService) Diff(ctx context.Context, userID, novelID uint, number int, fromID uint, toID *uint) (*ChapterDiff, error) {
	if _, err := s.authorNovel(ctx, userID, novelID); err != nil {
		return nil, err
	}
	chapter, err := s.chapters.GetByNumber(ctx, novelID, number)
	if err != nil {
		return nil, err
	}
	from, err := s.revisionOf(ctx, chapter.ID, fromID)
	if err != nil {
		return nil, err
	}
	target := chapter.Content
	if toID != nil {
		to, err := s.revisionOf(ctx, chapter.ID, *toID)
		if err != nil {
			return nil, err
		}
		target = to.Content
	}
	diff := WordDiff(from.Content, target)
	diff.FromRevisionID = from.ID
	diff.ToRevisionID = toID
	return diff, nil
}

func (s *ChapterService) revisionOf(ctx context.Context, chapterID, revisionID uint) (*models.ChapterRevision, error) {
	rev, err := s.chapters.GetRevision(ctx, revisionID)
	if err != nil {
		return nil, err
	}
	if rev.ChapterID != chapterID {
		return nil, models.NewNotFoundError("Revision", revisionID)
	}
	return rev, nil
}

// WordDiff computes word-level deltas from a to b.
func WordDiff(a, b string) *ChapterDiff {
	records := difflib.Diff(strings.Fields(a), strings.Fields(b))
	out := &ChapterDiff{Segments: []DiffSegment{}}
	var words []string
	op := ""
	flush := func() {
		if len(words) > 0 {
			out.Segments = append(out.Segments, DiffSegment{Op: op, Text: strings.Join(words, " ")})
		}
		words = words[:0]
	}
	for _, rec := range records {
		next := DiffEqual
		switch rec.Delta {
		case difflib.LeftOnly:
			next = DiffDelete
			out.Deletions++
		case difflib.RightOnly:
			next = DiffInsert
			out.Insertions++
		}
		if next != op {
			flush()
			op = next
		}
		words = append(words, rec.Payload)
	}
	flush()
	return out
}

// GenerateChapterInput asks the model for the novel's next chapter.
type GenerateChapterInput struct {
	NovelID   uint
	UserID    uint
	Prompt    string
	TitleHint string
	WordCount int
}

// GeneratedChapter is the outcome of a successful generation. Warnings list
// character bookkeeping that failed after the chapter was saved.
type GeneratedChapter struct {
	Chapter    *models.Chapter           `json:"chapter"`
	Characters []models.CharacterProfile `json:"characters"`
	Strategy   ai.Strategy               `json:"parse_strategy"`
	Attempts   int                       `json:"attempts"`
	Warnings   []string                  `json:"warnings,omitempty"`
}

// Generate writes the next chapter with the model.
func (s *ChapterService) Generate(ctx context.Context, in GenerateChapterInput) (*GeneratedChapter, error) {
	in.Prompt = strings.TrimSpace(in.Prompt)
	in.TitleHint = strings.TrimSpace(in.TitleHint)
	if in.Prompt == "" {
		return nil, models.NewValidationError("Prompt is required")
	}
	if utf8.RuneCountInString(in.Prompt) > maxPromptLen {
		return nil, models.NewValidationError("Prompt too long (max 4000 characters)")
	}
	if in.WordCount < 0 || in.WordCount > 10000 {
		return nil, models.NewValidationError("Word count must be between 0 and 10000")
	}

	span, ctx := observability.NewSpan(ctx, "chapter.generate")
	defer span.End()

	novel, err := s.authorNovel(ctx, in.UserID, in.NovelID)
	if err != nil {
		return nil, err
	}
	links, err := s.characters.ListNovelCharacters(ctx, novel.ID)
	if err != nil {
		return nil, err
	}
	req, err := s.buildChapterRequest(ctx, novel, links, in)
	if err != nil {
		return nil, err
	}

	type attemptResult struct {
		draft    *ai.ChapterDraft
		strategy ai.Strategy
	}
	res, attempts, err := retryGeneration(ctx, s.retry, ai.OpChapter, func(ctx context.Context, attempt int) (attemptResult, error) {
		raw, err := s.generator.Generate(ctx, req)
		if err != nil {
			return attemptResult{}, err
		}
		draft, strategy, err := ai.ParseChapter(raw)
		if err != nil {
			slog.WarnContext(ctx, "chapter reply unparseable",
				slog.Int("attempt", attempt),
				slog.Int("raw_len", len(raw)),
				slog.String("error", err.Error()))
			return attemptResult{}, err
		}
		return attemptResult{draft: draft, strategy: strategy}, nil
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	draft := res.draft
	title := strings.TrimSpace(draft.Title)
	if title == "" {
		title = lo.Ternary(in.TitleHint != "", in.TitleHint, fmt.Sprintf("Chapter %d", novel.ChapterCount+1))
	}
	chapter := &models.Chapter{
		NovelID:       novel.ID,
		Title:         truncateRunes(title, maxChapterTitleLen),
		Content:       draft.Content,
		Summary:       draft.Summary,
		WordCount:     wordCount(draft.Content),
		IsAIGenerated: true,
	}
	// Detached so a client disconnect after a paid generation still saves it.
	persistCtx := context.WithoutCancel(ctx)
	if err := s.chapters.Append(persistCtx, chapter); err != nil {
		return nil, err
	}

	profiles, warnings := s.applyArcs(persistCtx, novel, chapter, links, draft.Characters)
	out := &GeneratedChapter{
		Chapter:    chapter,
		Characters: profiles,
		Strategy:   res.strategy,
		Attempts:   attempts,
		Warnings:   warnings,
	}
	publish(persistCtx, s.publisher, novel.AuthorID, notifications.EventChapterGenerated, map[string]any{
		"novel_id":       novel.ID,
		"chapter_id":     chapter.ID,
		"chapter_number": chapter.ChapterNumber,
		"title":          chapter.Title,
	})
	return out, nil
}

func (s *ChapterService) buildChapterRequest(ctx context.Context, novel *models.Novel, links []models.NovelCharacter, in GenerateChapterInput) (ai.Request, error) {
	summaries, err := s.chapters.ListSummaries(ctx, novel.ID)
	if err != nil {
		return ai.Request{}, err
	}
	latest, err := s.chapters.Latest(ctx, novel.ID)
	if err != nil {
		return ai.Request{}, err
	}
	progressions, err := s.characters.RecentProgressions(ctx, novel.ID, recentProgressions)
	if err != nil {
		return ai.Request{}, err
	}

	summaryLines := lo.FilterMap(summaries, func(c models.Chapter, _ int) (string, bool) {
		text := strings.TrimSpace(c.Summary)
		if text == "" {
			return "", false
		}
		return fmt.Sprintf("Chapter %d (%s): %s", c.ChapterNumber, c.Title, text), true
	})
	lastChapter := ""
	if latest != nil {
		lastChapter = s.tokens.TrimFront(latest.Content, s.budget)
	}
	sheets := lo.Map(links, func(l models.NovelCharacter, _ int) string {
		c := l.Character
		return fmt.Sprintf("%s (%s): %s Personality: %s Background: %s", c.Name, l.Role, c.Description, c.Personality, c.Background)
	})
	// RecentProgressions is newest first; the prompt reads oldest first.
	progressionLines := make([]string, 0, len(progressions))
	for i := len(progressions) - 1; i >= 0; i-- {
		p := progressions[i]
		progressionLines = append(progressionLines, fmt.Sprintf("Chapter %d, %s: %s (feeling %s) %s",
			p.ChapterNumber, p.Character.Name, p.Development, p.EmotionalState, p.Relationships))
	}

	user, err := s.prompts.Render(ai.PromptChapterUser, map[string]any{
		"Title":        novel.Title,
		"Genre":        novel.Genre,
		"Tags":         []string(novel.Tags),
		"Description":  novel.Description,
		"Summaries":    summaryLines,
		"LastChapter":  lastChapter,
		"Characters":   sheets,
		"Progressions": progressionLines,
		"Number":       novel.ChapterCount + 1,
		"TitleHint":    in.TitleHint,
		"WordCount":    in.WordCount,
		"Prompt":       in.Prompt,
	})
	if err != nil {
		return ai.Request{}, models.NewInternalError(err)
	}
	system, err := s.prompts.Render(ai.PromptChapterSystem, nil)
	if err != nil {
		return ai.Request{}, models.NewInternalError(err)
	}
	return ai.Request{
		Operation:   ai.OpChapter,
		System:      system,
		User:        user,
		JSON:        true,
		Schema:      ai.ChapterSchema,
		MaxTokens:   chapterMaxTokens,
		Temperature: chapterTemperature,
	}, nil
}

// applyArcs upserts the characters named in the draft and records their
// progression. Failures are returned as warnings.
func (s *ChapterService) applyArcs(ctx context.Context, novel *models.Novel, chapter *models.Chapter, links []models.NovelCharacter, arcs []ai.CharacterArc) ([]models.CharacterProfile, []string) {
	byName := make(map[string]models.CharacterProfile, len(links))
	for _, l := range links {
		byName[strings.ToLower(strings.TrimSpace(l.Character.Name))] = l.Character
	}

	var warnings []string
	warn := func(name, what string, err error) {
		slog.WarnContext(ctx, "chapter character bookkeeping failed",
			slog.Uint64("chapter_id", uint64(chapter.ID)),
			slog.String("character", name),
			slog.String("step", what),
			slog.String("error", err.Error()))
		warnings = append(warnings, fmt.Sprintf("%s: could not %s", name, what))
	}

	profiles := make([]models.CharacterProfile, 0, len(arcs))
	for _, arc := range arcs {
		name := strings.TrimSpace(arc.Name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		profile, known := byName[key]
		if !known {
			profile = models.CharacterProfile{
				CreatorID:   novel.AuthorID,
				Name:        truncateRunes(name, 100),
				Description: arc.Development,
				IsActive:    true,
			}
			if err := s.characters.Create(ctx, &profile); err != nil {
				warn(name, "create character", err)
				continue
			}
			byName[key] = profile
		}
		role := arc.Role
		if role == "" {
			role = models.CharacterRoleSupporting
		}
		if err := s.characters.Link(ctx, novel.ID, profile.ID, role); err != nil {
			warn(name, "link character", err)
		}
		if err := s.characters.AddProgression(ctx, &models.CharacterProgression{
			NovelID:        novel.ID,
			CharacterID:    profile.ID,
			ChapterID:      chapter.ID,
			ChapterNumber:  chapter.ChapterNumber,
			Development:    arc.Development,
			EmotionalState: arc.EmotionalState,
			Relationships:  arc.Relationships,
		}); err != nil {
			warn(name, "record progression", err)
		}
		profiles = append(profiles, profile)
	}
	return profiles, warnings
}
