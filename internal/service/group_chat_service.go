package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"fableweaver/internal/ai"
	"fableweaver/internal/cache"
	"fableweaver/internal/config"
	"fableweaver/internal/featureflags"
	"fableweaver/internal/models"
	"fableweaver/internal/notifications"
	"fableweaver/internal/observability"
	"fableweaver/internal/repository"

	"github.com/samber/lo"
	"github.com/samber/mo"
	"golang.org/x/sync/errgroup"
)

const (
	maxChatMessageLen    = 2000
	maxChatTitleLen      = 200
	maxChatMembers       = 8
	chatReplyMaxTokens   = 400
	chatReplyTemperature = 0.9
)

// GroupChatConfig tunes turn orchestration.
type GroupChatConfig struct {
	ReplyMaxChars   int
	HistoryWindow   int
	AutoMinRounds   int
	AutoMaxRounds   int
	SkipProbability float64
	RoundDelay      time.Duration
	MaxParallel     int
	TurnLockTTL     time.Duration
}

// GroupChatConfigFrom reads the CHAT_* settings, filling gaps with defaults.
func GroupChatConfigFrom(cfg *config.Config) GroupChatConfig {
	out := GroupChatConfig{
		ReplyMaxChars:   500,
		HistoryWindow:   20,
		AutoMinRounds:   1,
		AutoMaxRounds:   3,
		SkipProbability: 0.3,
		RoundDelay:      1500 * time.Millisecond,
		MaxParallel:     4,
		TurnLockTTL:     2 * time.Minute,
	}
	if cfg == nil {
		return out
	}
	if cfg.ChatReplyMaxChars > 0 {
		out.ReplyMaxChars = cfg.ChatReplyMaxChars
	}
	if cfg.ChatHistoryWindow > 0 {
		out.HistoryWindow = cfg.ChatHistoryWindow
	}
	if cfg.ChatAutoMaxRounds >= cfg.ChatAutoMinRounds && cfg.ChatAutoMaxRounds > 0 {
		out.AutoMinRounds, out.AutoMaxRounds = cfg.ChatAutoMinRounds, cfg.ChatAutoMaxRounds
	}
	if cfg.ChatSkipProbability >= 0 && cfg.ChatSkipProbability < 1 {
		out.SkipProbability = cfg.ChatSkipProbability
	}
	if cfg.ChatRoundDelay >= 0 {
		out.RoundDelay = cfg.ChatRoundDelay
	}
	if cfg.ChatMaxParallel > 0 {
		out.MaxParallel = cfg.ChatMaxParallel
	}
	if cfg.ChatTurnLockTTL > 0 {
		out.TurnLockTTL = cfg.ChatTurnLockTTL
	}
	return out
}

// Random is the source of skip and round-count decisions.
type Random interface {
	Float64() float64
	IntN(n int) int
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// GroupChatService runs conversations between a user and AI characters.
type GroupChatService struct {
	sessions   repository.GroupChatRepository
	characters repository.CharacterRepository
	generator  ai.Generator
	prompts    *ai.Prompts
	flags      featureflags.Checker
	publisher  notifications.Publisher
	cfg        GroupChatConfig

	rngMu sync.Mutex
	rng   Random
	sleep SleepFunc
	now   func() time.Time

	localMu    sync.Mutex
	localTurns map[uint]struct{}
}

// GroupChatOption customizes a GroupChatService.
type GroupChatOption func(*GroupChatService)

// WithRandom replaces the random source.
func WithRandom(r Random) GroupChatOption {
	return func(s *GroupChatService) { s.rng = r }
}

// WithSleep replaces the delay between auto rounds.
func WithSleep(fn SleepFunc) GroupChatOption {
	return func(s *GroupChatService) { s.sleep = fn }
}

func NewGroupChatService(
	sessions repository.GroupChatRepository,
	characters repository.CharacterRepository,
	generator ai.Generator,
	prompts *ai.Prompts,
	flags featureflags.Checker,
	publisher notifications.Publisher,
	cfg GroupChatConfig,
	opts ...GroupChatOption,
) *GroupChatService {
	s := &GroupChatService{
		sessions:   sessions,
		characters: characters,
		generator:  generator,
		prompts:    prompts,
		flags:      flags,
		publisher:  publisher,
		cfg:        cfg,
		rng:        rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
		sleep:      sleepContext,
		now:        time.Now,
		localTurns: make(map[uint]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSessionInput starts a new conversation.
type CreateSessionInput struct {
	Title        string
	CharacterIDs []uint
	AutoChat     bool
}

func (s *GroupChatService) validateMembers(ctx context.Context, userID uint, ids []uint) ([]uint, error) {
	ids = lo.Uniq(lo.Compact(ids))
	if len(ids) == 0 {
		return nil, models.NewValidationError("Pick at least one character")
	}
	if len(ids) > maxChatMembers {
		return nil, models.NewValidationError(fmt.Sprintf("A group chat holds at most %d characters", maxChatMembers))
	}
	found, err := s.characters.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	usable := lo.SliceToMap(lo.Filter(found, func(c models.CharacterProfile, _ int) bool {
		return c.IsActive && (c.IsPublic || c.CreatorID == userID)
	}), func(c models.CharacterProfile) (uint, bool) { return c.ID, true })
	for _, id := range ids {
		if !usable[id] {
			return nil, models.NewValidationError(fmt.Sprintf("Character %d is not available", id))
		}
	}
	return ids, nil
}

func (s *GroupChatService) CreateSession(ctx context.Context, userID uint, in CreateSessionInput) (*models.GroupChatSession, error) {
	ids, err := s.validateMembers(ctx, userID, in.CharacterIDs)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	if utf8.RuneCountInString(title) > maxChatTitleLen {
		return nil, models.NewValidationError("Title too long (max 200 characters)")
	}
	if title == "" {
		title = "Group chat"
	}
	session := &models.GroupChatSession{
		UserID:       userID,
		Title:        title,
		CharacterIDs: ids,
		AutoChat:     in.AutoChat,
		IsActive:     true,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *GroupChatService) ListSessions(ctx context.Context, userID uint, limit, offset int) ([]models.GroupChatSession, error) {
	limit, offset = ClampPage(limit, offset)
	return s.sessions.ListByUser(ctx, userID, limit, offset)
}

// GetSession returns an active session owned by userID.
func (s *GroupChatService) GetSession(ctx context.Context, userID, sessionID uint) (*models.GroupChatSession, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, models.NewForbiddenError("This chat belongs to another user")
	}
	if !session.IsActive {
		return nil, models.NewNotFoundError("Group chat", sessionID)
	}
	return session, nil
}

// UpdateSessionInput is a partial update; unset options keep their value.
type UpdateSessionInput struct {
	Title        mo.Option[string]
	CharacterIDs mo.Option[[]uint]
	AutoChat     mo.Option[bool]
}

func (s *GroupChatService) UpdateSession(ctx context.Context, userID, sessionID uint, in UpdateSessionInput) (*models.GroupChatSession, error) {
	session, err := s.GetSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if title, ok := in.Title.Get(); ok {
		title = strings.TrimSpace(title)
		if title == "" || utf8.RuneCountInString(title) > maxChatTitleLen {
			return nil, models.NewValidationError("Title must be 1-200 characters")
		}
		session.Title = title
	}
	if ids, ok := in.CharacterIDs.Get(); ok {
		valid, err := s.validateMembers(ctx, userID, ids)
		if err != nil {
			return nil, err
		}
		session.CharacterIDs = valid
	}
	if auto, ok := in.AutoChat.Get(); ok {
		session.AutoChat = auto
	}
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *GroupChatService) DeactivateSession(ctx context.Context, userID, sessionID uint) error {
	if _, err := s.GetSession(ctx, userID, sessionID); err != nil {
		return err
	}
	return s.sessions.Deactivate(ctx, sessionID)
}

// ClearMessages empties the transcript. It takes the turn lock so it cannot
// interleave with a running turn.
func (s *GroupChatService) ClearMessages(ctx context.Context, userID, sessionID uint) error {
	if _, err := s.GetSession(ctx, userID, sessionID); err != nil {
		return err
	}
	unlock, err := s.lockTurn(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()
	return s.sessions.SaveMessages(ctx, sessionID, []models.ChatMessage{})
}

// TurnInput is one user message. AutoChat overrides the session setting when set.
type TurnInput struct {
	SessionID uint
	UserID    uint
	Content   string
	AutoChat  *bool
}

// TurnResult holds the messages appended during the turn, the user's first.
type TurnResult struct {
	SessionID uint                 `json:"session_id"`
	Messages  []models.ChatMessage `json:"messages"`
	Rounds    int                  `json:"rounds"`
}

// SendMessage runs one turn: the user's message, a concurrent first round
// from every character and optional sequential auto rounds.
func (s *GroupChatService) SendMessage(ctx context.Context, in TurnInput) (*TurnResult, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, models.NewValidationError("Message cannot be empty")
	}
	if utf8.RuneCountInString(content) > maxChatMessageLen {
		return nil, models.NewValidationError(fmt.Sprintf("Message too long (max %d characters)", maxChatMessageLen))
	}

	session, err := s.GetSession(ctx, in.UserID, in.SessionID)
	if err != nil {
		return nil, err
	}
	members, err := s.members(ctx, session)
	if err != nil {
		return nil, err
	}

	unlock, err := s.lockTurn(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Reload under the lock so the transcript includes the previous turn.
	session, err = s.sessions.GetByID(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	history := append([]models.ChatMessage(nil), session.Messages...)
	userMsg := models.ChatMessage{
		Role:      models.ChatRoleUser,
		SenderID:  in.UserID,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}
	history = append(history, userMsg)
	start := len(history) - 1

	history = append(history, s.firstRound(ctx, members, history)...)

	rounds := 1
	autoChat := session.AutoChat
	if in.AutoChat != nil {
		autoChat = *in.AutoChat
	}
	if autoChat && s.flags != nil && s.flags.Enabled(featureflags.AutoChat, in.UserID) && len(members) > 0 {
		extra := s.autoRoundCount()
		for r := 1; r <= extra; r++ {
			if err := s.sleep(ctx, s.cfg.RoundDelay); err != nil {
				slog.InfoContext(ctx, "auto chat stopped early", slog.Uint64("session_id", uint64(session.ID)), slog.Int("round", r))
				break
			}
			for _, speaker := range s.pickSpeakers(members) {
				history = append(history, s.reply(ctx, speaker, members, history, r))
			}
			rounds++
		}
	}

	// A cancelled request still keeps what was generated.
	persistCtx := context.WithoutCancel(ctx)
	if err := s.sessions.SaveMessages(persistCtx, session.ID, history); err != nil {
		return nil, err
	}

	appended := history[start:]
	result := &TurnResult{SessionID: session.ID, Messages: appended, Rounds: rounds}
	publish(persistCtx, s.publisher, session.UserID, notifications.EventGroupChatUpdated, result)
	return result, nil
}

// members loads the session's characters in character_ids order, skipping
// missing and inactive ones.
func (s *GroupChatService) members(ctx context.Context, session *models.GroupChatSession) ([]models.CharacterProfile, error) {
	found, err := s.characters.GetByIDs(ctx, session.CharacterIDs)
	if err != nil {
		return nil, err
	}
	byID := lo.KeyBy(found, func(c models.CharacterProfile) uint { return c.ID })
	members := make([]models.CharacterProfile, 0, len(session.CharacterIDs))
	for _, id := range session.CharacterIDs {
		if c, ok := byID[id]; ok && c.IsActive {
			members = append(members, c)
		}
	}
	if len(members) == 0 {
		return nil, models.NewValidationError("This chat has no available characters")
	}
	return members, nil
}

func (s *GroupChatService) lockTurn(ctx context.Context, sessionID uint) (func(), error) {
	lock, err := cache.AcquireLock(ctx, cache.ChatTurnKey(sessionID), s.cfg.TurnLockTTL)
	switch {
	case err == nil:
		stop := make(chan struct{})
		done := make(chan struct{})
		go s.renewTurnLock(context.WithoutCancel(ctx), lock, sessionID, stop, done)
		return func() {
			close(stop)
			<-done
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				slog.WarnContext(ctx, "failed to release chat turn lock", slog.Uint64("session_id", uint64(sessionID)), slog.String("error", err.Error()))
			}
		}, nil
	case errors.Is(err, cache.ErrLockHeld):
		return nil, models.NewConflictError("A reply is already in progress for this chat")
	}

	if !errors.Is(err, cache.ErrNoRedis) {
		slog.WarnContext(ctx, "chat turn lock unavailable, using local lock", slog.String("error", err.Error()))
	}
	s.localMu.Lock()
	defer s.localMu.Unlock()
	if _, busy := s.localTurns[sessionID]; busy {
		return nil, models.NewConflictError("A reply is already in progress for this chat")
	}
	s.localTurns[sessionID] = struct{}{}
	return func() {
		s.localMu.Lock()
		delete(s.localTurns, sessionID)
		s.localMu.Unlock()
	}, nil
}

// renewTurnLock keeps the turn lock alive until stop closes, so a turn that
// outlives TurnLockTTL still excludes the next one.
func (s *GroupChatService) renewTurnLock(ctx context.Context, lock *cache.Lock, sessionID uint, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(max(s.cfg.TurnLockTTL/3, 10*time.Millisecond))
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := lock.Refresh(ctx, s.cfg.TurnLockTTL); err != nil {
				slog.WarnContext(ctx, "failed to renew chat turn lock", slog.Uint64("session_id", uint64(sessionID)), slog.String("error", err.Error()))
				if errors.Is(err, cache.ErrLockHeld) {
					return
				}
			}
		}
	}
}

// firstRound asks every member concurrently. Replies come back in member order.
func (s *GroupChatService) firstRound(ctx context.Context, members []models.CharacterProfile, history []models.ChatMessage) []models.ChatMessage {
	replies := make([]models.ChatMessage, len(members))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.cfg.MaxParallel, 1))
	for i, member := range members {
		g.Go(func() error {
			replies[i] = s.reply(gctx, member, members, history, 0)
			return nil
		})
	}
	_ = g.Wait()
	return replies
}

func (s *GroupChatService) autoRoundCount() int {
	low, high := s.cfg.AutoMinRounds, s.cfg.AutoMaxRounds
	if high <= low {
		return low
	}
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return low + s.rng.IntN(high-low+1)
}

// pickSpeakers skips each member with the configured probability but always
// keeps at least one.
func (s *GroupChatService) pickSpeakers(members []models.CharacterProfile) []models.CharacterProfile {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	speakers := make([]models.CharacterProfile, 0, len(members))
	for _, m := range members {
		if s.rng.Float64() < s.cfg.SkipProbability {
			observability.ChatRepliesTotal.WithLabelValues("skipped").Inc()
			continue
		}
		speakers = append(speakers, m)
	}
	if len(speakers) == 0 {
		speakers = append(speakers, members[s.rng.IntN(len(members))])
	}
	return speakers
}

type historyLine struct {
	Speaker string
	Content string
}

func (s *GroupChatService) buildPrompt(speaker models.CharacterProfile, members []models.CharacterProfile, history []models.ChatMessage) (ai.Request, error) {
	others := lo.FilterMap(members, func(m models.CharacterProfile, _ int) (string, bool) {
		return m.Name, m.ID != speaker.ID
	})
	system, err := s.prompts.Render(ai.PromptChatReply, map[string]any{
		"Name":        speaker.Name,
		"Personality": speaker.Personality,
		"Background":  speaker.Background,
		"Others":      others,
	})
	if err != nil {
		return ai.Request{}, err
	}

	window := history
	if n := s.cfg.HistoryWindow; n > 0 && len(window) > n {
		window = window[len(window)-n:]
	}
	lines := lo.Map(window, func(m models.ChatMessage, _ int) historyLine {
		speaker := m.SenderName
		if m.Role == models.ChatRoleUser || speaker == "" {
			speaker = "User"
		}
		return historyLine{Speaker: speaker, Content: m.Content}
	})
	user, err := s.prompts.Render(ai.PromptChatHistory, map[string]any{
		"History": lines,
		"Name":    speaker.Name,
	})
	if err != nil {
		return ai.Request{}, err
	}
	return ai.Request{
		Operation:   ai.OpChatReply,
		System:      system,
		User:        user,
		MaxTokens:   chatReplyMaxTokens,
		Temperature: chatReplyTemperature,
	}, nil
}

// reply generates one character message. Failures turn into an apology so a
// single character never breaks the turn.
func (s *GroupChatService) reply(ctx context.Context, speaker models.CharacterProfile, members []models.CharacterProfile, history []models.ChatMessage, round int) models.ChatMessage {
	msg := models.ChatMessage{
		Role:       models.ChatRoleCharacter,
		SenderID:   speaker.ID,
		SenderName: speaker.Name,
		Round:      round,
	}

	text, err := s.generate(ctx, speaker, members, history)
	msg.CreatedAt = s.now().UTC()
	if err != nil {
		slog.WarnContext(ctx, "character reply failed",
			slog.Uint64("character_id", uint64(speaker.ID)),
			slog.Int("round", round),
			slog.String("error", err.Error()))
		observability.ChatRepliesTotal.WithLabelValues("fallback").Inc()
		msg.Content = ApologyFor(speaker.Name)
		msg.IsFallback = true
		return msg
	}
	observability.ChatRepliesTotal.WithLabelValues("reply").Inc()
	msg.Content = truncateRunes(text, s.cfg.ReplyMaxChars)
	return msg
}

func (s *GroupChatService) generate(ctx context.Context, speaker models.CharacterProfile, members []models.CharacterProfile, history []models.ChatMessage) (string, error) {
	req, err := s.buildPrompt(speaker, members, history)
	if err != nil {
		return "", err
	}
	raw, err := s.generator.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	text := CleanReply(raw, speaker.Name)
	if text == "" {
		return "", ai.ErrEmptyCompletion
	}
	return text, nil
}

// ApologyFor is the stand-in message for a character whose reply failed.
func ApologyFor(name string) string {
	return fmt.Sprintf("%s seems lost in thought and doesn't respond right now.", name)
}

// CleanReply trims whitespace and a leading "Name:" speaker prefix.
func CleanReply(raw, name string) string {
	text := strings.TrimSpace(raw)
	for _, prefix := range []string{name + ":", "**" + name + "**:", "**" + name + ":**"} {
		if len(text) >= len(prefix) && strings.EqualFold(text[:len(prefix)], prefix) {
			text = strings.TrimSpace(text[len(prefix):])
			break
		}
	}
	if len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"' && strings.Count(text, `"`) == 2 {
		text = strings.TrimSpace(text[1 : len(text)-1])
	}
	return text
}
