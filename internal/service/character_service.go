package service

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"fableweaver/internal/ai"
	"fableweaver/internal/config"
	"fableweaver/internal/models"
	"fableweaver/internal/repository"

	"github.com/samber/mo"
)

const (
	maxCharacterNameLen  = 100
	maxCharacterFieldLen = 4000
	maxConceptLen        = 2000
	characterMaxTokens   = 1024
)

// CharacterService manages character profiles and writes new ones with the model.
type CharacterService struct {
	characters repository.CharacterRepository
	novels     repository.NovelRepository
	generator  ai.Generator
	prompts    *ai.Prompts
	images     *ImageService
	retry      RetryPolicy
}

func NewCharacterService(
	characters repository.CharacterRepository,
	novels repository.NovelRepository,
	generator ai.Generator,
	prompts *ai.Prompts,
	images *ImageService,
	cfg *config.Config,
) *CharacterService {
	return &CharacterService{
		characters: characters,
		novels:     novels,
		generator:  generator,
		prompts:    prompts,
		images:     images,
		retry:      RetryPolicyFrom(cfg),
	}
}

// CharacterInput is a full character sheet written by a user.
type CharacterInput struct {
	Name        string
	Description string
	Personality string
	Background  string
	Appearance  string
	IsPublic    bool
}

func (in *CharacterInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return models.NewValidationError("Name is required")
	}
	if utf8.RuneCountInString(in.Name) > maxCharacterNameLen {
		return models.NewValidationError("Name too long (max 100 characters)")
	}
	for _, field := range []*string{&in.Description, &in.Personality, &in.Background, &in.Appearance} {
		*field = strings.TrimSpace(*field)
		if utf8.RuneCountInString(*field) > maxCharacterFieldLen {
			return models.NewValidationError("Character fields are limited to 4000 characters")
		}
	}
	return nil
}

func (s *CharacterService) Create(ctx context.Context, userID uint, in CharacterInput) (*models.CharacterProfile, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	c := &models.CharacterProfile{
		CreatorID:   userID,
		Name:        in.Name,
		Description: in.Description,
		Personality: in.Personality,
		Background:  in.Background,
		Appearance:  in.Appearance,
		IsPublic:    in.IsPublic,
		IsActive:    true,
	}
	if err := s.characters.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns an active character that is public or owned by userID.
func (s *CharacterService) Get(ctx context.Context, userID, id uint) (*models.CharacterProfile, error) {
	c, err := s.characters.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.IsActive || (!c.IsPublic && c.CreatorID != userID) {
		return nil, models.NewNotFoundError("Character", id)
	}
	return c, nil
}

func (s *CharacterService) owned(ctx context.Context, userID, id uint) (*models.CharacterProfile, error) {
	c, err := s.characters.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.IsActive {
		return nil, models.NewNotFoundError("Character", id)
	}
	if c.CreatorID != userID {
		return nil, models.NewForbiddenError("You can only change your own characters")
	}
	return c, nil
}

// UpdateCharacterInput is a partial update.
type UpdateCharacterInput struct {
	Name        mo.Option[string]
	Description mo.Option[string]
	Personality mo.Option[string]
	Background  mo.Option[string]
	Appearance  mo.Option[string]
	IsPublic    mo.Option[bool]
}

func (s *CharacterService) Update(ctx context.Context, userID, id uint, in UpdateCharacterInput) (*models.CharacterProfile, error) {
	c, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	merged := CharacterInput{
		Name:        in.Name.OrElse(c.Name),
		Description: in.Description.OrElse(c.Description),
		Personality: in.Personality.OrElse(c.Personality),
		Background:  in.Background.OrElse(c.Background),
		Appearance:  in.Appearance.OrElse(c.Appearance),
		IsPublic:    in.IsPublic.OrElse(c.IsPublic),
	}
	if err := merged.normalize(); err != nil {
		return nil, err
	}
	c.Name, c.Description, c.Personality = merged.Name, merged.Description, merged.Personality
	c.Background, c.Appearance, c.IsPublic = merged.Background, merged.Appearance, merged.IsPublic
	if err := s.characters.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Delete retires a character. Existing chats and novels keep their history.
func (s *CharacterService) Delete(ctx context.Context, userID, id uint) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	return s.characters.Deactivate(ctx, id)
}

func (s *CharacterService) ListMine(ctx context.Context, userID uint, limit, offset int) ([]models.CharacterProfile, error) {
	limit, offset = ClampPage(limit, offset)
	return s.characters.ListByCreator(ctx, userID, limit, offset)
}

func (s *CharacterService) ListPublic(ctx context.Context, query string, limit, offset int) ([]models.CharacterProfile, int64, error) {
	limit, offset = ClampPage(limit, offset)
	return s.characters.ListPublic(ctx, strings.TrimSpace(query), limit, offset)
}

// ListForNovel returns the cast of a novel.
func (s *CharacterService) ListForNovel(ctx context.Context, novelID uint) ([]models.NovelCharacter, error) {
	return s.characters.ListNovelCharacters(ctx, novelID)
}

// UploadAvatar stores a square portrait and replaces the previous one.
func (s *CharacterService) UploadAvatar(ctx context.Context, userID, id uint, in UploadImageInput) (*models.CharacterProfile, error) {
	c, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	in.UserID = userID
	img, err := s.images.Store(ctx, in, AvatarPreset)
	if err != nil {
		return nil, err
	}
	previous := c.AvatarURL
	c.AvatarURL = img.URL
	if err := s.characters.Update(ctx, c); err != nil {
		return nil, err
	}
	if previous != "" {
		s.images.Remove(ctx, previous)
	}
	return c, nil
}

// GenerateCharacterInput describes a character for the model to flesh out.
type GenerateCharacterInput struct {
	UserID   uint
	Concept  string
	NovelID  *uint
	IsPublic bool
}

// Generate asks the model for a character sheet, saves it and optionally
// links it to one of the user's novels.
func (s *CharacterService) Generate(ctx context.Context, in GenerateCharacterInput) (*models.CharacterProfile, error) {
	concept := strings.TrimSpace(in.Concept)
	if concept == "" {
		return nil, models.NewValidationError("Concept is required")
	}
	if utf8.RuneCountInString(concept) > maxConceptLen {
		return nil, models.NewValidationError("Concept too long (max 2000 characters)")
	}

	var novel *models.Novel
	if in.NovelID != nil {
		n, err := s.novels.GetByID(ctx, *in.NovelID)
		if err != nil {
			return nil, err
		}
		if n.IsDeleted {
			return nil, models.NewNotFoundError("Novel", *in.NovelID)
		}
		if n.AuthorID != in.UserID {
			return nil, models.NewForbiddenError("Only the author can add characters to this novel")
		}
		novel = n
	}

	data := map[string]any{"Concept": concept}
	if novel != nil {
		data["NovelTitle"] = novel.Title
		data["Genre"] = novel.Genre
	}
	user, err := s.prompts.Render(ai.PromptCharacterUser, data)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	system, err := s.prompts.Render(ai.PromptCharacterSystem, nil)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	req := ai.Request{
		Operation:   ai.OpCharacter,
		System:      system,
		User:        user,
		JSON:        true,
		Schema:      ai.CharacterSchema,
		MaxTokens:   characterMaxTokens,
		Temperature: 0.9,
	}

	sheet, _, err := retryGeneration(ctx, s.retry, ai.OpCharacter, func(ctx context.Context, _ int) (*ai.CharacterSheet, error) {
		raw, err := s.generator.Generate(ctx, req)
		if err != nil {
			return nil, err
		}
		return ai.ParseCharacterSheet(raw)
	})
	if err != nil {
		return nil, err
	}

	profile, err := s.Create(ctx, in.UserID, CharacterInput{
		Name:        truncateRunes(sheet.Name, maxCharacterNameLen),
		Description: truncateRunes(sheet.Description, maxCharacterFieldLen),
		Personality: truncateRunes(sheet.Personality, maxCharacterFieldLen),
		Background:  truncateRunes(sheet.Background, maxCharacterFieldLen),
		Appearance:  truncateRunes(sheet.Appearance, maxCharacterFieldLen),
		IsPublic:    in.IsPublic,
	})
	if err != nil {
		return nil, err
	}
	if novel != nil {
		if err := s.characters.Link(ctx, novel.ID, profile.ID, models.CharacterRoleSupporting); err != nil {
			slog.WarnContext(ctx, "failed to link generated character",
				slog.Uint64("novel_id", uint64(novel.ID)),
				slog.Uint64("character_id", uint64(profile.ID)),
				slog.String("error", err.Error()))
		}
	}
	return profile, nil
}
