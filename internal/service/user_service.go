package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"fableweaver/internal/models"
	"fableweaver/internal/repository"
	"fableweaver/internal/validation"

	"github.com/samber/lo"
	"github.com/samber/mo"
	"golang.org/x/crypto/bcrypt"
)

const (
	maxBioLen = 500
	// touches of last_active_at closer together than this are skipped
	activityGranularity = 5 * time.Minute
)

type UserService struct {
	userRepo repository.UserRepository
	images   *ImageService
	now      func() time.Time
}

// UpdateProfileInput changes only the fields that are set.
type UpdateProfileInput struct {
	UserID   uint
	Username mo.Option[string]
	Bio      mo.Option[string]
}

func NewUserService(userRepo repository.UserRepository, images *ImageService) *UserService {
	return &UserService{userRepo: userRepo, images: images, now: time.Now}
}

// SignupInput is a new account request.
type SignupInput struct {
	Username string
	Email    string
	Password string
}

// Signup validates and stores a new account with a bcrypt password hash.
func (s *UserService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, models.NewValidationError("Username, email, and password are required")
	}
	if err := validation.ValidateUsername(in.Username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	existing, err := s.userRepo.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("User already exists")
	}
	if taken, err := s.userRepo.GetByUsername(ctx, in.Username); err != nil {
		return nil, err
	} else if taken != nil {
		return nil, models.NewConflictError("Username already taken")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	user := &models.User{Username: in.Username, Email: in.Email, Password: string(hash)}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate checks credentials. Unknown emails and wrong passwords give
// the same error; banned accounts are refused.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if user.IsBanned {
		return nil, models.NewForbiddenError("Account suspended")
	}
	return user, nil
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// Search finds users by username or email for the friend picker. Banned
// accounts are left out.
func (s *UserService) Search(ctx context.Context, query string, limit, offset int) ([]models.UserSummary, error) {
	limit, offset = ClampPage(limit, offset)
	notBanned := false
	users, _, err := s.userRepo.List(ctx, repository.UserFilter{
		Query:  query,
		Banned: &notBanned,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, err
	}
	return lo.Map(users, func(u models.User, _ int) models.UserSummary { return u.Summary() }), nil
}

func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	if username, ok := in.Username.Get(); ok {
		username = strings.TrimSpace(username)
		if err := validation.ValidateUsername(username); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		user.Username = username
	}
	if bio, ok := in.Bio.Get(); ok {
		bio = strings.TrimSpace(bio)
		if utf8.RuneCountInString(bio) > maxBioLen {
			return nil, models.NewValidationError("Bio too long (max 500 characters)")
		}
		user.Bio = bio
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// UploadAvatar stores a square avatar and replaces the previous one.
func (s *UserService) UploadAvatar(ctx context.Context, userID uint, in UploadImageInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	in.UserID = userID
	img, err := s.images.Store(ctx, in, AvatarPreset)
	if err != nil {
		return nil, err
	}
	previous := user.Avatar
	user.Avatar = img.URL
	if err := s.userRepo.Update(ctx, user); err != nil {
		s.images.Remove(ctx, img.URL)
		return nil, err
	}
	if previous != "" {
		s.images.Remove(ctx, previous)
	}
	return user, nil
}

// TouchActivity records that the user was seen. Calls within
// activityGranularity of the last recorded time are skipped.
func (s *UserService) TouchActivity(ctx context.Context, user *models.User) error {
	now := s.now()
	if user.LastActiveAt != nil && now.Sub(*user.LastActiveAt) < activityGranularity {
		return nil
	}
	return s.userRepo.TouchLastActive(ctx, user.ID)
}
