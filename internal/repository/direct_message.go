package repository

import (
	"context"
	"sort"
	"time"

	"fableweaver/internal/models"

	"gorm.io/gorm"
)

// DirectMessageRepository defines persistence for friend-to-friend messages.
type DirectMessageRepository interface {
	Create(ctx context.Context, msg *models.FriendMessage) error
	ListConversation(ctx context.Context, userID, otherID uint, limit, offset int) ([]models.FriendMessage, error)
	// MarkRead flags every unread message from senderID to receiverID and
	// returns how many changed.
	MarkRead(ctx context.Context, receiverID, senderID uint) (int64, error)
	ListConversations(ctx context.Context, userID uint) ([]models.DirectConversation, error)
}

type directMessageRepository struct {
	db *gorm.DB
}

// NewDirectMessageRepository returns a DirectMessageRepository backed by db.
func NewDirectMessageRepository(db *gorm.DB) DirectMessageRepository {
	return &directMessageRepository{db: db}
}

func (r *directMessageRepository) Create(ctx context.Context, msg *models.FriendMessage) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *directMessageRepository) ListConversation(ctx context.Context, userID, otherID uint, limit, offset int) ([]models.FriendMessage, error) {
	var messages []models.FriendMessage
	if err := r.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userID, otherID, otherID, userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return messages, nil
}

func (r *directMessageRepository) MarkRead(ctx context.Context, receiverID, senderID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.FriendMessage{}).
		Where("receiver_id = ? AND sender_id = ? AND is_read = ?", receiverID, senderID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": time.Now().UTC()})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

type conversationHead struct {
	PartnerID uint
	LastID    uint
}

type unreadCount struct {
	SenderID uint
	Count    int64
}

func (r *directMessageRepository) ListConversations(ctx context.Context, userID uint) ([]models.DirectConversation, error) {
	db := r.db.WithContext(ctx)

	var heads []conversationHead
	if err := db.Model(&models.FriendMessage{}).
		Select("CASE WHEN sender_id = ? THEN receiver_id ELSE sender_id END AS partner_id, MAX(id) AS last_id", userID).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Group("partner_id").
		Scan(&heads).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	if len(heads) == 0 {
		return []models.DirectConversation{}, nil
	}

	lastIDs := make([]uint, 0, len(heads))
	partnerIDs := make([]uint, 0, len(heads))
	for _, h := range heads {
		lastIDs = append(lastIDs, h.LastID)
		partnerIDs = append(partnerIDs, h.PartnerID)
	}

	var lastMessages []models.FriendMessage
	if err := db.Where("id IN ?", lastIDs).Find(&lastMessages).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	byID := make(map[uint]models.FriendMessage, len(lastMessages))
	for _, m := range lastMessages {
		byID[m.ID] = m
	}

	var unread []unreadCount
	if err := db.Model(&models.FriendMessage{}).
		Select("sender_id, COUNT(*) AS count").
		Where("receiver_id = ? AND is_read = ?", userID, false).
		Group("sender_id").
		Scan(&unread).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	unreadBy := make(map[uint]int64, len(unread))
	for _, u := range unread {
		unreadBy[u.SenderID] = u.Count
	}

	var users []models.User
	if err := db.Where("id IN ?", partnerIDs).Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	usersBy := make(map[uint]models.User, len(users))
	for _, u := range users {
		usersBy[u.ID] = u
	}

	out := make([]models.DirectConversation, 0, len(heads))
	for _, h := range heads {
		friend, ok := usersBy[h.PartnerID]
		if !ok {
			continue
		}
		out = append(out, models.DirectConversation{
			Friend:      friend.Summary(),
			LastMessage: byID[h.LastID],
			UnreadCount: unreadBy[h.PartnerID],
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessage.ID > out[j].LastMessage.ID
	})
	return out, nil
}
