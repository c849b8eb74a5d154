package database

import "fableweaver/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Friendship{},
		&models.FriendMessage{},
		&models.Notification{},
		&models.Novel{},
		&models.Chapter{},
		&models.ChapterRevision{},
		&models.ReadingHistory{},
		&models.ChapterComment{},
		&models.NovelComment{},
		&models.CharacterProfile{},
		&models.NovelCharacter{},
		&models.CharacterProgression{},
		&models.GroupChatSession{},
		&models.Thread{},
		&models.ThreadComment{},
		&models.Reaction{},
		&models.SavedThread{},
	}
}
