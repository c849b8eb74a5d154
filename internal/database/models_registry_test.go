package database

import (
	"testing"

	modelspkg "fableweaver/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestPersistentModels_IncludesGroupChatSession(t *testing.T) {
	found := false
	for _, model := range PersistentModels() {
		if _, ok := model.(*modelspkg.GroupChatSession); ok {
			found = true
			break
		}
	}
	require.True(t, found, "PersistentModels should include GroupChatSession")
}

func TestPersistentModels_AutoMigrateOnSQLite(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, runAutoMigrate(db))

	for _, table := range []string{"novels", "chapters", "group_chat_history", "character_progression", "friend_messages"} {
		require.True(t, db.Migrator().HasTable(table), "expected table %s", table)
	}
}
