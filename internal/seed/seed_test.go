package seed

import (
	"context"
	"testing"

	"fableweaver/internal/models"
	"fableweaver/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func smallOptions() Options {
	return Options{
		Users:              4,
		NovelsPerUser:      2,
		ChaptersPerNovel:   3,
		CharactersPerNovel: 2,
		MaxDays:            30,
		Seed:               42,
		SkipBcrypt:         true,
	}
}

func TestSeedBuildsLibrary(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	sum, err := Seed(ctx, db, smallOptions())
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Users)
	assert.Equal(t, 8, sum.Novels)
	assert.Equal(t, 24, sum.Chapters)
	assert.Equal(t, 16, sum.Characters)
	assert.Equal(t, 6, sum.Reviews)
	assert.Equal(t, 4, sum.Friendships)
	assert.Equal(t, 2, sum.Threads)

	var pending int64
	require.NoError(t, db.Model(&models.Novel{}).Where("moderation_status = ?", models.ModerationPending).Count(&pending).Error)
	assert.EqualValues(t, 2, pending)

	var novel models.Novel
	require.NoError(t, db.First(&novel).Error)
	assert.Equal(t, 3, novel.ChapterCount)

	var numbers []int
	require.NoError(t, db.Model(&models.Chapter{}).Where("novel_id = ?", novel.ID).Order("chapter_number").Pluck("chapter_number", &numbers).Error)
	assert.Equal(t, []int{1, 2, 3}, numbers)

	var progressions int64
	require.NoError(t, db.Model(&models.CharacterProgression{}).Where("novel_id = ?", novel.ID).Count(&progressions).Error)
	assert.EqualValues(t, 6, progressions)

	var user models.User
	require.NoError(t, db.First(&user).Error)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(DemoPassword)))
}

func TestSeedCleanStartsOver(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	_, err := Seed(ctx, db, smallOptions())
	require.NoError(t, err)

	opts := smallOptions()
	opts.Clean = true
	opts.Seed = 7
	_, err = Seed(ctx, db, opts)
	require.NoError(t, err)

	var users, novels int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	require.NoError(t, db.Model(&models.Novel{}).Count(&novels).Error)
	assert.EqualValues(t, 4, users)
	assert.EqualValues(t, 8, novels)
}

func TestSeedNeedsTwoUsers(t *testing.T) {
	_, err := Seed(context.Background(), testutil.NewDB(t), Options{Users: 1})
	assert.Error(t, err)
}

func TestCreateChaptersContinuesNumbering(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	f := NewFactory(db, smallOptions(), 1)

	author, err := f.CreateUser(ctx)
	require.NoError(t, err)
	novel, err := f.CreateNovel(ctx, author)
	require.NoError(t, err)

	_, err = f.CreateChapters(ctx, novel, 2)
	require.NoError(t, err)
	more, err := f.CreateChapters(ctx, novel, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, more[0].ChapterNumber)
	assert.Equal(t, 4, novel.ChapterCount)
}
