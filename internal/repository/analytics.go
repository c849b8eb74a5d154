package repository

import (
	"context"
	"sort"
	"time"

	"fableweaver/internal/models"

	"gorm.io/gorm"
)

// DayCount is the number of rows created on one UTC day (YYYY-MM-DD).
type DayCount struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}

// KeyCount is a grouped count keyed by a column value.
type KeyCount struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// RankedItem is an entity ranked by a metric in a dashboard.
type RankedItem struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// AnalyticsRepository runs the read-only aggregate queries behind the admin dashboards.
type AnalyticsRepository interface {
	Count(ctx context.Context, model interface{}, query string, args ...interface{}) (int64, error)
	GroupCount(ctx context.Context, model interface{}, column string, query string, args ...interface{}) ([]KeyCount, error)
	CreatedPerDay(ctx context.Context, model interface{}, since time.Time) ([]DayCount, error)
	MessagesByRole(ctx context.Context) ([]KeyCount, error)
	TopCharactersBySessions(ctx context.Context, limit int) ([]RankedItem, error)
	TopNovelsByViews(ctx context.Context, limit int) ([]RankedItem, error)
}

type analyticsRepository struct {
	db *gorm.DB
}

// NewAnalyticsRepository returns an AnalyticsRepository reading from the replica when available.
func NewAnalyticsRepository(db *gorm.DB) AnalyticsRepository {
	return &analyticsRepository{db: db}
}

func (r *analyticsRepository) Count(ctx context.Context, model interface{}, query string, args ...interface{}) (int64, error) {
	var n int64
	q := readDB(r.db).WithContext(ctx).Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

func (r *analyticsRepository) GroupCount(ctx context.Context, model interface{}, column string, query string, args ...interface{}) ([]KeyCount, error) {
	var rows []KeyCount
	q := readDB(r.db).WithContext(ctx).Model(model).
		Select(column + ` AS "key", COUNT(*) AS count`)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Group(column).Order("count DESC").Scan(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return rows, nil
}

// CreatedPerDay buckets created_at in Go so the query stays portable across
// Postgres and SQLite. Days with no rows are filled with zero.
func (r *analyticsRepository) CreatedPerDay(ctx context.Context, model interface{}, since time.Time) ([]DayCount, error) {
	var stamps []time.Time
	if err := readDB(r.db).WithContext(ctx).Model(model).
		Where("created_at >= ?", since).
		Pluck("created_at", &stamps).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	buckets := make(map[string]int64)
	for _, ts := range stamps {
		buckets[ts.UTC().Format(time.DateOnly)]++
	}

	var out []DayCount
	start := since.UTC().Truncate(24 * time.Hour)
	end := time.Now().UTC()
	for d := start; !d.After(end); d = d.Add(24 * time.Hour) {
		day := d.Format(time.DateOnly)
		out = append(out, DayCount{Day: day, Count: buckets[day]})
	}
	return out, nil
}

func (r *analyticsRepository) MessagesByRole(ctx context.Context) ([]KeyCount, error) {
	db := readDB(r.db).WithContext(ctx)
	if isPostgres(db) {
		var rows []KeyCount
		err := db.Raw(`
SELECT m->>'role' AS "key", COUNT(*) AS count
FROM group_chat_history g, jsonb_array_elements(g.messages) AS m
GROUP BY m->>'role'
ORDER BY count DESC`).Scan(&rows).Error
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		return rows, nil
	}

	var sessions []models.GroupChatSession
	if err := db.Select("id", "messages").Find(&sessions).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	counts := map[string]int64{}
	for _, s := range sessions {
		for _, m := range s.Messages {
			counts[m.Role]++
		}
	}
	return sortedKeyCounts(counts), nil
}

func (r *analyticsRepository) TopCharactersBySessions(ctx context.Context, limit int) ([]RankedItem, error) {
	db := readDB(r.db).WithContext(ctx)
	if isPostgres(db) {
		var rows []RankedItem
		err := db.Raw(`
SELECT cp.id AS id, cp.name AS name, COUNT(*) AS value
FROM group_chat_history g
CROSS JOIN LATERAL jsonb_array_elements_text(g.character_ids) AS cid
JOIN character_profiles cp ON cp.id = cid::bigint
GROUP BY cp.id, cp.name
ORDER BY value DESC, cp.id ASC
LIMIT ?`, limit).Scan(&rows).Error
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		return rows, nil
	}

	var sessions []models.GroupChatSession
	if err := db.Select("id", "character_ids").Find(&sessions).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	counts := map[uint]int64{}
	for _, s := range sessions {
		for _, id := range s.CharacterIDs {
			counts[id]++
		}
	}
	ids := make([]uint, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	var characters []models.CharacterProfile
	if len(ids) > 0 {
		if err := db.Select("id", "name").Where("id IN ?", ids).Find(&characters).Error; err != nil {
			return nil, models.NewInternalError(err)
		}
	}
	out := make([]RankedItem, 0, len(characters))
	for _, c := range characters {
		out = append(out, RankedItem{ID: c.ID, Name: c.Name, Value: counts[c.ID]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *analyticsRepository) TopNovelsByViews(ctx context.Context, limit int) ([]RankedItem, error) {
	var rows []RankedItem
	if err := readDB(r.db).WithContext(ctx).
		Model(&models.Novel{}).
		Select("id, title AS name, view_count AS value").
		Where("is_deleted = ?", false).
		Order("view_count DESC").
		Order("id ASC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return rows, nil
}

func sortedKeyCounts(m map[string]int64) []KeyCount {
	out := make([]KeyCount, 0, len(m))
	for k, v := range m {
		out = append(out, KeyCount{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}
