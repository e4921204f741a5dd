package repository

import (
	"settle/internal/db"
	"settle/internal/model"
	"time"
)

type HistoryRepository struct{}

func NewHistoryRepository() *HistoryRepository {
	return &HistoryRepository{}
}

// Save records every event of batch in emission order.
func (r *HistoryRepository) Save(batch model.Batch) error {
	if len(batch.Events) == 0 {
		return nil
	}

	histories := make([]model.History, 0, len(batch.Events))
	for i, event := range batch.Events {
		h := model.History{
			BatchID:   batch.ID.String(),
			Seq:       i,
			Kind:      event.Kind.String(),
			Path:      event.Path(),
			Tracker:   uint64(event.Tracker),
			Info:      event.Info,
			Ongoing:   event.Flags.Has(model.FlagOngoing),
			EventTime: event.Time,
			EmittedAt: batch.EmittedAt,
		}
		if len(event.Paths) > 1 {
			h.FromPath = event.Paths[0]
		}
		histories = append(histories, h)
	}

	return db.DB.Create(&histories).Error
}

type Stats struct {
	Total   int64            `json:"total"`
	Batches int64            `json:"batches"`
	ByKind  map[string]int64 `json:"by_kind"`
}

func (r *HistoryRepository) GetStats() (Stats, error) {
	stats := Stats{ByKind: make(map[string]int64)}
	if err := db.DB.Model(&model.History{}).Count(&stats.Total).Error; err != nil {
		return stats, err
	}

	if err := db.DB.Model(&model.History{}).
		Distinct("batch_id").
		Count(&stats.Batches).Error; err != nil {
		return stats, err
	}

	var rows []struct {
		Kind  string
		Count int64
	}
	if err := db.DB.Model(&model.History{}).
		Select("kind, count(*) as count").
		Group("kind").
		Scan(&rows).Error; err != nil {
		return stats, err
	}
	for _, row := range rows {
		stats.ByKind[row.Kind] = row.Count
	}

	return stats, nil
}

func (r *HistoryRepository) GetRecent(limit int) ([]model.History, error) {
	var histories []model.History
	result := db.DB.
		Order("emitted_at desc").
		Order("seq").
		Limit(limit).
		Find(&histories)

	return histories, result.Error
}

func (r *HistoryRepository) GetByPath(path string, limit int) ([]model.History, error) {
	var histories []model.History
	result := db.DB.
		Where("path = ? OR from_path = ?", path, path).
		Order("emitted_at desc").
		Order("seq").
		Limit(limit).
		Find(&histories)

	return histories, result.Error
}

// Prune deletes every row emitted before cutoff and reports how many went.
func (r *HistoryRepository) Prune(cutoff time.Time) (int64, error) {
	result := db.DB.Unscoped().
		Where("emitted_at < ?", cutoff).
		Delete(&model.History{})

	return result.RowsAffected, result.Error
}
