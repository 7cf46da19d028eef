package repository

import (
	"context"
	"fmt"

	"github.com/bitfantasy/nimo-mro/internal/procurement/entity"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Sequencer hands out strictly increasing values per key.
type Sequencer interface {
	Next(ctx context.Context, key string) (int64, error)
}

// SequenceRepository is a Sequencer over the mro_sequences table. The counter row is
// incremented in place, so concurrent callers serialize on its row lock.
type SequenceRepository struct {
	db *gorm.DB
}

func NewSequenceRepository(db *gorm.DB) *SequenceRepository {
	return &SequenceRepository{db: db}
}

// Next increments key and returns the new value.
func (r *SequenceRepository) Next(ctx context.Context, key string) (int64, error) {
	var seq entity.Sequence
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&entity.Sequence{Name: key}).Error; err != nil {
			return err
		}
		if err := tx.Model(&entity.Sequence{}).
			Where("name = ?", key).
			UpdateColumn("value", gorm.Expr("value + ?", 1)).Error; err != nil {
			return err
		}
		return tx.Where("name = ?", key).First(&seq).Error
	})
	if err != nil {
		return 0, fmt.Errorf("next sequence %s: %w", key, err)
	}
	return seq.Value, nil
}

// RedisSequence is a Sequencer backed by Redis INCR.
type RedisSequence struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisSequence keys counters as prefix+key; an empty prefix means "mro:seq:".
func NewRedisSequence(rdb *redis.Client, prefix string) *RedisSequence {
	if prefix == "" {
		prefix = "mro:seq:"
	}
	return &RedisSequence{rdb: rdb, prefix: prefix}
}

// Next increments key and returns the new value.
func (s *RedisSequence) Next(ctx context.Context, key string) (int64, error) {
	v, err := s.rdb.Incr(ctx, s.prefix+key).Result()
	if err != nil {
		return 0, fmt.Errorf("next sequence %s: %w", key, err)
	}
	return v, nil
}
