package repository

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate key")
)

// Repositories 采购引擎仓库集合
type Repositories struct {
	PR          *PRRepository
	QR          *QRRepository
	Part        *PartRepository
	User        *UserRepository
	ActivityLog *ActivityLogRepository
	Sequence    Sequencer
}

// NewRepositories wires every repository over db. When rdb is non-nil document
// numbers come from Redis, otherwise from the mro_sequences table.
func NewRepositories(db *gorm.DB, rdb *redis.Client) *Repositories {
	var seq Sequencer = NewSequenceRepository(db)
	if rdb != nil {
		seq = NewRedisSequence(rdb, "")
	}
	return &Repositories{
		PR:          NewPRRepository(db),
		QR:          NewQRRepository(db),
		Part:        NewPartRepository(db),
		User:        NewUserRepository(db),
		ActivityLog: NewActivityLogRepository(db),
		Sequence:    seq,
	}
}

// StatusCount is one row of a GROUP BY status query.
type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func offset(page, pageSize int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * pageSize
}
