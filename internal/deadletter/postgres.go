package deadletter

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/azhengyongqin/mail-taskhub/internal/events"
	"github.com/azhengyongqin/mail-taskhub/internal/metrics"
)

const postgresPageSize = 500

// DeadLetterModel GORM 模型 - 对应 dead_letter 表
type DeadLetterModel struct {
	ID          int64     `gorm:"primaryKey;autoIncrement;column:id"`
	GroupName   string    `gorm:"column:group_name;type:text;not null;uniqueIndex:uq_dead_letter_group_insertion"`
	InsertionID string    `gorm:"column:insertion_id;type:text;not null;uniqueIndex:uq_dead_letter_group_insertion"`
	Event       []byte    `gorm:"column:event;type:bytea;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName 指定表名
func (DeadLetterModel) TableName() string { return "dead_letter" }

// PostgresStore 基于 GORM 的死信存储，表结构由 goose 迁移创建
type PostgresStore struct {
	db *gorm.DB
}

func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Store(ctx context.Context, group events.Group, event events.Event) (InsertionID, error) {
	id := NewInsertionID()
	if err := s.StoreWithID(ctx, group, event, id); err != nil {
		return "", err
	}
	return id, nil
}

func (s *PostgresStore) StoreWithID(ctx context.Context, group events.Group, event events.Event, id InsertionID) error {
	m := DeadLetterModel{
		GroupName:   group.String(),
		InsertionID: id.String(),
		Event:       []byte(event),
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "group_name"}, {Name: "insertion_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"event"}),
		}).
		Create(&m).Error
	if err != nil {
		return fmt.Errorf("store dead letter: %w", err)
	}
	metrics.RecordDeadLetterStored(group.String())
	return nil
}

func (s *PostgresStore) ListGroups(ctx context.Context) ([]events.Group, error) {
	var names []string
	err := s.db.WithContext(ctx).
		Model(&DeadLetterModel{}).
		Distinct("group_name").
		Order("group_name asc").
		Pluck("group_name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("list dead letter groups: %w", err)
	}
	out := make([]events.Group, 0, len(names))
	for _, n := range names {
		out = append(out, events.Group(n))
	}
	return out, nil
}

// ListInsertionIDs 按自增 id 做 keyset 分页，每页一次查询
func (s *PostgresStore) ListInsertionIDs(ctx context.Context, group events.Group) iter.Seq2[InsertionID, error] {
	return func(yield func(InsertionID, error) bool) {
		var lastID int64
		for {
			var page []DeadLetterModel
			err := s.db.WithContext(ctx).
				Select("id", "insertion_id").
				Where("group_name = ? and id > ?", group.String(), lastID).
				Order("id asc").
				Limit(postgresPageSize).
				Find(&page).Error
			if err != nil {
				yield("", fmt.Errorf("list dead letters: %w", err))
				return
			}
			for _, m := range page {
				if !yield(InsertionID(m.InsertionID), nil) {
					return
				}
			}
			if len(page) < postgresPageSize {
				return
			}
			lastID = page[len(page)-1].ID
		}
	}
}

func (s *PostgresStore) Load(ctx context.Context, group events.Group, id InsertionID) (events.Event, error) {
	var m DeadLetterModel
	err := s.db.WithContext(ctx).
		Where("group_name = ? and insertion_id = ?", group.String(), id.String()).
		Take(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load dead letter: %w", err)
	}
	return events.Event(m.Event), nil
}

func (s *PostgresStore) Remove(ctx context.Context, group events.Group, id InsertionID) error {
	err := s.db.WithContext(ctx).
		Where("group_name = ? and insertion_id = ?", group.String(), id.String()).
		Delete(&DeadLetterModel{}).Error
	if err != nil {
		return fmt.Errorf("remove dead letter: %w", err)
	}
	return nil
}

func (s *PostgresStore) ContainEvents(ctx context.Context) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&DeadLetterModel{}).Limit(1).Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("count dead letters: %w", err)
	}
	return n > 0, nil
}

var _ Store = (*PostgresStore)(nil)
