package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/adam0307a/yurts-laundry-tracker/internal/feed"
	"github.com/adam0307a/yurts-laundry-tracker/internal/model"
)

// Condition guards a machine update: the write is applied only if the
// condition still holds at write time. Success or failure is decided by the
// database, never by a prior read.
type Condition interface {
	Apply(tx *gorm.DB) *gorm.DB
}

type statusEquals struct{ status model.MachineStatus }

func (c statusEquals) Apply(tx *gorm.DB) *gorm.DB {
	return tx.Where("status = ?", c.status)
}

// StatusEquals requires the machine's current status to equal the given one.
func StatusEquals(status model.MachineStatus) Condition {
	return statusEquals{status: status}
}

type ownerEquals struct{ userID string }

func (c ownerEquals) Apply(tx *gorm.DB) *gorm.DB {
	return tx.Where("owner_id = ?", c.userID)
}

// OwnerEquals requires the machine's reservation to belong to the given user.
func OwnerEquals(userID string) Condition {
	return ownerEquals{userID: userID}
}

type reservedElapsed struct{ now time.Time }

func (c reservedElapsed) Apply(tx *gorm.DB) *gorm.DB {
	return tx.Where("status IN ?", []model.MachineStatus{model.StatusInUse, model.StatusFinishing}).
		Where("end_time <= ?", c.now)
}

// ReservedElapsed requires the machine to hold a reservation whose end time
// has passed. Used by the sweeper's auto-release so it no-ops against a
// concurrent user-initiated end.
func ReservedElapsed(now time.Time) Condition {
	return reservedElapsed{now: now}
}

// ClearedReservationFields is the update set that returns a machine to the
// given idle status with every reservation field absent.
func ClearedReservationFields(status model.MachineStatus) map[string]any {
	return map[string]any{
		"status":           status,
		"start_time":       nil,
		"end_time":         nil,
		"duration_minutes": nil,
		"note":             nil,
		"owner_id":         nil,
		"owner_email":      nil,
	}
}

// MachineCounts aggregates the machines of one block by type.
type MachineCounts struct {
	Total   int64
	Washers int64
	Dryers  int64
}

// Store defines the interface for all machine persistence operations.
type Store interface {
	Seed(ctx context.Context, blocks []model.Block, machines []model.Machine) error
	ListBlocks(ctx context.Context) ([]model.Block, error)
	ListMachines(ctx context.Context) ([]model.Machine, error)
	ListMachinesByBlock(ctx context.Context, blockID string) ([]model.Machine, error)
	ListReservedMachines(ctx context.Context) ([]model.Machine, error)
	CountMachinesByBlock(ctx context.Context) (map[string]MachineCounts, error)
	GetMachine(ctx context.Context, id string) (model.Machine, error)
	// UpdateMachine applies fields to the machine iff cond still holds.
	// It returns the post-update record and whether the write took effect;
	// a false result with nil error means the condition failed (or the id
	// is unknown) and nothing changed.
	UpdateMachine(ctx context.Context, id string, fields map[string]any, cond Condition) (model.Machine, bool, error)
	Events() *feed.Broker
	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db     *gorm.DB
	broker *feed.Broker
}

// NewGormStore creates a new GORM-backed store publishing change events to
// the given broker.
func NewGormStore(db *gorm.DB, broker *feed.Broker) Store {
	return &gormStore{db: db, broker: broker}
}

func (s *gormStore) DB() *gorm.DB { return s.db }

func (s *gormStore) Events() *feed.Broker { return s.broker }

// Seed inserts catalog blocks and machines that are not present yet. Rows
// that already exist are left untouched so live reservation state survives
// restarts.
func (s *gormStore) Seed(ctx context.Context, blocks []model.Block, machines []model.Machine) error {
	var created []model.Machine
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(blocks) > 0 {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&blocks).Error; err != nil {
				return fmt.Errorf("seed blocks: %w", err)
			}
		}

		existing := make(map[string]bool)
		var ids []string
		if err := tx.Model(&model.Machine{}).Pluck("id", &ids).Error; err != nil {
			return fmt.Errorf("list existing machines: %w", err)
		}
		for _, id := range ids {
			existing[id] = true
		}

		for _, m := range machines {
			if existing[m.ID] {
				continue
			}
			created = append(created, m)
		}
		if len(created) > 0 {
			log.Printf("seeding %d new machines from catalog", len(created))
			if err := tx.Create(&created).Error; err != nil {
				return fmt.Errorf("seed machines: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, m := range created {
		s.broker.Publish(feed.Event{Kind: feed.KindInsert, Record: m})
	}
	return nil
}

func (s *gormStore) ListBlocks(ctx context.Context) ([]model.Block, error) {
	var blocks []model.Block
	if err := s.db.WithContext(ctx).Order("name").Find(&blocks).Error; err != nil {
		return nil, err
	}
	return blocks, nil
}

func (s *gormStore) ListMachines(ctx context.Context) ([]model.Machine, error) {
	var machines []model.Machine
	if err := s.db.WithContext(ctx).Order("name").Find(&machines).Error; err != nil {
		return nil, err
	}
	return machines, nil
}

func (s *gormStore) ListMachinesByBlock(ctx context.Context, blockID string) ([]model.Machine, error) {
	var machines []model.Machine
	if err := s.db.WithContext(ctx).Where("block_id = ?", blockID).Order("name").Find(&machines).Error; err != nil {
		return nil, err
	}
	return machines, nil
}

func (s *gormStore) ListReservedMachines(ctx context.Context) ([]model.Machine, error) {
	var machines []model.Machine
	err := s.db.WithContext(ctx).
		Where("status IN ?", []model.MachineStatus{model.StatusInUse, model.StatusFinishing}).
		Order("name").
		Find(&machines).Error
	if err != nil {
		return nil, err
	}
	return machines, nil
}

func (s *gormStore) CountMachinesByBlock(ctx context.Context) (map[string]MachineCounts, error) {
	var rows []struct {
		BlockID string
		Type    model.MachineType
		Count   int64
	}
	err := s.db.WithContext(ctx).
		Model(&model.Machine{}).
		Select("block_id, type, COUNT(*) as count").
		Group("block_id").Group("type").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count machines by block: %w", err)
	}

	counts := make(map[string]MachineCounts, len(rows))
	for _, r := range rows {
		c := counts[r.BlockID]
		c.Total += r.Count
		switch r.Type {
		case model.TypeWasher:
			c.Washers += r.Count
		case model.TypeDryer:
			c.Dryers += r.Count
		}
		counts[r.BlockID] = c
	}
	return counts, nil
}

func (s *gormStore) GetMachine(ctx context.Context, id string) (model.Machine, error) {
	var machine model.Machine
	if err := s.db.WithContext(ctx).First(&machine, "id = ?", id).Error; err != nil {
		return model.Machine{}, err
	}
	return machine, nil
}

func (s *gormStore) UpdateMachine(ctx context.Context, id string, fields map[string]any, cond Condition) (model.Machine, bool, error) {
	var updated model.Machine
	applied := false

	// Every applied write bumps the row version. The publish below happens
	// after the transaction returns, so two committed writes to the same
	// machine can reach the broker out of commit order; followers compare
	// versions and drop the overtaken event.
	withVersion := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		withVersion[k] = v
	}
	withVersion["version"] = gorm.Expr("version + 1")

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&model.Machine{}).Where("id = ?", id)
		q = cond.Apply(q)
		res := q.Updates(withVersion)
		if res.Error != nil {
			return fmt.Errorf("update machine %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		applied = true
		return tx.First(&updated, "id = ?", id).Error
	})
	if err != nil {
		return model.Machine{}, false, err
	}
	if !applied {
		return model.Machine{}, false, nil
	}

	s.broker.Publish(feed.Event{Kind: feed.KindUpdate, Record: updated})
	return updated, true, nil
}
