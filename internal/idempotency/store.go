package idempotency

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aruspay/aruspay/internal/clock"
	obsmetrics "github.com/aruspay/aruspay/internal/observability/metrics"
)

// Record is one cached response, keyed by scope plus caller-supplied key.
type Record struct {
	ID         snowflake.ID   `json:"id" gorm:"primaryKey"`
	Scope      string         `json:"scope" gorm:"type:text;not null;uniqueIndex:ux_idempotency_scope_key,priority:1"`
	Key        string         `json:"key" gorm:"type:text;not null;uniqueIndex:ux_idempotency_scope_key,priority:2"`
	StatusCode int            `json:"status_code" gorm:"not null"`
	Response   datatypes.JSON `json:"response" gorm:"type:jsonb"`
	CreatedAt  time.Time      `json:"created_at" gorm:"not null"`
}

func (Record) TableName() string { return "idempotency_keys" }

// Store caches responses for intake operations so a retried request with
// the same key replays the original outcome instead of re-executing.
type Store interface {
	Get(ctx context.Context, scope, key string) (*Record, error)
	// Remember stores a response under scope+key. When a concurrent request
	// already stored one, the existing record wins and stored is false.
	Remember(ctx context.Context, scope, key string, statusCode int, response []byte) (*Record, bool, error)
}

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type store struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	obsMetrics *obsmetrics.Metrics
}

func NewStore(p Params) Store {
	return &store{
		db:         p.DB,
		log:        p.Log.Named("idempotency"),
		genID:      p.GenID,
		clock:      p.Clock,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *store) Get(ctx context.Context, scope, key string) (*Record, error) {
	record, err := s.find(ctx, scope, key)
	if err != nil {
		return nil, err
	}
	if record != nil {
		s.obsMetrics.RecordIdempotencyReplay()
		s.log.Info("idempotent replay",
			zap.String("scope", scope),
			zap.String("key", key),
		)
	}
	return record, nil
}

func (s *store) Remember(ctx context.Context, scope, key string, statusCode int, response []byte) (*Record, bool, error) {
	record := &Record{
		ID:         s.genID.Generate(),
		Scope:      scope,
		Key:        key,
		StatusCode: statusCode,
		Response:   response,
		CreatedAt:  s.clock.Now(),
	}

	// clause.OnConflict lets each dialect render its own conflict-ignore
	// form; mysql has no ON CONFLICT syntax.
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scope"}, {Name: "key"}},
		DoNothing: true,
	}).Create(record)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected > 0 {
		return record, true, nil
	}

	// Lost the race; the first writer's response is the canonical one.
	existing, err := s.find(ctx, scope, key)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *store) find(ctx context.Context, scope, key string) (*Record, error) {
	var item Record
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, scope, key, status_code, response, created_at
		 FROM idempotency_keys
		 WHERE scope = ? AND key = ?
		 LIMIT 1`,
		scope,
		key,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}
