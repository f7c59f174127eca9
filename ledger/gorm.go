package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// recordRow is the persisted shape of a Record. Amounts and the kind-specific
// detail are stored as JSON columns; everything queried on gets its own column.
type recordRow struct {
	ID             string `gorm:"primaryKey"`
	Wallet         string `gorm:"index:idx_wallet_chain"`
	ChainID        uint64 `gorm:"index:idx_wallet_chain"`
	Kind           string `gorm:"index"`
	Status         string `gorm:"index"`
	TxHash         string
	Nonce          uint64
	ViaBroadcaster bool
	RelayAddress   string
	Amounts        []byte `gorm:"type:jsonb"`
	Fee            []byte `gorm:"type:jsonb"`
	Detail         []byte `gorm:"type:jsonb"`
	SubmittedAt    time.Time
	ResolvedAt     *time.Time
}

func (recordRow) TableName() string { return "pipeline_transactions" }

// GormStore is the Postgres-backed Store.
type GormStore struct {
	db *gorm.DB
}

// OpenGormStore connects to Postgres with the given DSN and migrates the
// transactions table.
func OpenGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("ledger: open postgres: %w", err)
	}
	return NewGormStore(db)
}

// NewGormStore wraps an existing gorm handle, migrating the schema.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&recordRow{}); err != nil {
		return nil, fmt.Errorf("ledger: migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

func toRow(rec Record) (recordRow, error) {
	amounts, err := json.Marshal(rec.Amounts)
	if err != nil {
		return recordRow{}, fmt.Errorf("ledger: marshal amounts: %w", err)
	}
	var fee []byte
	if rec.Fee != nil {
		if fee, err = json.Marshal(rec.Fee); err != nil {
			return recordRow{}, fmt.Errorf("ledger: marshal fee: %w", err)
		}
	}
	var detail []byte
	if rec.Detail != nil {
		if detail, err = json.Marshal(rec.Detail); err != nil {
			return recordRow{}, fmt.Errorf("ledger: marshal detail: %w", err)
		}
	}
	return recordRow{
		ID:             rec.ID,
		Wallet:         rec.Wallet.Hex(),
		ChainID:        rec.ChainID,
		Kind:           string(rec.Kind),
		Status:         string(rec.Status),
		TxHash:         rec.TxHash.Hex(),
		Nonce:          rec.Nonce,
		ViaBroadcaster: rec.ViaBroadcaster,
		RelayAddress:   rec.RelayAddress,
		Amounts:        amounts,
		Fee:            fee,
		Detail:         detail,
		SubmittedAt:    rec.SubmittedAt,
		ResolvedAt:     rec.ResolvedAt,
	}, nil
}

func fromRow(row recordRow) (Record, error) {
	rec := Record{
		ID:             row.ID,
		Wallet:         common.HexToAddress(row.Wallet),
		ChainID:        row.ChainID,
		Kind:           Kind(row.Kind),
		Status:         Status(row.Status),
		TxHash:         common.HexToHash(row.TxHash),
		Nonce:          row.Nonce,
		ViaBroadcaster: row.ViaBroadcaster,
		RelayAddress:   row.RelayAddress,
		SubmittedAt:    row.SubmittedAt,
		ResolvedAt:     row.ResolvedAt,
	}
	if len(row.Amounts) > 0 {
		if err := json.Unmarshal(row.Amounts, &rec.Amounts); err != nil {
			return Record{}, fmt.Errorf("ledger: unmarshal amounts: %w", err)
		}
	}
	if len(row.Fee) > 0 {
		rec.Fee = &Amount{}
		if err := json.Unmarshal(row.Fee, rec.Fee); err != nil {
			return Record{}, fmt.Errorf("ledger: unmarshal fee: %w", err)
		}
	}
	if len(row.Detail) > 0 {
		detail, err := decodeDetail(rec.Kind, row.Detail)
		if err != nil {
			return Record{}, err
		}
		rec.Detail = detail
	}
	return rec, nil
}

func decodeDetail(kind Kind, raw []byte) (Detail, error) {
	var target Detail
	switch kind {
	case KindSend:
		target = &SendDetail{}
	case KindShield:
		target = &ShieldDetail{}
	case KindUnshield:
		target = &UnshieldDetail{}
	case KindApprove:
		target = &ApproveDetail{}
	case KindSwap:
		target = &SwapDetail{}
	case KindMint:
		target = &MintDetail{}
	case KindCancel:
		target = &CancelDetail{}
	default:
		return nil, fmt.Errorf("ledger: unknown kind %q", kind)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return nil, fmt.Errorf("ledger: unmarshal %s detail: %w", kind, err)
	}
	return target, nil
}

func (g *GormStore) Append(rec Record) error {
	row, err := toRow(rec)
	if err != nil {
		return err
	}
	return g.db.Create(&row).Error
}

func (g *GormStore) UpdateStatus(id string, from, to Status) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, from, to)
	}
	now := time.Now()
	res := g.db.Model(&recordRow{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(map[string]interface{}{"status": string(to), "resolved_at": &now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var row recordRow
		if err := g.db.First(&row, "id = ?", id).Error; errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, from, to)
	}
	return nil
}

func (g *GormStore) MarkReplaced(originalID, cancelID string) error {
	return g.db.Transaction(func(tx *gorm.DB) error {
		var row recordRow
		if err := tx.First(&row, "id = ?", originalID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if !Status(row.Status).CanTransition(StatusReplaced) {
			return fmt.Errorf("%w: %s -> %s", ErrBadTransition, row.Status, StatusReplaced)
		}
		now := time.Now()
		link, err := json.Marshal(map[string]string{"cancelTxID": cancelID})
		if err != nil {
			return err
		}
		return tx.Model(&recordRow{}).Where("id = ?", originalID).Updates(map[string]interface{}{
			"status":      string(StatusReplaced),
			"resolved_at": &now,
			"detail":      link,
		}).Error
	})
}

func (g *GormStore) Query(wallet common.Address, f Filter) ([]Record, error) {
	q := g.db.Where("wallet = ?", wallet.Hex())
	if f.ChainID != 0 {
		q = q.Where("chain_id = ?", f.ChainID)
	}
	if f.Kind != "" {
		q = q.Where("kind = ?", string(f.Kind))
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	q = q.Order("submitted_at DESC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var rows []recordRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
