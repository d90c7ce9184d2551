package storage

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the store handle was not initialised.
	ErrNotConfigured = errors.New("storage: database not configured")
	// ErrTableMissing indicates a query referenced a table that does not exist.
	ErrTableMissing = errors.New("storage: table does not exist")
)

// PriceRecord is a read-only view of one daily_prices row joined with its
// market and commodity.
type PriceRecord struct {
	ObservationDate time.Time           `json:"observation_date" yaml:"observation_date"`
	MarketName      string              `json:"market" yaml:"market"`
	CommodityName   string              `json:"commodity" yaml:"commodity"`
	District        string              `json:"district,omitempty" yaml:"district,omitempty"`
	State           string              `json:"state,omitempty" yaml:"state,omitempty"`
	MinPrice        decimal.NullDecimal `json:"min_price" yaml:"-"`
	MaxPrice        decimal.NullDecimal `json:"max_price" yaml:"-"`
	ModalPrice      decimal.NullDecimal `json:"modal_price" yaml:"-"`
}

// TableCounts summarises row counts across the price schema.
type TableCounts struct {
	States      int64
	Districts   int64
	Markets     int64
	Commodities int64
	Prices      int64
	LatestDate  *time.Time
}
