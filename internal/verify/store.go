package verify

import (
	"context"
	"fmt"
	"time"

	"mandi-pricecheck/internal/storage"
)

// Store is the connection handle the data checks run against. The runner
// owns it for the duration of a run and always closes it.
type Store interface {
	FreshnessStore
	WindowStore
	CountPrices(ctx context.Context) (int64, error)
	Close() error
}

// FreshnessStore reads the newest observation dates.
type FreshnessStore interface {
	LatestDates(ctx context.Context, q storage.FreshnessQuery) ([]time.Time, error)
}

// WindowStore reads an integrity window slice.
type WindowStore interface {
	WindowRecords(ctx context.Context, q storage.IntegrityWindowQuery) ([]storage.PriceRecord, error)
}

// versioner is implemented by stores that can report their server version.
type versioner interface {
	ServerVersion(ctx context.Context) (string, error)
}

// OpenFunc establishes a store connection.
type OpenFunc func(ctx context.Context) (Store, error)

// StoreDetail describes the connected store.
type StoreDetail struct {
	ServerVersion string `json:"server_version,omitempty" yaml:"server_version,omitempty"`
	PriceRows     *int64 `json:"price_rows,omitempty" yaml:"price_rows,omitempty"`
}

// CheckStore attempts a connection. The handle is non-nil only when the
// result is OK; a FAIL makes every data check unrunnable.
func CheckStore(ctx context.Context, open OpenFunc) (ProbeResult, Store) {
	if open == nil {
		return Fail(NameStore, KindStoreUnreachable, "store connection failed: database not configured", nil), nil
	}

	store, err := open(ctx)
	if err != nil {
		return Fail(NameStore, KindStoreUnreachable, fmt.Sprintf("store connection failed: %v", err), nil), nil
	}
	if store == nil {
		return Fail(NameStore, KindStoreUnreachable, "store connection failed: no handle returned", nil), nil
	}
	return OK(NameStore, "store connection established", nil), store
}

// InspectStore enriches a successful store result with the server version and
// the daily_prices row count. An unreadable price table downgrades it to WARN;
// the freshness check reports the specifics.
func InspectStore(ctx context.Context, store Store, connected ProbeResult) ProbeResult {
	detail := StoreDetail{}
	if v, ok := store.(versioner); ok {
		if version, err := v.ServerVersion(ctx); err == nil {
			detail.ServerVersion = version
		}
	}

	count, err := store.CountPrices(ctx)
	if err != nil {
		msg := fmt.Sprintf("store connected but daily_prices is not readable: %v", err)
		return Warn(connected.Name, KindQueryFailed, msg, detail)
	}
	detail.PriceRows = &count
	return OK(connected.Name, fmt.Sprintf("store connection established, %d rows in daily_prices", count), detail)
}
