package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db, time.Second), mock
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCountPrices(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM daily_prices")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(4120)))

	count, err := store.CountPrices(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 4120, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountPricesTableMissing(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM daily_prices")).
		WillReturnError(&pgconn.PgError{Code: "42P01", Message: `relation "daily_prices" does not exist`})

	_, err := store.CountPrices(context.Background())
	require.Error(t, err)
	assert.True(t, IsTableMissing(err))
	assert.Contains(t, err.Error(), "daily_prices")
}

func TestLatestDates(t *testing.T) {
	store, mock := newMockStore(t)
	rows := sqlmock.NewRows([]string{"arrival_date"}).
		AddRow(date(2024, 5, 5)).
		AddRow(date(2024, 5, 4)).
		AddRow(date(2024, 5, 3))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT dp.arrival_date")).
		WithArgs(5).
		WillReturnRows(rows)

	dates, err := store.LatestDates(context.Background(), FreshnessQuery{Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{date(2024, 5, 5), date(2024, 5, 4), date(2024, 5, 3)}, dates)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestDatesQueryError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT dp.arrival_date")).
		WithArgs(DefaultLookback).
		WillReturnError(errors.New("connection reset"))

	_, err := store.LatestDates(context.Background(), FreshnessQuery{})
	require.Error(t, err)
	assert.False(t, IsTableMissing(err))
	assert.Contains(t, err.Error(), "latest dates")
}

func TestWindowRecords(t *testing.T) {
	store, mock := newMockStore(t)
	q := IntegrityWindowQuery{MarketPattern: "jaipur", Start: date(2024, 5, 1), End: date(2024, 5, 8)}

	rows := sqlmock.NewRows([]string{"arrival_date", "market", "commodity", "district", "state", "min_price", "max_price", "modal_price"}).
		AddRow(date(2024, 5, 2), "Jaipur (F&V)", "Tomato", "Jaipur", "Rajasthan", "1000", "1500", "1200.50").
		AddRow(date(2024, 5, 3), "Jaipur (Grain)", "Wheat", "Jaipur", "Rajasthan", nil, nil, "2450")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE m.name ILIKE $1")).
		WithArgs("%jaipur%", date(2024, 5, 1), date(2024, 5, 8)).
		WillReturnRows(rows)

	records, err := store.WindowRecords(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "Tomato", records[0].CommodityName)
	assert.Equal(t, "Jaipur", records[0].District)
	assert.Equal(t, "Rajasthan", records[0].State)
	assert.Equal(t, "Rajasthan", records[1].State)
	assert.True(t, records[0].ModalPrice.Decimal.Equal(decimal.RequireFromString("1200.50")))
	assert.False(t, records[1].MinPrice.Valid)
	assert.True(t, records[1].ModalPrice.Valid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWindowRecordsRejectsInvertedWindow(t *testing.T) {
	store, mock := newMockStore(t)
	q := IntegrityWindowQuery{MarketPattern: "jaipur", Start: date(2024, 5, 8), End: date(2024, 5, 1)}

	_, err := store.WindowRecords(context.Background(), q)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTableCounts(t *testing.T) {
	store, mock := newMockStore(t)
	rows := sqlmock.NewRows([]string{"states", "districts", "markets", "commodities", "prices", "latest_date"}).
		AddRow(int64(2), int64(7), int64(31), int64(120), int64(9000), date(2024, 5, 5))
	mock.ExpectQuery(regexp.QuoteMeta("(SELECT COUNT(*) FROM states)")).WillReturnRows(rows)

	counts, err := store.TableCounts(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 31, counts.Markets)
	assert.EqualValues(t, 9000, counts.Prices)
	require.NotNil(t, counts.LatestDate)
	assert.Equal(t, date(2024, 5, 5), *counts.LatestDate)
}

func TestRecentRecords(t *testing.T) {
	store, mock := newMockStore(t)
	rows := sqlmock.NewRows([]string{"arrival_date", "market", "commodity", "district", "state", "min_price", "max_price", "modal_price"}).
		AddRow(date(2024, 5, 5), "Kota", "Soyabean", "Kota", "Rajasthan", "4200", "4600", "4400")
	mock.ExpectQuery(regexp.QuoteMeta("JOIN states s ON d.state_id = s.id")).
		WithArgs(5).
		WillReturnRows(rows)

	records, err := store.RecentRecords(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Rajasthan", records[0].State)
	assert.Equal(t, "Kota", records[0].District)
}

func TestClosedStoreNotConfigured(t *testing.T) {
	var store *Store
	_, err := store.CountPrices(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.NoError(t, store.Close())
}
