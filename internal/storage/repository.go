package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// SQLSTATE for undefined_table.
const undefinedTableCode = "42P01"

// ServerVersion returns the server's version banner.
func (s *Store) ServerVersion(ctx context.Context) (string, error) {
	db, err := s.getDB()
	if err != nil {
		return "", err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var version string
	if err := db.QueryRowContext(ctx, serverVersionSQL).Scan(&version); err != nil {
		return "", wrapQueryErr("server version", err)
	}
	return version, nil
}

// CountPrices counts rows in daily_prices.
func (s *Store) CountPrices(ctx context.Context) (int64, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var count int64
	if err := db.QueryRowContext(ctx, countPricesSQL).Scan(&count); err != nil {
		return 0, wrapQueryErr("count prices", err)
	}
	return count, nil
}

// TableCounts counts rows in every table of the price schema.
func (s *Store) TableCounts(ctx context.Context) (TableCounts, error) {
	db, err := s.getDB()
	if err != nil {
		return TableCounts{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		counts TableCounts
		latest sql.NullTime
	)
	if err := db.QueryRowContext(ctx, tableCountsSQL).Scan(
		&counts.States,
		&counts.Districts,
		&counts.Markets,
		&counts.Commodities,
		&counts.Prices,
		&latest,
	); err != nil {
		return TableCounts{}, wrapQueryErr("table counts", err)
	}
	if latest.Valid {
		d := DateOf(latest.Time)
		counts.LatestDate = &d
	}
	return counts, nil
}

// LatestDates lists the most recent distinct observation dates, newest first.
func (s *Store) LatestDates(ctx context.Context, q FreshnessQuery) ([]time.Time, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query, args := q.Build()
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapQueryErr("latest dates", err)
	}
	defer rows.Close()

	dates := make([]time.Time, 0, q.Limit)
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan latest date: %w", err)
		}
		dates = append(dates, DateOf(d))
	}
	if err := rows.Err(); err != nil {
		return nil, wrapQueryErr("latest dates", err)
	}
	return dates, nil
}

// WindowRecords lists the records matching q ordered by observation date.
func (s *Store) WindowRecords(ctx context.Context, q IntegrityWindowQuery) ([]PriceRecord, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query, args := q.Build()
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapQueryErr("window records", err)
	}
	defer rows.Close()

	records := make([]PriceRecord, 0)
	for rows.Next() {
		var (
			rec                PriceRecord
			minP, maxP, modalP sql.NullString
		)
		if err := rows.Scan(&rec.ObservationDate, &rec.MarketName, &rec.CommodityName, &rec.District, &rec.State, &minP, &maxP, &modalP); err != nil {
			return nil, fmt.Errorf("scan window record: %w", err)
		}
		if err := fillPrices(&rec, minP, maxP, modalP); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapQueryErr("window records", err)
	}
	return records, nil
}

// RecentRecords lists the newest records with their full location.
func (s *Store) RecentRecords(ctx context.Context, limit int) ([]PriceRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := db.QueryContext(ctx, recentRecordsSQL, limit)
	if err != nil {
		return nil, wrapQueryErr("recent records", err)
	}
	defer rows.Close()

	records := make([]PriceRecord, 0, limit)
	for rows.Next() {
		var (
			rec                PriceRecord
			minP, maxP, modalP sql.NullString
		)
		if err := rows.Scan(
			&rec.ObservationDate,
			&rec.MarketName,
			&rec.CommodityName,
			&rec.District,
			&rec.State,
			&minP,
			&maxP,
			&modalP,
		); err != nil {
			return nil, fmt.Errorf("scan recent record: %w", err)
		}
		if err := fillPrices(&rec, minP, maxP, modalP); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapQueryErr("recent records", err)
	}
	return records, nil
}

func fillPrices(rec *PriceRecord, minP, maxP, modalP sql.NullString) error {
	rec.ObservationDate = DateOf(rec.ObservationDate)

	var err error
	if rec.MinPrice, err = parseNullDecimal(minP); err != nil {
		return fmt.Errorf("parse min price: %w", err)
	}
	if rec.MaxPrice, err = parseNullDecimal(maxP); err != nil {
		return fmt.Errorf("parse max price: %w", err)
	}
	if rec.ModalPrice, err = parseNullDecimal(modalP); err != nil {
		return fmt.Errorf("parse modal price: %w", err)
	}
	return nil
}

func parseNullDecimal(v sql.NullString) (decimal.NullDecimal, error) {
	if !v.Valid {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(v.String)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}

func wrapQueryErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == undefinedTableCode {
		return fmt.Errorf("%s: %w: %s", op, ErrTableMissing, pgErr.Message)
	}
	return fmt.Errorf("%s: %w", op, err)
}
