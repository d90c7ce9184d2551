package verify

import (
	"context"
	"time"

	"mandi-pricecheck/internal/source"
	"mandi-pricecheck/internal/storage"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type fakeStore struct {
	dates      []time.Time
	datesErr   error
	records    []storage.PriceRecord
	recordsErr error
	count      int64
	countErr   error
	panicOn    string

	closed     int
	dateCalls  int
	lastWindow storage.IntegrityWindowQuery
}

func (f *fakeStore) LatestDates(ctx context.Context, q storage.FreshnessQuery) ([]time.Time, error) {
	f.dateCalls++
	if f.panicOn == NameFreshness {
		panic("freshness blew up")
	}
	if f.datesErr != nil {
		return nil, f.datesErr
	}
	out := append([]time.Time(nil), f.dates...)
	return out, nil
}

func (f *fakeStore) WindowRecords(ctx context.Context, q storage.IntegrityWindowQuery) ([]storage.PriceRecord, error) {
	f.lastWindow = q
	if f.panicOn == NameIntegrity {
		panic("integrity blew up")
	}
	if f.recordsErr != nil {
		return nil, f.recordsErr
	}
	return f.records, nil
}

func (f *fakeStore) CountPrices(ctx context.Context) (int64, error) {
	return f.count, f.countErr
}

func (f *fakeStore) Close() error {
	f.closed++
	return nil
}

// opener hands out store only when err is nil and counts calls.
type opener struct {
	store *fakeStore
	err   error
	opens int
	// onOpen observes ordering against other collaborators.
	onOpen func()
}

func (o *opener) open(ctx context.Context) (Store, error) {
	o.opens++
	if o.onOpen != nil {
		o.onOpen()
	}
	if o.err != nil {
		return nil, o.err
	}
	return o.store, nil
}

type fakeSampler struct {
	page  source.Page
	err   error
	calls int
}

func (f *fakeSampler) Sample(ctx context.Context, limit int) (source.Page, error) {
	f.calls++
	return f.page, f.err
}
