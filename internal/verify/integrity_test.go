package verify

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mandi-pricecheck/internal/storage"
)

func jaipurWindow() storage.IntegrityWindowQuery {
	return storage.IntegrityWindowQuery{MarketPattern: "jaipur"}.WithDefaults(day(2024, 5, 10), 7)
}

func price(v int64) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.NewFromInt(v), Valid: true}
}

func TestIntegrityEmptyWindowWarns(t *testing.T) {
	store := &fakeStore{}

	records, res, err := CheckIntegrity(context.Background(), store, jaipurWindow())
	require.NoError(t, err)

	assert.Empty(t, records)
	assert.Equal(t, StatusWarn, res.Status)
	assert.Equal(t, KindPartialGap, res.Kind)
	assert.Contains(t, res.Message, "jaipur")
	assert.Contains(t, res.Message, "possible upstream data gap")
	assert.Equal(t, day(2024, 5, 3), store.lastWindow.Start)
	assert.Equal(t, day(2024, 5, 10), store.lastWindow.End)
}

func TestIntegrityRecordsPass(t *testing.T) {
	store := &fakeStore{records: []storage.PriceRecord{
		{ObservationDate: day(2024, 5, 3), MarketName: "Jaipur (F&V)", CommodityName: "Tomato", ModalPrice: price(1200)},
		{ObservationDate: day(2024, 5, 4), MarketName: "Jaipur (F&V)", CommodityName: "Onion", ModalPrice: price(1800)},
		{ObservationDate: day(2024, 5, 9), MarketName: "Jaipur (Grain)", CommodityName: "Wheat", ModalPrice: price(2450)},
	}}

	records, res, err := CheckIntegrity(context.Background(), store, jaipurWindow())
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, StatusOK, res.Status)

	detail, ok := res.Detail.(IntegrityDetail)
	require.True(t, ok)
	assert.Equal(t, 3, detail.Records)
	assert.Equal(t, []string{"Onion", "Tomato", "Wheat"}, detail.Commodities)
	assert.Equal(t, []string{"Jaipur (F&V)", "Jaipur (Grain)"}, detail.Markets)
	assert.Equal(t, "2024-05-03", detail.First)
	assert.Equal(t, "2024-05-09", detail.Last)
	assert.Equal(t, []string{"2024-05-05", "2024-05-06", "2024-05-07", "2024-05-08", "2024-05-10"}, detail.MissingDates)
}

func TestIntegrityQueryErrorPropagates(t *testing.T) {
	boom := errors.New("permission denied for table markets")
	_, _, err := CheckIntegrity(context.Background(), &fakeStore{recordsErr: boom}, jaipurWindow())
	assert.ErrorIs(t, err, boom)
}
