package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mandi-pricecheck/internal/version"
)

func TestWindowFlagsOptions(t *testing.T) {
	w := windowFlags{market: "kota", commodity: "onion", from: "2024-05-01", to: "2024-05-07"}

	opts, err := w.options()
	require.NoError(t, err)
	assert.Equal(t, "kota", opts.MarketPattern)
	assert.Equal(t, "onion", opts.CommodityPattern)
	require.NotNil(t, opts.From)
	require.NotNil(t, opts.To)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), *opts.From)
	assert.Equal(t, time.Date(2024, 5, 7, 0, 0, 0, 0, time.UTC), *opts.To)
}

func TestWindowFlagsDefaults(t *testing.T) {
	opts, err := (&windowFlags{}).options()
	require.NoError(t, err)
	assert.Nil(t, opts.From)
	assert.Nil(t, opts.To)
}

func TestWindowFlagsRejectBadDates(t *testing.T) {
	_, err := (&windowFlags{from: "01/05/2024"}).options()
	assert.ErrorContains(t, err, "--from")

	_, err = (&windowFlags{to: "tomorrow"}).options()
	assert.ErrorContains(t, err, "--to")
}

func TestVersionCommandSkipsConfig(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), version.UserAgent())
	assert.Nil(t, appHandle)
}
