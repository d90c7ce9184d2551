package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ArrivalDateLayout is the DD/MM/YYYY layout used by the open-data resource.
const ArrivalDateLayout = "02/01/2006"

// Record is one mandi price row as published by the open-data resource.
type Record struct {
	State       string              `json:"state"`
	District    string              `json:"district"`
	Market      string              `json:"market"`
	Commodity   string              `json:"commodity"`
	Variety     string              `json:"variety"`
	Grade       string              `json:"grade"`
	ArrivalDate string              `json:"arrival_date"`
	MinPrice    decimal.NullDecimal `json:"-"`
	MaxPrice    decimal.NullDecimal `json:"-"`
	ModalPrice  decimal.NullDecimal `json:"-"`
}

// Date parses ArrivalDate.
func (r Record) Date() (time.Time, error) {
	d, err := time.Parse(ArrivalDateLayout, strings.TrimSpace(r.ArrivalDate))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse arrival_date %q: %w", r.ArrivalDate, err)
	}
	return d, nil
}

// UnmarshalJSON accepts prices as JSON numbers or strings. Blank and "NA"
// prices decode as invalid NullDecimals rather than failing the record.
func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	aux := struct {
		*plain
		MinPrice   json.RawMessage `json:"min_price"`
		MaxPrice   json.RawMessage `json:"max_price"`
		ModalPrice json.RawMessage `json:"modal_price"`
	}{plain: (*plain)(r)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	if r.MinPrice, err = parsePrice(aux.MinPrice); err != nil {
		return fmt.Errorf("min_price: %w", err)
	}
	if r.MaxPrice, err = parsePrice(aux.MaxPrice); err != nil {
		return fmt.Errorf("max_price: %w", err)
	}
	if r.ModalPrice, err = parsePrice(aux.ModalPrice); err != nil {
		return fmt.Errorf("modal_price: %w", err)
	}
	return nil
}

func parsePrice(raw json.RawMessage) (decimal.NullDecimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.NullDecimal{}, nil
	}

	text := string(raw)
	if raw[0] == '"' {
		unquoted, err := strconv.Unquote(text)
		if err != nil {
			return decimal.NullDecimal{}, err
		}
		text = strings.TrimSpace(unquoted)
	}
	if text == "" || strings.EqualFold(text, "NA") {
		return decimal.NullDecimal{}, nil
	}

	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}

// flexInt decodes integers the resource sometimes sends as strings.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	text := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if text == "" || text == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}
