// Package alert builds canonical alert records from loosely-typed webhook payloads.
package alert

import (
	"time"

	"tvwebhook/internal/symbol"
)

// TimestampLayout is the fixed-width ISO-8601 UTC form used for record
// timestamps. Fixed width keeps lexicographic and chronological order equal.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// CompactLayout is the calendar form embedded in alert identifiers.
const CompactLayout = "20060102_150405"

// Payload keys read by the normalizer.
const (
	KeyAlertName         = "ALERTNAME"
	KeySymbol            = "symbol"
	KeyLimitPrice        = "limit_price"
	KeyCapitalPercent    = "capital_percent"
	KeyLotSize           = "lot_size"
	KeyOrderSlicingValue = "order_slicing_value"
	KeyTotalQuantity     = "total_quantity"
)

const (
	defaultAlertName = "UNKNOWN"
	defaultNumeric   = "0"
)

// Payload is the decoded webhook body. It has no guaranteed shape.
type Payload map[string]any

// Record is the canonical representation of one received alert.
//
// Numeric-looking fields are kept as the caller sent them; no parsing or
// validation happens here.
type Record struct {
	Timestamp         string  `json:"timestamp"`
	AlertName         string  `json:"alert_name"`
	Symbol            string  `json:"symbol"`
	LimitPrice        string  `json:"limit_price"`
	CapitalPercent    string  `json:"capital_percent"`
	LotSize           string  `json:"lot_size"`
	OrderSlicingValue string  `json:"order_slicing_value"`
	TotalQuantity     string  `json:"total_quantity"`
	Processed         bool    `json:"processed"`
	RawPayload        Payload `json:"raw_payload"`

	IndexName    string            `json:"index_name,omitempty"`
	ExpiryDate   string            `json:"expiry_date,omitempty"`
	OptionType   symbol.OptionType `json:"option_type,omitempty"`
	StrikePrice  string            `json:"strike_price,omitempty"`
	SymbolParsed bool              `json:"symbol_parsed,omitempty"`
}

// Time parses the record timestamp. The zero time is returned when the
// timestamp is not in TimestampLayout.
func (r Record) Time() time.Time {
	t, err := time.Parse(TimestampLayout, r.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Option returns the symbol decomposition carried by the record.
func (r Record) Option() (symbol.Info, bool) {
	if !r.SymbolParsed {
		return symbol.Info{}, false
	}
	return symbol.Info{
		IndexName:   r.IndexName,
		ExpiryDate:  r.ExpiryDate,
		OptionType:  r.OptionType,
		StrikePrice: r.StrikePrice,
	}, true
}

// WithOption merges a complete decomposition into the record. Incomplete
// decompositions leave the record untouched so that SymbolParsed is set
// only when all four fields are present.
func (r Record) WithOption(info symbol.Info) Record {
	if !info.Complete() {
		return r
	}
	r.IndexName = info.IndexName
	r.ExpiryDate = info.ExpiryDate
	r.OptionType = info.OptionType
	r.StrikePrice = info.StrikePrice
	r.SymbolParsed = true
	return r
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// FormatCompact renders t in CompactLayout.
func FormatCompact(t time.Time) string {
	return t.UTC().Format(CompactLayout)
}
