package alert

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"tvwebhook/internal/symbol"
)

// Normalizer turns inbound payloads into records stamped with the current time.
type Normalizer struct {
	clock  clock.Clock
	logger zerolog.Logger
}

// NewNormalizer constructs a normalizer. A nil clock uses the wall clock.
func NewNormalizer(clk clock.Clock, logger zerolog.Logger) *Normalizer {
	if clk == nil {
		clk = clock.New()
	}
	return &Normalizer{
		clock:  clk,
		logger: logger.With().Str("component", "normalizer").Logger(),
	}
}

// Normalize builds a record from payload. Missing keys fall back to their
// defaults; it never fails.
func (n *Normalizer) Normalize(payload Payload) Record {
	rec := Record{
		Timestamp:         FormatTimestamp(n.clock.Now()),
		AlertName:         field(payload, KeyAlertName, defaultAlertName),
		Symbol:            field(payload, KeySymbol, ""),
		LimitPrice:        field(payload, KeyLimitPrice, defaultNumeric),
		CapitalPercent:    field(payload, KeyCapitalPercent, defaultNumeric),
		LotSize:           field(payload, KeyLotSize, defaultNumeric),
		OrderSlicingValue: field(payload, KeyOrderSlicingValue, defaultNumeric),
		TotalQuantity:     field(payload, KeyTotalQuantity, defaultNumeric),
		Processed:         true,
		RawPayload:        payload,
	}

	if !symbol.Candidate(rec.Symbol) {
		return rec
	}

	info, ok := symbol.Parse(rec.Symbol)
	if !ok {
		n.logger.Debug().Str("symbol", rec.Symbol).Msg("symbol not decomposed")
		return rec
	}

	rec = rec.WithOption(info)
	n.logger.Debug().
		Str("symbol", rec.Symbol).
		Str("index", info.IndexName).
		Str("expiry", info.ExpiryDate).
		Str("type", string(info.OptionType)).
		Str("strike", info.StrikePrice).
		Bool("complete", rec.SymbolParsed).
		Msg("symbol decomposed")
	return rec
}

// field reads key from payload as an opaque string. Absent and null values
// yield def.
func field(payload Payload, key, def string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return def
	}
	return stringify(v)
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case fmt.Stringer:
		return val.String()
	}

	encoded, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(encoded)
}
