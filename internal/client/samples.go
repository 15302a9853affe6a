package client

import "tvwebhook/internal/alert"

// Sample is a named example alert.
type Sample struct {
	Name    string
	Payload alert.Payload
}

// Samples returns a buy, a profit-booking sell and a loss-booking sell for
// the same NIFTY put, in the order a strategy would emit them.
func Samples() []Sample {
	return []Sample{
		{Name: "buy", Payload: alert.Payload{
			"ALERTNAME":           "NEW BUY ORDER",
			"symbol":              "NIFTY250930P25800",
			"limit_price":         "25800",
			"capital_percent":     "50",
			"lot_size":            "75",
			"order_slicing_value": "1800",
		}},
		{Name: "profit", Payload: alert.Payload{
			"ALERTNAME":           "PROFIT BOOKING SELL",
			"symbol":              "NIFTY250930P25800",
			"limit_price":         "27090",
			"lot_size":            "75",
			"order_slicing_value": "1800",
		}},
		{Name: "loss", Payload: alert.Payload{
			"ALERTNAME":           "LOSS BOOKING SELL",
			"symbol":              "NIFTY250930P25800",
			"limit_price":         "21930",
			"lot_size":            "75",
			"order_slicing_value": "1800",
		}},
	}
}

// SampleByName finds a sample.
func SampleByName(name string) (Sample, bool) {
	for _, s := range Samples() {
		if s.Name == name {
			return s, true
		}
	}
	return Sample{}, false
}
