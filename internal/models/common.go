package models

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// CoinAmount is a coin quantity decoded leniently from JSON. Clients send the
// amount as a number, a numeric string, null, or garbage; anything that does
// not parse as a number decodes to zero so downstream credits become a no-op
// instead of a failure.
type CoinAmount int64

// UnmarshalJSON accepts numbers and numeric strings, coercing everything else to 0.
func (a *CoinAmount) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*a = 0
		return nil
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			*a = 0
			return nil
		}
		*a = parseCoinString(s)
		return nil
	}

	var f float64
	if err := json.Unmarshal(trimmed, &f); err != nil {
		*a = 0
		return nil
	}
	*a = CoinAmount(f)
	return nil
}

func parseCoinString(s string) CoinAmount {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return CoinAmount(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return CoinAmount(f)
	}
	return 0
}

// Int64 returns the amount as a plain integer.
func (a CoinAmount) Int64() int64 {
	return int64(a)
}
