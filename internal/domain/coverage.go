package domain

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
)

// Months is a months-of-coverage value. It can legitimately be +Inf
// (stock on hand with zero consumption), which encoding/json refuses to
// marshal as a float, so it carries its own JSON representation: a plain
// number, or the string "inf".
type Months float64

// Inf reports whether the coverage is unbounded.
func (m Months) Inf() bool {
	return math.IsInf(float64(m), 1)
}

func (m Months) MarshalJSON() ([]byte, error) {
	f := float64(m)
	if math.IsInf(f, 1) {
		return []byte(`"inf"`), nil
	}
	if math.IsNaN(f) || math.IsInf(f, -1) {
		return nil, fmt.Errorf("months of coverage is not representable: %v", f)
	}
	return []byte(strconv.FormatFloat(f, 'f', -1, 64)), nil
}

func (m *Months) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte(`"inf"`)) || bytes.Equal(data, []byte(`"+inf"`)) {
		*m = Months(math.Inf(1))
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid months of coverage %q: %w", data, err)
	}
	*m = Months(f)
	return nil
}
