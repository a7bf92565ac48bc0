package ddl

import (
	"math"
	"strconv"
	"strings"

	"github.com/nucleus/doris-core/internal/core"
)

var sizeUnits = map[string]float64{
	"":      1,
	"B":     1,
	"BYTES": 1,
	"KB":    1 << 10,
	"MB":    1 << 20,
	"GB":    1 << 30,
	"TB":    1 << 40,
	"PB":    1 << 50,
}

// ParseSize converts sizes as printed by SHOW DATA and SHOW PARTITIONS
// ("1.500 GB", "12.000 KB", "0.000 ") into bytes, rounding up.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	i := strings.IndexFunc(s, func(r rune) bool {
		return !(r >= '0' && r <= '9' || r == '.')
	})
	num, unit := s, ""
	if i >= 0 {
		num, unit = s[:i], strings.ToUpper(strings.TrimSpace(s[i:]))
	}
	mult, ok := sizeUnits[unit]
	if !ok {
		return 0, core.Parsef("unknown size unit in %q", s)
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, core.Parsef("invalid size %q", s)
	}
	return int64(math.Ceil(v * mult)), nil
}
