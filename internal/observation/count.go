package observation

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var countNumberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// ParseCount reads a free-text count such as "3", "ca. 40", "2-3" or "1,5".
// The largest number in the text wins and fractions are floored. ok is false
// when the text holds no number.
func ParseCount(text string) (count int, ok bool) {
	s := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(text)), ",", ".")
	if s == "" {
		return 0, false
	}

	best := -1.0
	for _, m := range countNumberPattern.FindAllString(s, -1) {
		v, err := strconv.ParseFloat(m, 64)
		if err != nil || math.IsInf(v, 0) {
			continue
		}
		if v > best {
			best = v
		}
	}
	if best < 0 || best > math.MaxInt32 {
		return 0, false
	}
	return int(math.Floor(best)), true
}
