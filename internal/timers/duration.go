package timers

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/guildboard/guildboard/internal/model"
)

// durationPattern accepts "<N>d<N>h<N>m" with any subset of components
// present, in that order. There is no seconds unit.
var durationPattern = regexp.MustCompile(`^(?:(\d+)d)?(?:(\d+)h)?(?:(\d+)m)?$`)

// ParseDuration parses the timer duration grammar. An empty string or a
// string with no matching component is a validation error; nothing may be
// mutated on the strength of an unparsed duration.
func ParseDuration(s string) (time.Duration, error) {
	m := durationPattern.FindStringSubmatch(s)
	if m == nil || (m[1] == "" && m[2] == "" && m[3] == "") {
		return 0, fmt.Errorf("%w: invalid duration %q", model.ErrValidation, s)
	}
	var d time.Duration
	for i, unit := range []time.Duration{24 * time.Hour, time.Hour, time.Minute} {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0, fmt.Errorf("%w: invalid duration %q", model.ErrValidation, s)
		}
		d += time.Duration(n) * unit
	}
	return d, nil
}
