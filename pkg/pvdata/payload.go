package pvdata

import (
	"fmt"

	"github.com/mtecbridge/mtecbridge/pkg/types"
)

// DefaultFloatFormat is used when no float format is configured.
const DefaultFloatFormat = "%.3f"

// Payload renders the value of m for publishing. Floats use floatFormat,
// bools become 1 or 0.
func Payload(m types.Metric, floatFormat string) string {
	if floatFormat == "" {
		floatFormat = DefaultFloatFormat
	}
	switch v := m.Value.(type) {
	case float64:
		return fmt.Sprintf(floatFormat, v)
	case float32:
		return fmt.Sprintf(floatFormat, v)
	case bool:
		if v {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprint(v)
	}
}
