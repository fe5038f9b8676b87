package grouping

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidConfiguration is returned when group size, spread or labels
	// violate the engine's hard limits.
	ErrInvalidConfiguration = errors.New("invalid grouping configuration")

	// ErrConversion matches any *ConversionError with errors.Is.
	ErrConversion = errors.New("weight conversion failed")
)

// InvalidWeight identifies a roster line whose weight is not a number.
type InvalidWeight struct {
	Row   int    `json:"row"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ConversionError reports every roster line whose weight could not be parsed.
// No groups are produced when it is returned.
type ConversionError struct {
	Invalid []InvalidWeight
}

func (e *ConversionError) Error() string {
	parts := make([]string, 0, len(e.Invalid))
	for _, iw := range e.Invalid {
		if iw.Row > 0 {
			parts = append(parts, fmt.Sprintf("row %d (%s): %q", iw.Row, iw.Name, iw.Value))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %q", iw.Name, iw.Value))
		}
	}
	return fmt.Sprintf("could not convert weights to numbers, check your data: %s", strings.Join(parts, ", "))
}

// Is lets callers test with errors.Is(err, ErrConversion).
func (e *ConversionError) Is(target error) bool {
	return target == ErrConversion
}

func invalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}
