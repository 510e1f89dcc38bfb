package catalog

import (
	"fmt"

	"github.com/MrSnakeDoc/stockroom/internal/domain"
	"github.com/MrSnakeDoc/stockroom/internal/pricing"
)

func notFound(id string) error {
	return fmt.Errorf("entry %q: %w", id, domain.ErrNotFound)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), domain.ErrInvalidInput)
}

// checkAmount rejects negative or non-finite money amounts. Nil passes.
func checkAmount(label string, v *float64) error {
	if v == nil {
		return nil
	}
	if !pricing.Finite(*v) || *v < 0 {
		return invalid("%s %v is not a valid amount", label, *v)
	}
	return nil
}

// checkMarkup rejects non-finite markups and those below -100%, which
// would yield a negative sell price.
func checkMarkup(pct float64) error {
	if !pricing.Finite(pct) || pct < -100 {
		return invalid("markup %v%% out of range", pct)
	}
	return nil
}
