package utils

import (
	"strings"

	"golang.org/x/text/cases"
)

// FoldContains reports whether substr is within s under Unicode case folding.
func FoldContains(s, substr string) bool {
	if substr == "" {
		return true
	}
	// Casers keep state and must not be shared between goroutines.
	fold := cases.Fold()
	return strings.Contains(fold.String(s), fold.String(substr))
}
