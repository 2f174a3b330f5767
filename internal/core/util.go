package core

import "fmt"

// sprintFallback renders v deterministically enough to use as an equality
// and hash basis when the value doesn't implement its own Equal/String.
// Producers holding values that need real structural equality (slices,
// maps) should implement ConstantResult themselves with a custom
// ValueEqual rather than relying on this.
func sprintFallback(v any) string {
	return fmt.Sprintf("%#v", v)
}
