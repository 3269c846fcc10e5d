// Package outreach composes outreach messages. Availability is always
// computed first and spliced in via a fixed placeholder; message text
// never invents dates or times.
package outreach

import (
	"errors"
	"fmt"
	"strings"
)

// Placeholder marks where the availability lines go in a template.
const Placeholder = "{{availability}}"

// ErrNoPlaceholder is returned when a template does not contain the
// availability placeholder.
var ErrNoPlaceholder = errors.New("template is missing the availability placeholder")

// Compose substitutes the availability lines into the template. Each
// line becomes its own row in the output.
func Compose(template string, availabilityLines []string) (string, error) {
	if !strings.Contains(template, Placeholder) {
		return "", fmt.Errorf("%w: %s", ErrNoPlaceholder, Placeholder)
	}

	block := strings.Join(availabilityLines, "\n")
	if block == "" {
		block = "(no free slots in the coming days)"
	}
	return strings.ReplaceAll(template, Placeholder, block), nil
}
