// Package booking provides the assessment-shoot slot catalog. The catalog is
// a static mock shared by every lead; a real calendar integration would sit
// behind the same surface.
package booking

import (
	"fmt"
	"strings"
)

// DefaultSlots is the standing catalog offered to leads.
var DefaultSlots = []string{
	"Tomorrow at 2:00 PM",
	"Thursday at 11:00 AM",
	"Friday at 4:30 PM",
	"Saturday at 10:00 AM",
	"Next Monday at 3:00 PM",
}

// Catalog is a fixed ordered list of bookable time slots.
type Catalog struct {
	slots []string
}

func NewCatalog(slots []string) *Catalog {
	if len(slots) == 0 {
		slots = DefaultSlots
	}
	return &Catalog{slots: slots}
}

// Len returns the total slot count.
func (c *Catalog) Len() int { return len(c.slots) }

// First returns the first n slots (all of them when n exceeds the catalog).
func (c *Catalog) First(n int) []string {
	if n <= 0 {
		return nil
	}
	if n > len(c.slots) {
		n = len(c.slots)
	}
	out := make([]string, n)
	copy(out, c.slots[:n])
	return out
}

// Select returns the slot at the given 1-based index.
func (c *Catalog) Select(n int) (string, bool) {
	if n < 1 || n > len(c.slots) {
		return "", false
	}
	return c.slots[n-1], true
}

// ListingMessage formats the first n slots as a numbered SMS asking the lead
// to reply with a number.
func (c *Catalog) ListingMessage(n int) string {
	slots := c.First(n)
	if len(slots) == 0 {
		return "Let me check our calendar and get back to you with some times!"
	}

	var b strings.Builder
	b.WriteString("Brilliant! Here are some available slots:\n\n")
	for i, s := range slots {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	b.WriteString("\nWhich works best? Just reply with the number!")
	return b.String()
}
