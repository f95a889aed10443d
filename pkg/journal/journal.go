// Package journal records injection lifecycle decisions so that `what
// happened to my keyboard` can be answered after the fact.
package journal

import "time"

// Entry is one recorded decision.
type Entry struct {
	When   time.Time
	Device string
	Preset string
	Action string
}
