package gallery

import (
	"fmt"

	"github.com/gogpu/gg"
)

// Tier is one supported image resolution.
type Tier struct {
	Name string `yaml:"name"`
	Size int    `yaml:"size"` // Nominal edge length in pixels
}

// DefaultTiers returns the resolution ladder, smallest first. The first
// tier is loaded for every tile as soon as it is looked up.
func DefaultTiers() []Tier {
	return []Tier{
		{Name: "i", Size: 64},
		{Name: "s", Size: 128},
		{Name: "m", Size: 256},
		{Name: "l", Size: 512},
		{Name: "x", Size: 1024},
	}
}

// ValidateTiers checks that tiers is non-empty and strictly ascending.
func ValidateTiers(tiers []Tier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("gallery: at least one tier is required")
	}
	for i, t := range tiers {
		if t.Size <= 0 {
			return fmt.Errorf("gallery: tier %q has non-positive size %d", t.Name, t.Size)
		}
		if i > 0 && t.Size <= tiers[i-1].Size {
			return fmt.Errorf("gallery: tier %q (%d) is not larger than %q (%d)", t.Name, t.Size, tiers[i-1].Name, tiers[i-1].Size)
		}
	}
	return nil
}

// slotState is the load state of one tier of one tile.
type slotState uint8

const (
	unloaded slotState = iota
	loading
	decoded
	absent // the source has no image for this tier
)

// slot holds one tier. token identifies the load a loading slot waits
// for, so a superseded load cannot overwrite a newer one.
type slot struct {
	state slotState
	image *gg.ImageBuf
	token uint64
}

func (s *slot) release() {
	*s = slot{}
}

// target returns the tier worth loading for scale: stepping up the ladder
// while the current tier is smaller than the scale.
func target(tiers []Tier, scale float64) int {
	t := 0
	for i := 1; i < len(tiers); i++ {
		if float64(tiers[t].Size) < scale {
			t = i
		}
	}
	return t
}

// best returns the decoded tier to show, or -1 when nothing is decoded.
// The target wins when decoded; otherwise the walk keeps stepping up
// through decoded tiers while the current one is smaller than the scale.
func best(tiers []Tier, slots []slot, want int, scale float64) int {
	if slots[want].state == decoded {
		return want
	}
	b := -1
	for i := range tiers {
		if slots[i].state != decoded {
			continue
		}
		if b < 0 || float64(tiers[b].Size) < scale {
			b = i
		}
	}
	return b
}
