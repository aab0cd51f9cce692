package grading

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/samber/lo"

	"github.com/codexuz/crm-cd-platform-sub000/internal/model"
)

// Slot is one gradable question of a resolved key.
type Slot struct {
	Number   int
	PartID   string
	Accepted model.Value
}

// ContainerRef places a question container in the reading layout.
type ContainerRef struct {
	PartID    string
	Container model.Container
}

// Key is a read-only answer key for one section, produced once per scoring
// call. Slots are ordered by question number.
type Key struct {
	section model.Section
	slots   []Slot
	layout  []ContainerRef
}

// Section returns the section the key was resolved for.
func (k Key) Section() model.Section { return k.section }

// Len is the number of questions the key defines.
func (k Key) Len() int { return len(k.slots) }

// Slots returns a copy of the ordered slots.
func (k Key) Slots() []Slot { return append([]Slot(nil), k.slots...) }

// Layout returns the reading container order. It is empty for listening.
func (k Key) Layout() []ContainerRef { return append([]ContainerRef(nil), k.layout...) }

func parseNumber(partID, raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: part %s has question number %q", model.ErrInconsistentKey, partID, raw)
	}
	return n, nil
}

// ResolveListening builds the listening key. Lookups stay partitioned by part,
// so the same number may appear in several parts.
func ResolveListening(parts []model.ListeningPart) (Key, error) {
	type ordered struct {
		Slot
		partIdx int
	}
	var all []ordered
	for i, p := range parts {
		for raw, v := range p.Answers {
			n, err := parseNumber(p.ID, raw)
			if err != nil {
				return Key{}, err
			}
			all = append(all, ordered{Slot{Number: n, PartID: p.ID, Accepted: v}, i})
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Number != all[j].Number {
			return all[i].Number < all[j].Number
		}
		return all[i].partIdx < all[j].partIdx
	})
	return Key{
		section: model.SectionListening,
		slots:   lo.Map(all, func(o ordered, _ int) Slot { return o.Slot }),
	}, nil
}

// ResolveReading merges every part's table into one numbered key and records
// the container layout used to number positional answers. Numbers must be
// unique across parts and gapless from 1, and declared container ranges must
// not overlap or run out of order, and must tile the key when every container
// declares one.
func ResolveReading(parts []model.ReadingPart) (Key, error) {
	merged := make(map[int]Slot)
	for _, p := range parts {
		for raw, v := range p.Answers {
			n, err := parseNumber(p.ID, raw)
			if err != nil {
				return Key{}, err
			}
			if prev, dup := merged[n]; dup {
				return Key{}, fmt.Errorf("%w: question %d defined in parts %s and %s",
					model.ErrInconsistentKey, n, prev.PartID, p.ID)
			}
			merged[n] = Slot{Number: n, PartID: p.ID, Accepted: v}
		}
	}
	slots := make([]Slot, 0, len(merged))
	for n := 1; n <= len(merged); n++ {
		s, ok := merged[n]
		if !ok {
			return Key{}, fmt.Errorf("%w: question %d missing from a key of %d questions",
				model.ErrInconsistentKey, n, len(merged))
		}
		slots = append(slots, s)
	}

	var layout []ContainerRef
	for _, p := range parts {
		for _, c := range p.Containers {
			layout = append(layout, ContainerRef{PartID: p.ID, Container: c})
		}
	}
	if err := checkRanges(layout, len(slots)); err != nil {
		return Key{}, err
	}
	return Key{section: model.SectionReading, slots: slots, layout: layout}, nil
}

func checkRanges(layout []ContainerRef, total int) error {
	declared := lo.Filter(layout, func(r ContainerRef, _ int) bool { return r.Container.Slots() > 0 })
	all := len(declared) == len(layout)
	next := 1
	for _, r := range declared {
		c := r.Container
		if c.From < next || c.To > total || (all && c.From != next) {
			return fmt.Errorf("%w: container %s range %d-%d out of order or beyond %d questions",
				model.ErrInconsistentKey, c.ID, c.From, c.To, total)
		}
		next = c.To + 1
	}
	if all && len(layout) > 0 && next != total+1 {
		return fmt.Errorf("%w: container ranges cover 1-%d of %d questions",
			model.ErrInconsistentKey, next-1, total)
	}
	return nil
}
