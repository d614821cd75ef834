package store

import (
	"maps"
	"slices"
)

// Slice names one independently fetched part of a data store.
type Slice string

// Applied records, per slice, the sequence number of the last response reduced into the state.
type Applied map[Slice]uint64

// accept reports whether a response numbered seq may be applied to slice,
// and returns the bookkeeping to store when it is. Only numbers newer than the
// last applied one pass; seq 0 is unsequenced and always accepted.
func (a Applied) accept(slice Slice, seq uint64) (Applied, bool) {
	if seq == 0 {
		return a, true
	}
	if seq <= a[slice] {
		return a, false
	}
	next := maps.Clone(a)
	if next == nil {
		next = Applied{}
	}
	next[slice] = seq
	return next, true
}

// sequencer hands out increasing request numbers per slice.
type sequencer struct {
	issued map[Slice]uint64
}

func (s *sequencer) next(slice Slice) uint64 {
	if s.issued == nil {
		s.issued = map[Slice]uint64{}
	}
	s.issued[slice]++
	return s.issued[slice]
}

// SliceErrors holds, per slice, the message of its last failed fetch.
// A successful fetch clears only its own entry.
type SliceErrors map[Slice]string

// with returns a copy of e where slice carries msg, or nothing when msg is empty.
func (e SliceErrors) with(slice Slice, msg string) SliceErrors {
	next := maps.Clone(e)
	if next == nil {
		next = SliceErrors{}
	}
	if msg == "" {
		delete(next, slice)
	} else {
		next[slice] = msg
	}
	if len(next) == 0 {
		return nil
	}
	return next
}

// first returns the message of the first failing slice in order.
func (e SliceErrors) first(order []Slice) string {
	for _, slice := range order {
		if msg, ok := e[slice]; ok {
			return msg
		}
	}
	if keys := slices.Sorted(maps.Keys(e)); len(keys) > 0 {
		return e[keys[0]]
	}
	return ""
}
