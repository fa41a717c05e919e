package study

import (
	"math"

	"github.com/google/uuid"
)

// Verdict is the self-reported correctness for one card.
type Verdict string

const (
	VerdictCorrect Verdict = "correct"
	VerdictWrong   Verdict = "wrong"
)

// Events accepted by the reducer. The set is closed; handlers parse the
// wire representation into one of these before applying.

type Event interface{ isEvent() }

type Flip struct{}
type Next struct{}
type Previous struct{}
type Answer struct{ Verdict Verdict }
type Reset struct{}

func (Flip) isEvent()     {}
func (Next) isEvent()     {}
func (Previous) isEvent() {}
func (Answer) isEvent()   {}
func (Reset) isEvent()    {}

// State is one point in a study session over a fixed card order. Values
// are treated as immutable; Reduce returns a fresh State and never writes
// through the maps of its input.
type State struct {
	Index    int
	Flipped  bool
	Awaiting bool
	Studied  map[uuid.UUID]struct{}
	Answers  map[uuid.UUID]Verdict
	Complete bool
}

// NewState is the initial state: first card, front face, nothing studied.
func NewState() State {
	return State{
		Studied: make(map[uuid.UUID]struct{}),
		Answers: make(map[uuid.UUID]Verdict),
	}
}

func cloneStudied(m map[uuid.UUID]struct{}) map[uuid.UUID]struct{} {
	out := make(map[uuid.UUID]struct{}, len(m))
	for k := range m {
		out[k] = struct{}{}
	}
	return out
}

func cloneAnswers(m map[uuid.UUID]Verdict) map[uuid.UUID]Verdict {
	out := make(map[uuid.UUID]Verdict, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Reduce applies one event to a state over the given card id order. All
// transitions are total: a guarded-off event returns the input state
// unchanged with accepted=false, never an error.
//
// Guards:
//   - every event except Reset is ignored once Complete
//   - Reset is ignored unless Complete
//   - Next is ignored while awaiting an answer or on the last card
//   - Previous is ignored on the first card
//   - Answer is ignored unless awaiting an answer
func Reduce(s State, ev Event, ids []uuid.UUID) (State, bool) {
	n := len(ids)
	if n == 0 {
		return s, false
	}

	if s.Complete {
		if _, ok := ev.(Reset); ok {
			return NewState(), true
		}
		return s, false
	}

	switch e := ev.(type) {
	case Flip:
		next := s
		next.Flipped = !s.Flipped
		if next.Flipped {
			// First reveal of this card marks it studied and opens the
			// answer window.
			next.Studied = cloneStudied(s.Studied)
			next.Studied[ids[s.Index]] = struct{}{}
			next.Awaiting = true
		} else {
			next.Awaiting = false
		}
		return next, true

	case Next:
		if s.Awaiting || s.Index >= n-1 {
			return s, false
		}
		next := s
		next.Index = s.Index + 1
		next.Flipped = false
		next.Awaiting = false
		return next, true

	case Previous:
		if s.Index == 0 {
			return s, false
		}
		next := s
		next.Index = s.Index - 1
		next.Flipped = false
		next.Awaiting = false
		return next, true

	case Answer:
		if !s.Awaiting {
			return s, false
		}
		if e.Verdict != VerdictCorrect && e.Verdict != VerdictWrong {
			return s, false
		}
		next := s
		next.Answers = cloneAnswers(s.Answers)
		next.Answers[ids[s.Index]] = e.Verdict
		next.Awaiting = false
		if s.Index == n-1 {
			next.Complete = true
		}
		return next, true

	case Reset:
		return s, false
	}

	return s, false
}

// Derived values.

func (s State) StudiedCount() int { return len(s.Studied) }

func (s State) CorrectCount() int {
	count := 0
	for _, v := range s.Answers {
		if v == VerdictCorrect {
			count++
		}
	}
	return count
}

func (s State) WrongCount() int {
	count := 0
	for _, v := range s.Answers {
		if v == VerdictWrong {
			count++
		}
	}
	return count
}

// Progress is how far through the deck the session is, as a percentage of
// card positions seen including the current one.
func (s State) Progress(n int) int {
	if n == 0 {
		return 0
	}
	return 100 * (s.Index + 1) / n
}

// Score is the rounded percentage of cards answered correct out of all n
// cards, not just the answered ones.
func (s State) Score(n int) int {
	if n == 0 {
		return 0
	}
	return int(math.Round(100 * float64(s.CorrectCount()) / float64(n)))
}
