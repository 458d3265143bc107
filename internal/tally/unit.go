package tally

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("unit not found")
	ErrInvalidOption = errors.New("invalid vote option")
)

// Option names one of the three counters a unit carries.
type Option string

const (
	OptionA Option = "optionA"
	OptionB Option = "optionB"
	Blank   Option = "blank"
)

// ParseOption maps a wire value to an Option. The legacy names elector1 and
// elector2 are accepted as aliases for optionA and optionB.
func ParseOption(s string) (Option, error) {
	switch s {
	case string(OptionA), "elector1":
		return OptionA, nil
	case string(OptionB), "elector2":
		return OptionB, nil
	case string(Blank):
		return Blank, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidOption, s)
}

// Counters holds the vote totals of a unit. Values only ever grow.
type Counters struct {
	OptionA uint64 `json:"optionA"`
	OptionB uint64 `json:"optionB"`
	Blank   uint64 `json:"blank"`
}

// Total is the number of votes cast across all options.
func (c Counters) Total() uint64 {
	return c.OptionA + c.OptionB + c.Blank
}

// Get returns the counter for o, or 0 for an unknown option.
func (c Counters) Get(o Option) uint64 {
	switch o {
	case OptionA:
		return c.OptionA
	case OptionB:
		return c.OptionB
	case Blank:
		return c.Blank
	}
	return 0
}

func (c *Counters) incr(o Option) bool {
	switch o {
	case OptionA:
		c.OptionA++
	case OptionB:
		c.OptionB++
	case Blank:
		c.Blank++
	default:
		return false
	}
	return true
}

// Unit is one electoral group. Everything but Votes is fixed at startup.
type Unit struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Eligible   uint64   `json:"eligible"`
	CandidateA string   `json:"candidateA"`
	CandidateB string   `json:"candidateB"`
	Position   int      `json:"position"`
	Votes      Counters `json:"votes"`
}

// Share returns the percentage of cast votes that went to o, rounded to one
// decimal. A unit with no votes yields 0.
func (u Unit) Share(o Option) float64 {
	total := u.Votes.Total()
	if total == 0 {
		return 0
	}
	pct := float64(u.Votes.Get(o)) * 100 / float64(total)
	return float64(int64(pct*10+0.5)) / 10
}
