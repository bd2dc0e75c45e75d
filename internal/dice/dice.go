// Package dice evaluates simple dice expressions such as "1d12", "1d12 + 1"
// and "1d12 + 1d12".
//
// Terms are evaluated left to right and each dice term keeps its own results,
// so callers can tell the Hope die from the Fear die in "1d12 + 1d12".
package dice

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	maxCount = 100
	maxSides = 1000
)

var (
	// ErrInvalidExpression indicates the expression could not be parsed.
	ErrInvalidExpression = errors.New("dice: invalid expression")

	// ErrMissingDice indicates the expression contains no dice terms.
	ErrMissingDice = errors.New("dice: at least one die must be provided")
)

// Source is the randomness provider for rolls. Implementations must be safe
// for concurrent use.
type Source interface {
	// IntN returns a value in [0, n).
	IntN(n int) int
}

// Spec describes one NdS term of an expression.
type Spec struct {
	Count int
	Sides int
}

// Term holds the results of one dice term.
type Term struct {
	Sides   int
	Results []int
	Total   int
}

// Result is the full audit trail of one evaluated expression.
//
// Total == sum(Terms[i].Total) + Modifier.
type Result struct {
	Expression string
	Terms      []Term
	Modifier   int
	Total      int
}

// String returns "1d12 + 1 -> [7] +1 = 8".
func (r Result) String() string {
	faces := make([]int, 0, len(r.Terms))
	for _, term := range r.Terms {
		faces = append(faces, term.Results...)
	}
	return fmt.Sprintf("%s -> %v %+d = %d", r.Expression, faces, r.Modifier, r.Total)
}

// Parse splits an expression into dice specs and a flat modifier.
func Parse(expr string) ([]Spec, int, error) {
	compact := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(expr)), " ", "")
	if compact == "" {
		return nil, 0, fmt.Errorf("%w: empty", ErrInvalidExpression)
	}

	var specs []Spec
	modifier := 0
	sign := 1
	start := 0
	for i := 0; i <= len(compact); i++ {
		if i < len(compact) && compact[i] != '+' && compact[i] != '-' {
			continue
		}
		token := compact[start:i]
		if token == "" {
			if i == 0 && i < len(compact) && compact[i] == '-' {
				sign = -1
				start = i + 1
				continue
			}
			return nil, 0, fmt.Errorf("%w: %q", ErrInvalidExpression, expr)
		}

		if strings.Contains(token, "d") {
			if sign < 0 {
				return nil, 0, fmt.Errorf("%w: negative dice term in %q", ErrInvalidExpression, expr)
			}
			spec, err := parseSpec(token)
			if err != nil {
				return nil, 0, fmt.Errorf("%w: %q: %v", ErrInvalidExpression, expr, err)
			}
			specs = append(specs, spec)
		} else {
			value, err := strconv.Atoi(token)
			if err != nil {
				return nil, 0, fmt.Errorf("%w: %q", ErrInvalidExpression, expr)
			}
			modifier += sign * value
		}

		if i < len(compact) && compact[i] == '-' {
			sign = -1
		} else {
			sign = 1
		}
		start = i + 1
	}

	if len(specs) == 0 {
		return nil, 0, ErrMissingDice
	}
	return specs, modifier, nil
}

func parseSpec(token string) (Spec, error) {
	countText, sidesText, _ := strings.Cut(token, "d")
	count := 1
	if countText != "" {
		n, err := strconv.Atoi(countText)
		if err != nil {
			return Spec{}, err
		}
		count = n
	}
	sides, err := strconv.Atoi(sidesText)
	if err != nil {
		return Spec{}, err
	}
	if count <= 0 || count > maxCount {
		return Spec{}, fmt.Errorf("count %d out of range", count)
	}
	if sides <= 0 || sides > maxSides {
		return Spec{}, fmt.Errorf("sides %d out of range", sides)
	}
	return Spec{Count: count, Sides: sides}, nil
}

// Roller evaluates expressions against a Source.
type Roller struct {
	src Source
}

// NewRoller creates a roller drawing from src.
func NewRoller(src Source) *Roller {
	return &Roller{src: src}
}

// Roll evaluates expr. Each die is an independent uniform draw over 1..Sides.
func (r *Roller) Roll(ctx context.Context, expr string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if r == nil || r.src == nil {
		return Result{}, errors.New("dice: roller has no source")
	}

	specs, modifier, err := Parse(expr)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		Expression: strings.TrimSpace(expr),
		Terms:      make([]Term, 0, len(specs)),
		Modifier:   modifier,
		Total:      modifier,
	}
	for _, spec := range specs {
		term := Term{Sides: spec.Sides, Results: make([]int, spec.Count)}
		for i := range term.Results {
			term.Results[i] = r.src.IntN(spec.Sides) + 1
			term.Total += term.Results[i]
		}
		result.Terms = append(result.Terms, term)
		result.Total += term.Total
	}
	return result, nil
}
