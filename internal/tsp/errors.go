package tsp

import "fmt"

// EmptyInputError is returned when vertex extraction produces no points.
// Annealing cannot proceed on an empty tour.
type EmptyInputError struct {
	Source string
}

func (e *EmptyInputError) Error() string {
	if e.Source != "" {
		return "no points extracted from " + e.Source
	}
	return "no points extracted"
}

func (e *EmptyInputError) Is(target error) bool {
	_, ok := target.(*EmptyInputError)
	return ok
}

// DegenerateInputError is returned when fewer than 3 points remain after
// tour construction, so no closed cycle exists.
type DegenerateInputError struct {
	Points int
}

func (e *DegenerateInputError) Error() string {
	return fmt.Sprintf("degenerate input: %d points, need at least 3 for a cycle", e.Points)
}

func (e *DegenerateInputError) Is(target error) bool {
	_, ok := target.(*DegenerateInputError)
	return ok
}
