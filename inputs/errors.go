package inputs

import (
	"fmt"
	"strings"

	"github.com/crosstab/crosstab-go/common"
)

// DuplicateInputError reports two inputs with the same id.
type DuplicateInputError struct {
	ID string
}

func (e *DuplicateInputError) Error() string {
	return fmt.Sprintf("duplicate input id %q", e.ID)
}

// InvalidSpecError reports a structurally invalid input declaration.
type InvalidSpecError struct {
	ID     string
	Reason string
}

func (e *InvalidSpecError) Error() string {
	return fmt.Sprintf("input %q: %s", e.ID, e.Reason)
}

// InvalidDefaultError reports a default value outside the input's domain.
type InvalidDefaultError struct {
	ID     string
	Value  interface{}
	Reason string
}

func (e *InvalidDefaultError) Error() string {
	return fmt.Sprintf("input %q: invalid default %s: %s", e.ID, common.Join(e.Value), e.Reason)
}

// UnknownInputError reports a reference to an undeclared input.
type UnknownInputError struct {
	ID          string
	Suggestions []string
}

func (e *UnknownInputError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("unknown input %q", e.ID)
	}
	return fmt.Sprintf("unknown input %q (did you mean %s?)", e.ID, strings.Join(e.Suggestions, ", "))
}

// InvalidValueError reports a value the input kind cannot hold.
type InvalidValueError struct {
	ID     string
	Value  interface{}
	Reason string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("input %q: cannot set %v: %s", e.ID, e.Value, e.Reason)
}
