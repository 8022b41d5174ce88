// Package rerrors defines the error taxonomy surfaced at the boundary
// of reposcope's core. Leaf errors carry a stack trace via
// go-errors/errors, attached once at the boundary that first detects
// them; the non-fatal per-entry errors of one walk are collected with
// hashicorp/go-multierror.
package rerrors

import (
	"fmt"

	goerrors "github.com/go-errors/errors"
	"github.com/hashicorp/go-multierror"
)

// WalkErrKind classifies a non-fatal I/O condition encountered mid-walk.
type WalkErrKind int

const (
	// WalkErrIO is an I/O failure other than not-found/permission-denied.
	WalkErrIO WalkErrKind = iota
	// WalkErrLinkCycle is a symlink that resolves back into its own ancestry.
	WalkErrLinkCycle
)

func (k WalkErrKind) String() string {
	switch k {
	case WalkErrLinkCycle:
		return "link cycle"
	default:
		return "io"
	}
}

// BadPattern is returned when a glob expression fails to parse, validate,
// or compile. Span is a pair of byte offsets into Pattern bracketing the
// offending segment, when known; a zero span means "whole pattern".
type BadPattern struct {
	Pattern string
	Detail  string
	Span    [2]int
}

func (e *BadPattern) Error() string {
	return fmt.Sprintf("bad pattern %q: %s", e.Pattern, e.Detail)
}

// Wrap attaches a stack trace to err. Boundary errors are wrapped
// exactly once, where they are first detected.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, 1)
}

// WalkErr is a single non-fatal failure observed while walking one entry.
// It is never returned on its own; it is collected into an Aggregate.
type WalkErr struct {
	Kind  WalkErrKind
	Path  string
	Depth int
	Err   error
}

func (e *WalkErr) Error() string {
	return fmt.Sprintf("walk error (%s) at %s (depth %d): %v", e.Kind, e.Path, e.Depth, e.Err)
}

func (e *WalkErr) Unwrap() error { return e.Err }

// InvalidSelector is returned when a filter selector names no package
// pattern, directory, or git range.
type InvalidSelector struct {
	Raw string
}

func (e *InvalidSelector) Error() string {
	return fmt.Sprintf("invalid selector %q: must name a package pattern, a directory, or a git range", e.Raw)
}

// NoPackagesMatchedWithName is returned when an exact (non-wildcard) name
// pattern resolves to zero packages.
type NoPackagesMatchedWithName struct {
	Name string
}

func (e *NoPackagesMatchedWithName) Error() string {
	return fmt.Sprintf("no package named %q", e.Name)
}

// DirectoryDoesNotExist is returned when a selector's directory pattern
// names a path absent from the workspace.
type DirectoryDoesNotExist struct {
	Path string
}

func (e *DirectoryDoesNotExist) Error() string {
	return fmt.Sprintf("directory does not exist: %s", e.Path)
}

// Aggregate collects zero or more non-fatal errors (a walk's per-entry
// I/O errors) behind a single error value.
type Aggregate struct {
	merr *multierror.Error
}

// NewAggregate returns an empty Aggregate ready for Append.
func NewAggregate() *Aggregate {
	return &Aggregate{merr: &multierror.Error{}}
}

// Append records err, if non-nil.
func (a *Aggregate) Append(err error) {
	if err == nil {
		return
	}
	a.merr = multierror.Append(a.merr, err)
}

// Len reports how many errors have been appended.
func (a *Aggregate) Len() int {
	if a.merr == nil {
		return 0
	}
	return len(a.merr.Errors)
}

// ErrorOrNil returns nil if no errors were appended, else the aggregate.
func (a *Aggregate) ErrorOrNil() error {
	if a.Len() == 0 {
		return nil
	}
	return a.merr.ErrorOrNil()
}

// Errors returns the individual errors in append order.
func (a *Aggregate) Errors() []error {
	if a.merr == nil {
		return nil
	}
	return a.merr.Errors
}
