// Package views holds the state behind the four dashboard sections. Budget
// and Expenses are mutation sources; Overview and Reports are read-only.
package views

import (
	"errors"
	"sync"

	"financeflow/internal/core"
)

var (
	// ErrBusy rejects a submission while the previous one is pending.
	ErrBusy = errors.New("request already in flight")
	// ErrInvalidDraft rejects a draft that fails field validation.
	ErrInvalidDraft = errors.New("invalid draft")
	// ErrNotConfirmed is returned when the user declines a deletion.
	ErrNotConfirmed = errors.New("deletion not confirmed")
	// ErrNotFound is returned when editing an ID absent from the collection.
	ErrNotFound = errors.New("entry not found")
)

// ConfirmFunc asks the user a yes/no question.
type ConfirmFunc func(prompt string) bool

// form is the add/edit modal state shared by the mutation views.
type form[D any] struct {
	mu      sync.Mutex
	draft   D
	fresh   func() D
	editing core.ID
	open    bool
	busy    bool
	err     string
}

func (f *form[D]) init(fresh func() D) {
	f.fresh = fresh
	f.draft = fresh()
}

// Open shows the create form. An edit in progress is discarded.
func (f *form[D]) Open() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editing != "" {
		f.editing = ""
		f.draft = f.fresh()
	}
	f.open = true
	f.err = ""
}

// Close hides the form. The draft is kept for the next Open.
func (f *form[D]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
}

func (f *form[D]) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *form[D]) Draft() D {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft
}

func (f *form[D]) SetDraft(d D) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft = d
}

// Editing returns the ID being edited, empty when creating.
func (f *form[D]) Editing() core.ID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.editing
}

func (f *form[D]) Busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.busy
}

// ErrorMessage is the static message shown above the list, empty when none.
func (f *form[D]) ErrorMessage() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *form[D]) beginEdit(id core.ID, d D) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.editing = id
	f.draft = d
	f.open = true
	f.err = ""
}

// begin claims the in-flight slot and snapshots the draft.
func (f *form[D]) begin() (D, core.ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		var zero D
		return zero, "", ErrBusy
	}
	if err := core.Validate(f.draft); err != nil {
		var zero D
		return zero, "", errors.Join(ErrInvalidDraft, err)
	}
	f.busy = true
	f.err = ""
	return f.draft, f.editing, nil
}

// succeed resets the form after a committed submission.
func (f *form[D]) succeed() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy = false
	f.draft = f.fresh()
	f.editing = ""
	f.open = false
}

// fail keeps the form open with its draft and records msg.
func (f *form[D]) fail(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy = false
	f.err = msg
}

func (f *form[D]) setError(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = msg
}
