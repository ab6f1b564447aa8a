package rules

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrEditorClosed is returned by Submit when nothing is being edited.
var ErrEditorClosed = errors.New("rules: editor is not open")

// Editor is the create/edit modal. It holds a private draft so edits never
// touch the list until saved.
type Editor struct {
	svc *Service

	mu      sync.Mutex
	open    bool
	editing string
	draft   Rule
	err     string
}

func NewEditor(svc *Service) *Editor {
	return &Editor{svc: svc}
}

func (e *Editor) OpenCreate() Rule {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.open = true
	e.editing = ""
	e.draft = NewDraft()
	e.err = ""
	return e.draft.Clone()
}

func (e *Editor) OpenEdit(r Rule) Rule {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.open = true
	e.editing = r.ID
	e.draft = r.Clone()
	if e.draft.Conditions == nil {
		e.draft.Conditions = map[string]any{}
	}
	e.err = ""
	return e.draft.Clone()
}

// Edit applies fn to the draft.
func (e *Editor) Edit(fn func(*Rule)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.open {
		fn(&e.draft)
	}
}

func (e *Editor) Draft() Rule {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.draft.Clone()
}

func (e *Editor) IsOpen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.open
}

// Editing returns the id of the rule being edited, "" in create mode.
func (e *Editor) Editing() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.editing
}

func (e *Editor) Err() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Submit creates or updates depending on how the editor was opened. On
// success the editor closes; on failure it stays open with the message.
func (e *Editor) Submit(ctx context.Context) (Rule, error) {
	e.mu.Lock()
	if !e.open {
		e.mu.Unlock()
		return Rule{}, ErrEditorClosed
	}
	draft := e.draft.Clone()
	id := e.editing
	e.mu.Unlock()

	var (
		saved Rule
		err   error
	)
	if id == "" {
		saved, err = e.svc.Create(ctx, draft)
	} else {
		draft.ID = id
		saved, err = e.svc.Update(ctx, draft)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.err = err.Error()
		return Rule{}, err
	}
	e.reset()
	return saved, nil
}

func (e *Editor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reset()
}

func (e *Editor) reset() {
	e.open = false
	e.editing = ""
	e.draft = Rule{}
	e.err = ""
}

// Screen is the rules list.
type Screen struct {
	svc *Service

	mu      sync.RWMutex
	rules   []Rule
	loading bool
	err     string
}

func NewScreen(svc *Service) *Screen {
	return &Screen{svc: svc}
}

// Load fetches the list sorted by priority (lower first).
func (s *Screen) Load(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.err = ""
	s.mu.Unlock()

	list, err := s.svc.List(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.err = err.Error()
		return err
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].Priority < list[j].Priority })
	s.rules = list
	return nil
}

// Delete removes the rule and reloads the list.
func (s *Screen) Delete(ctx context.Context, id string) error {
	if err := s.svc.Delete(ctx, id); err != nil {
		s.mu.Lock()
		s.err = err.Error()
		s.mu.Unlock()
		return err
	}
	return s.Load(ctx)
}

func (s *Screen) Rules() []Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Rule, len(s.rules))
	for i := range s.rules {
		out[i] = s.rules[i].Clone()
	}
	return out
}

func (s *Screen) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Screen) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}
