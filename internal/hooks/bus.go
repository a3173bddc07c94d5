// Package hooks provides synchronous save interception: code registered to
// run immediately before and after a named save operation, with access to
// the in-flight arguments and, afterwards, to the persisted result.
//
// Each Around call builds a fresh Invocation that travels through every
// hook of that one logical operation. The invocation carries a key-value
// stash so a before-hook can pass computed state forward to the matching
// after-hook; because the stash lives on the invocation, not on the bus,
// concurrent operations can never observe each other's state and nothing
// leaks into later operations.
package hooks

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Save operation names intercepted by this module.
const (
	OpSaveForm    = "saveForm"
	OpSavePatient = "savePatient"
)

// Invocation is the call-scoped state of a single intercepted save: the
// operation name, its arguments, the save result (set before after-hooks
// run), and a private stash shared by the hooks of this invocation only.
type Invocation struct {
	// Op is the intercepted operation name.
	Op string

	// Args are the in-flight save arguments.
	Args []any

	// Result is the value returned by the save; nil until the save has
	// completed successfully.
	Result any

	values map[string]any
}

// Put stores a stash value for retrieval by a later hook of the same
// invocation.
func (inv *Invocation) Put(key string, v any) {
	if inv.values == nil {
		inv.values = make(map[string]any)
	}
	inv.values[key] = v
}

// Get returns a stash value previously stored with Put, or nil.
func (inv *Invocation) Get(key string) any {
	return inv.values[key]
}

// BeforeHook runs before the save. A non-nil error aborts the save and is
// returned to the caller; hooks whose side effects must never block the
// save are expected to swallow and log their own failures.
type BeforeHook func(ctx context.Context, inv *Invocation) error

// AfterHook runs after a successful save, with inv.Result populated.
// Errors are logged and discarded: the save has already happened.
type AfterHook func(ctx context.Context, inv *Invocation) error

// Bus dispatches registered hooks around named save operations. Register
// everything during wiring; Around may then be called concurrently.
type Bus struct {
	before map[string][]BeforeHook
	after  map[string][]AfterHook
}

// NewBus returns an empty hook bus.
func NewBus() *Bus {
	return &Bus{
		before: make(map[string][]BeforeHook),
		after:  make(map[string][]AfterHook),
	}
}

// RegisterBefore adds a before-hook for op.
func (b *Bus) RegisterBefore(op string, h BeforeHook) {
	b.before[op] = append(b.before[op], h)
}

// RegisterAfter adds an after-hook for op.
func (b *Bus) RegisterAfter(op string, h AfterHook) {
	b.after[op] = append(b.after[op], h)
}

// Around executes the named save with its registered hooks.
//
// Ordering guarantees:
//   - before-hooks run on the calling goroutine, in registration order,
//     before the save; the first error aborts the operation;
//   - the save runs only if every before-hook succeeded;
//   - after-hooks run only when the save returned without error and see
//     exactly the invocation their before-hooks populated;
//   - a failed save skips the after-hooks entirely, leaving any staged
//     side effects uncommitted.
func (b *Bus) Around(ctx context.Context, op string, args []any, save func(context.Context) (any, error)) (any, error) {
	inv := &Invocation{Op: op, Args: args}

	for _, h := range b.before[op] {
		if err := h(ctx, inv); err != nil {
			return nil, err
		}
	}

	result, err := save(ctx)
	if err != nil {
		return nil, err
	}
	inv.Result = result

	for _, h := range b.after[op] {
		if err := h(ctx, inv); err != nil {
			log.Error().Err(err).Str("op", op).Msg("after-save hook failed")
		}
	}
	return result, nil
}
