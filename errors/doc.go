// Package errors implements the three-class error model used by driftview:
// Transient (temporary, retryable), Invalid (bad input, do not retry) and
// Fatal (unrecoverable, stop).
//
// # Usage
//
// Wrap errors with the component and operation that produced them:
//
//	if err := store.Commit(ctx, key, rev, conn, false); err != nil {
//	    return errors.WrapTransient(err, "Pager", "LoadNext", "commit page")
//	}
//
// The wrapped message follows "component.method: action failed: cause" and the
// chain stays inspectable with errors.Is and errors.As:
//
//	if errors.Is(err, connection.ErrCursorMismatch) {
//	    // keep rendering cached rows, disable "load more"
//	}
//
// Classification drives retries in the slot stores:
//
//	if errors.IsTransient(err) {
//	    // retry with pkg/retry
//	}
//
// context.Canceled is not transient: an abandoned page request is never replayed.
package errors
