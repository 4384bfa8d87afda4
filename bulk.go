package privmsg

import (
	"context"
	"fmt"
)

// OperationResult is the outcome for one message of a bulk operation.
type OperationResult struct {
	ID    string
	Error error // nil on success
}

// Success reports whether the operation succeeded.
func (r OperationResult) Success() bool { return r.Error == nil }

// BulkResult holds per-message outcomes in input order.
type BulkResult struct {
	Results []OperationResult
}

// SuccessCount returns the number of successful operations.
func (r *BulkResult) SuccessCount() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, res := range r.Results {
		if res.Success() {
			n++
		}
	}
	return n
}

// FailureCount returns the number of failed operations.
func (r *BulkResult) FailureCount() int {
	if r == nil {
		return 0
	}
	return len(r.Results) - r.SuccessCount()
}

// FailedIDs returns the IDs of items that failed.
func (r *BulkResult) FailedIDs() []string {
	if r == nil {
		return nil
	}
	var ids []string
	for _, res := range r.Results {
		if !res.Success() {
			ids = append(ids, res.ID)
		}
	}
	return ids
}

// Err returns a *BulkOperationError if any item failed.
func (r *BulkResult) Err() error {
	if r.FailureCount() == 0 {
		return nil
	}
	return &BulkOperationError{Result: r}
}

// BulkOperationError is returned when a bulk operation has partial failures.
type BulkOperationError struct {
	Result *BulkResult
}

func (e *BulkOperationError) Error() string {
	return fmt.Sprintf("privmsg: bulk operation failed for %d of %d items",
		e.Result.FailureCount(), len(e.Result.Results))
}

// Unwrap returns the individual errors from failed operations.
func (e *BulkOperationError) Unwrap() []error {
	var errs []error
	for _, r := range e.Result.Results {
		if r.Error != nil {
			errs = append(errs, r.Error)
		}
	}
	return errs
}

// BulkMarkRead marks each message read. Messages the caller did not
// receive fail with ErrUnauthorized.
func (m *userMailbox) BulkMarkRead(ctx context.Context, ids []string) (*BulkResult, error) {
	return m.bulkOp(ctx, ids, m.MarkRead)
}

// BulkDelete soft-deletes each message from the caller's view.
func (m *userMailbox) BulkDelete(ctx context.Context, ids []string) (*BulkResult, error) {
	return m.bulkOp(ctx, ids, m.Delete)
}

// BulkRestore restores each message from the caller's trash.
func (m *userMailbox) BulkRestore(ctx context.Context, ids []string) (*BulkResult, error) {
	return m.bulkOp(ctx, ids, m.Restore)
}

func (m *userMailbox) bulkOp(ctx context.Context, ids []string, op func(ctx context.Context, id string) error) (*BulkResult, error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}
	result := &BulkResult{Results: make([]OperationResult, 0, len(ids))}
	for _, id := range ids {
		if ctx.Err() != nil {
			result.Results = append(result.Results, OperationResult{ID: id, Error: ctx.Err()})
			continue
		}
		result.Results = append(result.Results, OperationResult{ID: id, Error: op(ctx, id)})
	}
	return result, result.Err()
}
