// Package batch holds the reconciliation primitives shared by every bulk use
// case: concurrent row resolution that never stops early, row-scoped errors,
// and in-batch duplicate detection.
package batch

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/polos-ead/academic-records/internal/domain/shared"
)

// DefaultConcurrency bounds how many rows resolve at once.
const DefaultConcurrency = 16

// ══════════════════════════════════════════════════════════════════════════════
// ROW ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// RowError ties an error to the 1-based row that produced it.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

// Unwrap lets errors.Is see the domain kind.
func (e *RowError) Unwrap() error {
	return e.Err
}

// Errors is the collection of row failures of one batch.
type Errors []*RowError

// Add records err against row. A nil err is ignored.
func (e *Errors) Add(row int, err error) {
	if err != nil {
		*e = append(*e, &RowError{Row: row, Err: err})
	}
}

// Merge appends every error of other.
func (e *Errors) Merge(other Errors) {
	*e = append(*e, other...)
}

// Sorted returns the errors ordered by row.
func (e Errors) Sorted() Errors {
	out := append(Errors(nil), e...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Row < out[j].Row })
	return out
}

// First returns the error with the lowest row number, or nil.
func (e Errors) First() *RowError {
	if len(e) == 0 {
		return nil
	}
	return e.Sorted()[0]
}

// Err returns the first error as an error value, or nil when the batch is
// clean. It avoids the typed-nil trap of returning First directly.
func (e Errors) Err() error {
	if first := e.First(); first != nil {
		return first
	}
	return nil
}

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, re := range e.Sorted() {
		parts = append(parts, re.Error())
	}
	return strings.Join(parts, "; ")
}

// ══════════════════════════════════════════════════════════════════════════════
// RESOLUTION
// ══════════════════════════════════════════════════════════════════════════════

// ResolveFunc turns one input row into its resolved form. row is 1-based.
// Implementations must only read already persisted state.
type ResolveFunc[In, Out any] func(ctx context.Context, row int, in In) (Out, error)

// Resolve runs fn for every row with at most limit in flight. A failing row
// never cancels the others. out has the same length and order as rows; the
// slot of a failed row holds the zero value.
func Resolve[In, Out any](ctx context.Context, rows []In, limit int, fn ResolveFunc[In, Out]) ([]Out, Errors) {
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	out := make([]Out, len(rows))
	rowErrs := make([]error, len(rows))

	// The group context is not used: rows must not observe each other's
	// failure.
	var g errgroup.Group
	g.SetLimit(limit)

	for i := range rows {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					rowErrs[i] = fmt.Errorf("row panic: %v", r)
				}
			}()

			v, err := fn(ctx, i+1, rows[i])
			if err != nil {
				rowErrs[i] = err
				return nil
			}
			out[i] = v
			return nil
		})
	}
	_ = g.Wait()

	var errs Errors
	for i, err := range rowErrs {
		errs.Add(i+1, err)
	}
	return out, errs
}

// ══════════════════════════════════════════════════════════════════════════════
// DUPLICATES
// ══════════════════════════════════════════════════════════════════════════════

// Dedupe reports every row whose key was already used by an earlier row.
// Empty keys (failed rows) are skipped. keys[i] belongs to row i+1.
func Dedupe(domain, resource string, keys []string) Errors {
	seen := make(map[string]int, len(keys))
	var errs Errors
	for i, k := range keys {
		if k == "" {
			continue
		}
		if first, ok := seen[k]; ok {
			errs.Add(i+1, shared.AlreadyExists(domain, "Batch",
				fmt.Sprintf("%s (duplicate of row %d)", resource, first)))
			continue
		}
		seen[k] = i + 1
	}
	return errs
}

// Key joins parts into a duplicate-detection key.
func Key(parts ...string) string {
	for _, p := range parts {
		if p == "" {
			return ""
		}
	}
	return strings.Join(parts, "\x1f")
}
