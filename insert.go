package quill

import "context"

// Inserter delivers the final reply into the user's saved focus target.
// Insertion is best-effort: the pipeline logs an insertion error but the run
// still completes, because the textual result already succeeded.
type Inserter interface {
	Insert(ctx context.Context, text string, target FocusTarget) error
}
