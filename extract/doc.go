// Package extract turns raw text and agent dialogue into relationship
// records. It contains two independent algorithms: a deterministic
// windowed co-occurrence classifier over raw text, and a heuristic parser
// that structures free-form agent output into relationship, summary and
// visualization records.
//
// The heuristic parser is inherently fragile against generated text; it
// is kept behind this package boundary so it can later be replaced by a
// schema-constrained generation contract without touching orchestration.
package extract
