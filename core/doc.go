// Package core defines the shared domain model of the relationship
// discovery engine: sessions and their lifecycle, dialogue messages,
// relationship records, cancellation tokens and the collaborator
// interfaces (session store, entity store) consumed by the pipeline and
// the HTTP surface.
package core
