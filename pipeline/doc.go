// Package pipeline turns an ordered list of items into a workflow graph and runs it.
//
// Every item gets two tasks, compute then persist, bracketed by a start barrier that
// fans out to all computes and an end barrier that every persist feeds:
//
//	start -> compute[i] -> persist[i] -> end
//
// Compute calls the Extractor and stores the artifact in the item's Slot. Persist
// hands the artifact to the Persister and clears it. A failure in one item skips that
// item's remaining task and is recorded in the Report; other items are unaffected.
package pipeline
