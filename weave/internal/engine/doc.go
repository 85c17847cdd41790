// Package engine implements the method-body splice pipeline: capturing two
// source bodies, trimming incompatible trailing returns, transfusing
// instructions across module contexts, remapping local slots, relinking
// duplicated references, compacting dead no-ops, and committing the merged
// body atomically.
//
// The pipeline operates exclusively on private clones; the live target body
// is touched only by the final commit, so any failure leaves the target
// method unmodified.
package engine
