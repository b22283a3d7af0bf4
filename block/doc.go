// Package block reduces all-pairs record comparison to a bounded candidate
// set. Each blocking strategy maps records to cheap, discriminating keys and
// emits only within-group pairs, subject to block-size caps that keep hub
// values from generating quadratic output.
//
// Strategies are interchangeable; a run may combine several, with results
// merged and deduplicated by canonical pair identity.
package block
