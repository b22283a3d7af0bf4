// Package distance provides vector distance and similarity calculations for
// the nearest-neighbor blocking adapter.
package distance
