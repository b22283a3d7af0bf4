// Package score turns raw field comparisons into calibrated match decisions
// using a Fellegi-Sunter log-likelihood framework: each configured field
// contributes importance-weighted evidence based on its m- (agreement given
// match) and u- (agreement given non-match) probabilities, and the summed
// score is classified against upper and lower thresholds.
package score
