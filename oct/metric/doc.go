// Package metric scores processed A-scan frames for sharpness.
//
// A frame is a flat slice of lines of equal length. [Calculate] skips the
// first SamplesToIgnore samples of every line, scores each line with the
// selected [Kind] and returns the sum of the per-line scores. Higher scores
// mean sharper, better focused A-scans.
package metric
