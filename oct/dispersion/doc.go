// Package dispersion searches for the numerical dispersion compensation
// coefficients that give the sharpest A-scans.
//
// [Engine.Estimate] takes one raw frame, copies the centered lines it needs
// and runs two sequential one-dimensional sweeps: first d2 with d3 held at
// zero, then d3 with d2 fixed at the best value found. Every candidate is
// processed with a [spectral.Processor] and scored with a [metric.Params].
// A candidate replaces the best-so-far only when its score is strictly
// greater, so the earliest of several equal scores wins. Finally the first
// centered line is processed without and with the best coefficients for a
// before/after comparison.
//
// Progress is reported as typed [Event] values through a [ProgressSink] in
// the order it happens. [Worker] runs estimations on a dedicated goroutine
// and rejects new requests while one is in flight.
package dispersion
