// Package estimator connects the dispersion search to an acquisition host.
//
// The host pushes raw acquisition buffers into an [Estimator] (or lets it
// pull them from a [FrameSource]). While active and after a single-fetch
// request, the estimator copies one frame out of the first matching buffer
// and hands it to a background [dispersion.Worker]. The host pointer is not
// retained past the call. Finished estimations are forwarded to the host's
// [ConfigSink] so the coefficients can be applied.
package estimator
