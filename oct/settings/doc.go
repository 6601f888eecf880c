// Package settings reads and writes the INI settings file shared with the
// acquisition software.
//
// The file is parsed once by [Load]. [File.Processing] turns the
// "Virtual OCT System" and "processing" sections into an immutable
// [spectral.Config]; [File.Estimator] reads the "dispersion_estimator"
// section. A File also implements [estimator.ConfigSink], so estimation
// results and parameter changes are written back to disk.
package settings
