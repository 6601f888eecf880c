// Package rawdata describes raw OCT frame buffers as delivered by an
// acquisition host: consecutive spectra of unsigned integer samples stored
// little-endian in 8, 16 or 32-bit containers.
//
// Every extraction function in this package copies. Callers may hand in a
// host-owned buffer that is only valid for the duration of the call.
package rawdata
