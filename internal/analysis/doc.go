// Package analysis characterizes recorded control signals in the frequency
// domain.
//
//   - [FFT] and [PowerSpectrum]: radix-2 transform, zero-padded
//   - [DominantFrequency]: strongest non-DC component of one channel
//   - [Summarize]: per-channel range, frequency and phase relative to the
//     first channel
package analysis
