package analysis

import (
	"math"
	"math/bits"
	"math/cmplx"
)

// FFT returns the discrete Fourier transform of data, zero-padded to the
// next power of two.
func FFT(data []float64) []complex128 {
	n := nextPow2(len(data))
	buf := make([]float64, n)
	copy(buf, data)
	return fft(buf)
}

func fft(data []float64) []complex128 {
	n := len(data)
	if n <= 1 {
		out := make([]complex128, n)
		for i := range data {
			out[i] = complex(data[i], 0)
		}
		return out
	}

	even := make([]float64, n/2)
	odd := make([]float64, n/2)
	for i := 0; i < n/2; i++ {
		even[i] = data[2*i]
		odd[i] = data[2*i+1]
	}

	fe := fft(even)
	fo := fft(odd)

	out := make([]complex128, n)
	for k := 0; k < n/2; k++ {
		w := cmplx.Exp(complex(0, -2*math.Pi*float64(k)/float64(n)))
		out[k] = fe[k] + w*fo[k]
		out[k+n/2] = fe[k] - w*fo[k]
	}
	return out
}

// PowerSpectrum is the magnitude of the first half of FFT(data).
func PowerSpectrum(data []float64) []float64 {
	f := FFT(data)
	ps := make([]float64, len(f)/2)
	for i := range ps {
		ps[i] = cmplx.Abs(f[i])
	}
	return ps
}

func nextPow2(n int) int {
	if n <= 1 {
		return n
	}
	return 1 << bits.Len(uint(n-1))
}
