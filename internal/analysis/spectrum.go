package analysis

import (
	"math"
	"math/cmplx"
)

// DominantFrequency returns the frequency in Hz of the strongest non-DC
// component of samples taken at rate Hz. The peak is refined by parabolic
// interpolation between neighbouring bins. ok is false when the signal is
// too short or has no oscillating component.
func DominantFrequency(samples []float64, rate float64) (hz float64, ok bool) {
	bin, ok := dominantBin(samples)
	if !ok || rate <= 0 {
		return 0, false
	}
	n := nextPow2(len(samples))
	ps := PowerSpectrum(demean(samples))
	return (float64(bin) + peakOffset(ps, bin)) * rate / float64(n), true
}

func dominantBin(samples []float64) (int, bool) {
	if len(samples) < 4 {
		return 0, false
	}
	ps := PowerSpectrum(demean(samples))
	best, peak := 0, 0.0
	for k := 1; k < len(ps); k++ {
		if ps[k] > peak {
			best, peak = k, ps[k]
		}
	}
	return best, peak > 1e-9
}

func peakOffset(ps []float64, k int) float64 {
	if k <= 0 || k >= len(ps)-1 {
		return 0
	}
	a, b, c := ps[k-1], ps[k], ps[k+1]
	den := a - 2*b + c
	if den == 0 {
		return 0
	}
	return 0.5 * (a - c) / den
}

func demean(v []float64) []float64 {
	if len(v) == 0 {
		return nil
	}
	mean := 0.0
	for _, x := range v {
		mean += x
	}
	mean /= float64(len(v))
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x - mean
	}
	return out
}

// ChannelSummary describes one recorded control channel.
type ChannelSummary struct {
	Index     int     `json:"index"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Amplitude float64 `json:"amplitude"`
	Frequency float64 `json:"frequency_hz"`
	Omega     float64 `json:"omega"`
	// Phase is relative to channel 0 at channel 0's dominant bin, wrapped
	// to (-π, π].
	Phase float64 `json:"phase"`
}

// Summarize analyses each channel sampled at rate Hz.
func Summarize(channels [][]float64, rate float64) []ChannelSummary {
	out := make([]ChannelSummary, len(channels))

	var refBin int
	var refOK bool
	var refPhase float64
	if len(channels) > 0 {
		refBin, refOK = dominantBin(channels[0])
		if refOK {
			refPhase = cmplx.Phase(FFT(demean(channels[0]))[refBin])
		}
	}

	for i, ch := range channels {
		s := ChannelSummary{Index: i}
		if len(ch) > 0 {
			s.Min, s.Max = ch[0], ch[0]
			for _, v := range ch {
				s.Min = math.Min(s.Min, v)
				s.Max = math.Max(s.Max, v)
			}
			s.Amplitude = (s.Max - s.Min) / 2
		}
		if hz, ok := DominantFrequency(ch, rate); ok {
			s.Frequency = hz
			s.Omega = 2 * math.Pi * hz
		}
		if refOK && len(ch) == len(channels[0]) {
			s.Phase = wrap(cmplx.Phase(FFT(demean(ch))[refBin]) - refPhase)
		}
		out[i] = s
	}
	return out
}

func wrap(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a > math.Pi {
		a -= 2 * math.Pi
	} else if a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}
