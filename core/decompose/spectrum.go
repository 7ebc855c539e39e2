package decompose

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// EnergyFraction returns the share of signal energy between loHz and hiHz
// (in cycles per sample, within [0, 0.5]). It is used to check band content.
func EnergyFraction(x []float64, lo, hi float64) float64 {
	n := len(x)
	if n == 0 {
		return 0
	}
	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, x)
	var total, in float64
	for i, c := range coeffs {
		p := cmplx.Abs(c)
		p *= p
		f := fft.Freq(i)
		total += p
		if f >= lo && f <= hi {
			in += p
		}
	}
	if total == 0 {
		return 0
	}
	return in / total
}
