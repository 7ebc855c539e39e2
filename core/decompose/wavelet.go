package decompose

import (
	"fmt"
	"strings"
)

// Wavelet is an orthogonal two-channel filter bank.
type Wavelet struct {
	Name  string
	DecLo []float64
	DecHi []float64
	RecLo []float64
	RecHi []float64
}

// Len is the filter length.
func (w Wavelet) Len() int { return len(w.DecLo) }

var decLo = map[string][]float64{
	"haar": {0.7071067811865476, 0.7071067811865476},
	"db2":  {-0.12940952255126034, 0.2241438680420134, 0.8365163037378077, 0.4829629131445341},
	"db3": {0.035226291885709554, -0.08544127388202666, -0.1350110200102546,
		0.4598775021184915, 0.8068915093110927, 0.33267055295008263},
	"db4": {-0.010597401784997278, 0.032883011666982945, 0.030841381835986965,
		-0.18703481171888114, -0.02798376941698385, 0.6308807679295904,
		0.7148465705525415, 0.23037781330885523},
}

// LookupWavelet returns the Daubechies filter bank with the given name.
// "db1" is an alias of "haar".
func LookupWavelet(name string) (Wavelet, error) {
	name = strings.ToLower(name)
	if name == "db1" {
		name = "haar"
	}
	lo, ok := decLo[name]
	if !ok {
		return Wavelet{}, fmt.Errorf("unsupported wavelet %q", name)
	}
	return newOrthogonal(name, lo), nil
}

// newOrthogonal derives the quadrature mirror filters from the decomposition
// low-pass.
func newOrthogonal(name string, lo []float64) Wavelet {
	f := len(lo)
	w := Wavelet{
		Name:  name,
		DecLo: append([]float64(nil), lo...),
		DecHi: make([]float64, f),
		RecLo: make([]float64, f),
		RecHi: make([]float64, f),
	}
	for k := 0; k < f; k++ {
		sign := 1.0
		if k%2 == 0 {
			sign = -1
		}
		w.DecHi[k] = sign * lo[f-1-k]
	}
	for k := 0; k < f; k++ {
		w.RecLo[k] = w.DecLo[f-1-k]
		w.RecHi[k] = w.DecHi[f-1-k]
	}
	return w
}

// symIndex maps any integer onto [0,n) with half-sample symmetric
// extension: x[-1]=x[0], x[n]=x[n-1].
func symIndex(i, n int) int {
	p := 2 * n
	m := i % p
	if m < 0 {
		m += p
	}
	if m < n {
		return m
	}
	return p - 1 - m
}

// coeffLen is the length of one analysis output for an input of n samples.
func coeffLen(n, f int) int { return (n + f - 1) / 2 }

// dwt runs one analysis step and returns approximation and detail.
func dwt(x []float64, w Wavelet) (a, d []float64) {
	n, f := len(x), w.Len()
	out := coeffLen(n, f)
	a = make([]float64, out)
	d = make([]float64, out)
	for o := 0; o < out; o++ {
		i := 2*o + 1
		var sa, sd float64
		for j := 0; j < f; j++ {
			v := x[symIndex(i-j, n)]
			sa += w.DecLo[j] * v
			sd += w.DecHi[j] * v
		}
		a[o] = sa
		d[o] = sd
	}
	return a, d
}

// idwt runs one synthesis step keeping the fully overlapped part and trims
// it to n samples. Nil inputs are treated as zeros.
func idwt(a, d []float64, w Wavelet, n int) []float64 {
	f := w.Len()
	nc := len(a)
	if nc == 0 {
		nc = len(d)
	}
	full := 2*nc - f + 2
	if full < 0 {
		full = 0
	}
	out := make([]float64, n)
	lim := n
	if full < lim {
		lim = full
	}
	for i := 0; i < lim; i++ {
		var s float64
		// Taps i+f-2-2k stay inside [0,f) for k >= i/2.
		for k := i / 2; k < nc; k++ {
			idx := i + f - 2 - 2*k
			if idx < 0 {
				break
			}
			if a != nil {
				s += a[k] * w.RecLo[idx]
			}
			if d != nil {
				s += d[k] * w.RecHi[idx]
			}
		}
		out[i] = s
	}
	return out
}
