package dispatch

// Assets and commands use watts; the optimizers work in MW, MWh and hours
// for conditioning. These helpers are the only place the two meet.

const wattsPerMW = 1e6

// WToMW converts watts to megawatts.
func WToMW(w float64) float64 { return w / wattsPerMW }

// MWToW converts megawatts to watts.
func MWToW(mw float64) float64 { return mw * wattsPerMW }

// Hours converts a step length in seconds to hours.
func Hours(seconds float64) float64 { return seconds / 3600 }

// SeriesToMW converts a watt series to MW.
func SeriesToMW(w []float64) []float64 {
	out := make([]float64, len(w))
	for i, v := range w {
		out[i] = WToMW(v)
	}
	return out
}

// CommandsToW converts a per-asset MW command map to watts.
func CommandsToW(mw map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(mw))
	for id, v := range mw {
		out[id] = MWToW(v)
	}
	return out
}
