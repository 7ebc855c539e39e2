// Package ems runs the receding-horizon control loop of the hybrid storage
// system. Every upper period the economic optimizer plans the Energy group
// and the grid exchange; its first step is held until the next upper solve.
// Every step the residual imbalance is split into frequency bands and the
// tracking optimizer dispatches the Smoothing and Power groups. Commands are
// converted to watts once and applied to the assets.
package ems
