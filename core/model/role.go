package model

import (
	"fmt"
	"strings"

	"github.com/kilianp07/hess/core/physics"
)

// Role is the functional group an asset serves in the dispatch hierarchy.
type Role int

const (
	RoleUnspecified Role = iota
	// RoleEnergy covers long-duration assets dispatched by the upper layer.
	RoleEnergy
	// RoleSmoothing covers medium-duration assets tracking the mid band.
	RoleSmoothing
	// RolePower covers short-duration assets tracking the high band.
	RolePower
)

// Roles lists the dispatchable roles in hierarchy order.
var Roles = []Role{RoleEnergy, RoleSmoothing, RolePower}

// String returns a human-readable representation of the role.
func (r Role) String() string {
	switch r {
	case RoleEnergy:
		return "energy"
	case RoleSmoothing:
		return "smoothing"
	case RolePower:
		return "power"
	default:
		return "unspecified"
	}
}

// ParseRole converts a configuration value into a Role. An empty string
// yields RoleUnspecified so the caller can fall back to DefaultRole.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return RoleUnspecified, nil
	case "energy":
		return RoleEnergy, nil
	case "smoothing":
		return RoleSmoothing, nil
	case "power":
		return RolePower, nil
	default:
		return RoleUnspecified, fmt.Errorf("unknown asset role %q", s)
	}
}

// DefaultRole returns the usual role for a storage technology.
func DefaultRole(k physics.Kind) Role {
	switch k {
	case physics.KindPumpedHydro, physics.KindHydrogen, physics.KindThermal, physics.KindCompressedAir:
		return RoleEnergy
	case physics.KindGenericBattery:
		return RoleSmoothing
	case physics.KindFlywheel, physics.KindSupercapacitor, physics.KindSMES:
		return RolePower
	default:
		return RoleUnspecified
	}
}
