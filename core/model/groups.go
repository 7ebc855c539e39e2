package model

import "fmt"

// Groups partitions assets into the three disjoint dispatch roles.
type Groups struct {
	Energy    []StorageAsset
	Smoothing []StorageAsset
	Power     []StorageAsset
}

// Partition assigns every asset to its tagged role in a single pass. It
// fails on duplicate ids or untagged assets so that no asset is silently
// left out of dispatch.
func Partition(assets []StorageAsset) (Groups, error) {
	var g Groups
	seen := make(map[string]struct{}, len(assets))
	for _, a := range assets {
		id := a.ID()
		if _, dup := seen[id]; dup {
			return Groups{}, fmt.Errorf("duplicate asset id %q", id)
		}
		seen[id] = struct{}{}
		switch a.Params().Role {
		case RoleEnergy:
			g.Energy = append(g.Energy, a)
		case RoleSmoothing:
			g.Smoothing = append(g.Smoothing, a)
		case RolePower:
			g.Power = append(g.Power, a)
		default:
			return Groups{}, fmt.Errorf("asset %q has no role", id)
		}
	}
	return g, nil
}

// Of returns the assets holding the given role.
func (g Groups) Of(r Role) []StorageAsset {
	switch r {
	case RoleEnergy:
		return g.Energy
	case RoleSmoothing:
		return g.Smoothing
	case RolePower:
		return g.Power
	default:
		return nil
	}
}

// All returns every asset in role order.
func (g Groups) All() []StorageAsset {
	out := make([]StorageAsset, 0, len(g.Energy)+len(g.Smoothing)+len(g.Power))
	out = append(out, g.Energy...)
	out = append(out, g.Smoothing...)
	return append(out, g.Power...)
}

// SOCSnapshot reads the current SOC of every asset once.
func SOCSnapshot(assets []StorageAsset) map[string]float64 {
	out := make(map[string]float64, len(assets))
	for _, a := range assets {
		out[a.ID()] = a.SOC()
	}
	return out
}
