package geo

import (
	"math"
	"strings"

	"ridehail/internal/types"
)

// ZoneRoleInner marks the low-return-demand zone used for deadhead pricing.
const ZoneRoleInner = "inner"

// Zone is a named circular area. Zones are configuration data and are
// re-read for every fare calculation.
type Zone struct {
	ID       types.ID    `json:"id"`
	Name     string      `json:"name"`
	Role     string      `json:"role,omitempty"`
	Center   types.Point `json:"center"`
	RadiusKm float64     `json:"radius_km"`
	IsActive bool        `json:"is_active"`
}

// ZoneMembership describes where a point lies relative to a zone.
type ZoneMembership struct {
	IsInside             bool    `json:"is_inside"`
	DistanceToCenterKm   float64 `json:"distance_to_center_km"`
	DistanceToBoundaryKm float64 `json:"distance_to_boundary_km"`
}

// ZoneMatcher decides whether a zone is the one being looked for.
type ZoneMatcher func(Zone) bool

// FindZone returns the first zone accepted by match, or false if none is.
func FindZone(zones []Zone, match ZoneMatcher) (Zone, bool) {
	for _, z := range zones {
		if match(z) {
			return z, true
		}
	}
	return Zone{}, false
}

// NameContains matches zones whose name contains any of the substrings,
// case-insensitively.
func NameContains(substrings ...string) ZoneMatcher {
	return func(z Zone) bool {
		name := strings.ToLower(z.Name)
		for _, s := range substrings {
			if strings.Contains(name, strings.ToLower(s)) {
				return true
			}
		}
		return false
	}
}

// FindInnerZone locates the inner zone. A zone carrying the explicit inner
// role always wins; otherwise the legacy name convention ("inner" or "ring")
// is used.
func FindInnerZone(zones []Zone) (Zone, bool) {
	if z, ok := FindZone(zones, func(z Zone) bool { return z.Role == ZoneRoleInner }); ok {
		return z, true
	}
	return FindZone(zones, NameContains("inner", "ring"))
}

// Membership reports whether p is inside z. The boundary itself counts as
// inside.
func Membership(p types.Point, z Zone) ZoneMembership {
	d := DistanceKm(p, z.Center)
	return ZoneMembership{
		IsInside:             d <= z.RadiusKm,
		DistanceToCenterKm:   d,
		DistanceToBoundaryKm: math.Max(0, d-z.RadiusKm),
	}
}
