package location

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/geo"
)

// Classify returns on_site when userPos lies within radiusMeters of center.
// An unset position on either side yields geo.ErrLocationUnavailable.
func Classify(userPos, center geo.Point, radiusMeters float64) (attendance.WorkMode, error) {
	inside, _, err := geo.Within(userPos, center, radiusMeters)
	if err != nil {
		return "", err
	}
	if inside {
		return attendance.WorkModeOnSite, nil
	}
	return attendance.WorkModeRemote, nil
}

// Match is the outcome of classifying a position against several geofences.
// Location is the fence that was entered, or the nearest one when none was.
type Match struct {
	WorkMode       attendance.WorkMode
	Location       *OrganizationLocation
	DistanceMeters float64
}

// ClassifyAny is on_site when userPos is inside any fence. Fences without
// coordinates are ignored. An empty set yields ErrNoLocationsConfigured; a set
// where no fence has coordinates yields geo.ErrLocationUnavailable.
func ClassifyAny(userPos geo.Point, locations []OrganizationLocation) (Match, error) {
	if userPos.IsZero() {
		return Match{}, geo.ErrLocationUnavailable
	}
	if len(locations) == 0 {
		return Match{}, ErrNoLocationsConfigured
	}

	var (
		nearest, inside         *OrganizationLocation
		nearestDist, insideDist = math.Inf(1), math.Inf(1)
	)
	for i := range locations {
		loc := &locations[i]
		ok, d, err := geo.Within(userPos, loc.Coordinates, loc.RadiusMeters)
		if err != nil {
			if errors.Is(err, geo.ErrLocationUnavailable) {
				continue
			}
			return Match{}, err
		}
		if d < nearestDist {
			nearest, nearestDist = loc, d
		}
		if ok && d < insideDist {
			inside, insideDist = loc, d
		}
	}

	switch {
	case inside != nil:
		return Match{WorkMode: attendance.WorkModeOnSite, Location: inside, DistanceMeters: insideDist}, nil
	case nearest != nil:
		return Match{WorkMode: attendance.WorkModeRemote, Location: nearest, DistanceMeters: nearestDist}, nil
	default:
		return Match{}, geo.ErrLocationUnavailable
	}
}

// PolicyFor builds the time policy of a location. Empty working-hour fields
// keep the fallback's values.
func PolicyFor(loc *OrganizationLocation, fallback attendance.Policy) (attendance.Policy, error) {
	p := fallback
	if loc == nil {
		return p, nil
	}
	wh := loc.WorkingHours

	if wh.Timezone != "" {
		tz, err := time.LoadLocation(wh.Timezone)
		if err != nil {
			return attendance.Policy{}, fmt.Errorf("failed to load timezone %q: %w", wh.Timezone, err)
		}
		p.Location = tz
	}

	if wh.Start != "" {
		start, err := attendance.ParseClock(wh.Start)
		if err != nil {
			return attendance.Policy{}, err
		}
		p.CheckInCutoff = start.Add(time.Duration(wh.GracePeriodMinutes) * time.Minute)
	}

	if wh.End != "" {
		end, err := attendance.ParseClock(wh.End)
		if err != nil {
			return attendance.Policy{}, err
		}
		p.WorkdayEnd = end
	}

	if wh.BreakEnd != "" {
		breakEnd, err := attendance.ParseClock(wh.BreakEnd)
		if err != nil {
			return attendance.Policy{}, err
		}
		p.BreakCutoff = breakEnd
	}

	return p, nil
}

// ResolvePolicy picks the policy of the location with the given id. Without a
// match the first location applies, then fallback.
func ResolvePolicy(locations []OrganizationLocation, locationID *string, fallback attendance.Policy) (attendance.Policy, error) {
	if locationID != nil {
		for i := range locations {
			if locations[i].ID == *locationID {
				return PolicyFor(&locations[i], fallback)
			}
		}
	}
	if len(locations) > 0 {
		return PolicyFor(&locations[0], fallback)
	}
	return fallback, nil
}
