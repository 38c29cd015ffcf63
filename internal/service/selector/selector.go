package selector

import (
	"context"
	"math"
	"sort"

	"github.com/Temutjin2k/driver-match-system/internal/domain/models"
	"github.com/Temutjin2k/driver-match-system/internal/domain/types"
	"github.com/Temutjin2k/driver-match-system/pkg/uuid"
)

const EarthRadiusKm = 6371.0

// DriverRepo is the read side the selector needs.
type DriverRepo interface {
	ListEligible(ctx context.Context) ([]models.Driver, error)
}

type Options struct {
	// MaxDistanceKm caps the pickup distance for drivers whose position is
	// known. Zero disables the cap.
	MaxDistanceKm float64
	// Priority picks the ordering of the result set.
	Priority types.PriorityMode
	// Exclude drops drivers that were already offered this booking.
	Exclude map[uuid.UUID]struct{}
}

// Selector builds the ordered candidate list for a booking. Every returned
// driver has passed the eligibility flags, the zone filter and the distance
// cap; the list is never truncated.
type Selector struct {
	repo  DriverRepo
	zones ZoneResolver
}

func New(repo DriverRepo, zones ZoneResolver) *Selector {
	if zones == nil {
		zones = AllowAllZones{}
	}
	return &Selector{repo: repo, zones: zones}
}

func (s *Selector) Select(ctx context.Context, booking *models.Booking, opts Options) ([]models.DriverCandidate, error) {
	drivers, err := s.repo.ListEligible(ctx)
	if err != nil {
		return nil, err
	}

	var candidates []models.DriverCandidate
	for i := range drivers {
		d := drivers[i]

		// The repo filters on flags too; kept here so in-memory fakes and
		// stale reads cannot leak an ineligible driver through.
		if !d.Eligible() {
			continue
		}
		if _, excluded := opts.Exclude[d.ID]; excluded {
			continue
		}
		if !s.zones.Allowed(booking, &d) {
			continue
		}

		c := models.DriverCandidate{Driver: d}
		if booking.Pickup.Coords != nil && d.Coords != nil {
			dist := HaversineDistance(
				booking.Pickup.Coords.Latitude, booking.Pickup.Coords.Longitude,
				d.Coords.Latitude, d.Coords.Longitude,
			)
			if opts.MaxDistanceKm > 0 && dist > opts.MaxDistanceKm {
				continue
			}
			c.DistanceKm = &dist
		}
		candidates = append(candidates, c)
	}

	orderCandidates(candidates, opts.Priority)
	return candidates, nil
}

// orderCandidates sorts in place. DISTANCE puts drivers with a known
// distance first, nearest leading; drivers without coordinates keep their
// recent-activity order at the tail. RECENT_ACTIVITY is most recently seen
// first.
func orderCandidates(candidates []models.DriverCandidate, mode types.PriorityMode) {
	switch mode {
	case types.PriorityDistance:
		sort.SliceStable(candidates, func(i, j int) bool {
			di, dj := candidates[i].DistanceKm, candidates[j].DistanceKm
			switch {
			case di != nil && dj != nil:
				return *di < *dj
			case di != nil:
				return true
			case dj != nil:
				return false
			default:
				return candidates[i].LastSeenAt.After(candidates[j].LastSeenAt)
			}
		})
	default:
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].LastSeenAt.After(candidates[j].LastSeenAt)
		})
	}
}

func degreesToRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// HaversineDistance calculates the great-circle distance in kilometers
// between two geographic points.
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := degreesToRadians(lat1)
	lon1Rad := degreesToRadians(lon1)
	lat2Rad := degreesToRadians(lat2)
	lon2Rad := degreesToRadians(lon2)

	deltaLat := lat2Rad - lat1Rad
	deltaLon := lon2Rad - lon1Rad

	a := math.Pow(math.Sin(deltaLat/2), 2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Pow(math.Sin(deltaLon/2), 2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}
