package selector

import "github.com/Temutjin2k/driver-match-system/internal/domain/models"

// ZoneResolver decides whether a driver may serve a booking's pickup area.
type ZoneResolver interface {
	Allowed(booking *models.Booking, driver *models.Driver) bool
}

// AllowAllZones is the default resolver: no zone restrictions.
type AllowAllZones struct{}

func (AllowAllZones) Allowed(*models.Booking, *models.Driver) bool { return true }

// StaticZones maps booking IDs to a required zone name. Drivers with an
// empty zone list are treated as city-wide.
type StaticZones struct {
	// Resolve returns the zone of a pickup address, empty for unknown.
	Resolve func(address string) string
}

func (z StaticZones) Allowed(booking *models.Booking, driver *models.Driver) bool {
	if z.Resolve == nil {
		return true
	}
	zone := z.Resolve(booking.Pickup.Address)
	if zone == "" || len(driver.Zones) == 0 {
		return true
	}
	for _, dz := range driver.Zones {
		if dz == zone {
			return true
		}
	}
	return false
}
