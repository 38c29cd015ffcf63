package matching

import (
	"context"
	"fmt"

	"github.com/Temutjin2k/driver-match-system/internal/domain/models"
	"github.com/Temutjin2k/driver-match-system/internal/domain/types"
)

func (s *Service) offerText(booking *models.Booking) string {
	return fmt.Sprintf(
		"New ride offer %s. Pickup: %s. Dropoff: %s. Scheduled: %s. Passengers: %d. Estimated fare: %.2f. Reply ACCEPT or REJECT within %d seconds.",
		booking.BookingNumber,
		booking.Pickup.Address,
		booking.Dropoff.Address,
		booking.ScheduledAt.Format("2006-01-02 15:04"),
		booking.PassengerCount,
		booking.EstimatedFare,
		int(s.cfg.DriverResponseTimeout.Seconds()),
	)
}

func (s *Service) searchStartedText(booking *models.Booking) string {
	return fmt.Sprintf("We are looking for a driver for your ride %s. We will let you know as soon as one accepts.", booking.BookingNumber)
}

func (s *Service) noDriverText(booking *models.Booking) string {
	return fmt.Sprintf("Unfortunately no driver is available for your ride %s right now. Please try again later.", booking.BookingNumber)
}

func (s *Service) driverAssignedText(driver *models.AssignedDriver) string {
	return fmt.Sprintf(
		"Your driver is %s (rating %.1f), %s %s %s, plate %s. Phone: %s.",
		driver.Name,
		driver.Rating,
		driver.Vehicle.Color,
		driver.Vehicle.Make,
		driver.Vehicle.Model,
		driver.Vehicle.Plate,
		driver.Phone,
	)
}

func (s *Service) lowAvailabilityAlert(booking *models.Booking) models.AdminAlert {
	return models.AdminAlert{
		Kind:      types.AlertLowAvailability,
		BookingID: booking.ID,
		Message:   "no eligible drivers found for booking",
		Details: map[string]any{
			"booking_number": booking.BookingNumber,
			"pickup":         booking.Pickup.Address,
			"dropoff":        booking.Dropoff.Address,
			"scheduled_at":   booking.ScheduledAt,
		},
	}
}

func (s *Service) timeoutAlert(ctx context.Context, booking *models.Booking) models.AdminAlert {
	details := map[string]any{
		"booking_number": booking.BookingNumber,
		"pickup":         booking.Pickup.Address,
		"dropoff":        booking.Dropoff.Address,
		"scheduled_at":   booking.ScheduledAt,
	}
	if customer, err := s.customers.Get(ctx, booking.CustomerID); err == nil {
		details["customer_phone"] = customer.Phone
	}
	return models.AdminAlert{
		Kind:      types.AlertBookingTimeout,
		BookingID: booking.ID,
		Message:   "matching attempt timed out with no driver",
		Details:   details,
	}
}
