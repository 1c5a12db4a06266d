package model

// TimeSlotConfig is a configured bookable time of day for a professional.
type TimeSlotConfig struct {
	Time            string `json:"time"` // HH:MM
	MaxAppointments int    `json:"max_appointments"`
}

// BlackoutDay marks a date on which a professional accepts no appointments
// regardless of slot configuration.
type BlackoutDay struct {
	ProfessionalID string `json:"professional_id"`
	Date           string `json:"date"` // YYYY-MM-DD
}

// BookingCounts maps a slot time (HH:MM) to the number of non-deleted
// bookings at that time. Derived remotely, never stored locally.
type BookingCounts map[string]int

// SlotAvailability is the derived, capacity and blackout aware view of a
// single slot on a single date. Recomputed, never persisted.
type SlotAvailability struct {
	Time                string `json:"time"`
	MaxAppointments     int    `json:"max_appointments"`
	CurrentAppointments int    `json:"current_appointments"`
	Available           bool   `json:"available"`
}
