package models

// SlotSeats maps a time slot ("10:00") to its remaining seats.
type SlotSeats map[string]int

// AvailabilitySnapshot maps a date to the seats of each of its slots.
type AvailabilitySnapshot map[string]SlotSeats
