package models

import "sort"

// DateLayout is the wire format of Selection.Date.
const DateLayout = "2006-01-02"

// Contact holds the customer details collected on the contact step.
type Contact struct {
	FullName     string `json:"fullName" bson:"full_name"`
	Email        string `json:"email" bson:"email"`
	ConfirmEmail string `json:"confirmEmail" bson:"-"`
	PhonePrefix  string `json:"phonePrefix" bson:"phone_prefix"`
	PhoneNumber  string `json:"phoneNumber" bson:"phone_number"`
}

// Selection is the draft order built across the wizard steps.
type Selection struct {
	Date           string   `json:"date"`
	TimeSlot       string   `json:"timeSlot"`
	PickupLocation string   `json:"pickupLocation"`
	AdultCount     int      `json:"adultCount"`
	ChildCount     int      `json:"childCount"`
	AttractionIDs  []string `json:"attractionIds"`
	Contact        Contact  `json:"contact"`
}

// Passengers returns adults plus children.
func (s Selection) Passengers() int {
	return s.AdultCount + s.ChildCount
}

// HasAttraction reports whether id is selected.
func (s Selection) HasAttraction(id string) bool {
	for _, a := range s.AttractionIDs {
		if a == id {
			return true
		}
	}
	return false
}

// SetAttractions replaces the selected attractions, dropping duplicates.
// The result is sorted so the selection behaves as a set.
func (s *Selection) SetAttractions(ids []string) {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	s.AttractionIDs = out
}
