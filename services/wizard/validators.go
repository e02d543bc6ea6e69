package wizard

import (
	"strings"
	"time"
	"unicode"

	"daypass/models"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Options are the per-deployment rules the validators apply.
type Options struct {
	Currency        string
	MinPhoneDigits  int
	TimeSlots       []string
	PickupLocations []string
}

// DefaultOptions matches the config defaults.
func DefaultOptions() Options {
	return Options{Currency: "eur", MinPhoneDigits: 9}
}

type rules struct {
	opts Options
	now  func() time.Time
}

// step returns the blocker of a step's validator, or nil when forward
// navigation is allowed.
func (r rules) step(step models.Step, sel models.Selection, settings models.Settings) *ValidationError {
	switch step {
	case models.StepDateTime:
		return r.dateTime(sel, settings)
	case models.StepPickupAndCount:
		return r.pickupAndCount(sel)
	case models.StepAddOns:
		return nil
	case models.StepContactInfo:
		return r.contact(sel.Contact)
	default:
		return invalid(step, "", "no step after payment")
	}
}

func (r rules) dateTime(sel models.Selection, settings models.Settings) *ValidationError {
	if !settings.PurchasesEnabled {
		return invalid(models.StepDateTime, "", "ticket purchases are currently disabled")
	}
	if sel.Date == "" {
		return invalid(models.StepDateTime, "date", "choose a date")
	}
	if sel.TimeSlot == "" {
		return invalid(models.StepDateTime, "timeSlot", "choose a time slot")
	}
	return nil
}

func (r rules) pickupAndCount(sel models.Selection) *ValidationError {
	if sel.PickupLocation == "" {
		return invalid(models.StepPickupAndCount, "pickupLocation", "choose a pickup location")
	}
	if sel.Passengers() < 1 {
		return invalid(models.StepPickupAndCount, "passengers", "add at least one passenger")
	}
	return nil
}

func (r rules) contact(c models.Contact) *ValidationError {
	if strings.TrimSpace(c.FullName) == "" {
		return invalid(models.StepContactInfo, "fullName", "enter your full name")
	}
	if err := validate.Var(strings.TrimSpace(c.Email), "required,email"); err != nil {
		return invalid(models.StepContactInfo, "email", "enter a valid email address")
	}
	if !strings.EqualFold(strings.TrimSpace(c.Email), strings.TrimSpace(c.ConfirmEmail)) {
		return invalid(models.StepContactInfo, "confirmEmail", "email addresses do not match")
	}
	if digits(c.PhoneNumber) < r.opts.MinPhoneDigits {
		return invalid(models.StepContactInfo, "phoneNumber", "enter a complete phone number")
	}
	return nil
}

// input checks run when a field is set, before any step validator.

func (r rules) checkDateTime(date, slot string) *ValidationError {
	if date != "" {
		d, err := time.Parse(models.DateLayout, date)
		if err != nil {
			return invalid(models.StepDateTime, "date", "date must be YYYY-MM-DD")
		}
		today := r.now().UTC().Truncate(24 * time.Hour)
		if d.Before(today) {
			return invalid(models.StepDateTime, "date", "date is in the past")
		}
	}
	if slot != "" && len(r.opts.TimeSlots) > 0 && !contains(r.opts.TimeSlots, slot) {
		return invalid(models.StepDateTime, "timeSlot", "unknown time slot")
	}
	return nil
}

func (r rules) checkPickupAndCount(location string, adults, children int) *ValidationError {
	if adults < 0 || children < 0 {
		return invalid(models.StepPickupAndCount, "passengers", "passenger counts cannot be negative")
	}
	if location != "" && len(r.opts.PickupLocations) > 0 && !contains(r.opts.PickupLocations, location) {
		return invalid(models.StepPickupAndCount, "pickupLocation", "unknown pickup location")
	}
	return nil
}

func digits(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
