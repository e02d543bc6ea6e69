package wizard

import (
	"sort"
	"sync"

	"daypass/models"
)

// Event is something observable that happened to a checkout.
type Event interface {
	Name() string
}

// StepEntered fires on every step entry, forward or back.
type StepEntered struct {
	Step        models.Step
	ScrollToTop bool
}

type TotalChanged struct {
	Totals models.PriceBreakdown
}

type AvailabilityUpdated struct {
	Date  string
	Seats models.SlotSeats
	Err   error
}

type PaymentStateChanged struct {
	Payment models.PaymentSnapshot
}

type SettingsApplied struct {
	Settings models.Settings
}

type PricingApplied struct {
	Table models.PriceTable
}

// SubmissionStarted fires before the booking store is called.
type SubmissionStarted struct {
	ProviderIntentID string
}

// SubmissionFinished carries either the booking or the error.
type SubmissionFinished struct {
	Result *models.BookingResult
	Err    error
}

func (StepEntered) Name() string         { return "step_entered" }
func (TotalChanged) Name() string        { return "total_changed" }
func (AvailabilityUpdated) Name() string { return "availability_updated" }
func (PaymentStateChanged) Name() string { return "payment_state_changed" }
func (SettingsApplied) Name() string     { return "settings_applied" }
func (PricingApplied) Name() string      { return "pricing_applied" }
func (SubmissionStarted) Name() string   { return "submission_started" }
func (SubmissionFinished) Name() string  { return "submission_finished" }

type observers struct {
	mu   sync.Mutex
	next int
	subs map[int]func(Event)
}

func (o *observers) subscribe(fn func(Event)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.subs == nil {
		o.subs = make(map[int]func(Event))
	}
	id := o.next
	o.next++
	o.subs[id] = fn
	return func() {
		o.mu.Lock()
		delete(o.subs, id)
		o.mu.Unlock()
	}
}

// publish calls subscribers in registration order. It must not be called
// with the controller lock held.
func (o *observers) publish(events ...Event) {
	if len(events) == 0 {
		return
	}
	o.mu.Lock()
	ids := make([]int, 0, len(o.subs))
	for id := range o.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, o.subs[id])
	}
	o.mu.Unlock()

	for _, ev := range events {
		for _, fn := range fns {
			fn(ev)
		}
	}
}
