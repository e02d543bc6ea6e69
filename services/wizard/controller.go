package wizard

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"daypass/models"
	"daypass/services/availability"
	"daypass/services/backend"
	"daypass/services/booking"
	"daypass/services/payment"
	"daypass/services/pricing"

	"go.uber.org/zap"
)

// Submitter turns a paid order into a booking.
type Submitter interface {
	Submit(ctx context.Context, order models.Order) (*models.BookingResult, error)
}

// Deps are the per-session collaborators of a controller. Verifier is
// optional; without it a client-reported success is trusted.
type Deps struct {
	Pricing      *pricing.Calculator
	Availability *availability.Cache
	Payment      *payment.Manager
	Submitter    Submitter
	Verifier     payment.Verifier
	Logger       *zap.Logger
}

// Controller is the five-step checkout wizard of one session.
type Controller struct {
	deps   Deps
	rules  rules
	logger *zap.Logger
	obs    observers

	mu         sync.Mutex
	step       models.Step
	sel        models.Selection
	table      models.PriceTable
	settings   models.Settings
	submitting bool
	inflight   string
	result     *models.BookingResult
	unresolved string
}

// New starts a wizard on the first step with an empty selection. Settings
// and the price table are loaded by the caller and injected here.
func New(deps Deps, opts Options, table models.PriceTable, settings models.Settings) *Controller {
	c := &Controller{
		deps:     deps,
		rules:    rules{opts: opts, now: time.Now},
		logger:   deps.Logger,
		step:     models.StepDateTime,
		table:    table,
		settings: settings,
	}
	deps.Payment.OnChange(func(s models.PaymentSnapshot) {
		c.obs.publish(PaymentStateChanged{Payment: s})
	})
	return c
}

// Restore rebuilds a wizard from its persisted form.
func Restore(deps Deps, opts Options, s models.CheckoutSession) *Controller {
	c := New(deps, opts, s.PriceTable, s.Settings)
	if s.Step.Valid() {
		c.step = s.Step
	}
	c.sel = s.Selection
	c.submitting = s.Submitting
	c.inflight = s.SubmittingIntent
	c.result = s.Booking
	c.unresolved = s.Unresolved
	deps.Payment.Restore(s.Payment)
	return c
}

// Subscribe registers fn for every event and returns its unsubscribe func.
// Callbacks run on the goroutine that caused the event, without the
// controller lock held.
func (c *Controller) Subscribe(fn func(Event)) func() {
	return c.obs.subscribe(fn)
}

// Snapshot returns the persisted form. Session id and timestamps belong to
// the caller.
func (c *Controller) Snapshot() models.CheckoutSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return models.CheckoutSession{
		Step:             c.step,
		Selection:        c.selection(),
		PriceTable:       c.table,
		Settings:         c.settings,
		Payment:          c.deps.Payment.Snapshot(),
		Submitting:       c.submitting,
		SubmittingIntent: c.inflight,
		Booking:          c.result,
		Unresolved:       c.unresolved,
	}
}

// View renders the current state for the API. Availability is read after
// the controller lock is released.
func (c *Controller) View(ctx context.Context) models.CheckoutView {
	c.mu.Lock()
	v := models.CheckoutView{
		Step:       c.step,
		StepName:   c.step.String(),
		Selection:  c.selection(),
		Totals:     c.total().Display(),
		Settings:   c.settings,
		Payment:    c.deps.Payment.Snapshot(),
		Submitting: c.submitting,
		Booking:    c.result,
		Unresolved: c.unresolved,
	}
	c.mu.Unlock()

	if v.Selection.Date != "" {
		v.Availability = c.deps.Availability.Seats(ctx, v.Selection.Date)
	}
	if v.Step != models.StepPayment && v.Booking == nil {
		seats := c.seatsFor(ctx, v.Step, v.Selection)
		if b := c.blocker(v.Step, v.Selection, v.Settings, seats); b != nil {
			v.Blocker = b.Message
		} else {
			v.CanAdvance = !v.Submitting
		}
	}
	return v
}

func (c *Controller) Step() models.Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

// Totals prices the current selection.
func (c *Controller) Totals() models.PriceBreakdown {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total()
}

// Validate runs the current step's validator.
func (c *Controller) Validate(ctx context.Context) error {
	c.mu.Lock()
	step, sel, settings := c.step, c.selection(), c.settings
	c.mu.Unlock()

	if b := c.blocker(step, sel, settings, c.seatsFor(ctx, step, sel)); b != nil {
		return b
	}
	return nil
}

// SetDateTime updates the step 1 fields and fetches availability when the
// date changed. A failed fetch is logged and the step stays navigable.
func (c *Controller) SetDateTime(ctx context.Context, date, slot string) error {
	c.mu.Lock()
	if err := c.guardInput(models.StepDateTime); err != nil {
		c.mu.Unlock()
		return err
	}
	if v := c.rules.checkDateTime(date, slot); v != nil {
		c.mu.Unlock()
		return v
	}
	before := c.total()
	dateChanged := date != c.sel.Date
	c.sel.Date = date
	c.sel.TimeSlot = slot
	events := c.totalEvents(before)
	c.mu.Unlock()

	c.obs.publish(events...)
	if dateChanged && date != "" {
		c.fetchAvailability(ctx, date, false)
	}
	return nil
}

// SetPickupAndCount updates the step 2 fields.
func (c *Controller) SetPickupAndCount(location string, adults, children int) error {
	c.mu.Lock()
	if err := c.guardInput(models.StepPickupAndCount); err != nil {
		c.mu.Unlock()
		return err
	}
	if v := c.rules.checkPickupAndCount(location, adults, children); v != nil {
		c.mu.Unlock()
		return v
	}
	before := c.total()
	c.sel.PickupLocation = location
	c.sel.AdultCount = adults
	c.sel.ChildCount = children
	events := c.totalEvents(before)
	c.mu.Unlock()

	c.obs.publish(events...)
	return nil
}

// SetAttractions replaces the selected add-ons.
func (c *Controller) SetAttractions(ids []string) error {
	c.mu.Lock()
	if err := c.guardInput(models.StepAddOns); err != nil {
		c.mu.Unlock()
		return err
	}
	if !c.settings.AttractionsEnabled {
		c.mu.Unlock()
		return ErrAttractionsOff
	}
	for _, id := range ids {
		if _, ok := c.table.Attractions[id]; !ok {
			c.mu.Unlock()
			return invalid(models.StepAddOns, "attractionIds", fmt.Sprintf("unknown attraction %q", id))
		}
	}
	before := c.total()
	c.sel.SetAttractions(ids)
	events := c.totalEvents(before)
	c.mu.Unlock()

	c.obs.publish(events...)
	return nil
}

// SetContact updates the step 4 fields. Contact data never changes the total.
func (c *Controller) SetContact(contact models.Contact) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guardInput(models.StepContactInfo); err != nil {
		return err
	}
	c.sel.Contact = contact
	return nil
}

// Next moves forward when the current step validates. Entering the payment
// step ensures an authorization for the current total; a failed creation is
// reported through the payment state, not as an error here.
func (c *Controller) Next(ctx context.Context) error {
	c.mu.Lock()
	for {
		if err := c.guardNavigation(); err != nil {
			c.mu.Unlock()
			return err
		}
		if c.step == models.StepPayment {
			c.mu.Unlock()
			return ErrLastStep
		}
		step, sel := c.step, c.selection()
		c.mu.Unlock()

		seats := c.seatsFor(ctx, step, sel)

		c.mu.Lock()
		if c.step != step {
			current := c.step
			c.mu.Unlock()
			return &WrongStepError{Current: current, Wanted: step}
		}
		// Seats were read for this departure; re-read if it moved meanwhile.
		if c.sel.Date == sel.Date && c.sel.TimeSlot == sel.TimeSlot {
			if b := c.blocker(c.step, c.sel, c.settings, seats); b != nil {
				c.mu.Unlock()
				return b
			}
			break
		}
	}
	c.step++
	entered := c.step
	total := c.total()
	meta := c.paymentMeta()
	c.mu.Unlock()

	c.logger.Debug("step entered", zap.Stringer("step", entered))
	c.obs.publish(StepEntered{Step: entered, ScrollToTop: true})
	if entered == models.StepPayment {
		c.ensurePayment(ctx, total, meta)
	}
	return nil
}

// Back returns to the previous step. The payment authorization is kept.
func (c *Controller) Back() error {
	c.mu.Lock()
	if err := c.guardNavigation(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.step == models.StepDateTime {
		c.mu.Unlock()
		return ErrFirstStep
	}
	c.step--
	entered := c.step
	c.mu.Unlock()

	c.obs.publish(StepEntered{Step: entered, ScrollToTop: true})
	return nil
}

// RetryPayment is the explicit retry after a failed authorization.
func (c *Controller) RetryPayment(ctx context.Context) (models.PaymentSnapshot, error) {
	c.mu.Lock()
	if err := c.guardInput(models.StepPayment); err != nil {
		c.mu.Unlock()
		return c.deps.Payment.Snapshot(), err
	}
	total := c.total()
	meta := c.paymentMeta()
	c.mu.Unlock()

	return c.deps.Payment.Retry(ctx, total.GrandTotal, meta)
}

// ApplySettings replaces the feature flags. Disabling attractions drops any
// selected add-ons. On the payment step a changed total re-authorizes, the
// same as ApplyPricing.
func (c *Controller) ApplySettings(ctx context.Context, s models.Settings) {
	c.apply(ctx, SettingsApplied{Settings: s}, func() {
		c.settings = s
		if !s.AttractionsEnabled && len(c.sel.AttractionIDs) > 0 && c.result == nil {
			c.sel.AttractionIDs = nil
		}
	})
}

// ApplyPricing replaces the price table. Attractions the new table no longer
// offers are dropped from the selection. On the payment step a changed total
// makes the authorization stale and a new one is created right away.
func (c *Controller) ApplyPricing(ctx context.Context, table models.PriceTable) {
	c.apply(ctx, PricingApplied{Table: table}, func() {
		c.table = table
		if c.result != nil {
			return
		}
		if unknown := pricing.UnknownAttractions(table, c.sel); len(unknown) > 0 {
			c.logger.Warn("dropping attractions no longer offered", zap.Strings("attractions", unknown))
			c.sel.SetAttractions(without(c.sel.AttractionIDs, unknown))
		}
	})
}

// apply runs update under the lock, publishes ev with any total change and
// re-authorizes when the payment step's total moved. The superseded
// authorization stays confirmable.
func (c *Controller) apply(ctx context.Context, ev Event, update func()) {
	c.mu.Lock()
	before := c.total()
	update()
	after := c.total()
	events := append([]Event{ev}, c.totalEvents(before)...)
	reauthorize := c.step == models.StepPayment && !c.submitting && c.result == nil &&
		!after.GrandTotal.Equal(before.GrandTotal)
	meta := c.paymentMeta()
	c.mu.Unlock()

	c.obs.publish(events...)
	if reauthorize {
		c.ensurePayment(ctx, after, meta)
	}
}

// ConfirmPayment handles the client's confirmation outcome for the
// authorization it names. Only a succeeded payment, verified when a verifier
// is set, is submitted. A paid authorization whose amount no longer matches
// the total is not booked; it becomes an unresolved payment for support. A
// finished booking is returned again instead of being resubmitted.
func (c *Controller) ConfirmPayment(ctx context.Context, conf models.PaymentConfirmation) (*models.BookingResult, error) {
	c.mu.Lock()
	if c.result != nil {
		res := c.result
		c.mu.Unlock()
		return res, nil
	}
	if c.unresolved != "" {
		ref := c.unresolved
		c.mu.Unlock()
		return nil, &booking.AmbiguousOutcomeError{PaymentReference: ref, Reason: "an earlier submission is unresolved"}
	}
	if c.submitting {
		c.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	if c.step != models.StepPayment {
		step := c.step
		c.mu.Unlock()
		return nil, &WrongStepError{Current: step, Wanted: models.StepPayment}
	}
	auth, current, ok := c.deps.Payment.Lookup(conf.ProviderIntentID)
	if !ok {
		c.mu.Unlock()
		if conf.ProviderIntentID == "" {
			return nil, payment.ErrNotReady
		}
		return nil, invalid(models.StepPayment, "providerIntentId", "unknown payment reference")
	}
	if conf.Status != models.ConfirmationSucceeded {
		c.mu.Unlock()
		c.logger.Info("payment not completed",
			zap.String("status", string(conf.Status)), zap.String("intent", auth.ProviderIntentID))
		return nil, &payment.ConfirmationError{Status: string(conf.Status), Message: conf.Message}
	}
	total := c.total()
	stale := !auth.Amount.Equal(total.GrandTotal)
	c.submitting = true
	c.inflight = auth.ProviderIntentID
	order := models.NewOrder(c.sel, total, c.rules.opts.Currency, auth.ProviderIntentID)
	c.mu.Unlock()

	c.obs.publish(SubmissionStarted{ProviderIntentID: auth.ProviderIntentID})

	var (
		res *models.BookingResult
		err error
	)
	if stale {
		err = c.strand(ctx, auth, total, current)
	} else {
		res, err = c.submit(ctx, order)
	}

	c.mu.Lock()
	c.submitting = false
	c.inflight = ""
	switch {
	case err == nil:
		c.result = res
		c.sel = models.Selection{}
	case booking.IsAmbiguous(err):
		c.unresolved = auth.ProviderIntentID
	}
	c.mu.Unlock()

	c.obs.publish(SubmissionFinished{Result: res, Err: err})

	var rej *backend.RejectionError
	if errors.As(err, &rej) && availability.IsSeatsRejection(rej.Message) {
		c.fetchAvailability(ctx, order.Date, true)
	}
	return res, err
}

func (c *Controller) submit(ctx context.Context, order models.Order) (*models.BookingResult, error) {
	if err := c.verify(ctx, order.ProviderIntentID); err != nil {
		return nil, err
	}
	return c.deps.Submitter.Submit(ctx, order)
}

// strand handles a succeeded confirmation for an amount other than the
// current total. The money moved but the order it paid for is gone, so the
// payment is handed to support instead of being booked.
func (c *Controller) strand(ctx context.Context, auth models.PaymentAuthorization, total models.PriceBreakdown, current bool) error {
	if err := c.verify(ctx, auth.ProviderIntentID); err != nil {
		return err
	}
	c.logger.Warn("payment confirmed for an outdated total",
		zap.String("intent", auth.ProviderIntentID),
		zap.Bool("current", current),
		zap.String("paid", auth.Amount.StringFixed(2)),
		zap.String("total", total.GrandTotal.StringFixed(2)))
	return &booking.AmbiguousOutcomeError{
		PaymentReference: auth.ProviderIntentID,
		Reason: fmt.Sprintf("payment of %s confirmed but the total is now %s",
			auth.Amount.StringFixed(2), total.GrandTotal.StringFixed(2)),
	}
}

func (c *Controller) verify(ctx context.Context, intentID string) error {
	if c.deps.Verifier == nil {
		return nil
	}
	status, err := c.deps.Verifier.Status(ctx, intentID)
	if err != nil {
		c.logger.Warn("payment verification failed", zap.String("intent", intentID), zap.Error(err))
		return &payment.VerificationError{IntentID: intentID, Err: err}
	}
	if status != string(models.ConfirmationSucceeded) {
		return &payment.ConfirmationError{
			Status:  status,
			Message: "Your payment has not been completed yet. No booking was made.",
		}
	}
	return nil
}

func (c *Controller) ensurePayment(ctx context.Context, total models.PriceBreakdown, meta map[string]string) {
	if _, err := c.deps.Payment.Ensure(ctx, total.GrandTotal, meta); err != nil {
		c.logger.Warn("payment authorization not ready", zap.Error(err))
	}
}

func (c *Controller) fetchAvailability(ctx context.Context, date string, refresh bool) {
	var (
		seats models.SlotSeats
		err   error
	)
	if refresh {
		seats, err = c.deps.Availability.Refresh(ctx, date)
	} else {
		seats, err = c.deps.Availability.Fetch(ctx, date)
	}
	c.obs.publish(AvailabilityUpdated{Date: date, Seats: seats, Err: err})
}

// guardInput must be called with c.mu held.
func (c *Controller) guardInput(step models.Step) error {
	if err := c.guardNavigation(); err != nil {
		return err
	}
	if c.step != step {
		return &WrongStepError{Current: c.step, Wanted: step}
	}
	return nil
}

func (c *Controller) guardNavigation() error {
	switch {
	case c.submitting:
		return ErrSubmissionInFlight
	case c.result != nil:
		return ErrAlreadyBooked
	}
	return nil
}

// blocker runs the step validator against seats left for the departure.
// It does no I/O.
func (c *Controller) blocker(step models.Step, sel models.Selection, settings models.Settings, seats int) *ValidationError {
	if v := c.rules.step(step, sel, settings); v != nil {
		return v
	}
	if step == models.StepPickupAndCount && sel.Passengers() > seats {
		return invalid(models.StepPickupAndCount, "passengers",
			fmt.Sprintf("only %d seats left for this departure", seats))
	}
	return nil
}

// seatsFor reads the seat count the step validator needs. Call it without
// c.mu held.
func (c *Controller) seatsFor(ctx context.Context, step models.Step, sel models.Selection) int {
	if step != models.StepPickupAndCount {
		return 0
	}
	return c.deps.Availability.Get(ctx, sel.Date, sel.TimeSlot)
}

// selection copies c.sel. c.mu must be held.
func (c *Controller) selection() models.Selection {
	sel := c.sel
	sel.AttractionIDs = append([]string(nil), c.sel.AttractionIDs...)
	return sel
}

func (c *Controller) total() models.PriceBreakdown {
	return c.deps.Pricing.ComputeTotal(c.table, c.sel)
}

func (c *Controller) totalEvents(before models.PriceBreakdown) []Event {
	after := c.total()
	if sameTotals(before, after) {
		return nil
	}
	return []Event{TotalChanged{Totals: after}}
}

func (c *Controller) paymentMeta() map[string]string {
	return map[string]string{
		"date":           c.sel.Date,
		"timeSlot":       c.sel.TimeSlot,
		"pickupLocation": c.sel.PickupLocation,
		"adults":         strconv.Itoa(c.sel.AdultCount),
		"children":       strconv.Itoa(c.sel.ChildCount),
		"email":          c.sel.Contact.Email,
	}
}

func without(ids, drop []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(drop, id) {
			out = append(out, id)
		}
	}
	return out
}

func sameTotals(a, b models.PriceBreakdown) bool {
	return a.AdultTotal.Equal(b.AdultTotal) &&
		a.ChildTotal.Equal(b.ChildTotal) &&
		a.GuidedTourTotal.Equal(b.GuidedTourTotal) &&
		a.AttractionsTotal.Equal(b.AttractionsTotal) &&
		a.GrandTotal.Equal(b.GrandTotal)
}
