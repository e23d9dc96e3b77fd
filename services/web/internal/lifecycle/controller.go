// Package lifecycle drives the signed-in user's review of one coffee through
// loading, creating, editing and deleting.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/jbytow/coffeetica/services/web/internal/domain"
	"github.com/jbytow/coffeetica/services/web/internal/form"
	"github.com/jbytow/coffeetica/services/web/internal/session"
)

var (
	// ErrMutationInFlight is returned when a create, update or delete is
	// requested while another one has not finished.
	ErrMutationInFlight = errors.New("another review change is in progress")
	// ErrInvalidState is returned for actions the current state does not offer.
	ErrInvalidState = errors.New("action not available in current state")
	// ErrNotPermitted is returned when the signed-in user may not modify the
	// held review.
	ErrNotPermitted = errors.New("only the author or an administrator may change this review")
	// ErrNoSubject is returned by Reload before any coffee was opened.
	ErrNoSubject = errors.New("no coffee opened")
)

// State is the lifecycle state of the user's review.
type State int

const (
	StateUnauthenticated State = iota
	// StateLoading is a fetch in flight, or, with no coffee opened yet, a
	// signed-in user waiting for Open. Neither offers any action.
	StateLoading
	StateNoReview
	StateViewing
	StateEditing
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateLoading:
		return "loading"
	case StateNoReview:
		return "no_review"
	case StateViewing:
		return "viewing"
	case StateEditing:
		return "editing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Capability is what an action requires of the signed-in user.
type Capability int

const (
	// CapCreateReview requires a signed-in user.
	CapCreateReview Capability = iota + 1
	// CapModifyReview requires the author of the held review or an
	// administrator.
	CapModifyReview
)

// Repository is the subset of the review API the controller uses.
type Repository interface {
	FetchMine(ctx context.Context, coffeeID int64) (*domain.Review, error)
	Create(ctx context.Context, in domain.ReviewInput) (*domain.Review, error)
	Update(ctx context.Context, reviewID int64, in domain.ReviewInput) (*domain.Review, error)
	Delete(ctx context.Context, reviewID int64) error
}

// Snapshot is an immutable view of the controller.
type Snapshot struct {
	State    State
	CoffeeID int64
	// Review is the held review in Viewing and Editing, nil otherwise.
	Review *domain.Review
	// Form is the draft pre-fill: blank in NoReview, the held review in
	// Editing, the last rejected draft after a validation failure.
	Form        form.Values
	Inline      string
	FieldErrors map[string]string
	// Banner is a dismissible failure message.
	Banner    string
	Busy      bool
	CanModify bool
}

// Controller is safe for concurrent use. Network calls run without holding
// its lock; a result is applied only if no Open, Reload or sign-out happened
// since the call started.
type Controller struct {
	session  session.Provider
	repo     Repository
	logger   *slog.Logger
	onChange func(Snapshot)
	baseCtx  context.Context
	cancel   func()

	mu        sync.Mutex
	state     State
	coffeeID  int64
	gen       uint64
	review    *domain.Review
	draft     form.Values
	inline    string
	fieldErrs map[string]string
	banner    string
	mutating  bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithOnChange registers an observer for every new snapshot. It is called
// outside the controller lock and may call Snapshot.
func WithOnChange(fn func(Snapshot)) Option {
	return func(c *Controller) { c.onChange = fn }
}

// WithContext sets the context for fetches triggered by sign-in.
func WithContext(ctx context.Context) Option {
	return func(c *Controller) { c.baseCtx = ctx }
}

// New creates a controller and subscribes it to sess. Call Close to
// unsubscribe. Nothing is fetched until Open.
func New(sess session.Provider, repo Repository, logger *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		session: sess,
		repo:    repo,
		logger:  logger,
		baseCtx: context.Background(),
		state:   StateUnauthenticated,
	}
	for _, opt := range opts {
		opt(c)
	}
	if sess.IsAuthenticated() {
		c.state = StateLoading
	}
	c.cancel = sess.Subscribe(c.onSession)
	return c
}

// Close stops following the session.
func (c *Controller) Close() {
	c.cancel()
}

// Open makes coffeeID the subject and loads the user's review of it. An
// absent review is not an error.
func (c *Controller) Open(ctx context.Context, coffeeID int64) error {
	if coffeeID <= 0 {
		return fmt.Errorf("open coffee %d: invalid id", coffeeID)
	}
	c.mu.Lock()
	c.coffeeID = coffeeID
	return c.restartLocked(ctx)
}

// Reload fetches the review of the current coffee again, dropping any draft.
func (c *Controller) Reload(ctx context.Context) error {
	c.mu.Lock()
	if c.coffeeID == 0 {
		c.mu.Unlock()
		return ErrNoSubject
	}
	return c.restartLocked(ctx)
}

// restartLocked begins a new generation for the current coffee and fetches.
// It releases the lock.
func (c *Controller) restartLocked(ctx context.Context) error {
	c.gen++
	c.review = nil
	c.draft = form.NewEmpty()
	c.clearMessagesLocked()
	c.banner = ""

	if !c.session.IsAuthenticated() {
		c.setStateLocked(StateUnauthenticated)
		c.unlockAndEmit()
		return nil
	}
	c.setStateLocked(StateLoading)
	coffeeID, gen := c.coffeeID, c.gen
	c.unlockAndEmit()

	return c.fetch(ctx, coffeeID, gen)
}

func (c *Controller) fetch(ctx context.Context, coffeeID int64, gen uint64) error {
	r, err := c.repo.FetchMine(ctx, coffeeID)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		c.logger.Debug("discarding superseded review fetch",
			slog.Int64("coffee_id", coffeeID),
			slog.Uint64("generation", gen),
		)
		return nil
	}

	switch {
	case err == nil:
		c.review = r
		c.setStateLocked(StateViewing)
	case errors.Is(err, domain.ErrNotFound):
		c.setStateLocked(StateNoReview)
		err = nil
	case errors.Is(err, domain.ErrAuth):
		c.signedOutLocked()
	default:
		c.failLocked("fetch review", err)
	}
	c.unlockAndEmit()
	return err
}

// Create submits values as a new review of the current coffee. Available in
// NoReview only.
func (c *Controller) Create(ctx context.Context, values form.Values) error {
	c.mu.Lock()
	if err := c.guardLocked(CapCreateReview, StateNoReview); err != nil {
		c.unlockAndEmit()
		return err
	}
	if err := c.validateLocked(values); err != nil {
		c.unlockAndEmit()
		return err
	}
	c.mutating = true
	gen, coffeeID := c.gen, c.coffeeID
	c.unlockAndEmit()

	r, err := c.repo.Create(ctx, values.Input(coffeeID))

	c.mu.Lock()
	c.mutating = false
	if gen != c.gen {
		c.unlockSuperseded("create")
		return err
	}

	resync := false
	switch {
	case err == nil:
		c.review = r
		c.draft = form.NewEmpty()
		c.setStateLocked(StateViewing)
	case errors.Is(err, domain.ErrValidation):
		c.rejectedLocked(err)
	case errors.Is(err, domain.ErrConflict):
		// The backend already holds a review for this user and coffee.
		c.gen++
		gen = c.gen
		c.draft = form.NewEmpty()
		c.setStateLocked(StateLoading)
		resync = true
	case errors.Is(err, domain.ErrForbidden):
		c.draft = values
		c.deniedLocked("create", err)
	case errors.Is(err, domain.ErrAuth):
		c.signedOutLocked()
	default:
		c.failLocked("create review", err)
	}
	c.unlockAndEmit()

	if resync {
		if ferr := c.fetch(ctx, coffeeID, gen); ferr != nil {
			return errors.Join(err, ferr)
		}
	}
	return err
}

// BeginEdit switches from Viewing to Editing with the form pre-filled.
func (c *Controller) BeginEdit() error {
	c.mu.Lock()
	if err := c.guardLocked(CapModifyReview, StateViewing); err != nil {
		c.unlockAndEmit()
		return err
	}
	c.draft = form.FromReview(c.review)
	c.setStateLocked(StateEditing)
	c.unlockAndEmit()
	return nil
}

// CancelEdit abandons the draft and returns to Viewing.
func (c *Controller) CancelEdit() error {
	c.mu.Lock()
	switch {
	case c.mutating:
		c.mu.Unlock()
		return ErrMutationInFlight
	case c.state != StateEditing:
		c.mu.Unlock()
		return fmt.Errorf("%w: cancel edit in %s", ErrInvalidState, c.state)
	}
	c.draft = form.NewEmpty()
	c.clearMessagesLocked()
	c.setStateLocked(StateViewing)
	c.unlockAndEmit()
	return nil
}

// Update saves values over the held review. Available in Editing only.
func (c *Controller) Update(ctx context.Context, values form.Values) error {
	c.mu.Lock()
	if err := c.guardLocked(CapModifyReview, StateEditing); err != nil {
		c.unlockAndEmit()
		return err
	}
	if err := c.validateLocked(values); err != nil {
		c.unlockAndEmit()
		return err
	}
	c.mutating = true
	gen, reviewID, coffeeID := c.gen, c.review.ID, c.review.CoffeeID
	c.unlockAndEmit()

	r, err := c.repo.Update(ctx, reviewID, values.Input(coffeeID))

	c.mu.Lock()
	c.mutating = false
	if gen != c.gen {
		c.unlockSuperseded("update")
		return err
	}

	switch {
	case err == nil:
		c.review = r
		c.draft = form.NewEmpty()
		c.setStateLocked(StateViewing)
	case errors.Is(err, domain.ErrValidation):
		c.rejectedLocked(err)
	case errors.Is(err, domain.ErrNotFound):
		c.goneLocked()
	case errors.Is(err, domain.ErrForbidden):
		c.draft = values
		c.deniedLocked("update", err)
	case errors.Is(err, domain.ErrAuth):
		c.signedOutLocked()
	default:
		c.failLocked("update review", err)
	}
	c.unlockAndEmit()
	return err
}

// Delete removes the held review. Available in Viewing only.
func (c *Controller) Delete(ctx context.Context) error {
	c.mu.Lock()
	if err := c.guardLocked(CapModifyReview, StateViewing); err != nil {
		c.unlockAndEmit()
		return err
	}
	c.mutating = true
	gen, reviewID := c.gen, c.review.ID
	c.unlockAndEmit()

	err := c.repo.Delete(ctx, reviewID)

	c.mu.Lock()
	c.mutating = false
	if gen != c.gen {
		c.unlockSuperseded("delete")
		return err
	}

	switch {
	case err == nil, errors.Is(err, domain.ErrNotFound):
		c.goneLocked()
		err = nil
	case errors.Is(err, domain.ErrForbidden):
		c.deniedLocked("delete", err)
	case errors.Is(err, domain.ErrAuth):
		c.signedOutLocked()
	default:
		c.failLocked("delete review", err)
	}
	c.unlockAndEmit()
	return err
}

// DismissError clears the banner.
func (c *Controller) DismissError() {
	c.mu.Lock()
	c.banner = ""
	c.unlockAndEmit()
}

// Snapshot returns the current view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// guardLocked admits an action: nothing in flight, a signed-in user, a state
// that offers the action and the capability it needs. Stale messages are
// cleared on success.
func (c *Controller) guardLocked(capability Capability, allowed ...State) error {
	if c.mutating {
		return ErrMutationInFlight
	}
	if !c.session.IsAuthenticated() {
		c.signedOutLocked()
		return &domain.AuthError{Err: domain.ErrNoCredential}
	}
	if !slices.Contains(allowed, c.state) {
		return fmt.Errorf("%w: %s", ErrInvalidState, c.state)
	}
	if err := c.permitsLocked(capability); err != nil {
		c.inline = err.Error()
		return err
	}
	c.clearMessagesLocked()
	return nil
}

func (c *Controller) permitsLocked(capability Capability) error {
	user := c.session.CurrentUser()
	if user == nil {
		return &domain.AuthError{Err: domain.ErrNoCredential}
	}
	switch capability {
	case CapCreateReview:
		return nil
	case CapModifyReview:
		if c.review != nil && (c.review.UserID == user.UserID || user.IsAdmin()) {
			return nil
		}
		return ErrNotPermitted
	default:
		return fmt.Errorf("unknown capability %d", capability)
	}
}

// validateLocked checks a draft before it is sent. A rejected draft is kept
// for the form.
func (c *Controller) validateLocked(values form.Values) error {
	if err := values.Validate(); err != nil {
		c.draft = values
		c.rejectedLocked(err)
		return err
	}
	return nil
}

func (c *Controller) rejectedLocked(err error) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		c.inline = ve.Message
		if c.inline == "" {
			c.inline = domain.ErrValidation.Error()
		}
		c.fieldErrs = maps.Clone(ve.Fields)
		return
	}
	c.inline = err.Error()
}

// goneLocked handles a review that no longer exists on the backend.
func (c *Controller) goneLocked() {
	c.review = nil
	c.draft = form.NewEmpty()
	c.setStateLocked(StateNoReview)
}

// deniedLocked reports a refusal by the backend the same way as a refused
// capability. The session, state and held review are untouched.
func (c *Controller) deniedLocked(op string, err error) {
	c.logger.Info("review change refused",
		slog.String("op", op),
		slog.Int64("coffee_id", c.coffeeID),
		slog.String("error", err.Error()),
	)
	c.inline = ErrNotPermitted.Error()
}

func (c *Controller) signedOutLocked() {
	c.review = nil
	c.draft = form.NewEmpty()
	c.clearMessagesLocked()
	c.setStateLocked(StateUnauthenticated)
}

func (c *Controller) failLocked(op string, err error) {
	c.logger.Warn("review operation failed",
		slog.String("op", op),
		slog.Int64("coffee_id", c.coffeeID),
		slog.String("kind", domain.KindOf(err).String()),
		slog.String("error", err.Error()),
	)
	c.banner = bannerFor(err)
}

func (c *Controller) clearMessagesLocked() {
	c.inline = ""
	c.fieldErrs = nil
}

func (c *Controller) setStateLocked(s State) {
	if c.state != s {
		c.logger.Debug("review state change",
			slog.Int64("coffee_id", c.coffeeID),
			slog.String("from", c.state.String()),
			slog.String("to", s.String()),
		)
	}
	c.state = s
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:       c.state,
		CoffeeID:    c.coffeeID,
		Form:        c.draft,
		Inline:      c.inline,
		FieldErrors: maps.Clone(c.fieldErrs),
		Banner:      c.banner,
		Busy:        c.mutating,
	}
	if c.review != nil {
		r := *c.review
		snap.Review = &r
		snap.CanModify = c.permitsLocked(CapModifyReview) == nil
	}
	return snap
}

func (c *Controller) unlockAndEmit() {
	snap := c.snapshotLocked()
	c.mu.Unlock()
	if c.onChange != nil {
		c.onChange(snap)
	}
}

// unlockSuperseded drops the result of a mutation that outlived its
// generation. Only the in-flight flag has changed.
func (c *Controller) unlockSuperseded(op string) {
	c.logger.Debug("discarding superseded review result", slog.String("op", op))
	c.unlockAndEmit()
}

func (c *Controller) onSession(ev session.Event) {
	if ev.Authenticated {
		c.mu.Lock()
		opened := c.coffeeID != 0
		c.mu.Unlock()
		if opened {
			// Failures are already on the banner.
			_ = c.Reload(c.baseCtx)
		}
		return
	}

	c.mu.Lock()
	c.gen++
	c.banner = ""
	c.signedOutLocked()
	c.unlockAndEmit()
}

func bannerFor(err error) string {
	switch domain.KindOf(err) {
	case domain.KindTransient:
		return "The review service is unavailable right now. Please try again."
	case domain.KindNotFound:
		return "This coffee is no longer available."
	case domain.KindForbidden:
		return "You are not allowed to see this review."
	default:
		return "Something went wrong: " + err.Error()
	}
}
