package bookingclient

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/storefront/libs/slots"
)

type State int

const (
	StateIdle State = iota
	StateDateSelected
	StateSlotSelected
	StateConfirming
	StateSubmitting
	StateSuccess
	StateError
)

func (s State) String() string {
	switch s {
	case StateDateSelected:
		return "date_selected"
	case StateSlotSelected:
		return "slot_selected"
	case StateConfirming:
		return "confirming"
	case StateSubmitting:
		return "submitting"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	default:
		return "idle"
	}
}

var (
	ErrNotSelectable = errors.New("bookingclient: selection not allowed")
	ErrWrongState    = errors.New("bookingclient: action not allowed in current state")
)

// View is a consistent snapshot of the presenter for rendering.
type View struct {
	State   State
	Month   time.Time
	Date    string
	Slot    string
	Notes   string
	Slots   []slots.Annotated
	Loading bool
	Warning string
	// Error is the last commit error, shown verbatim. Nil once a new action starts.
	Error   *CommitError
	Booking *Booking
}

// CalendarDay is one cell of the shown month.
type CalendarDay struct {
	Date       time.Time
	Selectable bool
	Selected   bool
}

type dayState struct {
	gen      uint64
	inflight bool
	// loaded means res holds the latest answer; cached means it came from the primary path and
	// selecting the date again reuses it. Degraded answers are shown but re-resolved.
	loaded bool
	cached bool
	res    Resolution
}

// Presenter drives date and slot selection, confirmation and submission for one product.
// It is safe for concurrent use. Each resolve carries a generation number and a response is
// applied only if no newer resolve for the same date was issued after it.
type Presenter struct {
	session   *BookingSession
	resolver  *Resolver
	committer *Committer
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	state   State
	month   time.Time
	date    time.Time
	hasDate bool
	slot    slots.Clock
	hasSlot bool
	notes   string
	gen     uint64
	days    map[string]*dayState
	lastErr *CommitError
	booking *Booking

	// retryKey is reused when a transient failure is retried with the same selection.
	retryKey   string
	retryMatch string
}

func NewPresenter(session *BookingSession, resolver *Resolver, committer *Committer, logger *slog.Logger) *Presenter {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Presenter{
		session:   session,
		resolver:  resolver,
		committer: committer,
		logger:    logger,
		now:       time.Now,
		days:      make(map[string]*dayState),
	}
	p.month = firstOfMonth(slots.Today(p.now(), session.location()))
	return p
}

func firstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func (p *Presenter) dateKey(t time.Time) string {
	return t.In(p.session.location()).Format(slots.DateLayout)
}

// Session returns the booking session. The presenter never replaces it.
func (p *Presenter) Session() *BookingSession { return p.session }

// SetToken signs the customer in or out.
func (p *Presenter) SetToken(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session.Token = token
}

// DateSelectable reports whether date may be picked right now.
func (p *Presenter) DateSelectable(date time.Time) bool {
	return p.session.Selectable(date, p.now())
}

// SelectDate picks a calendar day and loads its slots unless a clean answer is cached or a
// load is already in flight. Ineligible dates leave the presenter untouched and return ErrNotSelectable.
func (p *Presenter) SelectDate(ctx context.Context, date time.Time) error {
	if !p.DateSelectable(date) {
		return ErrNotSelectable
	}
	loc := p.session.location()
	y, m, d := date.In(loc).Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, loc)
	key := p.dateKey(day)

	p.mu.Lock()
	if p.state == StateSubmitting {
		p.mu.Unlock()
		return ErrWrongState
	}
	if !p.hasDate || p.dateKey(p.date) != key {
		p.hasSlot = false
	}
	p.date, p.hasDate = day, true
	p.state = StateDateSelected
	if p.hasSlot {
		p.state = StateSlotSelected
	}
	p.lastErr = nil
	ds := p.day(key)
	if ds.cached || ds.inflight {
		p.mu.Unlock()
		return nil
	}
	gen := p.issueLocked(ds)
	p.mu.Unlock()

	p.fetch(ctx, key, ds, gen)
	return nil
}

// Refresh re-resolves the selected date, superseding any resolve already in flight for it.
func (p *Presenter) Refresh(ctx context.Context) error {
	p.mu.Lock()
	if !p.hasDate {
		p.mu.Unlock()
		return ErrWrongState
	}
	key := p.dateKey(p.date)
	p.mu.Unlock()
	p.resolve(ctx, key)
	return nil
}

func (p *Presenter) day(key string) *dayState {
	ds, ok := p.days[key]
	if !ok {
		ds = &dayState{}
		p.days[key] = ds
	}
	return ds
}

func (p *Presenter) issueLocked(ds *dayState) uint64 {
	p.gen++
	ds.gen = p.gen
	ds.inflight = true
	return p.gen
}

func (p *Presenter) resolve(ctx context.Context, key string) {
	p.mu.Lock()
	ds := p.day(key)
	gen := p.issueLocked(ds)
	p.mu.Unlock()
	p.fetch(ctx, key, ds, gen)
}

func (p *Presenter) fetch(ctx context.Context, key string, ds *dayState, gen uint64) {
	p.mu.Lock()
	session := *p.session
	p.mu.Unlock()
	res := p.resolver.Resolve(ctx, &session, key)

	p.mu.Lock()
	defer p.mu.Unlock()
	if ds.gen != gen {
		p.logger.Debug("discarding stale slot response", "date", key, "generation", gen, "latest", ds.gen)
		return
	}
	ds.inflight = false
	ds.loaded = true
	ds.cached = !res.Degraded()
	ds.res = res
}

// SelectSlot picks a start time on the selected date. Only slots shown as available can be
// picked.
func (p *Presenter) SelectSlot(start string) error {
	c, err := slots.ParseClock(start)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.state {
	case StateDateSelected, StateSlotSelected, StateSuccess, StateError:
	default:
		return ErrWrongState
	}
	ds := p.days[p.dateKey(p.date)]
	if ds == nil || !ds.loaded {
		return ErrNotSelectable
	}
	for _, s := range ds.res.Slots {
		if s.Start == c {
			if !s.Available {
				return ErrNotSelectable
			}
			p.slot, p.hasSlot = c, true
			p.state = StateSlotSelected
			p.lastErr = nil
			return nil
		}
	}
	return ErrNotSelectable
}

func (p *Presenter) SetNotes(notes string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notes = notes
}

// Confirm moves a selected slot to the confirmation step. Without a signed-in session it
// records a NotAuthenticated error and stays where it is.
func (p *Presenter) Confirm() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.hasSlot || (p.state != StateSlotSelected && p.state != StateError) {
		return ErrWrongState
	}
	if !p.session.Authenticated() {
		p.lastErr = &CommitError{Kind: KindNotAuthenticated, Message: "Sign in to book this slot."}
		return p.lastErr
	}
	p.state = StateConfirming
	p.lastErr = nil
	return nil
}

// Submit commits the confirmed selection. On success the date's slots are re-resolved and the
// slot and notes are cleared while the date stays selected. On failure the selection is kept
// and the error is returned and recorded for display.
func (p *Presenter) Submit(ctx context.Context) (Booking, error) {
	p.mu.Lock()
	if p.state != StateConfirming {
		p.mu.Unlock()
		return Booking{}, ErrWrongState
	}
	p.state = StateSubmitting
	key := p.dateKey(p.date)
	in := Commit{Date: key, StartTime: p.slot.String(), Notes: p.notes}
	match := in.Date + "|" + in.StartTime + "|" + in.Notes
	if p.retryKey == "" || p.retryMatch != match {
		p.retryKey, p.retryMatch = uuid.NewString(), match
	}
	in.IdempotencyKey = p.retryKey
	session := *p.session
	p.mu.Unlock()

	booking, err := p.committer.Commit(ctx, &session, in)

	p.mu.Lock()
	if err != nil {
		var ce *CommitError
		if !errors.As(err, &ce) {
			ce = &CommitError{Kind: KindTransient, Message: err.Error(), Err: err}
		}
		if ce.Kind != KindTransient {
			p.retryKey, p.retryMatch = "", ""
		}
		p.state = StateError
		p.lastErr = ce
		p.mu.Unlock()
		if ce.Kind == KindSlotConflict {
			p.resolve(ctx, key)
		}
		return Booking{}, ce
	}
	p.state = StateSuccess
	p.hasSlot = false
	p.notes = ""
	p.retryKey, p.retryMatch = "", ""
	p.booking = &booking
	p.mu.Unlock()

	p.resolve(ctx, key)
	return booking, nil
}

func (p *Presenter) NextMonth() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.month = p.month.AddDate(0, 1, 0)
}

func (p *Presenter) PrevMonth() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.month = p.month.AddDate(0, -1, 0)
}

// CalendarDays lists the days of the shown month with their selectability.
func (p *Presenter) CalendarDays() []CalendarDay {
	p.mu.Lock()
	month := p.month
	selected := ""
	if p.hasDate {
		selected = p.dateKey(p.date)
	}
	p.mu.Unlock()

	now := p.now()
	var out []CalendarDay
	for d := month; d.Month() == month.Month(); d = d.AddDate(0, 0, 1) {
		out = append(out, CalendarDay{
			Date:       d,
			Selectable: p.session.Selectable(d, now),
			Selected:   p.dateKey(d) == selected,
		})
	}
	return out
}

func (p *Presenter) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	v := View{State: p.state, Month: p.month, Notes: p.notes, Error: p.lastErr, Booking: p.booking}
	if p.hasDate {
		v.Date = p.dateKey(p.date)
		if ds := p.days[v.Date]; ds != nil {
			v.Loading = ds.inflight
			if ds.loaded {
				v.Slots = append([]slots.Annotated(nil), ds.res.Slots...)
				v.Warning = ds.res.Warning
			}
		}
	}
	if p.hasSlot {
		v.Slot = p.slot.String()
	}
	return v
}
