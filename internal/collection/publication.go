// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package collection

import (
	"context"
	"time"

	"github.com/juju/errors"

	"github.com/juju/livestatus/core/upstream"
	"github.com/juju/livestatus/internal/throttle"
)

// DefaultThrottle is the default minimum interval between two calls of a
// publication's Changed hook.
const DefaultThrottle = 20 * time.Millisecond

// Logger is the logging interface used by publications.
type Logger interface {
	Criticalf(string, ...any)
	Errorf(string, ...any)
	Warningf(string, ...any)
	Debugf(string, ...any)
	Tracef(string, ...any)
}

// Metrics records the outcome of subscription requests.
type Metrics interface {
	SubscriptionResult(publication string, err error)
}

// PublicationConfig holds the dependencies of a Publication.
type PublicationConfig struct {
	// Name identifies the owner in logs and reports.
	Name string
	// Collection is the upstream collection the publication fills.
	Collection string
	// Publication is the upstream publication name.
	Publication string

	Link      upstream.Link
	Scheduler throttle.Scheduler
	Logger    Logger
	// Metrics is optional.
	Metrics Metrics

	// Throttle is the minimum interval between Changed calls caused by
	// document events. Zero means DefaultThrottle.
	Throttle time.Duration

	// Changed recomputes the owner's state from the mirrored collection.
	Changed func()
}

// Validate returns an error if the config cannot create a Publication.
func (config PublicationConfig) Validate() error {
	if config.Name == "" {
		return errors.NotValidf("empty Name")
	}
	if config.Collection == "" {
		return errors.NotValidf("empty Collection")
	}
	if config.Publication == "" {
		return errors.NotValidf("empty Publication")
	}
	if config.Link == nil {
		return errors.NotValidf("nil Link")
	}
	if config.Scheduler == nil {
		return errors.NotValidf("nil Scheduler")
	}
	if config.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	if config.Changed == nil {
		return errors.NotValidf("nil Changed")
	}
	if config.Throttle < 0 {
		return errors.NotValidf("negative Throttle")
	}
	return nil
}

// Publication is a Mirror fed by one upstream subscription. At most one
// subscription is active at a time; changing parameters stops the old one
// before the new one is requested.
type Publication[T any] struct {
	*Mirror[T]

	config   PublicationConfig
	throttle *throttle.Throttle

	// generation increases whenever the current subscription is stopped
	// or replaced. Results and document events from older generations are
	// dropped.
	generation     uint64
	pending        bool
	params         []any
	active         bool
	subscriptionID string
	stopObserver   func()
	cancelSetup    context.CancelFunc
	closed         bool
}

// NewPublication returns a Publication with no subscription.
func NewPublication[T any](config PublicationConfig) (*Publication[T], error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if config.Throttle == 0 {
		config.Throttle = DefaultThrottle
	}
	p := &Publication[T]{
		Mirror: NewMirror[T](config.Name),
		config: config,
	}
	p.throttle = throttle.New(config.Scheduler, config.Throttle, p.throttledChanged)
	return p, nil
}

// CollectionOrFail returns the upstream mirror of the publication's
// collection. An error means the collection was never registered with the
// link, which is a wiring mistake rather than a run time condition.
func (p *Publication[T]) CollectionOrFail() (upstream.Collection, error) {
	coll, err := p.config.Link.Collection(p.config.Collection)
	if err != nil {
		return nil, errors.Annotatef(err, "%s: collection %q not available", p.config.Name, p.config.Collection)
	}
	return coll, nil
}

// Find reads matching documents from the mirrored collection. A missing
// collection is logged as a programming error and reads as empty.
func (p *Publication[T]) Find(selector upstream.Selector) []upstream.Document {
	coll, err := p.CollectionOrFail()
	if err != nil {
		p.config.Logger.Criticalf("programming error: %v", err)
		return nil
	}
	return coll.Find(selector)
}

// FindOne reads a single document from the mirrored collection.
func (p *Publication[T]) FindOne(id string) (upstream.Document, bool) {
	if id == "" {
		return nil, false
	}
	coll, err := p.CollectionOrFail()
	if err != nil {
		p.config.Logger.Criticalf("programming error: %v", err)
		return nil, false
	}
	return coll.FindOne(id)
}

// Pending reports whether a subscription request is in flight.
func (p *Publication[T]) Pending() bool {
	return p.pending
}

// Subscribed reports whether a subscription has been requested and not
// stopped since.
func (p *Publication[T]) Subscribed() bool {
	return p.active
}

// Params returns the parameters of the current subscription.
func (p *Publication[T]) Params() []any {
	return p.params
}

// SetupSubscription replaces any current subscription with one for the
// given parameters. The request runs in the background; once it resolves,
// successfully or not, Changed is called once to reconcile state.
func (p *Publication[T]) SetupSubscription(params ...any) {
	if p.closed {
		return
	}
	p.StopSubscription()

	p.pending = true
	p.active = true
	p.params = params
	gen := p.generation

	ctx, cancel := context.WithCancel(context.Background())
	p.cancelSetup = cancel
	p.config.Logger.Debugf("%s: subscribing to %s%v", p.config.Name, p.config.Publication, params)

	go func() {
		id, err := p.config.Link.Subscribe(ctx, p.config.Publication, params...)
		p.config.Scheduler.Post(func() {
			p.subscribed(gen, id, err)
		})
	}()
}

// Resubscribe repeats the current subscription, if any. It is used after
// the upstream session has been re-established.
func (p *Publication[T]) Resubscribe() {
	if !p.active {
		return
	}
	p.SetupSubscription(p.params...)
}

// StopSubscription unsubscribes and detaches the document observer. Events
// already queued for the old subscription are dropped. It is safe to call
// when there is no subscription.
func (p *Publication[T]) StopSubscription() {
	p.generation++
	p.throttle.Stop()
	p.pending = false
	p.active = false

	if p.cancelSetup != nil {
		p.cancelSetup()
		p.cancelSetup = nil
	}
	if p.stopObserver != nil {
		p.stopObserver()
		p.stopObserver = nil
	}
	if p.subscriptionID != "" {
		if err := p.config.Link.Unsubscribe(p.subscriptionID); err != nil {
			p.config.Logger.Warningf("%s: unsubscribing %s: %v", p.config.Name, p.subscriptionID, err)
		}
		p.subscriptionID = ""
	}
}

// Close stops the subscription for good.
func (p *Publication[T]) Close() {
	p.StopSubscription()
	p.closed = true
}

// Report returns information used in the gateway's introspection report.
func (p *Publication[T]) Report() map[string]any {
	return map[string]any{
		"publication": p.config.Publication,
		"collection":  p.config.Collection,
		"params":      p.params,
		"pending":     p.pending,
		"throttled":   p.throttle.Pending(),
		"subscribed":  p.subscriptionID != "",
		"observers":   p.ObserverCount(),
	}
}

func (p *Publication[T]) subscribed(gen uint64, id string, err error) {
	if gen != p.generation {
		// Superseded while in flight.
		if err == nil {
			if err := p.config.Link.Unsubscribe(id); err != nil {
				p.config.Logger.Warningf("%s: unsubscribing stale %s: %v", p.config.Name, id, err)
			}
		}
		return
	}
	p.cancelSetup = nil
	if p.config.Metrics != nil {
		p.config.Metrics.SubscriptionResult(p.config.Publication, err)
	}

	if err != nil {
		p.config.Logger.Errorf("%s: subscribing to %s%v: %v", p.config.Name, p.config.Publication, p.params, err)
	} else {
		p.subscriptionID = id
		stop, err := p.config.Link.Observe(p.config.Collection, upstream.Observer{
			Added:   func(docID string) { p.documentEvent(gen, "added", docID) },
			Changed: func(docID string) { p.documentEvent(gen, "changed", docID) },
			Removed: func(docID string) { p.documentEvent(gen, "removed", docID) },
		})
		if err != nil {
			p.config.Logger.Criticalf("programming error: %s: observing %q: %v", p.config.Name, p.config.Collection, err)
		} else {
			p.stopObserver = stop
		}
	}

	p.pending = false
	p.config.Changed()
}

// documentEvent is called on the link's goroutine.
func (p *Publication[T]) documentEvent(gen uint64, kind, docID string) {
	p.config.Scheduler.Post(func() {
		if gen != p.generation {
			return
		}
		if p.pending {
			p.config.Logger.Tracef("%s: ignoring %s %q while subscription is pending", p.config.Name, kind, docID)
			return
		}
		p.throttle.Trigger()
	})
}

func (p *Publication[T]) throttledChanged() {
	if p.pending {
		p.config.Logger.Tracef("%s: skipping change while subscription is pending", p.config.Name)
		return
	}
	p.config.Changed()
}

// TriggerChanged schedules a throttled call of Changed, as a document event
// would.
func (p *Publication[T]) TriggerChanged() {
	p.throttle.Trigger()
}
