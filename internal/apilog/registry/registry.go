// Package registry subscribes to the request and response hooks of every API
// operation and fans each occurrence out to the sinks bound to its event.
package registry

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/edgecomet/apilog/internal/apilog/api"
	"github.com/edgecomet/apilog/internal/apilog/events"
	"github.com/edgecomet/apilog/internal/apilog/metrics"
	"github.com/edgecomet/apilog/internal/common/configtypes"
	"github.com/edgecomet/apilog/internal/common/logger"
	"github.com/edgecomet/apilog/pkg/pattern"
)

// DefaultContext is the logging context used when none is configured
const DefaultContext = configtypes.DefaultEventContext

// Binding names used for the sinks of a SinkSet
const (
	SinkConsole = "console"
	SinkDisc    = "disc"
	SinkNetwork = "network"
	SinkStream  = "stream"
)

// ErrUnknownEvent is returned when a sink is bound to an event name that is not registered
var ErrUnknownEvent = errors.New("unknown event")

// Config locates the default disc sink and names its files
type Config struct {
	Path      string
	Context   string
	FileNamer events.FileNamer
	Template  string
	Rotation  configtypes.RotationConfig

	// ConsoleLogger backs the default console sink; nil writes to stdout
	ConsoleLogger *zap.Logger
}

// SinkSet is one optional sink per target. Nil members are skipped; a typed
// nil pointer is rejected.
type SinkSet struct {
	Console events.Sink
	Disc    events.Sink
	Network events.Sink
	Stream  events.Sink
}

func (s SinkSet) bindings(prefix string) ([]binding, error) {
	var out []binding
	for _, b := range []binding{
		{name: SinkConsole, sink: s.Console},
		{name: SinkDisc, sink: s.Disc},
		{name: SinkNetwork, sink: s.Network},
		{name: SinkStream, sink: s.Stream},
	} {
		if b.sink == nil {
			continue
		}
		b.name = prefix + b.name
		if isNilSink(b.sink) {
			return nil, fmt.Errorf("%w: nil sink %q", events.ErrInvalidConfiguration, b.name)
		}
		out = append(out, b)
	}
	return out, nil
}

// isNilSink catches nil interfaces and interfaces holding a nil pointer
func isNilSink(s events.Sink) bool {
	if s == nil {
		return true
	}
	v := reflect.ValueOf(s)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// NamedSink is a sink bound under an explicit name
type NamedSink struct {
	Name string
	Sink events.Sink
}

// Options selects sinks. PerEvent overrides the direction SinkSet for the
// named events; an event with neither gets the default console and disc sinks
// unless NoDefaults is set. Errors receives response events with status >= 400
// after their regular sinks. Events matching an Exclude pattern only reach
// their PerEvent sinks.
type Options struct {
	Requests   SinkSet
	Responses  SinkSet
	Errors     SinkSet
	PerEvent   map[string][]NamedSink
	Exclude    []string
	NoDefaults bool
}

type binding struct {
	name string
	sink events.Sink
}

// Registry is the API event log. It owns every sink bound to it and closes
// them on Close.
type Registry struct {
	context     string
	descriptors []events.Descriptor
	index       map[string]int
	metrics     *metrics.Metrics
	logger      *zap.Logger

	mu            sync.RWMutex
	subscriptions []*subscription
	bindings      map[string][]binding
	errorSinks    []binding
	excluded      map[string]bool
	owned         []events.Sink
	closed        bool
}

// New registers a request and a response event for every API operation,
// binds their sinks and attaches to the API hooks. m may be nil.
// Sinks passed in opts are owned by the registry once New succeeds.
func New(apiObj *api.API, cfg Config, opts Options, m *metrics.Metrics, log *zap.Logger) (*Registry, error) {
	if apiObj == nil {
		return nil, fmt.Errorf("%w: api is required", events.ErrInvalidConfiguration)
	}
	if log == nil {
		log = zap.NewNop()
	}

	logContext := cfg.Context
	if logContext == "" {
		logContext = DefaultContext
	}

	r := &Registry{
		context:  logContext,
		index:    make(map[string]int),
		metrics:  m,
		logger:   log,
		bindings: make(map[string][]binding),
		excluded: make(map[string]bool),
	}

	for _, row := range eventTable {
		reqDesc := events.NewDescriptor(row.name+TagRequest, events.DirectionRequest, eventTags(row, TagRequest)...)
		respDesc := events.NewDescriptor(row.name+TagResponse, events.DirectionResponse, eventTags(row, TagResponse)...)

		for _, desc := range []events.Descriptor{reqDesc, respDesc} {
			if err := r.register(desc); err != nil {
				return nil, err
			}
		}

		r.subscriptions = append(r.subscriptions,
			r.requestSubscription(apiObj, row.op, reqDesc),
			r.responseSubscription(apiObj, row.op, respDesc))
	}

	if err := r.bindAll(cfg, opts); err != nil {
		return nil, err
	}

	for _, sub := range r.subscriptions {
		sub.attach()
	}

	log.Info("Event log registry initialized",
		zap.String("context", logContext),
		zap.Int("events", len(r.descriptors)),
		zap.Int("sinks", len(r.owned)))

	return r, nil
}

func (r *Registry) register(desc events.Descriptor) error {
	if _, exists := r.index[desc.Name()]; exists {
		return fmt.Errorf("%w: event %s registered twice", events.ErrInvalidConfiguration, desc.Name())
	}
	r.index[desc.Name()] = len(r.descriptors)
	r.descriptors = append(r.descriptors, desc)
	return nil
}

func (r *Registry) bindAll(cfg Config, opts Options) error {
	for name, sinks := range opts.PerEvent {
		if _, ok := r.index[name]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownEvent, name)
		}
		for _, ns := range sinks {
			if isNilSink(ns.Sink) {
				return fmt.Errorf("%w: nil sink %q for %s", events.ErrInvalidConfiguration, ns.Name, name)
			}
		}
	}

	exclude, err := pattern.CompileAll(opts.Exclude)
	if err != nil {
		return fmt.Errorf("%w: exclude: %v", events.ErrInvalidConfiguration, err)
	}

	requests, err := opts.Requests.bindings("")
	if err != nil {
		return err
	}
	responses, err := opts.Responses.bindings("")
	if err != nil {
		return err
	}
	if r.errorSinks, err = opts.Errors.bindings("errors-"); err != nil {
		return err
	}

	// Owned even when exclusions or overrides leave them unbound
	for _, set := range [][]binding{requests, responses, r.errorSinks} {
		for _, b := range set {
			r.own(b.sink)
		}
	}

	defaults := &defaultSinks{cfg: cfg, context: r.context, logger: r.logger}

	for _, desc := range r.descriptors {
		var bound []binding
		for _, ns := range opts.PerEvent[desc.Name()] {
			bound = append(bound, binding{name: ns.Name, sink: ns.Sink})
		}

		excluded := exclude.MatchAny(desc.Name())
		if excluded {
			r.excluded[desc.Name()] = true
		}

		if len(bound) == 0 && !excluded {
			if desc.Direction() == events.DirectionRequest {
				bound = append(bound, requests...)
			} else {
				bound = append(bound, responses...)
			}
		}

		if len(bound) == 0 && !excluded && !opts.NoDefaults {
			if bound, err = defaults.bindings(); err != nil {
				return err
			}
		}

		for _, b := range bound {
			r.own(b.sink)
		}
		r.bindings[desc.Name()] = bound
	}

	return nil
}

// own records s for Close. Sinks bound to several events are closed once.
func (r *Registry) own(s events.Sink) {
	if reflect.TypeOf(s).Comparable() {
		for _, o := range r.owned {
			if o == s {
				return
			}
		}
	}
	r.owned = append(r.owned, s)
}

// defaultSinks creates the default console and disc sinks on first use
type defaultSinks struct {
	cfg     Config
	context string
	logger  *zap.Logger
	created []binding
}

func (d *defaultSinks) bindings() ([]binding, error) {
	if d.created != nil {
		return d.created, nil
	}

	consoleLogger := d.cfg.ConsoleLogger
	if consoleLogger == nil {
		consoleLogger = logger.NewEventConsoleLogger(configtypes.LogFormatConsole)
	}

	disc, err := events.NewFileSink(events.FileSinkConfig{
		Dir:      d.cfg.Path,
		Context:  d.context,
		Template: d.cfg.Template,
		Namer:    d.cfg.FileNamer,
		Rotation: d.cfg.Rotation,
	}, d.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create default disc sink: %w", err)
	}

	d.created = []binding{
		{name: SinkConsole, sink: events.NewConsoleSink(consoleLogger)},
		{name: SinkDisc, sink: disc},
	}
	return d.created, nil
}

func (r *Registry) requestSubscription(apiObj *api.API, op api.Operation, desc events.Descriptor) *subscription {
	hook := apiObj.OnRequest(op)
	return newSubscription(hook.Name(), func() func() {
		sub := hook.Subscribe(func(ts time.Time, req *events.Request) {
			r.dispatch(events.NewRequestEvent(desc, r.context, ts, req))
		})
		return sub.Unsubscribe
	})
}

func (r *Registry) responseSubscription(apiObj *api.API, op api.Operation, desc events.Descriptor) *subscription {
	hook := apiObj.OnResponse(op)
	return newSubscription(hook.Name(), func() func() {
		sub := hook.Subscribe(func(ts time.Time, req *events.Request, resp *events.Response, duration time.Duration) {
			if r.metrics != nil && resp != nil {
				r.metrics.RecordResponse(op.String(), resp.StatusCode)
			}
			r.dispatch(events.NewResponseEvent(desc, r.context, ts, req, resp, duration))
		})
		return sub.Unsubscribe
	})
}

// dispatch delivers event to its bindings in order, then to the error sinks
// when the event is a failed response. No lock is held while sinks run.
func (r *Registry) dispatch(event *events.Event) {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return
	}
	bound := r.bindings[event.Name]
	var errorSinks []binding
	if event.IsError() && !r.excluded[event.Name] {
		errorSinks = r.errorSinks
	}
	r.mu.RUnlock()

	start := time.Now()
	for _, b := range bound {
		r.deliver(b, event)
	}
	for _, b := range errorSinks {
		r.deliver(b, event)
	}

	if r.metrics != nil {
		r.metrics.RecordDispatch(event.Name, event.Direction.String(), time.Since(start))
	}
}

func (r *Registry) deliver(b binding, event *events.Event) {
	if err := emit(b, event); err != nil {
		r.logger.Warn("Event sink delivery failed",
			zap.String("event", event.Name),
			zap.String("sink", b.name),
			zap.String("request_id", event.RequestID()),
			zap.Error(err))
		if r.metrics != nil {
			r.metrics.RecordFailure(event.Name, b.name)
		}
		return
	}

	if r.metrics != nil {
		r.metrics.RecordDelivery(event.Name, b.name)
	}
}

// emit converts sink errors and panics into *events.SinkDeliveryError
func emit(b binding, event *events.Event) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &events.SinkDeliveryError{Sink: b.name, Event: event.Name, Err: fmt.Errorf("panic: %v", rec)}
		}
	}()

	if emitErr := b.sink.Emit(event); emitErr != nil {
		return &events.SinkDeliveryError{Sink: b.name, Event: event.Name, Err: emitErr}
	}
	return nil
}

// AddSink appends a binding to eventName. Bindings never replace each other.
func (r *Registry) AddSink(eventName, name string, sink events.Sink) error {
	if isNilSink(sink) {
		return fmt.Errorf("%w: nil sink %q", events.ErrInvalidConfiguration, name)
	}
	if _, ok := r.index[eventName]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEvent, eventName)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return events.ErrSinkClosed
	}

	// Copy so a dispatch already holding the old slice is unaffected
	current := r.bindings[eventName]
	next := make([]binding, len(current), len(current)+1)
	copy(next, current)
	r.bindings[eventName] = append(next, binding{name: name, sink: sink})
	r.own(sink)

	r.logger.Debug("Sink bound",
		zap.String("event", eventName),
		zap.String("sink", name))
	return nil
}

// Descriptors returns every registered event in registration order
func (r *Registry) Descriptors() []events.Descriptor {
	return append([]events.Descriptor(nil), r.descriptors...)
}

// Descriptor looks a registered event up by name
func (r *Registry) Descriptor(name string) (events.Descriptor, bool) {
	i, ok := r.index[name]
	if !ok {
		return events.Descriptor{}, false
	}
	return r.descriptors[i], true
}

// Bindings returns the sink names bound to eventName in delivery order
func (r *Registry) Bindings(eventName string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bound := r.bindings[eventName]
	names := make([]string, len(bound))
	for i, b := range bound {
		names[i] = b.name
	}
	return names
}

// Context returns the logging context stamped on every event
func (r *Registry) Context() string {
	return r.context
}

// Close detaches from the API in reverse registration order, then closes
// every owned sink. Calling Close again is a no-op.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	subs := r.subscriptions
	r.mu.Unlock()

	for i := len(subs) - 1; i >= 0; i-- {
		subs[i].detach()
	}

	err := r.closeOwned()
	r.logger.Info("Event log registry closed", zap.Int("subscriptions", len(subs)))
	return err
}

func (r *Registry) closeOwned() error {
	var errs []error
	for _, s := range r.owned {
		if err := closeSink(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// closeSink converts a panicking Close into an error so the remaining sinks still close
func closeSink(s events.Sink) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("close %T: panic: %v", s, rec)
		}
	}()
	return s.Close()
}
