package collector

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/obsidianstack/kdp-exporter/exporter/internal/catalog"
	"github.com/obsidianstack/kdp-exporter/exporter/internal/kdp"
)

// Anomaly list paging is fixed: one page of up to 1000 records.
const (
	anomalyLimit  = 1000
	anomalyOffset = 0
)

// API is the subset of the KDP gateway a scrape uses. *kdp.Client implements it.
type API interface {
	Ping(ctx context.Context) kdp.Outcome[bool]
	APIVersion(ctx context.Context) kdp.Outcome[kdp.APIVersion]
	ResourceList(ctx context.Context, locale uint32) kdp.Outcome[[]kdp.Resource]
	ProtocolRatio(ctx context.Context, locale, resourceID uint32, w kdp.Window) kdp.Outcome[[]kdp.ProtocolPoint]
	GeoRatio(ctx context.Context, locale, resourceID uint32) kdp.Outcome[[]kdp.GeoRatio]
	NewIPBlocks(ctx context.Context, resourceID uint32, w kdp.Window) kdp.Outcome[[]kdp.IPBlockCount]
	MeasuredParameterList(ctx context.Context, locale, resourceID uint32) kdp.Outcome[[]kdp.ParameterDefinition]
	MeasuredParameterData(ctx context.Context, resourceID uint32, w kdp.Window) kdp.Outcome[[]kdp.DataPoint]
	AnomalyList(ctx context.Context, locale, resourceID uint32, w kdp.Window, limit, offset int) kdp.Outcome[[]kdp.Anomaly]
	ActiveAttacks(ctx context.Context, locale uint32) kdp.Outcome[[]kdp.Attack]
}

// Recorder receives scrape-level observations.
type Recorder interface {
	ObservePing(ok bool)
	ObserveScrape(elapsed time.Duration, failedSteps int)
}

type nopRecorder struct{}

func (nopRecorder) ObservePing(bool)                 {}
func (nopRecorder) ObserveScrape(time.Duration, int) {}

// Settings are the scrape parameters that may change on config reload.
type Settings struct {
	ResourceName string
	LocaleID     uint32
}

// StepResult is the outcome of one scrape step.
type StepResult struct {
	Step string
	Kind string
	Err  error
}

// Result is everything one scrape produced.
type Result struct {
	ID         string
	Set        *catalog.Set
	Steps      []StepResult
	Resource   string
	ResourceID uint32
	Resolved   bool
	Started    time.Time
	Elapsed    time.Duration
}

// Failed returns the number of steps that did not complete successfully,
// skipped steps included.
func (r *Result) Failed() int {
	n := 0
	for _, s := range r.Steps {
		if s.Err != nil {
			n++
		}
	}
	return n
}

// Status is the collector state reported by the health endpoint.
type Status struct {
	Resource    string    `json:"resource"`
	ResourceID  uint32    `json:"resource_id"`
	Resolved    bool      `json:"resolved"`
	LastScrape  time.Time `json:"last_scrape"`
	FailedSteps int       `json:"failed_steps"`
}

// Collector runs scrapes against the KDP API.
//
// Scrape may be called concurrently; every call builds its own Set.
type Collector struct {
	api    API
	cache  *kdp.ResourceCache
	rec    Recorder
	logger *slog.Logger
	now    func() time.Time // injectable for deterministic tests

	mu       sync.RWMutex
	settings Settings
	last     *Result
}

// New returns a Collector. rec may be nil.
func New(api API, cache *kdp.ResourceCache, rec Recorder, logger *slog.Logger, s Settings) *Collector {
	if rec == nil {
		rec = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		api:      api,
		cache:    cache,
		rec:      rec,
		logger:   logger.With("component", "collector"),
		now:      time.Now,
		settings: s,
	}
}

// Settings returns the active scrape settings.
func (c *Collector) Settings() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

// Reload swaps the scrape settings. A renamed resource drops the cached id
// of the previous one.
func (c *Collector) Reload(s Settings) {
	c.mu.Lock()
	old := c.settings
	c.settings = s
	c.mu.Unlock()

	if old.ResourceName != s.ResourceName {
		c.cache.Forget(old.ResourceName)
	}
	c.logger.Info("scrape settings reloaded",
		"resource", s.ResourceName,
		"locale_id", s.LocaleID,
	)
}

// Status reports the resolution state of the last scrape and its summary.
// Before the first scrape of the configured resource the cache is consulted.
func (c *Collector) Status() Status {
	c.mu.RLock()
	st := Status{Resource: c.settings.ResourceName}
	last := c.last
	c.mu.RUnlock()

	if last == nil {
		st.ResourceID, st.Resolved = c.cache.Get(st.Resource)
		return st
	}
	if last.Resource == st.Resource {
		st.ResourceID, st.Resolved = last.ResourceID, last.Resolved
	} else {
		st.ResourceID, st.Resolved = c.cache.Get(st.Resource)
	}
	st.LastScrape = last.Started
	st.FailedSteps = last.Failed()
	return st
}

// scrape is the state of one pass through the steps.
type scrape struct {
	c        *Collector
	settings Settings
	window   kdp.Window
	set      *catalog.Set
	logger   *slog.Logger

	resourceID uint32
	resolved   bool
}

type step struct {
	name string
	run  func(*scrape, context.Context) error
}

// steps is the fixed scrape sequence.
var steps = []step{
	{"ping", (*scrape).ping},
	{"api_version", (*scrape).apiVersion},
	{"resources", (*scrape).resources},
	{"protocol_ratio", (*scrape).protocolRatio},
	{"geo_ratio", (*scrape).geoRatio},
	{"new_ip_blocks", (*scrape).newIPBlocks},
	{"measured_parameters", (*scrape).measuredParameters},
	{"anomalies", (*scrape).anomalies},
	{"active_attacks", (*scrape).activeAttacks},
}

// Scrape runs every step once and returns what was collected. It never
// fails: an unreachable service yields a Result whose Set has no samples.
func (c *Collector) Scrape(ctx context.Context) *Result {
	settings := c.Settings()
	id := uuid.NewString()
	logger := c.logger.With("scrape_id", id, "resource", settings.ResourceName)
	ctx = kdp.WithLogger(ctx, logger)

	started := c.now()
	s := &scrape{
		c:        c,
		settings: settings,
		window:   kdp.LastFiveMinutes(started),
		set:      catalog.NewSet(),
		logger:   logger,
	}
	res := &Result{ID: id, Set: s.set, Resource: settings.ResourceName, Started: started}

	for _, st := range steps {
		err := st.run(s, ctx)
		kind := kdp.Kind(err)
		if kind == kdp.KindSkipped {
			logger.Debug("step skipped", "step", st.name, "reason", err)
		}
		res.Steps = append(res.Steps, StepResult{Step: st.name, Kind: kind, Err: err})
	}

	res.ResourceID, res.Resolved = s.resourceID, s.resolved
	res.Elapsed = c.now().Sub(started)
	failed := res.Failed()
	c.rec.ObserveScrape(res.Elapsed, failed)

	c.mu.Lock()
	c.last = res
	c.mu.Unlock()

	logger.Info("scrape finished",
		"elapsed", res.Elapsed,
		"samples", s.set.Samples(),
		"failed_steps", failed,
		"resolved", res.Resolved,
	)
	return res
}

func (s *scrape) name() string { return s.settings.ResourceName }

// requireResource reports ErrUnresolved when no resource id is known.
func (s *scrape) requireResource() error {
	if !s.resolved {
		return kdp.ErrUnresolved
	}
	return nil
}

func (s *scrape) ping(ctx context.Context) error {
	out := s.c.api.Ping(ctx)
	s.c.rec.ObservePing(out.OK())
	if !out.OK() {
		s.logger.Warn("api availability check failed, continuing")
	}
	return out.Err
}

func (s *scrape) apiVersion(ctx context.Context) error {
	out := s.c.api.APIVersion(ctx)
	if out.OK() {
		s.set.Add(catalog.APIVersion, 1, s.name(), out.Value.Version, out.Value.Mode)
	}
	return out.Err
}

func (s *scrape) resources(ctx context.Context) error {
	out := s.c.api.ResourceList(ctx, s.settings.LocaleID)
	if !out.OK() {
		if id, ok := s.c.cache.Get(s.name()); ok {
			s.resourceID, s.resolved = id, true
			s.logger.Warn("resource list failed, using cached resource id", "resource_id", id)
		}
		return out.Err
	}

	r, ok := kdp.ResolveResource(out.Value, s.name())
	if !ok {
		s.c.cache.Forget(s.name())
		s.logger.Warn("resource not found in client resource list", "resources", len(out.Value))
		return nil
	}
	s.resourceID, s.resolved = r.ID, true
	s.c.cache.Put(s.name(), r.ID)
	s.set.Add(catalog.ClientResource, 1, r.Name, r.Group, r.InternalIP, r.ExternalIP, r.RedirectionMethod)
	return nil
}

// protocolRatio keeps the call in the sequence; its result is not exported.
func (s *scrape) protocolRatio(ctx context.Context) error {
	if err := s.requireResource(); err != nil {
		return err
	}
	out := s.c.api.ProtocolRatio(ctx, s.settings.LocaleID, s.resourceID, s.window)
	if out.OK() {
		s.logger.Debug("protocol ratio fetched", "points", len(out.Value))
	}
	return out.Err
}

func (s *scrape) geoRatio(ctx context.Context) error {
	if err := s.requireResource(); err != nil {
		return err
	}
	out := s.c.api.GeoRatio(ctx, s.settings.LocaleID, s.resourceID)
	for _, g := range out.Value {
		s.set.Add(catalog.GeoRatio, g.Value, s.name(), g.Country)
	}
	return out.Err
}

func (s *scrape) newIPBlocks(ctx context.Context) error {
	if err := s.requireResource(); err != nil {
		return err
	}
	out := s.c.api.NewIPBlocks(ctx, s.resourceID, s.window)
	// Oldest first, so the newest minute is what remains.
	for _, b := range out.Value {
		s.set.Add(catalog.NewIPBlocks, b.NewIPBlocks, s.name())
	}
	return out.Err
}

func (s *scrape) measuredParameters(ctx context.Context) error {
	if err := s.requireResource(); err != nil {
		return err
	}
	defs := s.c.api.MeasuredParameterList(ctx, s.settings.LocaleID, s.resourceID)
	data := s.c.api.MeasuredParameterData(ctx, s.resourceID, s.window)
	if !defs.OK() || !data.OK() {
		return errors.Join(defs.Err, data.Err)
	}

	samples := Classify(defs.Value, data.Value)
	emit(s.set, s.name(), samples)
	s.logger.Debug("measured parameters classified",
		"definitions", len(defs.Value),
		"points", len(data.Value),
		"samples", len(samples),
	)
	return nil
}

func (s *scrape) anomalies(ctx context.Context) error {
	if err := s.requireResource(); err != nil {
		return err
	}
	out := s.c.api.AnomalyList(ctx, s.settings.LocaleID, s.resourceID, s.window, anomalyLimit, anomalyOffset)
	for _, a := range out.Value {
		color := strconv.Itoa(a.Color)
		s.set.Add(catalog.AnomalyMaxValue, a.MaxPointValue, s.name(), a.ParameterShortName, a.State, color)
		s.set.Add(catalog.AnomalyMaxPercent, a.MaxPointPercentage, s.name(), a.ParameterShortName, a.State, color)
	}
	return out.Err
}

// activeAttacks runs even when the resource is unresolved; nothing matches then.
func (s *scrape) activeAttacks(ctx context.Context) error {
	out := s.c.api.ActiveAttacks(ctx, s.settings.LocaleID)
	for _, a := range out.Value {
		if !s.resolved || a.ResourceID != s.resourceID {
			continue
		}
		id := strconv.FormatUint(uint64(a.ID), 10)
		s.set.Add(catalog.AttackIncomingBPS, a.MaxBPS, s.name(), id, a.Type)
		s.set.Add(catalog.AttackIncomingPPS, a.MaxPPS, s.name(), id, a.Type)
		s.set.Add(catalog.AttackHTTPRate, a.MaxRPS, s.name(), id, a.Type)
	}
	return out.Err
}
