// Package dashboard orchestrates the wallet session gate and the chart builds.
package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"treasury-charts/internal/chain"
	"treasury-charts/internal/domain"
	"treasury-charts/internal/fixtures"
	"treasury-charts/internal/observability"
	"treasury-charts/internal/pricefeed"
	"treasury-charts/internal/render"
	"treasury-charts/internal/series"
	"treasury-charts/internal/storage"
)

// Snapshots provides the current treasury snapshot. *poller.Poller implements it.
type Snapshots interface {
	Latest() (*domain.TreasurySnapshot, uint64)
	Subscribe() (<-chan uint64, func())
}

// dependencyKey identifies the inputs of one fetch cycle.
type dependencyKey struct {
	epoch   uint64
	version uint64
	theme   series.Theme
}

func (k dependencyKey) String() string {
	return fmt.Sprintf("%d:%d:%s", k.epoch, k.version, k.theme)
}

// readyChart is a built chart and the snapshot version it was built from.
// builtAt tells apart rebuilds of the same version in later sessions.
type readyChart struct {
	chart   *series.Chart
	version uint64
	builtAt int64
}

// Dashboard holds the session and the per theme chart state.
type Dashboard struct {
	provider  chain.Provider
	prices    pricefeed.Source
	snapshots Snapshots
	table     *fixtures.Table
	store     storage.SnapshotStore
	cache     storage.ChartCache
	rangeN    int
	logger    *log.Logger

	group   singleflight.Group
	trigger chan struct{}
	wg      sync.WaitGroup

	mu        sync.RWMutex
	session   Session
	charts    map[series.Theme]map[domain.ChartName]readyChart
	lastBuilt map[series.Theme]dependencyKey
	wanted    map[series.Theme]struct{}

	subMu  sync.Mutex
	subs   map[int]*subscriber
	nextID int
}

type subscriber struct {
	theme series.Theme
	ch    chan View
}

// Options contains configuration for creating a Dashboard.
type Options struct {
	Provider    chain.Provider
	Prices      pricefeed.Source
	Snapshots   Snapshots
	Table       *fixtures.Table
	Store       storage.SnapshotStore // optional; keeps the scaling history for fallback
	Cache       storage.ChartCache    // optional; keeps rendered chart images
	RebaseRange int                   // Default: series.DefaultRebaseRange
	Logger      *log.Logger
}

// New creates a new Dashboard in the Disconnected state.
func New(opts Options) *Dashboard {
	rangeN := opts.RebaseRange
	if rangeN == 0 {
		rangeN = series.DefaultRebaseRange
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Dashboard{
		provider:  opts.Provider,
		prices:    opts.Prices,
		snapshots: opts.Snapshots,
		table:     opts.Table,
		store:     opts.Store,
		cache:     opts.Cache,
		rangeN:    rangeN,
		logger:    logger,
		trigger:   make(chan struct{}, 1),
		session:   Session{State: Disconnected},
		charts:    make(map[series.Theme]map[domain.ChartName]readyChart),
		lastBuilt: make(map[series.Theme]dependencyKey),
		wanted:    map[series.Theme]struct{}{series.ThemeLight: {}},
		subs:      make(map[int]*subscriber),
	}
}

// Run refreshes the wanted themes whenever the snapshot or the session changes.
// It blocks until ctx is cancelled and waits for in-flight cycles to finish.
func (d *Dashboard) Run(ctx context.Context) error {
	snapCh, cancel := d.snapshots.Subscribe()
	defer cancel()

	d.logger.Printf("Dashboard started, rebase range: %d", d.rangeN)
	d.refreshWanted(ctx)

	for {
		select {
		case <-ctx.Done():
			d.wg.Wait()
			d.logger.Println("Dashboard stopping...")
			return ctx.Err()
		case <-snapCh:
			d.refreshWanted(ctx)
		case <-d.trigger:
			d.refreshWanted(ctx)
		}
	}
}

func (d *Dashboard) refreshWanted(ctx context.Context) {
	d.mu.RLock()
	themes := make([]series.Theme, 0, len(d.wanted))
	for th := range d.wanted {
		themes = append(themes, th)
	}
	d.mu.RUnlock()

	for _, th := range themes {
		d.wg.Add(1)
		go func(th series.Theme) {
			defer d.wg.Done()
			d.Refresh(ctx, th)
		}(th)
	}
}

func (d *Dashboard) poke() {
	select {
	case d.trigger <- struct{}{}:
	default:
	}
}

// Session returns the current session.
func (d *Dashboard) Session() Session {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.session
}

// Connect opens a session for account. Connecting from Disconnected, or
// switching accounts, starts a new epoch and a fresh fetch cycle.
func (d *Dashboard) Connect(account string) (Session, error) {
	account = normalizeAccount(account)
	if account == "" {
		return Session{}, errors.New("empty account")
	}

	d.mu.Lock()
	if d.session.State == Connected && d.session.Account == account {
		s := d.session
		d.mu.Unlock()
		return s, nil
	}
	d.session = Session{State: Connected, Account: account, Epoch: d.session.Epoch + 1}
	d.resetChartsLocked()
	s := d.session
	d.mu.Unlock()

	d.logger.Printf("Session connected: %s (epoch %d)", account, s.Epoch)
	observability.SetSessionConnected(true)
	d.broadcast()
	d.poke()
	return s, nil
}

// Disconnect closes the session and drops every chart.
func (d *Dashboard) Disconnect(ctx context.Context) Session {
	d.mu.Lock()
	if d.session.State == Disconnected {
		s := d.session
		d.mu.Unlock()
		return s
	}
	d.session = Session{State: Disconnected, Epoch: d.session.Epoch + 1}
	d.resetChartsLocked()
	s := d.session
	d.mu.Unlock()

	if d.cache != nil {
		if err := d.cache.Clear(ctx); err != nil {
			d.logger.Printf("Failed to clear chart cache: %v", err)
		}
	}

	d.logger.Printf("Session disconnected (epoch %d)", s.Epoch)
	observability.SetSessionConnected(false)
	d.broadcast()
	return s
}

// OpenUnlockModal shows the wallet unlock modal. It has no effect while connected.
func (d *Dashboard) OpenUnlockModal() Session {
	return d.setUnlockModal(true)
}

// DismissUnlockModal hides the wallet unlock modal.
func (d *Dashboard) DismissUnlockModal() Session {
	return d.setUnlockModal(false)
}

func (d *Dashboard) setUnlockModal(open bool) Session {
	d.mu.Lock()
	changed := d.session.State == Disconnected && d.session.UnlockModalOpen != open
	if changed {
		d.session.UnlockModalOpen = open
	}
	s := d.session
	d.mu.Unlock()

	if changed {
		d.broadcast()
	}
	return s
}

func (d *Dashboard) resetChartsLocked() {
	d.charts = make(map[series.Theme]map[domain.ChartName]readyChart)
	d.lastBuilt = make(map[series.Theme]dependencyKey)
}

// dependencyKey returns the current dependency set of theme.
// ok is false when nothing can be built: disconnected or no snapshot yet.
func (d *Dashboard) dependencyKey(theme series.Theme) (dependencyKey, bool) {
	_, version := d.snapshots.Latest()

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.session.State != Connected || version == 0 {
		return dependencyKey{}, false
	}
	return dependencyKey{epoch: d.session.Epoch, version: version, theme: theme}, true
}

// Refresh runs one fetch cycle for theme unless the current dependency set
// was already built or is being built. It returns when the cycle is done.
func (d *Dashboard) Refresh(ctx context.Context, theme series.Theme) {
	key, ok := d.dependencyKey(theme)
	if !ok {
		return
	}

	d.mu.RLock()
	built := d.lastBuilt[theme] == key
	d.mu.RUnlock()
	if built {
		return
	}

	_, _, _ = d.group.Do(key.String(), func() (interface{}, error) {
		// A cycle for key may have finished between the check above and Do.
		d.mu.RLock()
		built := d.lastBuilt[theme] == key
		d.mu.RUnlock()
		if built {
			return nil, nil
		}

		d.fetchCycle(ctx, key)

		d.mu.Lock()
		if d.session.Epoch == key.epoch && d.lastBuilt[theme].version <= key.version {
			d.lastBuilt[theme] = key
		}
		d.mu.Unlock()
		return nil, nil
	})
}

// fetchCycle runs the four builders concurrently. Each publishes on its own;
// a failing builder leaves its chart Loading.
func (d *Dashboard) fetchCycle(ctx context.Context, key dependencyKey) {
	observability.RecordFetchCycle()

	snap, version := d.snapshots.Latest()
	if snap == nil || version != key.version {
		// A newer snapshot arrived; its own cycle will build it.
		return
	}

	builders := map[domain.ChartName]func(context.Context) (series.Chart, error){
		domain.ChartScaling: func(ctx context.Context) (series.Chart, error) {
			return d.buildScaling(ctx, key.theme)
		},
		domain.ChartReserves: func(ctx context.Context) (series.Chart, error) {
			return d.buildReserves(ctx, snap, key.theme)
		},
		domain.ChartSold: func(context.Context) (series.Chart, error) {
			return series.Sold(snap, key.theme, d.rangeN)
		},
		domain.ChartMinted: func(context.Context) (series.Chart, error) {
			return series.Minted(snap, key.theme, d.rangeN)
		},
	}

	var wg sync.WaitGroup
	for name, build := range builders {
		wg.Add(1)
		go func(name domain.ChartName, build func(context.Context) (series.Chart, error)) {
			defer wg.Done()

			start := time.Now()
			chart, err := build(ctx)
			if err != nil {
				observability.RecordChartBuild(string(name), "error", time.Since(start).Seconds())
				if !errors.Is(err, series.ErrMissingInput) && ctx.Err() == nil {
					d.logger.Printf("Chart %s build failed: %v", name, err)
				}
				return
			}
			observability.RecordChartBuild(string(name), "ok", time.Since(start).Seconds())
			d.publish(key, &chart)
		}(name, build)
	}
	wg.Wait()
}

// buildScaling falls back to the stored history when the provider fails.
func (d *Dashboard) buildScaling(ctx context.Context, theme series.Theme) (series.Chart, error) {
	h, err := d.provider.ScalingFactors(ctx)
	if err != nil {
		if d.store == nil || ctx.Err() != nil {
			return series.Chart{}, fmt.Errorf("fetch scaling factors: %w", err)
		}
		stored, fetchedAt, serr := d.store.LatestScaling(ctx)
		if serr != nil {
			return series.Chart{}, fmt.Errorf("fetch scaling factors: %w (stored history: %v)", err, serr)
		}
		d.logger.Printf("Scaling factors unavailable, using history stored at %s: %v",
			time.UnixMilli(fetchedAt).UTC().Format(time.RFC3339), err)
		observability.RecordScalingFallback()
		return series.ScalingFactor(stored, theme, d.rangeN)
	}
	if d.store != nil {
		if err := d.store.SaveScaling(ctx, h, time.Now().UnixMilli()); err != nil {
			d.logger.Printf("Failed to persist scaling history: %v", err)
		}
	}
	return series.ScalingFactor(h, theme, d.rangeN)
}

func (d *Dashboard) buildReserves(ctx context.Context, snap *domain.TreasurySnapshot, theme series.Theme) (series.Chart, error) {
	balances, err := d.provider.TreasuryBalances(ctx)
	if err != nil {
		return series.Chart{}, fmt.Errorf("fetch treasury balances: %w", err)
	}
	if !balances.Complete() {
		return series.Chart{}, fmt.Errorf("%w: treasury balances", series.ErrMissingInput)
	}
	block, err := d.provider.CurrentBlock(ctx)
	if err != nil {
		return series.Chart{}, fmt.Errorf("fetch current block: %w", err)
	}
	prices, err := d.prices.Prices(ctx, d.table.PriceAssets()...)
	if err != nil {
		return series.Chart{}, fmt.Errorf("fetch prices: %w", err)
	}

	return series.Reserves(series.ReservesInput{
		Snapshot:     snap,
		Prices:       prices,
		Balances:     balances,
		CurrentBlock: block,
		Table:        d.table,
	}, theme, d.rangeN)
}

// publish stores chart unless its session ended or a newer build already landed.
func (d *Dashboard) publish(key dependencyKey, chart *series.Chart) {
	d.mu.Lock()
	if d.session.Epoch != key.epoch || d.session.State != Connected {
		d.mu.Unlock()
		return
	}
	byName := d.charts[key.theme]
	if byName == nil {
		byName = make(map[domain.ChartName]readyChart)
		d.charts[key.theme] = byName
	}
	if prev, ok := byName[chart.Name]; ok && prev.version > key.version {
		d.mu.Unlock()
		return
	}
	byName[chart.Name] = readyChart{chart: chart, version: key.version, builtAt: time.Now().UnixNano()}
	d.mu.Unlock()

	d.broadcast()
}

// ImageKey is the chart cache key of one rendered image. Every build of a
// chart gets its own keys, so a cached image never outlives its chart.
func ImageKey(name domain.ChartName, theme series.Theme, version uint64, builtAt int64, f render.Format, width, height int) string {
	return fmt.Sprintf("%s:%s:%d:%d:%s:%dx%d", name, theme, version, builtAt, f, width, height)
}

// View returns the dashboard for theme and marks theme as wanted, starting a
// build for it if its charts are not current.
func (d *Dashboard) View(theme series.Theme) View {
	d.want(theme)
	return d.view(theme)
}

func (d *Dashboard) want(theme series.Theme) {
	d.mu.Lock()
	_, known := d.wanted[theme]
	if !known {
		d.wanted[theme] = struct{}{}
	}
	d.mu.Unlock()
	if !known {
		d.poke()
	}
}

func (d *Dashboard) view(theme series.Theme) View {
	_, version := d.snapshots.Latest()

	d.mu.RLock()
	defer d.mu.RUnlock()

	v := View{
		Status:          d.session.State,
		Theme:           theme,
		SnapshotVersion: version,
	}
	if d.session.State != Connected {
		v.Prompt = UnlockPrompt
		v.UnlockModalOpen = d.session.UnlockModalOpen
		return v
	}

	v.Account = d.session.Account
	v.Cards = make([]Card, 0, len(domain.AllCharts))
	for _, name := range domain.AllCharts {
		card := Card{Name: name, Title: series.Titles[name], Status: StatusLoading}
		if rc, ok := d.charts[theme][name]; ok {
			card.Status = StatusReady
			card.Chart = rc.chart
		}
		v.Cards = append(v.Cards, card)
	}
	return v
}

// current returns the built chart of name and theme, marking theme wanted.
// The status is Loading when the chart is not built yet.
func (d *Dashboard) current(name domain.ChartName, theme series.Theme) (readyChart, ChartStatus, error) {
	d.want(theme)

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.session.State != Connected {
		return readyChart{}, "", ErrDisconnected
	}
	rc, ok := d.charts[theme][name]
	if !ok {
		return readyChart{}, StatusLoading, nil
	}
	return rc, StatusReady, nil
}

// ChartJSON returns the encoded chart as the dashboard currently shows it.
func (d *Dashboard) ChartJSON(_ context.Context, name domain.ChartName, theme series.Theme) ([]byte, ChartStatus, error) {
	rc, status, err := d.current(name, theme)
	if err != nil || status != StatusReady {
		return nil, status, err
	}
	payload, err := json.Marshal(rc.chart)
	if err != nil {
		return nil, "", fmt.Errorf("encode chart: %w", err)
	}
	return payload, StatusReady, nil
}

// ChartImage returns the chart rendered as f, reusing a cached rendering of
// the same build when one exists. Cache failures only cost a re-render.
func (d *Dashboard) ChartImage(ctx context.Context, name domain.ChartName, theme series.Theme, f render.Format, width, height int) ([]byte, ChartStatus, error) {
	rc, status, err := d.current(name, theme)
	if err != nil || status != StatusReady {
		return nil, status, err
	}

	key := ImageKey(name, theme, rc.version, rc.builtAt, f, width, height)
	if d.cache != nil {
		payload, err := d.cache.Get(ctx, key)
		if err == nil {
			observability.RecordImageCache(true)
			return payload, StatusReady, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			d.logger.Printf("Chart cache read failed: %v", err)
		}
		observability.RecordImageCache(false)
	}

	var buf bytes.Buffer
	if err := render.Render(&buf, rc.chart, f, width, height); err != nil {
		return nil, "", err
	}
	if d.cache != nil {
		if err := d.cache.Put(ctx, key, buf.Bytes()); err != nil {
			d.logger.Printf("Failed to cache %s image of %s: %v", f, name, err)
		}
	}
	return buf.Bytes(), StatusReady, nil
}

// ErrDisconnected is returned for chart requests without a session.
var ErrDisconnected = errors.New("wallet not connected")

// Subscribe returns a channel receiving the view of theme after every change.
// Slow receivers only see the most recent view. Call cancel to unsubscribe.
func (d *Dashboard) Subscribe(theme series.Theme) (<-chan View, func()) {
	ch := make(chan View, 1)

	d.subMu.Lock()
	id := d.nextID
	d.nextID++
	d.subs[id] = &subscriber{theme: theme, ch: ch}
	d.subMu.Unlock()

	cancel := func() {
		d.subMu.Lock()
		defer d.subMu.Unlock()
		if _, ok := d.subs[id]; ok {
			delete(d.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

func (d *Dashboard) broadcast() {
	d.subMu.Lock()
	defer d.subMu.Unlock()

	views := make(map[series.Theme]View)
	for _, sub := range d.subs {
		v, ok := views[sub.theme]
		if !ok {
			v = d.view(sub.theme)
			views[sub.theme] = v
		}
		select {
		case sub.ch <- v:
		default:
			select {
			case <-sub.ch:
			default:
			}
			sub.ch <- v
		}
	}
}
