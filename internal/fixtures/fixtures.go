// Package fixtures loads the hand-authored treasury reserve history.
//
// The history is a versioned YAML table embedded into the binary. Values are
// written as sums of amount * price terms where either side may reference a
// live price or balance, resolved when the reserves chart is built.
package fixtures

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"treasury-charts/internal/domain"
)

//go:embed reserves_v1.yaml
var reservesV1 []byte

// SupportedVersion is the fixture format version this package understands.
const SupportedVersion = 1

var (
	// ErrInvalidFixture is returned when the table fails validation.
	ErrInvalidFixture = errors.New("invalid reserve fixture")
	// ErrUnresolved is returned when a live reference has no value.
	ErrUnresolved = errors.New("unresolved fixture reference")
)

// Balance references.
const (
	RefYUSDBalance  = "yusd_balance"
	RefWETHBalance  = "weth_balance"
	RefDPIBalance   = "dpi_balance"
	RefIndexRewards = "index_rewards"
	RefSushiRewards = "sushi_rewards"
)

var balanceRefs = map[string]func(b *domain.TreasuryBalances) float64{
	RefYUSDBalance:  func(b *domain.TreasuryBalances) float64 { return b.YUSD },
	RefWETHBalance:  func(b *domain.TreasuryBalances) float64 { return b.WETH },
	RefDPIBalance:   func(b *domain.TreasuryBalances) float64 { return b.DPI },
	RefIndexRewards: func(b *domain.TreasuryBalances) float64 { return b.IndexLPRewards },
	RefSushiRewards: func(b *domain.TreasuryBalances) float64 { return b.SushiRewards },
}

// operand is either a literal or a $reference.
type operand struct {
	ref string
	lit decimal.Decimal
}

func (o operand) String() string {
	if o.ref != "" {
		return "$" + o.ref
	}
	return o.lit.String()
}

// Term is amount * price.
type Term struct {
	Amount operand
	Price  operand
}

// Entry is one row of the table before resolution.
type Entry struct {
	Label string
	Block int64
	Terms map[domain.ReserveSeries][]Term
}

// Table is a validated reserve history.
type Table struct {
	Version      int
	CutoverBlock int64
	Events       []Entry
	Present      Entry // Block holds the offset added to the current block
}

// Inputs are the live values references resolve against.
type Inputs struct {
	Prices   domain.PriceSet
	Balances *domain.TreasuryBalances
}

type rawTerm struct {
	Amount string `yaml:"amount"`
	Price  string `yaml:"price"`
}

type rawEntry struct {
	Label       string               `yaml:"label"`
	Block       int64                `yaml:"block"`
	BlockOffset int64                `yaml:"block_offset"`
	Values      map[string][]rawTerm `yaml:"values"`
}

type rawTable struct {
	Version      int        `yaml:"version"`
	CutoverBlock int64      `yaml:"cutover_block"`
	Events       []rawEntry `yaml:"events"`
	Present      rawEntry   `yaml:"present"`
}

// Load parses the embedded reserve history.
func Load() (*Table, error) {
	return Parse(reservesV1)
}

// Parse decodes and validates a reserve history document.
func Parse(data []byte) (*Table, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var raw rawTable
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidFixture, err)
	}

	if raw.Version != SupportedVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidFixture, raw.Version)
	}
	if raw.CutoverBlock <= 0 {
		return nil, fmt.Errorf("%w: cutover_block must be positive", ErrInvalidFixture)
	}

	t := &Table{
		Version:      raw.Version,
		CutoverBlock: raw.CutoverBlock,
		Events:       make([]Entry, 0, len(raw.Events)),
	}

	var prevBlock int64
	for i, re := range raw.Events {
		if re.BlockOffset != 0 {
			return nil, fmt.Errorf("%w: event %d: block_offset is only valid on present", ErrInvalidFixture, i)
		}
		if re.Block < prevBlock {
			return nil, fmt.Errorf("%w: event %q: block %d before previous %d", ErrInvalidFixture, re.Label, re.Block, prevBlock)
		}
		prevBlock = re.Block

		e, err := parseEntry(re, re.Block)
		if err != nil {
			return nil, fmt.Errorf("%w: event %d: %v", ErrInvalidFixture, i, err)
		}
		t.Events = append(t.Events, e)
	}

	if raw.Present.Block != 0 {
		return nil, fmt.Errorf("%w: present uses block_offset, not block", ErrInvalidFixture)
	}
	if raw.Present.BlockOffset < 0 {
		return nil, fmt.Errorf("%w: negative present block_offset", ErrInvalidFixture)
	}
	present, err := parseEntry(raw.Present, raw.Present.BlockOffset)
	if err != nil {
		return nil, fmt.Errorf("%w: present: %v", ErrInvalidFixture, err)
	}
	t.Present = present

	return t, nil
}

func parseEntry(re rawEntry, block int64) (Entry, error) {
	label := strings.TrimSpace(re.Label)
	if label == "" {
		return Entry{}, errors.New("empty label")
	}
	e := Entry{
		Label: label,
		Block: block,
		Terms: make(map[domain.ReserveSeries][]Term, len(re.Values)),
	}
	for name, terms := range re.Values {
		series := domain.ReserveSeries(name)
		if !series.Valid() {
			return Entry{}, fmt.Errorf("unknown series %q", name)
		}
		for _, rt := range terms {
			amount, err := parseOperand(rt.Amount)
			if err != nil {
				return Entry{}, fmt.Errorf("%s amount: %v", name, err)
			}
			price, err := parseOperand(rt.Price)
			if err != nil {
				return Entry{}, fmt.Errorf("%s price: %v", name, err)
			}
			e.Terms[series] = append(e.Terms[series], Term{Amount: amount, Price: price})
		}
	}
	return e, nil
}

func parseOperand(s string) (operand, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return operand{}, errors.New("empty operand")
	}
	if ref, ok := strings.CutPrefix(s, "$"); ok {
		if _, err := domain.ParseAsset(ref); err == nil {
			return operand{ref: ref}, nil
		}
		if _, ok := balanceRefs[ref]; ok {
			return operand{ref: ref}, nil
		}
		return operand{}, fmt.Errorf("unknown reference %q", s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return operand{}, fmt.Errorf("parse %q: %w", s, err)
	}
	return operand{lit: d}, nil
}

// PriceAssets returns the assets whose prices the table references, sorted.
func (t *Table) PriceAssets() []domain.Asset {
	seen := make(map[domain.Asset]struct{})
	visit := func(e Entry) {
		for _, terms := range e.Terms {
			for _, term := range terms {
				for _, op := range []operand{term.Amount, term.Price} {
					if a, err := domain.ParseAsset(op.ref); err == nil {
						seen[a] = struct{}{}
					}
				}
			}
		}
	}
	for _, e := range t.Events {
		visit(e)
	}
	visit(t.Present)

	out := make([]domain.Asset, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Resolve evaluates every event and the present point.
// The present point is last and sits at currentBlock plus the configured offset.
func (t *Table) Resolve(in Inputs, currentBlock int64) ([]domain.ReserveHistoryEvent, error) {
	out := make([]domain.ReserveHistoryEvent, 0, len(t.Events)+1)
	for _, e := range t.Events {
		ev, err := resolveEntry(e, e.Block, in)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	present, err := resolveEntry(t.Present, currentBlock+t.Present.Block, in)
	if err != nil {
		return nil, err
	}
	return append(out, present), nil
}

func resolveEntry(e Entry, block int64, in Inputs) (domain.ReserveHistoryEvent, error) {
	ev := domain.ReserveHistoryEvent{
		Label:  e.Label,
		Block:  block,
		Values: make(map[domain.ReserveSeries]float64, len(domain.AllReserveSeries)),
	}
	for _, s := range domain.AllReserveSeries {
		sum := decimal.Zero
		for _, term := range e.Terms[s] {
			amount, err := in.value(term.Amount)
			if err != nil {
				return domain.ReserveHistoryEvent{}, fmt.Errorf("%s %s: %w", e.Label, s, err)
			}
			price, err := in.value(term.Price)
			if err != nil {
				return domain.ReserveHistoryEvent{}, fmt.Errorf("%s %s: %w", e.Label, s, err)
			}
			sum = sum.Add(amount.Mul(price))
		}
		ev.Values[s] = sum.InexactFloat64()
	}
	return ev, nil
}

func (in Inputs) value(op operand) (decimal.Decimal, error) {
	if op.ref == "" {
		return op.lit, nil
	}
	if a, err := domain.ParseAsset(op.ref); err == nil {
		p, ok := in.Prices[a]
		if !ok {
			return decimal.Zero, fmt.Errorf("%w: %s", ErrUnresolved, op)
		}
		return decimal.NewFromFloat(p), nil
	}
	get := balanceRefs[op.ref]
	if in.Balances == nil {
		return decimal.Zero, fmt.Errorf("%w: %s (no balances)", ErrUnresolved, op)
	}
	return decimal.NewFromFloat(get(in.Balances)), nil
}
