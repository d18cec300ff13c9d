package generator

import (
	_ "embed"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"
)

const (
	DefaultResolution = 10000

	sumTolerance = 1e-6
)

//go:embed tables.yaml
var defaultTablesYAML []byte

// Tag values derived from a tower descriptor.
const (
	TagFiveG    = "5G"
	TagLTE      = "LTE"
	TagUrban    = "urban"
	TagRural    = "rural"
	TagSuburban = "suburban"
)

var knownTags = map[string]bool{
	TagFiveG: true, TagLTE: true, TagUrban: true, TagRural: true, TagSuburban: true,
}

// Band is a closed numeric range; a fraction f in [0,1) maps to Lo + f*(Hi-Lo).
type Band struct {
	Lo float64
	Hi float64
}

// At maps a fraction into the band.
func (b Band) At(f float64) float64 {
	return b.Lo + f*(b.Hi-b.Lo)
}

// Mid is the band's midpoint.
func (b Band) Mid() float64 {
	return (b.Lo + b.Hi) / 2
}

func (b Band) within(lo, hi float64) bool {
	return b.Lo >= lo && b.Hi <= hi
}

func (b *Band) UnmarshalYAML(node *yaml.Node) error {
	var pair []float64
	if err := node.Decode(&pair); err != nil {
		return fmt.Errorf("line %d: band must be a [lo, hi] pair: %w", node.Line, err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("line %d: band must have exactly two values, got %d", node.Line, len(pair))
	}
	b.Lo, b.Hi = pair[0], pair[1]
	return nil
}

func (b Band) MarshalYAML() (any, error) {
	n := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, v := range []float64{b.Lo, b.Hi} {
		n.Content = append(n.Content, &yaml.Node{
			Kind:  yaml.ScalarNode,
			Value: strconv.FormatFloat(v, 'f', -1, 64),
		})
	}
	return n, nil
}

// Share is one bucket of a discrete distribution, in percent.
type Share struct {
	Name    string  `yaml:"name"`
	Percent float64 `yaml:"percent"`
}

// Distribution is an ordered discrete distribution. Order matters: buckets are
// walked cumulatively in declaration order.
type Distribution []Share

func (d Distribution) Sum() float64 {
	var s float64
	for _, sh := range d {
		s += sh.Percent
	}
	return s
}

// Choose walks the cumulative table and returns the bucket containing percentile.
// ok is false when the walk falls through, which only happens when the table
// sums to less than 100.
func (d Distribution) Choose(percentile int) (name string, ok bool) {
	var cum float64
	p := float64(percentile)
	for _, sh := range d {
		cum += sh.Percent
		if p < cum {
			return sh.Name, true
		}
	}
	return "", false
}

func (d Distribution) validate(path string) []string {
	var problems []string
	if len(d) == 0 {
		return []string{path + ": empty distribution"}
	}
	seen := make(map[string]bool, len(d))
	for _, sh := range d {
		if sh.Name == "" {
			problems = append(problems, path+": bucket with empty name")
		}
		if seen[sh.Name] {
			problems = append(problems, fmt.Sprintf("%s: duplicate bucket %q", path, sh.Name))
		}
		seen[sh.Name] = true
		if sh.Percent < 0 {
			problems = append(problems, fmt.Sprintf("%s: negative percent for %q", path, sh.Name))
		}
	}
	if sum := d.Sum(); math.Abs(sum-100) > sumTolerance {
		problems = append(problems, fmt.Sprintf("%s: percentages sum to %g, want 100", path, sum))
	}
	return problems
}

// Override replaces a metric band for towers matching every non-empty selector.
// Vendor matching ignores case; the vendor must be listed in the vendor table.
type Override struct {
	Tier   string `yaml:"tier,omitempty"`
	Vendor string `yaml:"vendor,omitempty"`
	Tag    string `yaml:"tag,omitempty"`
	Band   Band   `yaml:"band"`

	tier    Tier
	hasTier bool
}

func (o *Override) matches(t Tier, vendor string, tags []string) bool {
	if o.hasTier && o.tier != t {
		return false
	}
	if o.Vendor != "" && !strings.EqualFold(o.Vendor, vendor) {
		return false
	}
	if o.Tag != "" {
		found := false
		for _, tag := range tags {
			if tag == o.Tag {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// MetricBands holds the tier bands for one metric.
type MetricBands struct {
	Tiers     map[string]Band `yaml:"tiers,omitempty"`
	Default   *Band           `yaml:"default,omitempty"`
	Overrides []Override      `yaml:"overrides,omitempty"`
	Jitter    float64         `yaml:"jitter,omitempty"`

	byTier [len(tierNames)]Band
}

func (m *MetricBands) band(t Tier, vendor string, tags []string) Band {
	for i := range m.Overrides {
		if m.Overrides[i].matches(t, vendor, tags) {
			return m.Overrides[i].Band
		}
	}
	return m.byTier[t]
}

// Geography lists descriptor keywords for the technology and geography tags.
type Geography struct {
	FiveG []string `yaml:"technology_5g"`
	Urban []string `yaml:"urban"`
	Rural []string `yaml:"rural"`
}

// SentimentCategory classifies ticket requests by keyword.
type SentimentCategory struct {
	Name     string          `yaml:"name"`
	Keywords []string        `yaml:"keywords,omitempty"`
	Tiers    map[string]Band `yaml:"tiers,omitempty"`
	Default  *Band           `yaml:"default,omitempty"`

	byTier [len(tierNames)]Band
}

// TicketRules drives ticket-to-tower bias and sentiment.
type TicketRules struct {
	BiasThreshold    float64             `yaml:"bias_threshold"`
	ProblematicWorst int                 `yaml:"problematic_worst"`
	Categories       []SentimentCategory `yaml:"categories"`
}

// ShuffleRule keeps a long-tail cause code with probability Keep percent and
// otherwise redraws it from Targets.
type ShuffleRule struct {
	Codes   []string     `yaml:"codes,omitempty"`
	Keep    float64      `yaml:"keep,omitempty"`
	Targets Distribution `yaml:"targets,omitempty"`
}

// CauseCodeRules redistributes the call-failure cause codes carried by towers.
type CauseCodeRules struct {
	Remap   map[string]Distribution `yaml:"remap,omitempty"`
	Shuffle ShuffleRule             `yaml:"shuffle,omitempty"`
}

// Tables is the complete generator configuration. Everything tunable lives here
// so the algorithm never changes when the demo data has to.
type Tables struct {
	Seed       string                  `yaml:"seed"`
	Resolution uint64                  `yaml:"resolution"`
	Vendors    Distribution            `yaml:"vendors"`
	Tiers      map[string]Distribution `yaml:"tiers"`
	Geography  Geography               `yaml:"geography"`
	Metrics    map[string]*MetricBands `yaml:"metrics"`
	Tickets    TicketRules             `yaml:"tickets"`
	CauseCodes CauseCodeRules          `yaml:"cause_codes,omitempty"`

	tierTables map[string]tierTable
	shuffleSet map[string]bool
	compiled   bool
}

type tierTable struct {
	tiers  []Tier
	bounds []float64
}

func (tt tierTable) choose(percentile int) (Tier, bool) {
	p := float64(percentile)
	for i, b := range tt.bounds {
		if p < b {
			return tt.tiers[i], true
		}
	}
	return TierGood, false
}

// DefaultTables returns a fresh copy of the embedded default tuning.
func DefaultTables() *Tables {
	t, err := ParseTables(defaultTablesYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded tables are invalid: %v", err))
	}
	return t
}

// LoadTables reads and validates tables from a YAML file. An empty path yields
// the embedded defaults.
func LoadTables(path string) (*Tables, error) {
	if path == "" {
		return DefaultTables(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tables %s: %w", path, err)
	}
	return ParseTables(data)
}

// ParseTables decodes and validates YAML tables.
func ParseTables(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidTables, err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate checks every table and prepares lookup structures. It must be called
// again after the tables are modified.
func (t *Tables) Validate() error {
	t.compiled = false
	var problems []string

	if t.Resolution == 0 {
		t.Resolution = DefaultResolution
	}

	problems = append(problems, t.Vendors.validate("vendors")...)

	t.tierTables = make(map[string]tierTable, len(t.Vendors))
	for _, v := range t.Vendors {
		dist, ok := t.Tiers[v.Name]
		if !ok {
			problems = append(problems, fmt.Sprintf("tiers: no distribution for vendor %q", v.Name))
			continue
		}
		path := "tiers." + v.Name
		problems = append(problems, dist.validate(path)...)
		var tt tierTable
		var cum float64
		for _, sh := range dist {
			tier, err := ParseTier(sh.Name)
			if err != nil {
				problems = append(problems, fmt.Sprintf("%s: %v", path, err))
				continue
			}
			cum += sh.Percent
			tt.tiers = append(tt.tiers, tier)
			tt.bounds = append(tt.bounds, cum)
		}
		t.tierTables[v.Name] = tt
	}
	for name := range t.Tiers {
		if !t.hasVendor(name) {
			problems = append(problems, fmt.Sprintf("tiers: distribution for unknown vendor %q", name))
		}
	}

	problems = append(problems, t.validateMetrics()...)
	problems = append(problems, t.validateTickets()...)
	problems = append(problems, t.validateCauseCodes()...)

	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("%w: %s", ErrInvalidTables, strings.Join(problems, "; "))
	}
	t.compiled = true
	return nil
}

func (t *Tables) hasVendor(name string) bool {
	for _, v := range t.Vendors {
		if v.Name == name {
			return true
		}
	}
	return false
}

func (t *Tables) hasVendorFold(name string) bool {
	for _, v := range t.Vendors {
		if strings.EqualFold(v.Name, name) {
			return true
		}
	}
	return false
}

func (t *Tables) validateMetrics() []string {
	var problems []string
	for name := range t.Metrics {
		if _, ok := registryIndex[name]; !ok {
			problems = append(problems, fmt.Sprintf("metrics: unknown metric %q", name))
		}
	}
	for _, def := range registry {
		path := "metrics." + def.Name
		mb, ok := t.Metrics[def.Name]
		if !ok || mb == nil {
			problems = append(problems, path+": missing")
			continue
		}
		lo, hi := def.bounds()
		check := func(where string, b Band) {
			if b.Lo > b.Hi {
				problems = append(problems, fmt.Sprintf("%s: band %v has lo > hi", where, []float64{b.Lo, b.Hi}))
			}
			if !b.within(lo, hi) {
				problems = append(problems, fmt.Sprintf("%s: band %v outside [%g, %g]", where, []float64{b.Lo, b.Hi}, lo, hi))
			}
		}
		resolved, errs := resolveTierBands(path, mb.Tiers, mb.Default)
		problems = append(problems, errs...)
		mb.byTier = resolved
		for name, b := range mb.Tiers {
			check(path+".tiers."+name, b)
		}
		if mb.Default != nil {
			check(path+".default", *mb.Default)
		}
		for i := range mb.Overrides {
			o := &mb.Overrides[i]
			opath := fmt.Sprintf("%s.overrides[%d]", path, i)
			o.hasTier = false
			if o.Tier != "" {
				tier, err := ParseTier(o.Tier)
				if err != nil {
					problems = append(problems, fmt.Sprintf("%s: %v", opath, err))
				}
				o.tier, o.hasTier = tier, err == nil
			}
			if o.Vendor != "" && !t.hasVendorFold(o.Vendor) {
				problems = append(problems, fmt.Sprintf("%s: unknown vendor %q", opath, o.Vendor))
			}
			if o.Tag != "" && !knownTags[o.Tag] {
				problems = append(problems, fmt.Sprintf("%s: unknown tag %q", opath, o.Tag))
			}
			check(opath, o.Band)
		}
		if mb.Jitter < 0 {
			problems = append(problems, path+": negative jitter")
		}
		if mb.Jitter > 0 && def.Kind != KindRatio {
			problems = append(problems, path+": jitter is only valid on ratio metrics")
		}
	}
	return problems
}

func resolveTierBands(path string, tiers map[string]Band, def *Band) ([len(tierNames)]Band, []string) {
	var out [len(tierNames)]Band
	var problems []string
	set := make(map[Tier]bool, len(tiers))
	for name, b := range tiers {
		tier, err := ParseTier(name)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s.tiers: %v", path, err))
			continue
		}
		out[tier] = b
		set[tier] = true
	}
	for _, tier := range AllTiers() {
		if set[tier] {
			continue
		}
		if def == nil {
			problems = append(problems, fmt.Sprintf("%s: no band for tier %s and no default", path, tier))
			continue
		}
		out[tier] = *def
	}
	return out, problems
}

func (t *Tables) validateTickets() []string {
	var problems []string
	r := &t.Tickets
	if r.BiasThreshold < 0 || r.BiasThreshold > 1 {
		problems = append(problems, fmt.Sprintf("tickets.bias_threshold: %g outside [0, 1]", r.BiasThreshold))
	}
	if r.ProblematicWorst < 1 || r.ProblematicWorst > len(tierNames) {
		problems = append(problems, fmt.Sprintf("tickets.problematic_worst: %d outside [1, %d]", r.ProblematicWorst, len(tierNames)))
	}
	if len(r.Categories) == 0 {
		return append(problems, "tickets.categories: empty")
	}
	seen := make(map[string]bool)
	for i := range r.Categories {
		c := &r.Categories[i]
		path := fmt.Sprintf("tickets.categories[%d]", i)
		if c.Name == "" {
			problems = append(problems, path+": empty name")
		}
		if seen[c.Name] {
			problems = append(problems, fmt.Sprintf("%s: duplicate category %q", path, c.Name))
		}
		seen[c.Name] = true
		last := i == len(r.Categories)-1
		if last && len(c.Keywords) > 0 {
			problems = append(problems, path+": last category must be the keyword-less fallback")
		}
		if !last && len(c.Keywords) == 0 {
			problems = append(problems, path+": only the last category may omit keywords")
		}
		resolved, errs := resolveTierBands(path, c.Tiers, c.Default)
		problems = append(problems, errs...)
		c.byTier = resolved
		for _, b := range resolved {
			if b.Lo > b.Hi || !b.within(-1, 1) {
				problems = append(problems, fmt.Sprintf("%s: sentiment band %v outside [-1, 1]", path, []float64{b.Lo, b.Hi}))
				break
			}
		}
	}
	return problems
}

func (t *Tables) validateCauseCodes() []string {
	var problems []string
	for code, dist := range t.CauseCodes.Remap {
		problems = append(problems, dist.validate("cause_codes.remap."+code)...)
	}
	s := t.CauseCodes.Shuffle
	t.shuffleSet = make(map[string]bool, len(s.Codes))
	for _, c := range s.Codes {
		t.shuffleSet[c] = true
	}
	if len(s.Codes) > 0 {
		if s.Keep < 0 || s.Keep > 100 {
			problems = append(problems, fmt.Sprintf("cause_codes.shuffle.keep: %g outside [0, 100]", s.Keep))
		}
		if s.Keep < 100 {
			problems = append(problems, s.Targets.validate("cause_codes.shuffle.targets")...)
		}
	}
	return problems
}

// Fingerprint is a stable digest of the tables, used as the dataset version.
func (t *Tables) Fingerprint() string {
	data, err := yaml.Marshal(t)
	if err != nil {
		return ""
	}
	return strconv.FormatUint(xxhash.Sum64(data), 16)
}

// VendorNames lists configured vendors in declaration order.
func (t *Tables) VendorNames() []string {
	out := make([]string, len(t.Vendors))
	for i, v := range t.Vendors {
		out[i] = v.Name
	}
	return out
}
