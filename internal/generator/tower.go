package generator

import "strings"

// TowerInput is the stable identity and site data of a tower before generation.
type TowerInput struct {
	CellID     string
	Descriptor string
	CauseCode  string
}

// Tower is a fully generated tower record.
type Tower struct {
	CellID     string
	Descriptor string
	Vendor     string
	Tier       Tier
	Technology string
	Geography  string
	CauseCode  string
	Metrics    MetricBundle

	// Clamped lists metrics that needed clamping during derivation.
	Clamped []string
}

// AssignVendor picks the vendor for a tower identity.
func (t *Tables) AssignVendor(id string) string {
	name, ok := t.Vendors.Choose(Percentile(t.Seed, id, saltVendor))
	if !ok {
		return t.Vendors[len(t.Vendors)-1].Name
	}
	return name
}

// AssignTier picks the tier for a tower identity from its vendor's table.
// Unknown vendors and fall-through walks land in GOOD.
func (t *Tables) AssignTier(id, vendor string) Tier {
	tt, ok := t.tierTables[vendor]
	if !ok {
		return TierGood
	}
	tier, _ := tt.choose(Percentile(t.Seed, id, saltTierPfx+strings.ToLower(vendor)))
	return tier
}

// Classify derives the technology and geography tags from a site descriptor.
func (t *Tables) Classify(descriptor string) (technology, geography string) {
	d := strings.ToUpper(descriptor)
	technology = TagLTE
	if containsAny(d, t.Geography.FiveG) {
		technology = TagFiveG
	}
	switch {
	case containsAny(d, t.Geography.Urban):
		geography = TagUrban
	case containsAny(d, t.Geography.Rural):
		geography = TagRural
	default:
		geography = TagSuburban
	}
	return technology, geography
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(s, strings.ToUpper(k)) {
			return true
		}
	}
	return false
}

// RedistributeCause remaps a tower's failure cause code.
func (t *Tables) RedistributeCause(id, code string) string {
	if code == "" {
		return ""
	}
	if dist, ok := t.CauseCodes.Remap[code]; ok {
		if name, ok := dist.Choose(Percentile(t.Seed, id, saltCause)); ok {
			return name
		}
		return code
	}
	if !t.shuffleSet[code] {
		return code
	}
	s := t.CauseCodes.Shuffle
	if float64(Percentile(t.Seed, id, saltShuffle)) < s.Keep {
		return code
	}
	if name, ok := s.Targets.Choose(Percentile(t.Seed, id, saltShuffleTo)); ok {
		return name
	}
	return code
}

// buildTower generates one tower. order is the metric evaluation order.
func (t *Tables) buildTower(order []int, in TowerInput) Tower {
	vendor := t.AssignVendor(in.CellID)
	tier := t.AssignTier(in.CellID, vendor)
	tech, geo := t.Classify(in.Descriptor)
	bundle, clamped := t.deriveMetrics(order, in.CellID, vendor, tier, []string{tech, geo})
	return Tower{
		CellID:     in.CellID,
		Descriptor: in.Descriptor,
		Vendor:     vendor,
		Tier:       tier,
		Technology: tech,
		Geography:  geo,
		CauseCode:  t.RedistributeCause(in.CellID, in.CauseCode),
		Metrics:    bundle,
		Clamped:    clamped,
	}
}
