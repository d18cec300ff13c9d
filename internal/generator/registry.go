package generator

import (
	"fmt"
	"math"
)

// Kind selects how a metric is derived from its band.
type Kind int

const (
	// KindBand maps a fraction straight into the tier band.
	KindBand Kind = iota
	// KindRatio derives a success count from its parent attempt count.
	KindRatio
	// KindScaled is a fraction of its parent metric.
	KindScaled
)

func (k Kind) String() string {
	switch k {
	case KindBand:
		return "band"
	case KindRatio:
		return "ratio"
	case KindScaled:
		return "scaled"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Metric names. They double as hash salts and YAML keys.
const (
	MetricRRCConnEstabAtt       = "rrc_conn_estab_att"
	MetricRRCConnEstabSucc      = "rrc_conn_estab_succ"
	MetricS1SigConnEstabAtt     = "s1_sig_conn_estab_att"
	MetricS1SigConnEstabSucc    = "s1_sig_conn_estab_succ"
	MetricERABEstabAttInit      = "erab_estab_att_init"
	MetricERABEstabSuccInit     = "erab_estab_succ_init"
	MetricPDCPLatTimeDL         = "pdcp_lat_time_dl"
	MetricPDCPLatPktTransDL     = "pdcp_lat_pkt_trans_dl"
	MetricPDCPLatTimeUL         = "pdcp_lat_time_ul"
	MetricPDCPLatPktTransUL     = "pdcp_lat_pkt_trans_ul"
	MetricPRBUtilDL             = "prb_util_dl"
	MetricPRBUtilUL             = "prb_util_ul"
	MetricERABRelAbnormalENBAct = "erab_rel_abnormal_enb_act"
	MetricERABRelAbnormalENB    = "erab_rel_abnormal_enb"
	MetricERABRelNormalENB      = "erab_rel_normal_enb"
	MetricERABRelMME            = "erab_rel_mme"
	MetricRSRPServ              = "ue_meas_rsrp_serv"
	MetricRSRPDelta             = "ue_meas_rsrp_delta"
	MetricRSRQServ              = "ue_meas_rsrq_serv"
	MetricRSRQDelta             = "ue_meas_rsrq_delta"
	MetricThpTimeDL             = "ue_thp_time_dl"
	MetricPDCPVolDLDRB          = "pdcp_vol_dl_drb"
	MetricPDCPVolDLDRBLastTTI   = "pdcp_vol_dl_drb_last_tti"
)

// MetricDef describes one generated field.
type MetricDef struct {
	Name      string
	Kind      Kind
	Parent    string
	Precision int
	Percent   bool
	Signed    bool
}

// bounds is the admissible band range for validation. Ratio and scaled bands
// are multipliers on the parent.
func (d MetricDef) bounds() (lo, hi float64) {
	switch {
	case d.Kind == KindRatio:
		return 0, 1
	case d.Kind == KindScaled:
		return 0, math.Inf(1)
	case d.Percent:
		return 0, 100
	case d.Signed:
		return math.Inf(-1), math.Inf(1)
	default:
		return 0, math.Inf(1)
	}
}

var registry = []MetricDef{
	{Name: MetricRRCConnEstabAtt, Kind: KindBand},
	{Name: MetricRRCConnEstabSucc, Kind: KindRatio, Parent: MetricRRCConnEstabAtt},
	{Name: MetricS1SigConnEstabAtt, Kind: KindBand},
	{Name: MetricS1SigConnEstabSucc, Kind: KindRatio, Parent: MetricS1SigConnEstabAtt},
	{Name: MetricERABEstabAttInit, Kind: KindBand},
	{Name: MetricERABEstabSuccInit, Kind: KindRatio, Parent: MetricERABEstabAttInit},
	{Name: MetricPDCPLatTimeDL, Kind: KindBand, Precision: 2},
	{Name: MetricPDCPLatPktTransDL, Kind: KindScaled, Parent: MetricPDCPLatTimeDL, Precision: 2},
	{Name: MetricPDCPLatTimeUL, Kind: KindBand, Precision: 2},
	{Name: MetricPDCPLatPktTransUL, Kind: KindScaled, Parent: MetricPDCPLatTimeUL, Precision: 2},
	{Name: MetricPRBUtilDL, Kind: KindBand, Percent: true},
	{Name: MetricPRBUtilUL, Kind: KindScaled, Parent: MetricPRBUtilDL, Percent: true},
	{Name: MetricERABRelAbnormalENBAct, Kind: KindBand, Precision: 2, Percent: true},
	{Name: MetricERABRelAbnormalENB, Kind: KindBand, Precision: 2, Percent: true},
	{Name: MetricERABRelNormalENB, Kind: KindBand},
	{Name: MetricERABRelMME, Kind: KindBand},
	{Name: MetricRSRPServ, Kind: KindBand, Signed: true},
	{Name: MetricRSRPDelta, Kind: KindBand},
	{Name: MetricRSRQServ, Kind: KindBand, Signed: true},
	{Name: MetricRSRQDelta, Kind: KindBand},
	{Name: MetricThpTimeDL, Kind: KindBand},
	{Name: MetricPDCPVolDLDRB, Kind: KindBand},
	{Name: MetricPDCPVolDLDRBLastTTI, Kind: KindScaled, Parent: MetricPDCPVolDLDRB},
}

var registryIndex = func() map[string]int {
	idx := make(map[string]int, len(registry))
	for i, d := range registry {
		idx[d.Name] = i
	}
	return idx
}()

// Registry returns a copy of the metric definitions in declaration order.
func Registry() []MetricDef {
	out := make([]MetricDef, len(registry))
	copy(out, registry)
	return out
}

// topoOrder orders defs so every parent precedes its children. Ties keep
// declaration order, which keeps the evaluation order stable across builds.
func topoOrder(defs []MetricDef) ([]int, error) {
	index := make(map[string]int, len(defs))
	for i, d := range defs {
		if _, dup := index[d.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate metric %q", ErrMetricGraph, d.Name)
		}
		index[d.Name] = i
	}

	indegree := make([]int, len(defs))
	children := make([][]int, len(defs))
	for i, d := range defs {
		needsParent := d.Kind == KindRatio || d.Kind == KindScaled
		if d.Parent == "" {
			if needsParent {
				return nil, fmt.Errorf("%w: %s metric %q has no parent", ErrMetricGraph, d.Kind, d.Name)
			}
			continue
		}
		p, ok := index[d.Parent]
		if !ok {
			return nil, fmt.Errorf("%w: metric %q depends on unknown %q", ErrMetricGraph, d.Name, d.Parent)
		}
		indegree[i]++
		children[p] = append(children[p], i)
	}

	order := make([]int, 0, len(defs))
	ready := make([]int, 0, len(defs))
	for i := range defs {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}
	for len(ready) > 0 {
		// smallest index first
		minAt := 0
		for j := 1; j < len(ready); j++ {
			if ready[j] < ready[minAt] {
				minAt = j
			}
		}
		n := ready[minAt]
		ready = append(ready[:minAt], ready[minAt+1:]...)
		order = append(order, n)
		for _, c := range children[n] {
			indegree[c]--
			if indegree[c] == 0 {
				ready = append(ready, c)
			}
		}
	}
	if len(order) != len(defs) {
		return nil, fmt.Errorf("%w: dependency cycle", ErrMetricGraph)
	}
	return order, nil
}
