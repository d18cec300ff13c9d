package generator

import (
	"math"
	"sort"
	"strings"
)

// TicketInput is a support ticket before correlation.
type TicketInput struct {
	TicketID string
	Request  string
	CellID   string
}

// Ticket is a correlated support ticket.
type Ticket struct {
	TicketID       string
	Request        string
	CellID         string
	Tier           Tier
	Category       string
	SentimentScore float64
}

// Categorize returns the index of the first category whose keyword occurs in
// the request, or the fallback category.
func (t *Tables) Categorize(request string) int {
	r := strings.ToLower(request)
	cats := t.Tickets.Categories
	for i := 0; i < len(cats)-1; i++ {
		for _, k := range cats[i].Keywords {
			if k != "" && strings.Contains(r, strings.ToLower(k)) {
				return i
			}
		}
	}
	return len(cats) - 1
}

// Sentiment draws the sentiment for a ticket in a category bound to a tower of
// the given tier. The result is rounded to two decimals and lies in [-1, 1].
func (t *Tables) Sentiment(ticketID string, category int, tier Tier) float64 {
	band := t.Tickets.Categories[category].byTier[tier]
	v := roundTo(band.At(Fraction(t.Seed, ticketID, saltSentiment, t.Resolution)), 2)
	return math.Max(-1, math.Min(1, v))
}

type towerRef struct {
	cellID string
	tier   Tier
}

// ticketBinder holds the tower partitions used to bind tickets.
type ticketBinder struct {
	tables      *Tables
	all         []towerRef
	problematic []towerRef
	byID        map[string]Tier
}

func newTicketBinder(t *Tables, towers []Tower) *ticketBinder {
	worst := make(map[Tier]bool)
	for _, tier := range WorstTiers(t.Tickets.ProblematicWorst) {
		worst[tier] = true
	}
	b := &ticketBinder{
		tables: t,
		all:    make([]towerRef, 0, len(towers)),
		byID:   make(map[string]Tier, len(towers)),
	}
	for _, tw := range towers {
		ref := towerRef{cellID: tw.CellID, tier: tw.Tier}
		b.all = append(b.all, ref)
		b.byID[tw.CellID] = tw.Tier
		if worst[tw.Tier] {
			b.problematic = append(b.problematic, ref)
		}
	}
	byCell := func(refs []towerRef) func(i, j int) bool {
		return func(i, j int) bool { return refs[i].cellID < refs[j].cellID }
	}
	sort.Slice(b.all, byCell(b.all))
	sort.Slice(b.problematic, byCell(b.problematic))
	return b
}

func (b *ticketBinder) bind(in TicketInput) Ticket {
	t := b.tables
	var ref towerRef
	switch {
	case len(b.problematic) > 0 && Fraction(t.Seed, in.TicketID, saltBias, t.Resolution) < t.Tickets.BiasThreshold:
		ref = b.problematic[pick(t.Seed, in.TicketID, saltPick, len(b.problematic))]
	default:
		if tier, ok := b.byID[in.CellID]; ok {
			ref = towerRef{cellID: in.CellID, tier: tier}
		} else {
			ref = b.all[pick(t.Seed, in.TicketID, saltPickAny, len(b.all))]
		}
	}
	cat := t.Categorize(in.Request)
	return Ticket{
		TicketID:       in.TicketID,
		Request:        in.Request,
		CellID:         ref.cellID,
		Tier:           ref.tier,
		Category:       t.Tickets.Categories[cat].Name,
		SentimentScore: t.Sentiment(in.TicketID, cat, ref.tier),
	}
}
