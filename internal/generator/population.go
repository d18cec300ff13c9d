package generator

import (
	"strconv"

	"github.com/google/uuid"
)

const populationSeed = "towergen-population"

var (
	// ticketNamespace scopes the name-based ticket UUIDs.
	ticketNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://towergen.dev/tickets"))

	regions = []string{
		"LONDON", "NEW YORK", "ALBERTA", "SCOTLAND", "MANCHESTER",
		"TORONTO", "CHICAGO", "DUBLIN", "BRISTOL", "VANCOUVER",
	}

	initialCauseCodes = Distribution{
		{Name: "CALL_OK", Percent: 70},
		{Name: "NETWORK_OUT_OF_ORDER", Percent: 18},
		{Name: "NORMAL_UNSPECIFIED", Percent: 4},
		{Name: "BEARER_CAPABILITY_NOT_AVAILABLE", Percent: 2},
		{Name: "CHANNEL_UNACCEPTABLE", Percent: 2},
		{Name: "DESTINATION_OUT_OF_ORDER", Percent: 2},
		{Name: "OUTGOING_CALLS_BARRED", Percent: 1},
		{Name: "MESSAGE_TYPE_NON_EXISTENT", Percent: 1},
	}

	requestCatalog = []string{
		"Frequent call drops on my commute every morning",
		"Data is extremely slow in the evening",
		"I cannot make calls from my apartment",
		"Unexpected roaming fees after my trip",
		"Why is there an extra charge on this month's statement",
		"My bill doubled without any explanation",
		"I want to upgrade to the new unlimited plan",
		"Please add a second line for my partner",
		"Interested in the family bundle offer",
		"I am moving next month and need service at the new place",
		"Cancel the international pack please",
		"Transfer my number to a new SIM",
		"Question about voicemail settings",
		"How do I set up wifi calling",
		"Need help configuring my hotspot",
	}
)

// SyntheticTowers builds n tower inputs with consecutive integer cell ids.
func SyntheticTowers(n, startID int) []TowerInput {
	out := make([]TowerInput, n)
	for i := range out {
		id := strconv.Itoa(startID + i)
		desc := regions[pick(populationSeed, id, "region", len(regions))]
		if Percentile(populationSeed, id, "technology") < 20 {
			desc += " (5G)"
		}
		code, _ := initialCauseCodes.Choose(Percentile(populationSeed, id, "cause"))
		out[i] = TowerInput{CellID: id, Descriptor: desc, CauseCode: code}
	}
	return out
}

// SyntheticTickets builds n tickets with stable UUIDs. Each ticket starts out
// attached to one of cellIDs, or none when cellIDs is empty.
func SyntheticTickets(n int, cellIDs []string) []TicketInput {
	out := make([]TicketInput, n)
	for i := range out {
		key := strconv.Itoa(i)
		in := TicketInput{
			TicketID: uuid.NewSHA1(ticketNamespace, []byte(key)).String(),
			Request:  requestCatalog[pick(populationSeed, key, "request", len(requestCatalog))],
		}
		if len(cellIDs) > 0 {
			in.CellID = cellIDs[pick(populationSeed, key, "cell", len(cellIDs))]
		}
		out[i] = in
	}
	return out
}
