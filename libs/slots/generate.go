package slots

// Candidate is one bookable interval of a day, without availability information.
type Candidate struct {
	Start Clock `json:"start"`
	End   Clock `json:"end"`
}

// Annotated is a candidate slot with its availability at query time.
type Annotated struct {
	Start     Clock `json:"start"`
	End       Clock `json:"end"`
	Available bool  `json:"is_available"`
}

// Generate enumerates the candidate slots of p in the order the starts were configured.
// It is pure and deterministic. End times that would pass midnight wrap modulo 24h; saved
// patterns cannot contain such slots because Validate rejects them.
func Generate(p Pattern) []Candidate {
	out := make([]Candidate, 0, len(p.Starts))
	for _, s := range p.Starts {
		out = append(out, Candidate{Start: s, End: s.Add(p.DurationMinutes)})
	}
	return out
}

// Annotate marks each candidate unavailable when a non-cancelled reservation holds its start
// time. The output has the same length and order as candidates.
func Annotate(candidates []Candidate, reserved []Clock) []Annotated {
	taken := make(map[Clock]struct{}, len(reserved))
	for _, r := range reserved {
		taken[r] = struct{}{}
	}
	out := make([]Annotated, 0, len(candidates))
	for _, c := range candidates {
		_, isTaken := taken[c.Start]
		out = append(out, Annotated{Start: c.Start, End: c.End, Available: !isTaken})
	}
	return out
}

// AllAvailable annotates every candidate as available.
func AllAvailable(candidates []Candidate) []Annotated {
	return Annotate(candidates, nil)
}
