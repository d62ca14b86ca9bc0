package conversation

import "regexp"

// Hints lists the 1-based turn positions where the user seemed confused or
// signalled comprehension. A turn can appear in both lists.
type Hints struct {
	ConfuseTurns []int `json:"confuse_turns"`
	OKTurns      []int `json:"ok_turns"`
}

var (
	confuseRe = regexp.MustCompile(`(?i)(다시|무슨 뜻|뭔 뜻|헷갈|모르겠|이해가 안|\bagain\b|\bwhat does\b|\bwhat do you mean\b|\bconfus|\bdon'?t understand\b|\bdo not understand\b|\bwhy\b|\bexplain|\bproof\b|\bexamples?\b)`)
	okRe      = regexp.MustCompile(`(?i)(알겠|이해했|이해됐|이해돼|오케이|맞네|\bunderstood\b|\bgot it\b|\bokay\b|\bok\b|\bclear\b|\bright\b|\bmakes sense\b)`)
)

// ExtractHints scans user turns for confusion and comprehension markers.
func ExtractHints(turns []Turn) Hints {
	h := Hints{ConfuseTurns: []int{}, OKTurns: []int{}}
	for i, t := range turns {
		if t.Role != RoleUser {
			continue
		}
		if confuseRe.MatchString(t.Content) {
			h.ConfuseTurns = append(h.ConfuseTurns, i+1)
		}
		if okRe.MatchString(t.Content) {
			h.OKTurns = append(h.OKTurns, i+1)
		}
	}
	return h
}
