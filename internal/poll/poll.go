package poll

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gamenight/decider/internal/game"
)

// MaxOptions is the most options Telegram allows in one poll.
const MaxOptions = 10

// Plan is one poll to send: a tier, or a chunk of a tier that did not fit.
type Plan struct {
	Tier    game.Tier
	Part    int // 1-based, 0 when the tier fits one poll
	Parts   int
	Options []Candidate
}

// Title names the group, e.g. "Medium" or "Medium (1/2)".
func (p Plan) Title() string {
	if p.Parts <= 1 {
		return p.Tier.String()
	}
	return fmt.Sprintf("%s (%d/%d)", p.Tier, p.Part, p.Parts)
}

// Single reports whether the plan has one game and must be sent as text,
// since Telegram polls need at least two options.
func (p Plan) Single() bool {
	return len(p.Options) == 1
}

func (p Plan) Labels() []string {
	labels := make([]string, 0, len(p.Options))
	for _, o := range p.Options {
		labels = append(labels, o.Label())
	}
	return labels
}

// GroupByTier buckets candidates by complexity tier, each bucket sorted by
// weight and then name.
func GroupByTier(candidates []Candidate) map[game.Tier][]Candidate {
	groups := make(map[game.Tier][]Candidate)
	for _, c := range candidates {
		t := c.Game.Tier()
		groups[t] = append(groups[t], c)
	}
	for _, g := range groups {
		sort.SliceStable(g, func(i, j int) bool {
			if g[i].Game.Weight != g[j].Game.Weight {
				return g[i].Game.Weight < g[j].Game.Weight
			}
			return strings.ToLower(g[i].Game.Name) < strings.ToLower(g[j].Game.Name)
		})
	}
	return groups
}

// BuildPlans turns eligible candidates into polls, tiers in display order.
// Tiers larger than maxOptions are split into evenly sized chunks.
func BuildPlans(eligible []Candidate, maxOptions int) []Plan {
	if maxOptions < 2 {
		maxOptions = 2
	}
	groups := GroupByTier(eligible)

	var plans []Plan
	for _, tier := range game.Tiers {
		group := groups[tier]
		if len(group) == 0 {
			continue
		}
		for i, chunk := range split(group, maxOptions) {
			p := Plan{Tier: tier, Options: chunk}
			if n := (len(group) + maxOptions - 1) / maxOptions; n > 1 {
				p.Part, p.Parts = i+1, n
			}
			plans = append(plans, p)
		}
	}
	return plans
}

// split divides items into the fewest chunks of at most size items whose
// lengths differ by at most one, so no chunk ends up with a single game.
func split(items []Candidate, size int) [][]Candidate {
	n := (len(items) + size - 1) / size
	if n <= 1 {
		return [][]Candidate{items}
	}
	base, extra := len(items)/n, len(items)%n

	chunks := make([][]Candidate, 0, n)
	start := 0
	for i := 0; i < n; i++ {
		end := start + base
		if i < extra {
			end++
		}
		chunks = append(chunks, items[start:end])
		start = end
	}
	return chunks
}
