package poll

import "sort"

// StarBoost is added to an option's score for every player that starred it.
const StarBoost = 0.5

// OptionVotes is the final count of one poll option. Stars are the ones the
// game carried when its poll was sent.
type OptionVotes struct {
	Name  string
	Votes int
	Stars int
}

type Score struct {
	Name  string
	Votes int
	Stars int
	Score float64
}

type Result struct {
	Scores   []Score // highest first
	Winners  []Score
	Weighted bool
}

// Tally scores options across all polls of a lobby. Options with the best
// positive score win; ties keep every winner.
func Tally(options []OptionVotes, weighted bool) Result {
	scores := make([]Score, 0, len(options))
	for _, o := range options {
		s := Score{
			Name:  o.Name,
			Votes: o.Votes,
			Stars: o.Stars,
			Score: float64(o.Votes),
		}
		if weighted {
			s.Score += StarBoost * float64(s.Stars)
		}
		scores = append(scores, s)
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})

	res := Result{Scores: scores, Weighted: weighted}
	if len(scores) == 0 || scores[0].Score <= 0 {
		return res
	}
	best := scores[0].Score
	for _, s := range scores {
		if s.Score != best {
			break
		}
		res.Winners = append(res.Winners, s)
	}
	return res
}
