// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ballot

import (
	"math"
	"sort"

	"github.com/danielhkuo/unionvote/models"
)

// ComputeResults ranks candidates by vote count, highest first. candidates
// must be in creation order; equal counts keep that order. Percentages are
// rounded to two decimals and are all zero when no votes were cast.
func ComputeResults(e *models.Election, status string, candidates []models.Candidate) models.Results {
	ranked := make([]models.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Active {
			ranked = append(ranked, c)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].VoteCount > ranked[j].VoteCount
	})

	results := models.Results{
		ElectionID: e.ID,
		Title:      e.Title,
		Status:     status,
		TotalVotes: e.TotalVotes,
		Candidates: make([]models.CandidateResult, 0, len(ranked)),
	}

	for i, c := range ranked {
		results.Candidates = append(results.Candidates, models.CandidateResult{
			CandidateID: c.ID,
			FullName:    c.FullName,
			Position:    c.Position,
			Division:    c.Division,
			VoteCount:   c.VoteCount,
			Percentage:  percentage(c.VoteCount, e.TotalVotes),
			Rank:        i + 1,
		})
	}

	return results
}

func percentage(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(count)/float64(total)*100*100) / 100
}
