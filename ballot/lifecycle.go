// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ballot

import (
	"time"

	"github.com/danielhkuo/unionvote/models"
)

// DeriveStatus computes an election's status at now. Cancelled is terminal;
// otherwise the result depends only on the date window, both ends inclusive.
func DeriveStatus(e *models.Election, now time.Time) string {
	switch {
	case e.Status == models.StatusCancelled:
		return models.StatusCancelled
	case now.Before(e.StartDate):
		return models.StatusUpcoming
	case !now.After(e.EndDate):
		return models.StatusActive
	default:
		return models.StatusCompleted
	}
}

// CanVote reports whether a member of voterDivision may vote in e at now.
// The stored status is ignored.
func CanVote(e *models.Election, voterDivision string, now time.Time) bool {
	if DeriveStatus(e, now) != models.StatusActive {
		return false
	}
	return e.Division == models.DivisionAll || e.Division == voterDivision
}

// CanSee reports whether an election is visible to a member of
// voterDivision
func CanSee(e *models.Election, voterDivision string) bool {
	return e.Division == models.DivisionAll || e.Division == voterDivision
}
