// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ballot

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/danielhkuo/unionvote/store"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrNotEligible         = errors.New("not eligible to vote in this election")
	ErrInvalidCandidate    = errors.New("invalid candidate for this election")
	ErrDuplicateVote       = errors.New("vote already cast in this election")
	ErrResultsNotAvailable = errors.New("results are not available until the election is completed")
	ErrStoreUnavailable    = errors.New("store temporarily unavailable")
	ErrInvalidInput        = errors.New("invalid input")
	ErrConflict            = errors.New("conflict")
)

// Kind describes how a domain error is presented to clients
type Kind struct {
	Status int
	Code   string
}

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrNotFound, Kind{http.StatusNotFound, "NOT_FOUND"}},
	{ErrNotEligible, Kind{http.StatusForbidden, "NOT_ELIGIBLE"}},
	{ErrInvalidCandidate, Kind{http.StatusBadRequest, "INVALID_CANDIDATE"}},
	{ErrDuplicateVote, Kind{http.StatusConflict, "DUPLICATE_VOTE"}},
	{ErrResultsNotAvailable, Kind{http.StatusForbidden, "RESULTS_NOT_AVAILABLE"}},
	{ErrStoreUnavailable, Kind{http.StatusServiceUnavailable, "STORE_UNAVAILABLE"}},
	{ErrInvalidInput, Kind{http.StatusBadRequest, "INVALID_INPUT"}},
	{ErrConflict, Kind{http.StatusConflict, "CONFLICT"}},
}

// KindOf returns the presentation of err. ok is false for unexpected errors,
// which should be logged and reported as a generic server error.
func KindOf(err error) (Kind, bool) {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind, true
		}
	}
	return Kind{http.StatusInternalServerError, "INTERNAL"}, false
}

// Retryable reports whether the same request may succeed later
func Retryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// fromStore translates store sentinels. notFound and conflict pick the domain
// error for the operation at hand.
func fromStore(err error, notFound, conflict error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrUnavailable):
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %v", notFound, err)
	case errors.Is(err, store.ErrConflict):
		return fmt.Errorf("%w: %v", conflict, err)
	}
	return err
}
