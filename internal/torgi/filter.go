package torgi

import (
	"errors"
	"fmt"
	"time"

	"github.com/mishannn/torgiparser-go/internal/utils"
)

var (
	ErrEmptySubjects  = errors.New("at least one subject is required")
	ErrEmptyStatuses  = errors.New("at least one lot status is required")
	ErrInvalidDateRng = errors.New("date_from is after date_to")
)

// Filter is the set of search parameters for one run.
type Filter struct {
	Subjects           []string
	Statuses           []string
	DateFrom           *time.Time
	DateTo             *time.Time
	ComputeCoordinates bool
}

// NewFilter de-duplicates subjects and statuses and validates the result.
func NewFilter(subjects, statuses []string, dateFrom, dateTo *time.Time, computeCoordinates bool) (Filter, error) {
	f := Filter{
		Subjects:           utils.RemoveDuplicates(subjects),
		Statuses:           utils.RemoveDuplicates(statuses),
		DateFrom:           dateFrom,
		DateTo:             dateTo,
		ComputeCoordinates: computeCoordinates,
	}

	if err := f.Validate(); err != nil {
		return Filter{}, err
	}

	return f, nil
}

func (f Filter) Validate() error {
	if len(utils.RemoveDuplicates(f.Subjects)) == 0 {
		return ErrEmptySubjects
	}
	if len(utils.RemoveDuplicates(f.Statuses)) == 0 {
		return ErrEmptyStatuses
	}
	if f.DateFrom != nil && f.DateTo != nil && f.DateFrom.After(*f.DateTo) {
		return fmt.Errorf("%w: %s > %s", ErrInvalidDateRng, f.DateFrom.Format(time.DateOnly), f.DateTo.Format(time.DateOnly))
	}
	return nil
}
