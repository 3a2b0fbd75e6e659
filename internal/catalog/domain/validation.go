package domain

import "strings"

// ValidateInput checks the tier shape shared by create and update. The
// disjointness of sibling ranges is a documented catalog invariant, not a
// runtime check.
func ValidateInput(input PlanInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return ErrInvalidName
	}
	if input.PricePerMinute <= 0 {
		return ErrInvalidPrice
	}
	if input.RangeStart < 0 {
		return ErrInvalidRangeStart
	}

	if input.IsLast {
		if input.RangeEnd != nil {
			return ErrRangeEndForbidden
		}
		return nil
	}

	if input.RangeEnd == nil {
		return ErrMissingRangeEnd
	}
	if input.RangeStart >= *input.RangeEnd {
		return ErrInvalidRange
	}
	return nil
}
