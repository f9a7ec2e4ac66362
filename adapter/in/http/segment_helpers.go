package http

import (
	"errors"

	"segment_server/core/port/out"
	"segment_server/core/service/segmentation"
	"segment_server/pkg/apperr"
)

// toAppError maps core errors onto API error codes. Unknown errors become
// internal errors so their text never reaches the client.
func toAppError(err error) *apperr.AppError {
	var appErr *apperr.AppError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, segmentation.ErrInvalidRequest):
		return apperr.BadRequest(err.Error())
	case errors.Is(err, segmentation.ErrUnknownSegment):
		return apperr.NotFound("segment")
	case errors.Is(err, out.ErrCustomerNotFound):
		return apperr.NotFound("customer")
	case errors.Is(err, segmentation.ErrNoCustomers), errors.Is(err, segmentation.ErrAllFailed):
		return apperr.SegmentationFailed(err.Error())
	default:
		return apperr.InternalWithError(err)
	}
}

func clampLimit(n, def, max int) int {
	if n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
