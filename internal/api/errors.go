package api

import (
	"errors"
	"net/http"

	"pos-service/internal/models"
)

// statusForError maps the domain error taxonomy onto HTTP statuses.
// Forbidden and NotFound stay distinct, AlreadyProcessed is a conflict the
// caller must not retry, and exhausted-retry conflicts surface as transient.
func statusForError(err error) int {
	var (
		validation   *models.ValidationError
		insufficient *models.InsufficientStockError
		notFound     *models.NotFoundError
		forbidden    *models.ForbiddenError
		processed    *models.AlreadyProcessedError
		exceeds      *models.ExceedsBalanceError
		noMatch      *models.NoMatchingSaleError
		conflict     *models.ConflictError
	)

	switch {
	case errors.As(err, &validation), errors.As(err, &exceeds), errors.As(err, &noMatch):
		return http.StatusBadRequest
	case errors.As(err, &insufficient):
		return http.StatusUnprocessableEntity
	case errors.As(err, &forbidden):
		return http.StatusForbidden
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &processed):
		return http.StatusConflict
	case errors.As(err, &conflict):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorBody shapes the response payload, attaching structured detail for
// the errors a POS client acts on programmatically.
func errorBody(err error) map[string]interface{} {
	body := map[string]interface{}{"error": err.Error()}

	var insufficient *models.InsufficientStockError
	if errors.As(err, &insufficient) {
		body["product_id"] = insufficient.ProductID
		body["product_name"] = insufficient.ProductName
		body["available"] = insufficient.Available
		body["requested"] = insufficient.Requested
	}

	var exceeds *models.ExceedsBalanceError
	if errors.As(err, &exceeds) {
		body["balance"] = exceeds.Balance.StringFixed(2)
	}

	var validation *models.ValidationError
	if errors.As(err, &validation) && validation.Field != "" {
		body["field"] = validation.Field
	}

	return body
}
