package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/zombor/fridge-chef/internal/chef"
	"github.com/zombor/fridge-chef/internal/kitchen"
	"github.com/zombor/fridge-chef/internal/llm"
	"github.com/zombor/fridge-chef/internal/render"
	"github.com/zombor/fridge-chef/internal/scanning"
	"github.com/zombor/fridge-chef/internal/session"
)

// errorResponse is the JSON body of every failed API call
type errorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

// classify maps a pipeline error to a status code and a message that is safe
// to show to the user. Raw model replies never reach the response.
func classify(err error) (int, errorResponse) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, errorResponse{Error: "Session not found. Please start over."}

	case errors.Is(err, scanning.ErrInvalidImage),
		errors.Is(err, scanning.ErrNoImages),
		errors.Is(err, kitchen.ErrEmptyIngredient),
		errors.Is(err, kitchen.ErrNoIngredientsSelected),
		errors.Is(err, kitchen.ErrInvalidCount),
		errors.Is(err, session.ErrIndexOutOfRange):
		return http.StatusBadRequest, errorResponse{Error: err.Error()}

	case errors.Is(err, session.ErrBusy):
		return http.StatusConflict, errorResponse{Error: "Still working on the previous request. Please wait.", Retryable: true}
	case errors.Is(err, session.ErrStale):
		return http.StatusConflict, errorResponse{Error: "The session changed while this request was running. Its result was discarded."}
	case errors.Is(err, session.ErrInvalidTransition):
		return http.StatusConflict, errorResponse{Error: err.Error()}

	case errors.Is(err, scanning.ErrNoIngredients):
		return http.StatusUnprocessableEntity, errorResponse{
			Error:     "No food was recognized in the photos. Try a clearer photo or add ingredients by hand.",
			Retryable: true,
		}
	case errors.Is(err, scanning.ErrExtractionService):
		return http.StatusBadGateway, errorResponse{
			Error:     "The ingredient recognition service is unavailable. Please try again.",
			Retryable: serviceRetryable(err),
		}
	case errors.Is(err, scanning.ErrExtractionParse):
		return http.StatusBadGateway, errorResponse{Error: "Could not read the ingredient list. Please try again.", Retryable: true}
	case errors.Is(err, chef.ErrGenerationService):
		return http.StatusBadGateway, errorResponse{
			Error:     "The recipe service is unavailable. Please try again.",
			Retryable: serviceRetryable(err),
		}
	case errors.Is(err, chef.ErrGenerationParse):
		return http.StatusBadGateway, errorResponse{Error: "Could not read the suggested recipes. Please try again.", Retryable: true}

	case errors.Is(err, render.ErrRender):
		return http.StatusInternalServerError, errorResponse{Error: "Could not create the PDF for this recipe."}
	}
	return http.StatusInternalServerError, errorResponse{Error: "Internal server error"}
}

// serviceRetryable is false only for failures a retry cannot fix, like a bad API key
func serviceRetryable(err error) bool {
	var se *llm.ServiceError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return true
}

// writeError writes err as a JSON error response with CORS headers set
func writeError(w http.ResponseWriter, err error) {
	code, body := classify(err)
	if code >= http.StatusInternalServerError {
		slog.Error("Request failed", "status", code, "error", err)
	} else {
		slog.Debug("Request rejected", "status", code, "error", err)
	}
	writeJSONError(w, code, body)
}

func writeJSONError(w http.ResponseWriter, code int, body errorResponse) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}
