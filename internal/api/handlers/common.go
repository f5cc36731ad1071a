package handlers

import (
	"errors"
	"io"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"kraken-ladder-go/internal/exchange"
	"kraken-ladder-go/internal/instruments"
	"kraken-ladder-go/internal/ladder"
	"kraken-ladder-go/internal/models"
	"kraken-ladder-go/internal/persistence"
	"kraken-ladder-go/internal/submitter"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrorResponse mirrors Kraken's error envelope so the control panel handles
// relay and exchange errors the same way.
type ErrorResponse struct {
	Error []string `json:"error"`
}

// Catalog resolves pairs for the handlers.
type Catalog interface {
	Lookup(symbol string) (models.Instrument, error)
	Get(symbol string) (models.Instrument, bool)
	List() []models.Instrument
}

// requestError is a malformed or incomplete request body.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error { return &requestError{msg: msg} }

// statusFor maps an error to its HTTP status: input problems and exchange
// rejections are the caller's to fix, everything else is ours.
func statusFor(err error) int {
	var reqErr *requestError
	var krakenErr *models.KrakenError
	switch {
	case errors.Is(err, persistence.ErrPresetNotFound):
		return http.StatusNotFound
	case errors.As(err, &reqErr),
		errors.As(err, &krakenErr),
		ladder.IsValidation(err),
		errors.Is(err, instruments.ErrUnknownInstrument),
		errors.Is(err, exchange.ErrBatchSize),
		errors.Is(err, submitter.ErrEmptyPlan):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	var krakenErr *models.KrakenError
	msgs := []string{err.Error()}
	if errors.As(err, &krakenErr) && len(krakenErr.Messages) > 0 {
		msgs = krakenErr.Messages
	}
	writeJSON(w, statusFor(err), ErrorResponse{Error: msgs})
}

// decodeBody reads a JSON body into v. An empty body leaves v unchanged.
func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return badRequest("invalid request body: " + err.Error())
	}
	return nil
}
