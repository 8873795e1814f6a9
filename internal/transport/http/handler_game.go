package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	appgame "voble/internal/app/game"
	"voble/internal/game"
	"voble/internal/mcpserver"
)

// GameService is the registry the handlers drive.
type GameService interface {
	mcpserver.Service
	SetPhase(ctx context.Context, phase string) (game.State, error)
	Subscribe(ctx context.Context) (<-chan game.State, func(), error)
}

type GameHandlers struct {
	svc GameService
}

func NewGameHandlers(svc GameService) *GameHandlers {
	return &GameHandlers{svc: svc}
}

type phaseRequest struct {
	Phase string `json:"phase"`
}

type guessRequest struct {
	Guess string `json:"guess"`
}

func (h *GameHandlers) Period() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, h.svc.Period())
	}
}

func (h *GameHandlers) State() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := h.svc.State(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func (h *GameHandlers) Start() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricStartRequests.Add(1)
		st, err := h.svc.StartGame(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, st)
	}
}

func (h *GameHandlers) Retry() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := h.svc.Retry(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func (h *GameHandlers) SetPhase() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req phaseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		st, err := h.svc.SetPhase(r.Context(), req.Phase)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func (h *GameHandlers) Guess() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricGuessRequests.Add(1)
		var req guessRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		res, err := h.svc.SubmitGuess(r.Context(), req.Guess)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if !res.Success {
			metricGuessErrors.Add(1)
			writeJSON(w, http.StatusUnprocessableEntity, res)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (h *GameHandlers) Complete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := h.svc.CompleteGame(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if !res.Success {
			writeJSON(w, http.StatusUnprocessableEntity, res)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appgame.ErrInvalidRequest):
		WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
	case errors.Is(err, appgame.ErrInvalidPhase):
		WriteHTTPError(w, http.StatusBadRequest, "invalid_phase")
	case errors.Is(err, game.ErrIllegalTransition):
		WriteHTTPError(w, http.StatusConflict, "illegal_transition")
	case errors.Is(err, appgame.ErrClosed), errors.Is(err, game.ErrClosed):
		WriteHTTPError(w, http.StatusServiceUnavailable, "unavailable")
	default:
		WriteMessageError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
