package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"voble/internal/config"
	gamecore "voble/internal/game"
	"voble/internal/play"

	"github.com/spf13/cobra"
)

var errNotPlayable = errors.New("game did not reach the playing phase")

type playService interface {
	Reconcile(ctx context.Context) (gamecore.State, error)
	StartGame(ctx context.Context) (gamecore.State, error)
	SubmitGuess(ctx context.Context, guess string) (play.GuessResult, error)
	CompleteGame(ctx context.Context) (play.CompleteResult, error)
	Subscribe(ctx context.Context) (<-chan gamecore.State, func(), error)
}

func newPlayCommand() *cobra.Command {
	var (
		guesses  []string
		complete bool
		timeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Start today's game and submit guesses",
		Long: `Reconcile today's game for the configured wallet (recovering or
restoring it as needed), start it when it is not already running, wait
until it is playable, then submit each --guess in order. A guess that
finishes the game completes it automatically.

Example:
  voble play --guess PLANET --guess BRIDGE
  voble play --complete`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadApp()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			rt, err := newRuntime(ctx, cfg)
			if err != nil {
				return err
			}
			defer rt.Close()
			return runPlay(ctx, rt.service, cmd.OutOrStdout(), guesses, complete)
		},
	}
	cmd.Flags().StringArrayVar(&guesses, "guess", nil, "word to guess (repeatable)")
	cmd.Flags().BoolVar(&complete, "complete", false, "complete the game after the guesses")
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Minute, "overall deadline")
	return cmd
}

func runPlay(ctx context.Context, svc playService, out io.Writer, guesses []string, complete bool) error {
	st, err := svc.Reconcile(ctx)
	if err != nil {
		return err
	}
	if st.Phase != gamecore.PhasePlaying {
		if _, err := svc.StartGame(ctx); err != nil {
			return err
		}
		st, err = waitPlayable(ctx, svc)
		if err != nil {
			return err
		}
	}
	if err := printJSON(out, st); err != nil {
		return err
	}

	for _, g := range guesses {
		res, err := svc.SubmitGuess(ctx, g)
		if err != nil {
			return err
		}
		if err := printJSON(out, res); err != nil {
			return err
		}
		if !res.Success {
			return errors.New(res.Error)
		}
		if res.Completion != nil {
			return nil
		}
	}
	if !complete {
		return nil
	}
	res, err := svc.CompleteGame(ctx)
	if err != nil {
		return err
	}
	if err := printJSON(out, res); err != nil {
		return err
	}
	if !res.Success {
		return errors.New(res.Error)
	}
	return nil
}

// waitPlayable follows the coordinator until it settles in playing, or
// fails when it lands in error, result, or idle with a message.
func waitPlayable(ctx context.Context, svc playService) (gamecore.State, error) {
	ch, cancel, err := svc.Subscribe(ctx)
	if err != nil {
		return gamecore.State{}, err
	}
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return gamecore.State{}, ctx.Err()
		case st, ok := <-ch:
			if !ok {
				return gamecore.State{}, errNotPlayable
			}
			switch st.Phase {
			case gamecore.PhasePlaying:
				return st, nil
			case gamecore.PhaseError:
				return st, fmt.Errorf("%w: %s", errNotPlayable, st.Error)
			case gamecore.PhaseResult:
				return st, fmt.Errorf("%w: game already finished", errNotPlayable)
			case gamecore.PhaseIdle:
				if st.Error != "" {
					return st, fmt.Errorf("%w: %s", errNotPlayable, st.Error)
				}
			}
		}
	}
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
