package main

import (
	"errors"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ericfisherdev/mmpresence/internal/application"
	"github.com/ericfisherdev/mmpresence/internal/domain/model"
)

type tickOutput struct {
	ID       string   `json:"id"`
	Outcome  string   `json:"outcome"`
	Observed string   `json:"observed,omitempty"`
	Desired  string   `json:"desired,omitempty"`
	Missing  []string `json:"missing,omitempty"`
	Error    string   `json:"error,omitempty"`
	Duration string   `json:"duration"`
}

var reassertCmd = &cobra.Command{
	Use:   "reassert",
	Short: "Run one reassertion tick now and print its outcome",
	Args:  cobra.NoArgs,
	RunE:  runReassert,
}

func init() {
	addOutputFlag(reassertCmd)
	reassertCmd.Flags().String("policy", "", "Override the configured policy (always, on-mismatch, when-away)")
}

func runReassert(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	env, err := openCLIEnv(ctx)
	if err != nil {
		return err
	}
	defer env.close()

	policy := env.cfg.ReassertPolicy()
	if p, _ := cmd.Flags().GetString("policy"); p != "" {
		policy = model.ReassertPolicy(p)
		if !policy.Valid() {
			return errors.New("policy must be one of always, on-mismatch, when-away")
		}
	}

	svc := application.NewReassertService(env.store, env.statusClient(), policy, env.cfg.Interval, env.logger)
	result := svc.RunNow(ctx)

	out := tickOutput{
		ID:       result.ID,
		Outcome:  string(result.Outcome),
		Observed: string(result.Observed),
		Desired:  string(result.Desired),
		Missing:  result.Missing,
		Error:    result.Error,
		Duration: result.FinishedAt.Sub(result.StartedAt).String(),
	}
	if done, err := writeOutput(cmd, os.Stdout, out); done || err != nil {
		return err
	}

	switch result.Outcome {
	case model.TickWritten:
		pterm.Success.Printfln("Status set to %s", result.Desired)
	case model.TickUnchanged:
		pterm.Info.Printfln("Status already %s, nothing written (policy %s)", result.Observed, policy)
	case model.TickSkippedMissing:
		pterm.Warning.Printfln("Skipped, missing: %s", strings.Join(result.Missing, ", "))
	case model.TickSkippedNoDesired:
		pterm.Warning.Println("Skipped, no desired status configured")
	default:
		pterm.Error.Printfln("Reassert failed: %s", result.Error)
		return errors.New("reassert failed")
	}
	return nil
}
