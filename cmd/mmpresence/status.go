package main

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ericfisherdev/mmpresence/internal/application"
	"github.com/ericfisherdev/mmpresence/internal/domain/model"
)

type statusOutput struct {
	Domain  string `json:"domain"`
	UserID  string `json:"user_id"`
	Status  string `json:"status"`
	Desired string `json:"desired_status"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Read the current presence status from Mattermost using the stored session",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	addOutputFlag(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	env, err := openCLIEnv(ctx)
	if err != nil {
		return err
	}
	defer env.close()

	creds, err := env.store.Get(ctx)
	if err != nil {
		return err
	}
	if missing := creds.MissingFields(); len(missing) > 0 {
		pterm.Warning.Printfln("Session incomplete, missing: %v", missing)
		return application.ErrMissingCredentials
	}

	status, err := env.statusClient().ReadStatus(ctx, creds.Target())
	if err != nil {
		pterm.Error.Printfln("Could not read status from %s", creds.Domain)
		return err
	}

	out := statusOutput{
		Domain:  creds.Domain,
		UserID:  creds.UserID,
		Status:  string(status),
		Desired: string(creds.DesiredStatus),
	}
	if done, err := writeOutput(cmd, os.Stdout, out); done || err != nil {
		return err
	}

	rows := pterm.TableData{{"Property", "Value"}}
	rows = append(rows, []string{"Domain", out.Domain})
	rows = append(rows, []string{"User ID", out.UserID})
	rows = append(rows, []string{"Status", statusLabel(status)})
	rows = append(rows, []string{"Desired", orDash(out.Desired)})
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

var statusColors = map[model.Status]pterm.RGB{
	model.StatusOnline:  pterm.NewRGB(6, 214, 160),
	model.StatusAway:    pterm.NewRGB(255, 188, 31),
	model.StatusDND:     pterm.NewRGB(210, 75, 78),
	model.StatusOffline: pterm.NewRGB(128, 128, 128),
}

func statusLabel(s model.Status) string {
	rgb, ok := statusColors[s]
	if !ok {
		return string(s)
	}
	return fmt.Sprintf("%s %s", rgb.Sprint("●"), s)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
