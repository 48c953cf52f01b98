package main

import (
	"os"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// sessionOutput is the redacted session record. Token values are never printed.
type sessionOutput struct {
	Domain        string   `json:"domain"`
	DesiredStatus string   `json:"desired_status"`
	UserID        string   `json:"user_id"`
	HasAuthToken  bool     `json:"has_auth_token"`
	HasCSRFToken  bool     `json:"has_csrf_token"`
	UpdatedAt     string   `json:"updated_at,omitempty"`
	Missing       []string `json:"missing"`
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Show the stored session record (secrets redacted)",
	Args:  cobra.NoArgs,
	RunE:  runSession,
}

func init() {
	addOutputFlag(sessionCmd)
}

func runSession(cmd *cobra.Command, _ []string) error {
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

	out := sessionOutput{
		Domain:        creds.Domain,
		DesiredStatus: string(creds.DesiredStatus),
		UserID:        creds.UserID,
		HasAuthToken:  creds.AuthToken != "",
		HasCSRFToken:  creds.CSRFToken != "",
		Missing:       creds.MissingFields(),
	}
	if out.Missing == nil {
		out.Missing = []string{}
	}
	if !creds.UpdatedAt.IsZero() {
		out.UpdatedAt = creds.UpdatedAt.Local().Format(time.RFC3339)
	}

	if done, err := writeOutput(cmd, os.Stdout, out); done || err != nil {
		return err
	}

	rows := pterm.TableData{{"Property", "Value"}}
	rows = append(rows, []string{"Domain", orDash(out.Domain)})
	rows = append(rows, []string{"Desired Status", orDash(out.DesiredStatus)})
	rows = append(rows, []string{"User ID", orDash(out.UserID)})
	rows = append(rows, []string{"Auth Token", presence(out.HasAuthToken)})
	rows = append(rows, []string{"CSRF Token", presence(out.HasCSRFToken)})
	rows = append(rows, []string{"Captured", orDash(out.UpdatedAt)})
	if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
		return err
	}

	if len(out.Missing) > 0 {
		pterm.Warning.Printfln("Not ready, missing: %s", strings.Join(out.Missing, ", "))
	}
	return nil
}

func presence(ok bool) string {
	if ok {
		return "present"
	}
	return "-"
}
