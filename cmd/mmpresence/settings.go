package main

import (
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ericfisherdev/mmpresence/internal/application"
	"github.com/ericfisherdev/mmpresence/internal/domain/model"
)

type settingsOutput struct {
	Domain        string `json:"domain"`
	DesiredStatus string `json:"desired_status"`
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show the stored domain and desired status",
	Args:  cobra.NoArgs,
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update the stored domain and/or desired status",
	Long: `Update the stored domain and/or desired status.

Only flags that are given change the stored value; pass an empty value
(e.g. --status "") to clear it.`,
	Args: cobra.NoArgs,
	RunE: runSettingsSet,
}

func init() {
	addOutputFlag(settingsCmd)
	addOutputFlag(settingsSetCmd)
	settingsSetCmd.Flags().String("domain", "", "Mattermost host name, e.g. chat.example.com")
	settingsSetCmd.Flags().String("status", "", "Desired status: online, away, offline or dnd")
	settingsCmd.AddCommand(settingsSetCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	env, err := openCLIEnv(ctx)
	if err != nil {
		return err
	}
	defer env.close()

	settings, err := application.NewSettingsService(env.store, env.logger).Get(ctx)
	if err != nil {
		return err
	}
	return printSettings(cmd, settings)
}

func runSettingsSet(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	env, err := openCLIEnv(ctx)
	if err != nil {
		return err
	}
	defer env.close()

	svc := application.NewSettingsService(env.store, env.logger)
	settings, err := svc.Get(ctx)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("domain") {
		settings.Domain, _ = cmd.Flags().GetString("domain")
	}
	if cmd.Flags().Changed("status") {
		status, _ := cmd.Flags().GetString("status")
		settings.DesiredStatus = model.Status(status)
	}

	if err := svc.Update(ctx, settings); err != nil {
		pterm.Error.Println(err.Error())
		return err
	}

	stored, err := svc.Get(ctx)
	if err != nil {
		return err
	}
	if output, _ := cmd.Flags().GetString("output"); output == "" {
		pterm.Success.Println("Settings updated")
	}
	return printSettings(cmd, stored)
}

func printSettings(cmd *cobra.Command, settings model.Settings) error {
	out := settingsOutput{Domain: settings.Domain, DesiredStatus: string(settings.DesiredStatus)}
	if done, err := writeOutput(cmd, os.Stdout, out); done || err != nil {
		return err
	}

	rows := pterm.TableData{{"Property", "Value"}}
	rows = append(rows, []string{"Domain", orDash(out.Domain)})
	rows = append(rows, []string{"Desired Status", orDash(out.DesiredStatus)})
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}
