package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/hammamikhairi/rendezvouscoach/internal/config"
	"github.com/hammamikhairi/rendezvouscoach/internal/logger"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#e4e4e7"))
	nameStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#bbf7d0")).Width(12)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#a1a1aa"))
)

func plansCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "plans",
		Short: "List the built-in plan presets and the plans of the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.loadConfig(time.Now())
			if err != nil {
				return err
			}
			src, err := planSource(cfg, time.Now, logger.New(logger.LevelOff, nil))
			if err != nil {
				return err
			}
			plans, err := src.List(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, headerStyle.Render("Plans"))
			for _, p := range plans {
				marker := " "
				if p.Name == cfg.Plan {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s %s  %s\n",
					marker,
					nameStyle.Render(p.Name),
					dimStyle.Render(fmt.Sprintf("%6.1f km  %3.0f min", p.Distance/1000, p.Trip.Minutes())),
					p.Description,
				)
			}
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage session files",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a session file with the default settings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "coach.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if err := config.DefaultConfig().SaveToFile(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")

	cmd.AddCommand(initCmd)
	return cmd
}
