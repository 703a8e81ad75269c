package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"loan-workers/pkg/registry"
)

func newRegistryCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect and maintain the activity registry",
	}
	cmd.PersistentFlags().StringVar(&path, "path", registry.DefaultPath, "Path to the registry file")

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Check the registry for missing fields and duplicates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := registry.LoadRegistry(path)
			if err != nil {
				return err
			}
			if err := reg.Validate(); err != nil {
				return fmt.Errorf("registry validation failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registry validation passed. Found %d activities.\n", len(reg.Activities))
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List registered activities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := registry.LoadRegistry(path)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TASK TYPE\tCATEGORY\tSTATUS\tTIMEOUT\tRETRIES")
			for _, a := range reg.Activities {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", a.TaskType, a.Category, a.Status, a.Timeout, a.Retries)
			}
			return tw.Flush()
		},
	}

	check := &cobra.Command{
		Use:   "check <task-type> <variables-file|->",
		Short: "Validate job variables against an activity's input schema",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := registry.LoadRegistry(path)
			if err != nil {
				return err
			}
			activity, ok := reg.Lookup(args[0])
			if !ok {
				return fmt.Errorf("%w: %s", registry.ErrActivityNotFound, args[0])
			}
			variables, err := readInput(cmd.InOrStdin(), args[1])
			if err != nil {
				return err
			}
			res, err := activity.ValidateInput(variables)
			if err != nil {
				return err
			}
			if err := writeOutput(cmd.OutOrStdout(), rootFlags.format, res); err != nil {
				return err
			}
			if !res.Valid {
				return fmt.Errorf("variables do not match the %s input schema", activity.TaskType)
			}
			return nil
		},
	}

	var add registry.Activity
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Register a new activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := registry.LoadRegistry(path)
			if err != nil {
				return err
			}
			if add.TaskType == "" {
				add.TaskType = add.ID
			}
			if err := reg.Add(add, time.Now()); err != nil {
				return err
			}
			if err := reg.Validate(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added activity: %s\n", add.ID)
			return reg.Save(path)
		},
	}
	af := addCmd.Flags()
	af.StringVar(&add.ID, "id", "", "Activity id")
	af.StringVar(&add.DisplayName, "display-name", "", "Display name")
	af.StringVar(&add.Description, "description", "", "Description")
	af.StringVar(&add.Category, "category", "", "Category (intake, decisioning, query, persistence, communication)")
	af.StringVar(&add.TaskType, "task-type", "", "Zeebe task type (defaults to the id)")
	af.StringVar(&add.Version, "version", "1.0.0", "Version")
	af.StringVar(&add.Status, "status", registry.StatusPlanned, "Implementation status")
	af.StringVar(&add.Timeout, "timeout", "10s", "Job timeout")
	_ = addCmd.MarkFlagRequired("id")
	_ = addCmd.MarkFlagRequired("display-name")
	_ = addCmd.MarkFlagRequired("category")

	update := &cobra.Command{
		Use:   "update <id> <field> <value>",
		Short: "Change one field of an activity",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := registry.LoadRegistry(path)
			if err != nil {
				return err
			}
			if err := reg.Update(args[0], args[1], args[2], time.Now()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated activity %s, field %s to %s\n", args[0], args[1], args[2])
			return reg.Save(path)
		},
	}

	cmd.AddCommand(validate, list, check, addCmd, update)
	return cmd
}
