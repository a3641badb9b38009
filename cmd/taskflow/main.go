// Package main implements the taskflow CLI, a client of the TaskFlow HTTP API.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/IDGHIM/TaskFlow/domain"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	server string
	token  string
}

func (o *options) client() *client { return newClient(o.server, o.token) }

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "taskflow",
		Short:        "Manage your TaskFlow task list from the terminal",
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.server, "server", envOr("TASKFLOW_SERVER", "http://localhost:8080"), "TaskFlow API URL")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("TASKFLOW_TOKEN"), "bearer token sent to the API")

	root.AddCommand(
		newListCmd(opts),
		newAddCmd(opts),
		newToggleCmd(opts),
		newRemoveCmd(opts),
		newEditCmd(opts),
		newHealthCmd(opts),
	)
	return root
}

func newListCmd(opts *options) *cobra.Command {
	var filter, search string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tasks",
		Long: `List tasks, optionally filtered by completion and a search term.

Examples:
  taskflow list
  taskflow list --filter active --search react`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := opts.client().view(cmd.Context(), filter, search)
			if err != nil {
				return err
			}
			renderView(cmd.OutOrStdout(), v)
			return nil
		},
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", "all", "all, active or completed")
	cmd.Flags().StringVarP(&search, "search", "s", "", "case-insensitive text or category search")
	return cmd
}

func newAddCmd(opts *options) *cobra.Command {
	var priority, due, category string
	cmd := &cobra.Command{
		Use:   "add <text>",
		Short: "Add a task",
		Long: `Add a task at the top of the list.

Examples:
  taskflow add "Buy milk"
  taskflow add "Ship release" --priority high --due 2025-10-01 --category work`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			resp, err := opts.client().send(cmd.Context(), command{
				Type: "add",
				Data: map[string]string{"text": text, "priority": priority, "dueDate": due, "category": category},
			})
			if err != nil {
				return err
			}
			return report(cmd, resp, "Task added.", "Nothing added: the text is empty.")
		},
	}
	cmd.Flags().StringVarP(&priority, "priority", "p", "medium", "low, medium or high")
	cmd.Flags().StringVarP(&due, "due", "d", "", "due date as YYYY-MM-DD")
	cmd.Flags().StringVarP(&category, "category", "c", string(domain.CategoryPersonal), "one of "+categoryNames())
	return cmd
}

func newToggleCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Flip a task between pending and completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			resp, err := opts.client().send(cmd.Context(), command{Type: "toggle", Data: map[string]int64{"id": id}})
			if err != nil {
				return err
			}
			return report(cmd, resp, "Task updated.", fmt.Sprintf("No task with id %d.", id))
		},
	}
}

func newRemoveCmd(opts *options) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove"},
		Short:   "Remove a task after confirmation",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if !yes && !confirm(cmd, fmt.Sprintf("Remove task %d? [y/N] ", id)) {
				fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
				return nil
			}
			resp, err := opts.client().send(cmd.Context(), command{
				Type: "remove",
				Data: map[string]any{"id": id, "confirm": true},
			})
			if err != nil {
				return err
			}
			return report(cmd, resp, "Task removed.", fmt.Sprintf("No task with id %d.", id))
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newEditCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <id> <text>",
		Short: "Replace the text of a task",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			resp, err := opts.client().send(cmd.Context(), command{
				Type: "update-text",
				Data: map[string]any{"id": id, "text": strings.Join(args[1:], " ")},
			})
			if err != nil {
				return err
			}
			return report(cmd, resp, "Task renamed.", "Nothing changed.")
		},
	}
}

func newHealthCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the API is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.client().health(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}

func report(cmd *cobra.Command, resp commandResponse, applied, noop string) error {
	if resp.Error != "" {
		return fmt.Errorf("server rejected command: %s", resp.Error)
	}
	msg := noop
	if len(resp.Results) > 0 && resp.Results[0].Applied {
		msg = applied
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg)
	if resp.Counts != nil {
		fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render(fmt.Sprintf("%d total, %d completed, %d pending",
			resp.Counts.Total, resp.Counts.Completed, resp.Counts.Pending)))
	}
	return nil
}

func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", "o", "oui":
		return true
	default:
		return false
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return id, nil
}

func categoryNames() string {
	names := make([]string, len(domain.Categories))
	for i, c := range domain.Categories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
