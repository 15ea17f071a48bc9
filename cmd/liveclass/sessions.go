package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skillforge/liveclass/internal/directory"
)

var createTopic string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List active live classes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := newDirectory()
		if err != nil {
			return err
		}
		sessions, err := dir.ListSessions(cmd.Context())
		if err != nil {
			return friendly(err)
		}
		return renderSessions(cmd.OutOrStdout(), sessions)
	},
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one live class",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		dir, err := newDirectory()
		if err != nil {
			return err
		}
		s, err := dir.GetSession(cmd.Context(), id)
		if err != nil {
			return friendly(err)
		}
		return renderSession(cmd.OutOrStdout(), s)
	},
}

var createCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a live class (tutors only)",
	Long: `Create a live class with a generated meeting link.

The title may be given as several words; use --topic for a longer
description.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := newDirectory()
		if err != nil {
			return err
		}
		form := directory.NewCreateForm(dir)
		form.Title = strings.Join(args, " ")
		form.Topic = createTopic

		created, _, err := form.Submit(cmd.Context())
		if created == nil {
			return friendly(err)
		}
		return renderSession(cmd.OutOrStdout(), created)
	},
}

var closeCmd = &cobra.Command{
	Use:   "close <id>",
	Short: "Close a live class you created",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		dir, err := newDirectory()
		if err != nil {
			return err
		}
		if err := dir.CloseSession(cmd.Context(), id); err != nil {
			return friendly(err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), headerStyle.Render("Live class "+args[0]+" closed"))
		return nil
	},
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// friendly turns directory errors into a single user-facing message.
func friendly(err error) error {
	var verr *directory.ValidationError
	if errors.As(err, &verr) {
		return errors.New(verr.Error())
	}
	var rerr *directory.RequestError
	if errors.As(err, &rerr) {
		if rerr.Status == 0 {
			return errors.New("could not reach the server")
		}
		return errors.New(rerr.Message)
	}
	return err
}

func init() {
	rootCmd.AddCommand(listCmd, showCmd, createCmd, closeCmd)
	createCmd.Flags().StringVar(&createTopic, "topic", "", "Topic of the class")
}
