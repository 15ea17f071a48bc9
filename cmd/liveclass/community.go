package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skillforge/liveclass/internal/directory"
	"github.com/skillforge/liveclass/internal/liveclass"
)

var requestFilter string

var communityCmd = &cobra.Command{
	Use:   "community",
	Short: "Join communities and moderate join requests",
}

var communityJoinCmd = &cobra.Command{
	Use:   "join <slug>",
	Short: "Ask to join a community",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := newDirectory()
		if err != nil {
			return err
		}
		msg, err := dir.JoinCommunity(cmd.Context(), args[0])
		if err != nil {
			return friendly(err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), noticeStyle.Render(msg))
		return nil
	},
}

var requestsCmd = &cobra.Command{
	Use:   "requests <slug>",
	Short: "List join requests of a community you own",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := newDirectory()
		if err != nil {
			return err
		}
		list, err := dir.JoinRequests(cmd.Context(), args[0], requestFilter)
		if err != nil {
			return friendly(err)
		}
		return renderJoinRequests(cmd.OutOrStdout(), list)
	},
}

var approveCmd = &cobra.Command{
	Use:   "approve <slug> <request-id>",
	Short: "Approve a join request",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return respond(cmd, args, liveclass.ActionApprove)
	},
}

var rejectCmd = &cobra.Command{
	Use:   "reject <slug> <request-id>",
	Short: "Reject a join request",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return respond(cmd, args, liveclass.ActionReject)
	},
}

var participantsCmd = &cobra.Command{
	Use:   "participants <slug>",
	Short: "List community members",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := newDirectory()
		if err != nil {
			return err
		}
		list, err := dir.Participants(cmd.Context(), args[0])
		if err != nil {
			return friendly(err)
		}
		return renderParticipants(cmd.OutOrStdout(), list)
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <slug> <user-id>",
	Short: "Remove a member from a community you own",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := parseID(args[1])
		if err != nil {
			return err
		}
		dir, err := newDirectory()
		if err != nil {
			return err
		}
		list, err := dir.RemoveParticipant(cmd.Context(), args[0], userID)
		if err != nil {
			return friendly(err)
		}
		return renderParticipants(cmd.OutOrStdout(), list)
	},
}

func respond(cmd *cobra.Command, args []string, action string) error {
	id, err := parseID(args[1])
	if err != nil {
		return err
	}
	dir, err := newDirectory()
	if err != nil {
		return err
	}
	list, err := dir.RespondJoinRequest(cmd.Context(), args[0], id, action)
	if err != nil {
		return friendly(err)
	}
	return renderJoinRequests(cmd.OutOrStdout(), list)
}

func init() {
	rootCmd.AddCommand(communityCmd)
	communityCmd.AddCommand(communityJoinCmd, requestsCmd, approveCmd, rejectCmd, participantsCmd, removeCmd)
	requestsCmd.Flags().StringVar(&requestFilter, "status", directory.FilterPending,
		"Filter: pending, approved, rejected or all")
}
