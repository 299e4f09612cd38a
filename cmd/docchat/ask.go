package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/docchat"
	"github.com/hupe1980/docchat/router"
	"github.com/hupe1980/docchat/session"
)

type askOutput struct {
	Mode string `json:"mode"`
	router.Reply
}

func newAskCmd(opts *rootOptions) *cobra.Command {
	var (
		asJSON    bool
		sessionID string
	)

	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Answer a single message and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := docchat.New(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(ctx) }()

			reply, err := a.Ask(ctx, sessionID, strings.Join(args, " "))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(askOutput{Mode: reply.Mode.String(), Reply: reply})
			}
			_, err = fmt.Fprintln(out, reply.Text)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full reply as JSON")
	cmd.Flags().StringVar(&sessionID, "session", session.DefaultID, "session id")
	return cmd
}

func newCollectionsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "collections",
		Short: "List the collections in the configured database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger, _, err := docchat.NewLogger(opts.cfg)
			if err != nil {
				return err
			}
			gw, err := docchat.OpenGateway(ctx, opts.cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = gw.Close(ctx) }()

			names, err := gw.ListCollections(ctx)
			if err != nil {
				return err
			}
			for _, name := range names {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
