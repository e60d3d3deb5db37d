package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newConversationsCmd() *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"ls"},
		Short:   "List conversations, newest first",
		Args:    cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			me, err := a.session(ctx)
			if err != nil {
				return err
			}
			c, err := a.newCoordinator(me)
			if err != nil {
				return err
			}

			c.LoadConversations(ctx)
			if s := c.State(); s.ListError != "" {
				return errors.New(s.ListError)
			}

			convs := c.State().Conversations
			if q := strings.TrimSpace(search); q != "" {
				convs = c.Filter(q)
				if _, err := a.searches.Add(ctx, me.ID, q); err != nil {
					a.log.Sugar().Warnf("could not remember search %q: %v", q, err)
				}
			}

			if len(convs) == 0 {
				fmt.Fprintln(a.out, "No conversations.")
				return nil
			}
			now := time.Now()
			for _, conv := range convs {
				fmt.Fprintln(a.out, formatConversationLine(conv, now))
			}
			return nil
		}),
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "only show conversations whose name or last message contains this")
	return cmd
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <participant-id>",
		Short: "Start (or find) a conversation with another user",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if _, err := a.session(ctx); err != nil {
				return err
			}
			conv, err := a.gateway.StartConversation(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Conversation %s with %s.\n", conv.ID, conv.Participant.DisplayName)
			return nil
		}),
	}
}

func newSearchesCmd() *cobra.Command {
	var forget bool

	cmd := &cobra.Command{
		Use:   "searches",
		Short: "Show recent conversation searches",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			me, err := a.session(ctx)
			if err != nil {
				return err
			}
			if forget {
				return a.searches.Clear(ctx, me.ID)
			}

			terms, err := a.searches.List(ctx, me.ID)
			if err != nil {
				return err
			}
			if len(terms) == 0 {
				fmt.Fprintln(a.out, "No recent searches.")
			}
			for _, term := range terms {
				fmt.Fprintln(a.out, term)
			}
			return nil
		}),
	}

	cmd.Flags().BoolVar(&forget, "clear", false, "forget recent searches")
	return cmd
}
