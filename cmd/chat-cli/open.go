package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ecoshare/internal/chat/coordinator"
)

func newOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <conversation>",
		Short: "Follow a conversation and send messages typed on stdin",
		Long: strings.TrimSpace(`
Open a conversation by id or participant name. New messages are printed as
they arrive. Every line typed is sent; /quit leaves.
`),
		Args: cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			me, err := a.session(ctx)
			if err != nil {
				return err
			}

			pr := newPrinter(a.out, me)
			c, err := a.newCoordinator(me, coordinator.WithOnChange(pr.OnChange))
			if err != nil {
				return err
			}

			c.LoadConversations(ctx)
			if s := c.State(); s.ListError != "" {
				return errors.New(s.ListError)
			}
			conv, err := resolveConversation(c.State().Conversations, args[0])
			if err != nil {
				return err
			}

			if err := c.Start(ctx); err != nil {
				return err
			}
			defer c.Close()

			fmt.Fprintf(a.out, "== %s ==\n", conv.Participant.DisplayName)
			a.showWelcome(ctx, me.ID, conv)
			pr.Follow(conv.ID)
			if err := c.Select(ctx, conv.ID); err != nil {
				return err
			}

			lines := make(chan string)
			go func() {
				defer close(lines)
				scanner := bufio.NewScanner(cmd.InOrStdin())
				for scanner.Scan() {
					lines <- scanner.Text()
				}
			}()

			for {
				select {
				case <-ctx.Done():
					return nil
				case line, ok := <-lines:
					if !ok || strings.TrimSpace(line) == "/quit" {
						return nil
					}
					err := c.SendMessage(ctx, line)
					switch {
					case errors.Is(err, coordinator.ErrEmptyMessage):
					case err != nil:
						fmt.Fprintf(a.out, "! %v\n", err)
					}
				}
			}
		}),
	}
}

func (a *app) showWelcome(ctx context.Context, userID string, conv coordinator.Conversation) {
	shown, err := a.welcome.Shown(ctx, userID, conv.ID)
	if err != nil || shown {
		return
	}
	fmt.Fprintf(a.out, "This is the start of your conversation with %s. Be kind and keep exchanges safe.\n",
		conv.Participant.DisplayName)
	if err := a.welcome.MarkShown(ctx, userID, conv.ID); err != nil {
		a.log.Sugar().Debugf("welcome not recorded: %v", err)
	}
}

func newSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <conversation> <text...>",
		Short: "Send one message and exit",
		Args:  cobra.MinimumNArgs(2),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
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
			conv, err := resolveConversation(c.State().Conversations, args[0])
			if err != nil {
				return err
			}
			if err := c.Select(ctx, conv.ID); err != nil {
				return err
			}

			if err := c.SendMessage(ctx, strings.Join(args[1:], " ")); err != nil {
				return err
			}
			if s := c.State(); s.SendError != "" {
				return errors.New(s.SendError)
			}
			fmt.Fprintf(a.out, "Sent to %s.\n", conv.Participant.DisplayName)
			return nil
		}),
	}
}
