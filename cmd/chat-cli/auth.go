package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"ecoshare/internal/user"
)

func newRegisterCmd() *cobra.Command {
	var req user.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			resp, err := a.gateway.Register(ctx, req)
			if err != nil {
				return err
			}
			if err := a.saveSession(ctx, resp.Token, resp.User); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Welcome, %s! You are logged in as @%s.\n", resp.User.DisplayName, resp.User.Handle)
			return nil
		}),
	}

	cmd.Flags().StringVar(&req.Handle, "handle", "", "user handle")
	cmd.Flags().StringVar(&req.Email, "email", "", "email address")
	cmd.Flags().StringVar(&req.Password, "password", "", "password")
	cmd.Flags().StringVar(&req.DisplayName, "name", "", "display name (defaults to the handle)")
	_ = cmd.MarkFlagRequired("handle")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLoginCmd() *cobra.Command {
	var handle, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and remember the session locally",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			resp, err := a.gateway.Login(ctx, handle, password)
			if err != nil {
				return err
			}
			if err := a.saveSession(ctx, resp.Token, resp.User); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Logged in as %s (@%s).\n", resp.User.DisplayName, resp.User.Handle)
			return nil
		}),
	}

	cmd.Flags().StringVar(&handle, "handle", "", "user handle")
	cmd.Flags().StringVar(&password, "password", "", "password")
	_ = cmd.MarkFlagRequired("handle")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			if err := a.sessions.Clear(ctx); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Logged out.")
			return nil
		}),
	}
}
