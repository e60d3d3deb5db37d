package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "chat-cli",
		Short:         "Terminal client for EcoShare messaging",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newRegisterCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newConversationsCmd(),
		newStartCmd(),
		newOpenCmd(),
		newSendCmd(),
		newSearchesCmd(),
	)
	return root
}
