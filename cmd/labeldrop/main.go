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
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "labeldrop: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "labeldrop",
		Short: "LabelDrop label renderer and development CLI",
		Long: `LabelDrop renders product labels from CSV datasets and packages them as a ZIP of
CMYK TIFFs or a Letter-size PDF sheet. The same binary drives the development stack.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newRenderCmd(),
		newExportCmd(),
		newInspectCmd(),
		newStackCmd(),
		newTestCmd(),
		newRunCmd(),
	)
	return cmd
}
