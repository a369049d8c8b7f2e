package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newPingCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ping <program-name>",
		Short: "Provision the derived account if needed and ping the program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(v)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			result, err := a.pinger.ProvisionAndPing(a.Context(ctx), args[0], a.config.Space)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "identity:  %s\n", result.Identity)
			fmt.Fprintf(out, "program:   %s\n", result.Program)
			fmt.Fprintf(out, "account:   %s\n", result.Account)
			fmt.Fprintf(out, "signature: %s\n", result.Signature)
			if result.HasCounter {
				fmt.Fprintf(out, "counter:   %d\n", result.Counter)
			}
			return nil
		},
	}

	cmd.Flags().Uint32("space", defaultConfig.Space, "data size of the account when it is created")
	_ = v.BindPFlag("space", cmd.Flags().Lookup("space"))

	return cmd
}
