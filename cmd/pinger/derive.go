package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newDeriveCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "derive <program-name>",
		Short: "Print the account ping would use, without network access",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(v, configFile)
			if err != nil {
				return err
			}
			configureLogger(config, nil)

			address, err := newPinger(config, nil).Derive(args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), address.String())
			return nil
		},
	}
}
