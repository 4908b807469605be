package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iurnickita/poscashup/internal/config"
	"github.com/iurnickita/poscashup/internal/store"
)

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables in the PostgreSQL database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			// схема создается при подключении
			st, err := store.NewStore(cfg.Store)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return st.Close()
		},
	}
}
