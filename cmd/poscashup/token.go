package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iurnickita/poscashup/internal/auth"
	"github.com/iurnickita/poscashup/internal/config"
	"github.com/iurnickita/poscashup/internal/model"
)

func tokenCmd(configPath *string) *cobra.Command {
	var rc model.RequestContext

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a terminal user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			if cfg.Auth.Secret == "" {
				return errors.New("auth.secret is not configured")
			}
			token, err := auth.NewAuth(cfg.Auth).NewToken(rc)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&rc.UserID, "user", "", "acting user id")
	cmd.Flags().StringVar(&rc.TerminalID, "terminal", "", "terminal id")
	cmd.Flags().StringVar(&rc.OrganizationID, "org", "", "organization id")
	cmd.Flags().StringVar(&rc.ClientID, "client", "", "client id")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("terminal")

	return cmd
}
