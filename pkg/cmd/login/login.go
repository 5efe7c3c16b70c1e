package login

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mpapenbr/participant-core-go/log"
	"github.com/mpapenbr/participant-core-go/pkg/client"
	"github.com/mpapenbr/participant-core-go/pkg/cmd/common"
	"github.com/mpapenbr/participant-core-go/pkg/config"
)

var (
	email         string
	passwordStdin bool
)

func NewLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "logs in with email and password",
		Long: `logs in with email and password.
The password is read from PCC_PASSWORD or, with --password-stdin, from stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return login(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email of the participant account")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false,
		"read the password from stdin")
	cmd.Flags().BoolVar(&config.RememberMe, "remember", false, "keep the login in the state store")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func login(ctx context.Context) error {
	secrets, err := common.ReadSecrets(viper.GetViper(), os.Stdin, passwordStdin, "password")
	if err != nil {
		return err
	}
	env, err := common.Setup(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	resp, err := env.Client.LoginWithEmail(ctx, email, secrets[0], config.RememberMe)
	if err != nil {
		log.Debug("login failed", log.ErrorField(err))
		return errors.New(client.UserMessage(err))
	}
	log.Info("logged in",
		log.String("selectedProfile", resp.SelectedProfileID),
		log.Bool("remembered", config.RememberMe))
	for _, p := range resp.Profiles {
		fmt.Printf("%s\t%s\tmain=%v\n", p.ID, p.Alias, p.MainProfile)
	}
	return nil
}
