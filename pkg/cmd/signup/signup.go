package signup

import (
	"context"
	"errors"
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

func NewSignupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "creates a participant account and logs it in",
		Long: `creates a participant account and logs it in.
Password and confirmation are read from PCC_PASSWORD and PCC_PASSWORD_CONFIRM
or, with --password-stdin, as two lines from stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return signup(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email of the new account")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false,
		"read password and confirmation from stdin")
	cmd.Flags().BoolVar(&config.RememberMe, "remember", false, "keep the login in the state store")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func signup(ctx context.Context) error {
	secrets, err := common.ReadSecrets(viper.GetViper(), os.Stdin, passwordStdin,
		"password", "password_confirm")
	if err != nil {
		return err
	}
	env, err := common.Setup(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	if _, err := env.Client.SignupWithEmail(ctx, email, secrets[0], secrets[1],
		config.RememberMe); err != nil {
		log.Debug("signup failed", log.ErrorField(err))
		return errors.New(client.UserMessage(err))
	}
	log.Info("account created", log.String("email", email))
	return nil
}
