package renew

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/participant-core-go/log"
	"github.com/mpapenbr/participant-core-go/pkg/client"
	"github.com/mpapenbr/participant-core-go/pkg/cmd/common"
	"github.com/mpapenbr/participant-core-go/pkg/utils"
)

func NewRenewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "renew",
		Short: "renews the access token of the remembered login",
		RunE: func(cmd *cobra.Command, args []string) error {
			return renew(cmd.Context())
		},
	}
	return cmd
}

func renew(ctx context.Context) error {
	env, err := common.Setup(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	token, err := env.Client.Renew(ctx)
	if err != nil {
		log.Debug("renewal failed", log.ErrorField(err))
		return errors.New(client.UserMessage(err))
	}
	sess, _ := env.Store.Current()
	log.Info("token renewed",
		log.String("token", utils.Fingerprint(token)),
		log.Time("expiresAt", sess.ExpiresAt))
	if claims, err := env.Client.Claims(); err == nil {
		log.Debug("token claims",
			log.String("user", claims.UserID),
			log.String("profile", claims.ProfileID))
	}
	return nil
}
