package logout

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/participant-core-go/log"
	"github.com/mpapenbr/participant-core-go/pkg/cmd/common"
)

func NewLogoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "drops the login and the persisted state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return logout(cmd.Context())
		},
	}
	return cmd
}

func logout(ctx context.Context) error {
	env, err := common.Setup(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	env.Client.Logout(ctx)
	log.Info("logged out")
	return nil
}
