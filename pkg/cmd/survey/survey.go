package survey

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mpapenbr/participant-core-go/log"
	"github.com/mpapenbr/participant-core-go/pkg/cmd/common"
	"github.com/mpapenbr/participant-core-go/pkg/config"
	"github.com/mpapenbr/participant-core-go/pkg/model"
	"github.com/mpapenbr/participant-core-go/pkg/surveyflow"
	"github.com/mpapenbr/participant-core-go/pkg/tempparticipant"
)

var (
	studyKey      string
	surveyKey     string
	profileID     string
	responsesFile string
)

func NewSurveyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "survey",
		Short: "answers a survey (and the surveys chained to it) from a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSurvey(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&studyKey, "study", "", "study key")
	cmd.Flags().StringVar(&surveyKey, "survey", "", "key of the first survey")
	cmd.Flags().StringVar(&profileID, "profile", "",
		"profile to answer for (default: the selected profile)")
	cmd.Flags().StringVar(&responsesFile, "responses", "",
		"JSON file with one response per survey key")
	cmd.Flags().StringVar(&config.CompletionURL, "completion-url",
		"/", "where to go after completing with an account")
	cmd.Flags().StringVar(&config.CompletionURLWithoutAccount, "completion-url-without-account",
		"/", "where to go after completing anonymously")
	_ = cmd.MarkFlagRequired("study")
	_ = cmd.MarkFlagRequired("survey")
	_ = cmd.MarkFlagRequired("responses")
	return cmd
}

func readResponses(path string) (map[string]model.SurveyResponse, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ret := map[string]model.SurveyResponse{}
	if err := json.Unmarshal(data, &ret); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return ret, nil
}

func runSurvey(ctx context.Context) error {
	responses, err := readResponses(responsesFile)
	if err != nil {
		return err
	}
	env, err := common.Setup(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	pid := profileID
	if pid == "" {
		pid = env.Store.SelectedProfile()
	}
	flow := surveyflow.New(studyKey, surveyKey,
		surveyflow.Deps{
			API:     env.Client,
			Session: env.Store,
			Participants: tempparticipant.NewRegistry(env.Client,
				tempparticipant.WithLogger(log.Default().Named("tempparticipant"))),
		},
		surveyflow.WithProfileID(pid),
		surveyflow.WithInstanceID(config.InstanceID),
		surveyflow.WithCompletionURLs(config.CompletionURL, config.CompletionURLWithoutAccount),
		surveyflow.WithLogger(log.Default().Named("surveyflow")))

	watchCtx, cancel := context.WithCancel(ctx)
	events := env.Store.Subscribe()
	g, gCtx := errgroup.WithContext(watchCtx)
	g.Go(func() error {
		_ = flow.Watch(gCtx, events)
		return nil
	})

	res, runErr := Run(ctx, flow, responses)
	cancel()
	_ = g.Wait()
	if runErr != nil {
		return runErr
	}
	log.Info("flow completed", log.Strings("submitted", res.Submitted))
	fmt.Println(res.Redirect)
	return nil
}
