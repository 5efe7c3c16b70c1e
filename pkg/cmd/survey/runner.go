package survey

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"

	"github.com/mpapenbr/participant-core-go/log"
	"github.com/mpapenbr/participant-core-go/pkg/client"
	"github.com/mpapenbr/participant-core-go/pkg/model"
	"github.com/mpapenbr/participant-core-go/pkg/surveyflow"
)

var (
	ErrMissingResponse = errors.New("no response for survey")
	ErrLoginRequired   = errors.New("survey requires a login, run pcc login first")
	ErrSelectProfile   = errors.New("account has several profiles, pass --profile")
)

// Result summarizes a headless run.
type Result struct {
	Submitted []string
	Redirect  string
}

// maxSteps bounds chained surveys of a single run
const maxSteps = 100

// Run answers the flow's surveys with the given responses (keyed by survey
// key) until the flow completes.
//
//nolint:whitespace,cyclop // state machine
func Run(
	ctx context.Context,
	flow *surveyflow.Controller,
	responses map[string]model.SurveyResponse,
) (*Result, error) {
	if err := flow.Load(ctx); err != nil {
		return nil, errors.New(client.UserMessage(err))
	}
	for range maxSteps {
		st := flow.State()
		switch {
		case st.Redirect != "":
			return &Result{Submitted: st.CompletedSurveys, Redirect: st.Redirect}, nil
		case st.Dialog == surveyflow.DialogProfileSelection:
			ids := lo.Map(st.Profiles, func(p model.Profile, _ int) string { return p.ID })
			return nil, fmt.Errorf("%w: %v", ErrSelectProfile, ids)
		case st.Dialog == surveyflow.DialogLoginRequired:
			return nil, ErrLoginRequired
		case st.Dialog == surveyflow.DialogSubmitSuccess,
			st.Dialog == surveyflow.DialogTempParticipantConversionSuccess:
			flow.CloseDialog()
		case st.Dialog == surveyflow.DialogSubmitSuccessWithLoginOptions:
			if err := flow.ContinueWithoutAccount(); err != nil {
				return nil, err
			}
		case st.Content == surveyflow.ContentGetSurveyError,
			st.Content == surveyflow.ContentSubmitError:
			return nil, errors.New(client.UserMessage(st.LastError))
		case st.Content == surveyflow.ContentSurvey:
			resp, ok := responses[st.CurrentSurveyKey]
			if !ok {
				return nil, fmt.Errorf("%w %s", ErrMissingResponse, st.CurrentSurveyKey)
			}
			if err := flow.UpdateResponse(&resp); err != nil {
				return nil, err
			}
			log.Info("submitting survey", log.String("survey", st.CurrentSurveyKey))
			if err := flow.Submit(ctx); err != nil &&
				!errors.Is(err, surveyflow.ErrLoginRequired) &&
				!errors.Is(err, surveyflow.ErrProfileRequired) {
				return nil, errors.New(client.UserMessage(err))
			}
		default:
			return nil, fmt.Errorf("unexpected flow state %s/%s", st.Content, st.Dialog)
		}
	}
	return nil, errors.New("too many chained surveys")
}
