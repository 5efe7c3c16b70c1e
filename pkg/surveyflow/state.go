package surveyflow

import (
	"slices"

	"github.com/mpapenbr/participant-core-go/pkg/model"
	"github.com/mpapenbr/participant-core-go/pkg/tempparticipant"
)

type (
	ContentState int
	Dialog       int
	AuthRequest  int
)

const (
	ContentLoading ContentState = iota
	ContentSurvey
	ContentSubmitting
	ContentGetSurveyError
	ContentSubmitError
)

const (
	DialogNone Dialog = iota
	DialogLoginRequired
	DialogSubmitSuccess
	DialogSubmitSuccessWithLoginOptions
	DialogProfileSelection
	DialogTempParticipantConversionSuccess
	DialogNavigationWarning
)

// AuthRequest is set when the flow hands over to the login or
// registration dialogs owned by the application.
const (
	AuthRequestNone AuthRequest = iota
	AuthRequestLogin
	AuthRequestRegistration
)

func (s ContentState) String() string {
	switch s {
	case ContentLoading:
		return "loading"
	case ContentSurvey:
		return "survey"
	case ContentSubmitting:
		return "submitting"
	case ContentGetSurveyError:
		return "getSurveyError"
	case ContentSubmitError:
		return "submitError"
	default:
		return "unknown"
	}
}

func (d Dialog) String() string {
	switch d {
	case DialogNone:
		return "none"
	case DialogLoginRequired:
		return "LoginRequired"
	case DialogSubmitSuccess:
		return "SubmitSuccess"
	case DialogSubmitSuccessWithLoginOptions:
		return "SubmitSuccessWithLoginOptions"
	case DialogProfileSelection:
		return "ProfileSelection"
	case DialogTempParticipantConversionSuccess:
		return "TempParticipantConversionSuccess"
	case DialogNavigationWarning:
		return "NavigationWarning"
	default:
		return "unknown"
	}
}

func (a AuthRequest) String() string {
	switch a {
	case AuthRequestNone:
		return "none"
	case AuthRequestLogin:
		return "login"
	case AuthRequestRegistration:
		return "registration"
	default:
		return "unknown"
	}
}

// State is a copy of the flow state at one point in time.
type State struct {
	FlowID            string
	StudyKey          string
	CurrentSurveyKey  string
	CurrentSurvey     *model.SurveyWithContext
	PendingResponse   *model.SurveyResponse
	Content           ContentState
	Dialog            Dialog
	SelectedProfileID string
	Profiles          []model.Profile
	TempParticipant   *tempparticipant.TempParticipant
	CompletedSurveys  []string
	NavigationArmed   bool
	PendingNavigation string
	AuthRequest       AuthRequest
	// Redirect is the completion url the application should navigate to.
	Redirect  string
	LastError error
}

func (s *State) clone() State {
	ret := *s
	ret.Profiles = slices.Clone(s.Profiles)
	ret.CompletedSurveys = slices.Clone(s.CompletedSurveys)
	if s.PendingResponse != nil {
		resp := *s.PendingResponse
		ret.PendingResponse = &resp
	}
	if s.TempParticipant != nil {
		tp := *s.TempParticipant
		ret.TempParticipant = &tp
	}
	return ret
}
