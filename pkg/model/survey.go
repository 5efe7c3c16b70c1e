package model

import "encoding/json"

type SurveyCategory string

const (
	SurveyCategoryPrio      SurveyCategory = "prio"
	SurveyCategoryNormal    SurveyCategory = "normal"
	SurveyCategoryOptional  SurveyCategory = "optional"
	SurveyCategoryImmediate SurveyCategory = "immediate"
)

//nolint:tagliatelle // external API
type (
	Survey struct {
		ID                           string          `json:"id"`
		VersionID                    string          `json:"versionId"`
		Props                        json.RawMessage `json:"props,omitempty"`
		SurveyDefinition             json.RawMessage `json:"surveyDefinition"`
		RequireLoginBeforeSubmission bool            `json:"requireLoginBeforeSubmission"`
		AvailableFor                 string          `json:"availableFor,omitempty"`
	}
	// SurveyWithContext is what both survey fetch endpoints return.
	SurveyWithContext struct {
		Survey  Survey          `json:"survey"`
		Context json.RawMessage `json:"context,omitempty"`
		Prefill json.RawMessage `json:"prefill,omitempty"`
	}

	SurveyResponse struct {
		Key           string               `json:"key"`
		ParticipantID string               `json:"participantId,omitempty"`
		VersionID     string               `json:"versionId"`
		OpenedAt      int64                `json:"openedAt"`
		SubmittedAt   int64                `json:"submittedAt"`
		Responses     []SurveyItemResponse `json:"responses"`
		Context       map[string]string    `json:"context,omitempty"`
	}
	SurveyItemResponse struct {
		Key  string       `json:"key"`
		Meta ResponseMeta `json:"meta"`

		// for groups:
		Items []SurveyItemResponse `json:"items,omitempty"`

		// for single items:
		Response         *ResponseItem `json:"response,omitempty"`
		ConfidentialMode string        `json:"confidentialMode,omitempty"`
	}
	ResponseMeta struct {
		Position   int32   `json:"position"`
		LocaleCode string  `json:"localeCode"`
		Rendered   []int64 `json:"rendered,omitempty"`
		Displayed  []int64 `json:"displayed,omitempty"`
		Responded  []int64 `json:"responded,omitempty"`
	}
	ResponseItem struct {
		Key   string          `json:"key"`
		Value string          `json:"value,omitempty"`
		Dtype string          `json:"dtype,omitempty"`
		Items []*ResponseItem `json:"items,omitempty"`
	}

	SubmitResponseRequest struct {
		ProfileID string         `json:"profileId"`
		Response  SurveyResponse `json:"response"`
	}
	SubmitTempResponseRequest struct {
		InstanceID    string         `json:"instanceId"`
		StudyKey      string         `json:"studyKey"`
		ParticipantID string         `json:"participantId"`
		Response      SurveyResponse `json:"response"`
	}

	AssignedSurvey struct {
		StudyKey   string         `json:"studyKey"`
		SurveyKey  string         `json:"surveyKey"`
		Category   SurveyCategory `json:"category"`
		ProfileID  string         `json:"profileId,omitempty"`
		ValidFrom  int64          `json:"validFrom,omitempty"`
		ValidUntil int64          `json:"validUntil,omitempty"` // unix seconds, 0 = open ended
	}
	// SubmitResult is returned by both submit endpoints.
	SubmitResult struct {
		AssignedSurveys []AssignedSurvey `json:"assignedSurveys"`
	}
)
