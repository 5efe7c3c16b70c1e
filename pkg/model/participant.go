package model

//nolint:tagliatelle // external API
type (
	// TempParticipantInfo is issued by the register endpoint.
	// Timestamp has to be echoed when the participant is assumed.
	TempParticipantInfo struct {
		TemporaryParticipantID string `json:"temporaryParticipantId"`
		Timestamp              int64  `json:"timestamp"`
	}
	AssumeTempParticipantRequest struct {
		ProfileID              string `json:"profileId"`
		TemporaryParticipantID string `json:"temporaryParticipantId"`
		Timestamp              int64  `json:"timestamp"`
	}
)
