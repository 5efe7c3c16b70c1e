package model

//nolint:tagliatelle // external API
type (
	// TokenResponse is returned by the renew endpoint. ExpiresIn is in minutes.
	TokenResponse struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
		ExpiresIn    int64  `json:"expiresIn"`
	}
	RenewTokenRequest struct {
		RefreshToken string `json:"refreshToken"`
	}
	LoginWithEmailRequest struct {
		Email         string `json:"email"`
		Password      string `json:"password"`
		InstanceID    string `json:"instanceId"`
		AsParticipant bool   `json:"asParticipant"`
	}
	SignupWithEmailRequest struct {
		Email             string `json:"email"`
		Password          string `json:"password"`
		InstanceID        string `json:"instanceId"`
		PreferredLanguage string `json:"preferredLanguage,omitempty"`
	}
	LoginResponse struct {
		Token             TokenResponse `json:"token"`
		Profiles          []Profile     `json:"profiles"`
		SelectedProfileID string        `json:"selectedProfileId"`
		PreferredLanguage string        `json:"preferredLanguage,omitempty"`
	}
	Profile struct {
		ID          string `json:"id"`
		Alias       string `json:"alias"`
		AvatarID    string `json:"avatarId,omitempty"`
		MainProfile bool   `json:"mainProfile"`
	}
	User struct {
		ID       string    `json:"id"`
		Account  Account   `json:"account"`
		Profiles []Profile `json:"profiles"`
	}
	Account struct {
		AccountID          string `json:"accountId"`
		AccountConfirmedAt int64  `json:"accountConfirmedAt,omitempty"`
		PreferredLanguage  string `json:"preferredLanguage,omitempty"`
	}
)
