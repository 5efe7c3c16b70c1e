package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mpapenbr/participant-core-go/log"
	"github.com/mpapenbr/participant-core-go/pkg/client/auth"
	"github.com/mpapenbr/participant-core-go/pkg/lock"
	"github.com/mpapenbr/participant-core-go/pkg/model"
	"github.com/mpapenbr/participant-core-go/pkg/session"
	"github.com/mpapenbr/participant-core-go/pkg/utils"
	"github.com/mpapenbr/participant-core-go/pkg/utils/cache"
	"github.com/mpapenbr/participant-core-go/pkg/utils/cache/loadercache"
	"github.com/mpapenbr/participant-core-go/pkg/validation"
)

const (
	pathRenewToken         = auth.DefaultRenewPath
	pathLoginWithEmail     = "/v1/auth/login-with-email"
	pathSignupWithEmail    = "/v1/auth/signup-with-email"
	pathUser               = "/v1/user"
	pathTempRegister       = "/v1/temp-participant/register"
	pathTempSurvey         = "/v1/temp-participant/survey"
	pathTempSubmit         = "/v1/temp-participant/submit-response"
	pathStudySurveyFmt     = "/v1/study/%s/survey/%s"
	pathStudySubmitFmt     = "/v1/study/%s/submit-response"
	pathStudyAssumeTempFmt = "/v1/study/%s/assume-temp-participant"

	// key of the profile cache when the token carries no user id
	currentUserKey = "current"
)

var ErrInvalidResponse = errors.New("invalid response")

// Client talks to the participant API. Anonymous endpoints use a plain
// http client, everything else goes through the auth interceptor.
type Client struct {
	baseURL     string
	cfg         *Config
	anon        *http.Client
	authed      *http.Client
	store       *session.Store
	header      *auth.DefaultHeader
	renewer     *auth.Renewer
	resetter    *auth.Resetter
	interceptor *auth.Interceptor
	profiles    cache.Cache[string, []model.Profile]
	l           *log.Logger
}

func New(baseURL string, store *session.Store, opts ...Option) (*Client, error) {
	if _, err := utils.JoinURL(baseURL, "/"); err != nil {
		return nil, err
	}
	cfg := &Config{
		Transport:              http.DefaultTransport,
		Timeout:                30 * time.Second,
		RenewThreshold:         session.DefaultRenewThreshold,
		LockTimeout:            lock.DefaultTimeout,
		ExpiresInUnit:          session.ExpiresInUnit,
		ProfileCacheExpiration: 5 * time.Minute,
		Now:                    time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default().Named("client")
	}
	if cfg.RequestLock == nil {
		cfg.RequestLock = lock.New(
			lock.WithTimeout(cfg.LockTimeout),
			lock.WithLogger(cfg.Logger.Named("lock")))
	}

	ret := &Client{
		baseURL: baseURL,
		cfg:     cfg,
		store:   store,
		header:  auth.NewDefaultHeader(),
		l:       cfg.Logger,
	}
	ret.anon = &http.Client{Transport: cfg.Transport, Timeout: cfg.Timeout}
	ret.profiles = loadercache.New(
		loadercache.WithLoader[string, []model.Profile](ret.loadProfiles),
		loadercache.WithExpiration[string, []model.Profile](cfg.ProfileCacheExpiration),
		loadercache.WithClock[string, []model.Profile](cfg.Now),
		loadercache.WithLogger[string, []model.Profile](cfg.Logger.Named("profiles")),
	)
	ret.renewer = auth.NewRenewer(store, ret.header, ret,
		auth.WithRenewClock(cfg.Now),
		auth.WithExpiresInUnit(cfg.ExpiresInUnit),
		auth.WithRenewerLogger(cfg.Logger.Named("auth.renew")))
	ret.resetter = auth.NewResetter(store, ret.header,
		auth.WithResetterLogger(cfg.Logger.Named("auth.reset")),
		auth.WithResetHook(ret.profiles.InvalidateAll))
	ret.interceptor = auth.NewInterceptor(store, ret.header, ret.renewer, ret.resetter,
		auth.WithTransport(cfg.Transport),
		auth.WithRenewThreshold(cfg.RenewThreshold),
		auth.WithRequestLock(cfg.RequestLock),
		auth.WithRenewPath(pathRenewToken),
		auth.WithInterceptorClock(cfg.Now),
		auth.WithInterceptorLogger(cfg.Logger.Named("auth")))
	ret.authed = &http.Client{Transport: ret.interceptor, Timeout: cfg.Timeout}
	return ret, nil
}

func (c *Client) Store() *session.Store {
	return c.store
}

func (c *Client) InstanceID() string {
	return c.cfg.InstanceID
}

func (c *Client) IsLoggedIn() bool {
	return c.store.IsLoggedIn()
}

// Claims of the current access token.
func (c *Client) Claims() (*auth.Claims, error) {
	sess, ok := c.store.Current()
	if !ok {
		return nil, session.ErrNoValidSession
	}
	return auth.ParseClaims(sess.AccessToken)
}

// RenewToken calls the renewal endpoint. It is used by the renewer and
// never passes the interceptor.
//
//nolint:whitespace // editor/linter issue
func (c *Client) RenewToken(
	ctx context.Context,
	refreshToken string,
) (*model.TokenResponse, error) {
	var resp model.TokenResponse
	err := c.do(ctx, c.anon, http.MethodPost, pathRenewToken, nil,
		&model.RenewTokenRequest{RefreshToken: refreshToken}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Renew forces a token renewal. It shares the request lock with the
// interceptor, a renewal already running is waited for. A failed renewal
// resets the session.
func (c *Client) Renew(ctx context.Context) (string, error) {
	return c.interceptor.Renew(ctx)
}

// LoginWithEmail validates the input locally, logs in and stores the
// returned session. With remember the session is persisted.
//
//nolint:whitespace // editor/linter issue
func (c *Client) LoginWithEmail(
	ctx context.Context,
	email, password string,
	remember bool,
) (*model.LoginResponse, error) {
	if err := validation.ValidateEmail(email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, validation.ErrPasswordTooShort
	}
	loginAt := c.cfg.Now()
	var resp model.LoginResponse
	err := c.do(ctx, c.anon, http.MethodPost, pathLoginWithEmail, nil,
		&model.LoginWithEmailRequest{
			Email:         email,
			Password:      password,
			InstanceID:    c.cfg.InstanceID,
			AsParticipant: true,
		}, &resp)
	if err != nil {
		return nil, err
	}
	if err := c.startSession(ctx, &resp, loginAt, remember); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	c.l.Info("logged in",
		log.Int("profiles", len(resp.Profiles)),
		log.Bool("remember", remember))
	return &resp, nil
}

// SignupWithEmail creates a participant account and logs it in. The
// password rules are checked before anything is sent.
//
//nolint:whitespace // editor/linter issue
func (c *Client) SignupWithEmail(
	ctx context.Context,
	email, password, confirmation string,
	remember bool,
) (*model.LoginResponse, error) {
	if err := validation.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, err
	}
	if err := validation.ValidatePasswordConfirmation(password, confirmation); err != nil {
		return nil, err
	}
	signupAt := c.cfg.Now()
	var resp model.LoginResponse
	err := c.do(ctx, c.anon, http.MethodPost, pathSignupWithEmail, nil,
		&model.SignupWithEmailRequest{
			Email:      email,
			Password:   password,
			InstanceID: c.cfg.InstanceID,
		}, &resp)
	if err != nil {
		return nil, err
	}
	if err := c.startSession(ctx, &resp, signupAt, remember); err != nil {
		return nil, fmt.Errorf("signup: %w", err)
	}
	c.l.Info("signed up", log.Bool("remember", remember))
	return &resp, nil
}

// startSession stores the tokens of a login or signup response.
//
//nolint:whitespace // editor/linter issue
func (c *Client) startSession(
	ctx context.Context,
	resp *model.LoginResponse,
	at time.Time,
	remember bool,
) error {
	if resp.Token.AccessToken == "" || resp.Token.RefreshToken == "" {
		return ErrInvalidResponse
	}
	sess := session.NewAuthSession(resp.Token.AccessToken, resp.Token.RefreshToken,
		resp.Token.ExpiresIn, at, c.cfg.ExpiresInUnit)

	c.profiles.InvalidateAll(ctx)
	c.store.SetRemember(remember)
	c.store.Set(ctx, sess)
	c.header.Set(sess)
	if resp.SelectedProfileID != "" {
		c.store.SetSelectedProfile(ctx, resp.SelectedProfileID)
	}
	return nil
}

// Logout drops the local session state.
func (c *Client) Logout(ctx context.Context) {
	c.resetter.Reset(ctx)
}

func (c *Client) GetUser(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := c.do(ctx, c.authed, http.MethodGet, pathUser, nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Profiles returns the profiles of the logged in user. Results are cached.
func (c *Client) Profiles(ctx context.Context) ([]model.Profile, error) {
	if !c.store.IsLoggedIn() {
		return nil, session.ErrNoValidSession
	}
	key := currentUserKey
	if claims, err := c.Claims(); err == nil && claims.UserID != "" {
		key = claims.UserID
	}
	p, err := c.profiles.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return *p, nil
}

func (c *Client) loadProfiles(ctx context.Context, _ string) (*[]model.Profile, error) {
	user, err := c.GetUser(ctx)
	if err != nil {
		return nil, err
	}
	return &user.Profiles, nil
}

//nolint:whitespace // editor/linter issue
func (c *Client) GetSurvey(
	ctx context.Context,
	studyKey, surveyKey, profileID string,
) (*model.SurveyWithContext, error) {
	var resp model.SurveyWithContext
	path := fmt.Sprintf(pathStudySurveyFmt, studyKey, surveyKey)
	query := url.Values{}
	if profileID != "" {
		query.Set("pid", profileID)
	}
	if err := c.do(ctx, c.authed, http.MethodGet, path, query, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

//nolint:whitespace // editor/linter issue
func (c *Client) GetTempParticipantSurvey(
	ctx context.Context,
	instanceID, studyKey, surveyKey, tempParticipantID string,
) (*model.SurveyWithContext, error) {
	var resp model.SurveyWithContext
	if err := c.do(ctx, c.anon, http.MethodGet, pathTempSurvey,
		url.Values{
			"instance": {instanceID},
			"study":    {studyKey},
			"survey":   {surveyKey},
			"pid":      {tempParticipantID},
		}, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

//nolint:whitespace // editor/linter issue
func (c *Client) SubmitResponse(
	ctx context.Context,
	studyKey, profileID string,
	response *model.SurveyResponse,
) (*model.SubmitResult, error) {
	var resp model.SubmitResult
	path := fmt.Sprintf(pathStudySubmitFmt, studyKey)
	if err := c.do(ctx, c.authed, http.MethodPost, path, nil,
		&model.SubmitResponseRequest{ProfileID: profileID, Response: *response},
		&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

//nolint:whitespace // editor/linter issue
func (c *Client) SubmitTempParticipantResponse(
	ctx context.Context,
	instanceID, studyKey, tempParticipantID string,
	response *model.SurveyResponse,
) (*model.SubmitResult, error) {
	var resp model.SubmitResult
	if err := c.do(ctx, c.anon, http.MethodPost, pathTempSubmit, nil,
		&model.SubmitTempResponseRequest{
			InstanceID:    instanceID,
			StudyKey:      studyKey,
			ParticipantID: tempParticipantID,
			Response:      *response,
		}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

//nolint:whitespace // editor/linter issue
func (c *Client) RegisterTempParticipant(
	ctx context.Context,
	instanceID, studyKey string,
) (*model.TempParticipantInfo, error) {
	var resp model.TempParticipantInfo
	if err := c.do(ctx, c.anon, http.MethodGet, pathTempRegister,
		url.Values{"instance": {instanceID}, "study": {studyKey}}, nil, &resp); err != nil {
		return nil, err
	}
	if resp.TemporaryParticipantID == "" {
		return nil, fmt.Errorf("register temp participant: %w", ErrInvalidResponse)
	}
	return &resp, nil
}

//nolint:whitespace // editor/linter issue
func (c *Client) AssumeTempParticipant(
	ctx context.Context,
	studyKey, profileID, tempParticipantID string,
	timestamp int64,
) error {
	path := fmt.Sprintf(pathStudyAssumeTempFmt, studyKey)
	return c.do(ctx, c.authed, http.MethodPost, path, nil,
		&model.AssumeTempParticipantRequest{
			ProfileID:              profileID,
			TemporaryParticipantID: tempParticipantID,
			Timestamp:              timestamp,
		}, nil)
}

// do sends body as JSON and decodes the response into out (if not nil).
// An authenticated request rejected with 401 is sent once more after a
// forced token renewal.
//
//nolint:whitespace // editor/linter issue
func (c *Client) do(
	ctx context.Context,
	hc *http.Client,
	method, path string,
	query url.Values,
	body, out any,
) error {
	target, err := utils.JoinURL(c.baseURL, path)
	if err != nil {
		return err
	}
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var data []byte
	if body != nil {
		if data, err = json.Marshal(body); err != nil {
			return err
		}
	}
	err = c.send(ctx, hc, method, target, path, data, out)
	if hc != c.authed || !IsUnauthorized(err) || !c.store.IsLoggedIn() {
		return err
	}
	c.l.Debug("token rejected, renewing", log.String("path", path))
	if _, rErr := c.Renew(ctx); rErr != nil {
		return rErr
	}
	return c.send(ctx, hc, method, target, path, data, out)
}

//nolint:whitespace,funlen // editor/linter issue
func (c *Client) send(
	ctx context.Context,
	hc *http.Client,
	method, target, path string,
	data []byte,
	out any,
) error {
	var reader io.Reader = http.NoBody
	if data != nil {
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.InstanceID != "" {
		req.Header.Set("Instance-Id", c.cfg.InstanceID)
	}

	resp, err := hc.Do(req)
	if err != nil {
		c.l.Debug("request failed",
			log.String("method", method),
			log.String("path", path),
			log.ErrorField(err))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeAPIError(resp)
		c.l.Debug("request returned error",
			log.String("method", method),
			log.String("path", path),
			log.Int("status", resp.StatusCode),
			log.String("code", apiErr.Code))
		return apiErr
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) *APIError {
	ret := &APIError{StatusCode: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		ret.Message = http.StatusText(resp.StatusCode)
		return ret
	}
	var payload struct {
		Error   string `json:"error"`
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &payload) == nil {
		ret.Code = payload.Code
		ret.Message = payload.Message
		if ret.Message == "" {
			ret.Message = payload.Error
		}
	}
	if ret.Message == "" {
		ret.Message = http.StatusText(resp.StatusCode)
	}
	return ret
}
