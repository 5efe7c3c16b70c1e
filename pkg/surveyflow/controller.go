package surveyflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/mpapenbr/participant-core-go/log"
	"github.com/mpapenbr/participant-core-go/pkg/model"
	"github.com/mpapenbr/participant-core-go/pkg/session"
	"github.com/mpapenbr/participant-core-go/pkg/tempparticipant"
)

var (
	ErrInvalidState    = errors.New("operation not allowed in current state")
	ErrNoResponse      = errors.New("no response to submit")
	ErrLoginRequired   = errors.New("login required before submission")
	ErrProfileRequired = errors.New("profile selection required")
	ErrUnknownProfile  = errors.New("unknown profile")
	ErrNoProfile       = errors.New("account has no profile")
)

// ErrAnonymousDisabled is returned for anonymous users of a flow without a
// temp participant registry.
var ErrAnonymousDisabled = errors.New("anonymous participation not configured")

type (
	API interface {
		GetSurvey(
			ctx context.Context, studyKey, surveyKey, profileID string,
		) (*model.SurveyWithContext, error)
		GetTempParticipantSurvey(
			ctx context.Context, instanceID, studyKey, surveyKey, tempParticipantID string,
		) (*model.SurveyWithContext, error)
		SubmitResponse(
			ctx context.Context, studyKey, profileID string, response *model.SurveyResponse,
		) (*model.SubmitResult, error)
		SubmitTempParticipantResponse(
			ctx context.Context, instanceID, studyKey, tempParticipantID string,
			response *model.SurveyResponse,
		) (*model.SubmitResult, error)
		Profiles(ctx context.Context) ([]model.Profile, error)
	}
	// Session is the part of the session store the flow reads.
	Session interface {
		IsLoggedIn() bool
		SetSelectedProfile(ctx context.Context, profileID string)
	}
	Deps struct {
		API          API
		Session      Session
		Participants *tempparticipant.Registry
	}
)

// the step to continue with once a profile was selected
type resumeStep int

const (
	resumeNone resumeStep = iota
	resumeLoad
	resumeSubmit
	resumeLogin
)

// Controller drives a single survey flow. All methods are safe for
// concurrent use. Network calls run without holding the state mutex,
// results of superseded calls are dropped.
type Controller struct {
	mu         sync.Mutex
	st         State
	gen        uint64
	resume     resumeStep
	loginGated bool
	completed  bool
	openedAt   time.Time
	deps       Deps
	cfg        *Config
	l          *log.Logger
}

func New(studyKey, surveyKey string, deps Deps, opts ...Option) *Controller {
	cfg := &Config{Now: time.Now}
	for _, opt := range opts {
		opt(cfg)
	}
	flowID := uuid.NewString()
	if cfg.Logger == nil {
		cfg.Logger = log.Default().Named("surveyflow")
	}
	return &Controller{
		st: State{
			FlowID:            flowID,
			StudyKey:          studyKey,
			CurrentSurveyKey:  surveyKey,
			Content:           ContentLoading,
			SelectedProfileID: cfg.ProfileID,
		},
		deps: deps,
		cfg:  cfg,
		l:    cfg.Logger.With(log.String("flow", flowID), log.String("study", studyKey)),
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.clone()
}

// Load fetches the current survey. Logged in users fetch it for the
// selected profile, anonymous users as temporary participant.
//
//nolint:funlen // state machine
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.st.Content = ContentLoading
	c.st.CurrentSurvey = nil
	c.st.PendingResponse = nil
	c.st.NavigationArmed = false
	c.st.LastError = nil
	c.loginGated = false
	surveyKey := c.st.CurrentSurveyKey
	c.mu.Unlock()

	loggedIn := c.deps.Session.IsLoggedIn()
	var (
		s   *model.SurveyWithContext
		err error
	)
	if loggedIn {
		pid, ok, pErr := c.ensureProfile(ctx, resumeLoad)
		if pErr != nil {
			return c.loadFailed(gen, pErr)
		}
		if !ok {
			return nil
		}
		s, err = c.deps.API.GetSurvey(ctx, c.st.StudyKey, surveyKey, pid)
	} else {
		tp, tErr := c.tempParticipant(ctx)
		if tErr != nil {
			return c.loadFailed(gen, tErr)
		}
		s, err = c.deps.API.GetTempParticipantSurvey(ctx,
			c.cfg.InstanceID, c.st.StudyKey, surveyKey, tp.ID)
	}
	if err != nil {
		return c.loadFailed(gen, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		c.l.Debug("dropping superseded survey", log.String("survey", surveyKey))
		return nil
	}
	c.st.CurrentSurvey = s
	c.st.Content = ContentSurvey
	c.openedAt = c.cfg.Now()
	if s.Survey.RequireLoginBeforeSubmission && !loggedIn {
		c.st.Dialog = DialogLoginRequired
		c.loginGated = true
	}
	c.l.Debug("survey loaded",
		log.String("survey", surveyKey),
		log.Bool("loggedIn", loggedIn))
	return nil
}

// RetryLoad repeats a failed Load.
func (c *Controller) RetryLoad(ctx context.Context) error {
	c.mu.Lock()
	content := c.st.Content
	c.mu.Unlock()
	if content != ContentGetSurveyError {
		return ErrInvalidState
	}
	return c.Load(ctx)
}

// UpdateResponse caches the response of the survey being answered and
// arms the navigation guard.
func (c *Controller) UpdateResponse(resp *model.SurveyResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.st.Content != ContentSurvey || c.st.CurrentSurvey == nil || c.completed {
		return ErrInvalidState
	}
	r := *resp
	c.st.PendingResponse = &r
	c.st.NavigationArmed = true
	return nil
}

// Submit sends the cached response. Whether it is sent authenticated is
// decided by the login state at this point, not at load time.
func (c *Controller) Submit(ctx context.Context) error {
	loggedIn := c.deps.Session.IsLoggedIn()
	c.mu.Lock()
	if c.st.Content != ContentSurvey || c.st.CurrentSurvey == nil || c.completed {
		c.mu.Unlock()
		return ErrInvalidState
	}
	if c.st.PendingResponse == nil {
		c.mu.Unlock()
		return ErrNoResponse
	}
	if c.st.CurrentSurvey.Survey.RequireLoginBeforeSubmission && !loggedIn {
		c.st.Dialog = DialogLoginRequired
		c.loginGated = true
		c.mu.Unlock()
		return ErrLoginRequired
	}
	c.st.PendingResponse = c.prepareResponse(*c.st.PendingResponse)
	c.mu.Unlock()
	return c.submit(ctx, loggedIn)
}

// RetrySubmit sends the same response again after a failed Submit.
func (c *Controller) RetrySubmit(ctx context.Context) error {
	loggedIn := c.deps.Session.IsLoggedIn()
	c.mu.Lock()
	if c.st.Content != ContentSubmitError || c.st.PendingResponse == nil {
		c.mu.Unlock()
		return ErrInvalidState
	}
	if c.st.CurrentSurvey.Survey.RequireLoginBeforeSubmission && !loggedIn {
		c.st.Content = ContentSurvey
		c.st.Dialog = DialogLoginRequired
		c.loginGated = true
		c.mu.Unlock()
		return ErrLoginRequired
	}
	c.mu.Unlock()
	return c.submit(ctx, loggedIn)
}

//nolint:funlen // state machine
func (c *Controller) submit(ctx context.Context, loggedIn bool) error {
	var pid string
	if loggedIn {
		var ok bool
		var err error
		pid, ok, err = c.ensureProfile(ctx, resumeSubmit)
		if err != nil {
			return c.submitFailed(0, err)
		}
		if !ok {
			return ErrProfileRequired
		}
	}

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.st.Content = ContentSubmitting
	c.st.LastError = nil
	resp := *c.st.PendingResponse
	submitted := c.st.CurrentSurveyKey
	c.mu.Unlock()

	var (
		result *model.SubmitResult
		err    error
	)
	if loggedIn {
		result, err = c.deps.API.SubmitResponse(ctx, c.st.StudyKey, pid, &resp)
	} else {
		tp, tErr := c.tempParticipant(ctx)
		if tErr != nil {
			return c.submitFailed(gen, tErr)
		}
		result, err = c.deps.API.SubmitTempParticipantResponse(ctx,
			c.cfg.InstanceID, c.st.StudyKey, tp.ID, &resp)
	}
	if err != nil {
		return c.submitFailed(gen, err)
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return nil
	}
	c.st.CompletedSurveys = append(c.st.CompletedSurveys, submitted)
	c.st.PendingResponse = nil
	c.st.NavigationArmed = false
	next, found := c.nextSurvey(result, submitted)
	if found {
		c.st.CurrentSurveyKey = next.SurveyKey
		c.mu.Unlock()
		c.l.Info("chaining survey",
			log.String("submitted", submitted),
			log.String("next", next.SurveyKey))
		return c.Load(ctx)
	}
	c.completed = true
	c.st.Content = ContentSurvey
	if loggedIn {
		c.st.Dialog = DialogSubmitSuccess
	} else {
		c.st.Dialog = DialogSubmitSuccessWithLoginOptions
	}
	c.mu.Unlock()
	c.l.Info("flow completed",
		log.String("survey", submitted),
		log.Bool("loggedIn", loggedIn))
	return nil
}

// nextSurvey returns the first assigned survey to present right away.
// must be called with c.mu held
//
//nolint:whitespace // editor/linter issue
func (c *Controller) nextSurvey(
	result *model.SubmitResult,
	submitted string,
) (model.AssignedSurvey, bool) {
	if result == nil {
		return model.AssignedSurvey{}, false
	}
	now := c.cfg.Now()
	return lo.Find(result.AssignedSurveys, func(item model.AssignedSurvey) bool {
		return item.Category == model.SurveyCategoryImmediate &&
			item.SurveyKey != submitted &&
			(item.StudyKey == "" || item.StudyKey == c.st.StudyKey) &&
			!lo.Contains(c.st.CompletedSurveys, item.SurveyKey) &&
			(item.ValidUntil == 0 || time.Unix(item.ValidUntil, 0).After(now))
	})
}

// SelectProfile picks one of the account's profiles and continues the
// step that was waiting for it.
func (c *Controller) SelectProfile(ctx context.Context, profileID string) error {
	c.mu.Lock()
	known := c.st.Profiles
	c.mu.Unlock()
	if known == nil && c.deps.Session.IsLoggedIn() {
		profiles, err := c.deps.API.Profiles(ctx)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.st.Profiles = profiles
		c.mu.Unlock()
	}

	c.mu.Lock()
	if !hasProfile(c.st.Profiles, profileID) {
		c.mu.Unlock()
		return ErrUnknownProfile
	}
	c.st.SelectedProfileID = profileID
	if c.st.Dialog == DialogProfileSelection {
		c.st.Dialog = DialogNone
	}
	step := c.resume
	c.resume = resumeNone
	c.mu.Unlock()

	c.deps.Session.SetSelectedProfile(ctx, profileID)
	switch step {
	case resumeLoad:
		return c.Load(ctx)
	case resumeSubmit:
		return c.submit(ctx, true)
	case resumeLogin:
		return c.afterLogin(ctx, profileID)
	case resumeNone:
	}
	return nil
}

// OnLoginStateChanged reacts to a login or logout during the flow.
func (c *Controller) OnLoginStateChanged(ctx context.Context) error {
	loggedIn := c.deps.Session.IsLoggedIn()
	c.mu.Lock()
	c.st.AuthRequest = AuthRequestNone
	if !loggedIn {
		c.st.SelectedProfileID = c.cfg.ProfileID
		c.st.Profiles = nil
		if c.st.Dialog == DialogProfileSelection {
			c.st.Dialog = DialogNone
		}
		c.resume = resumeNone
		c.mu.Unlock()
		c.l.Debug("logged out during flow")
		return nil
	}
	if c.st.Dialog == DialogLoginRequired {
		c.st.Dialog = DialogNone
	}
	c.mu.Unlock()

	pid, ok, err := c.ensureProfile(ctx, resumeLogin)
	if err != nil {
		c.mu.Lock()
		c.st.LastError = err
		c.mu.Unlock()
		return err
	}
	if !ok {
		return nil
	}
	return c.afterLogin(ctx, pid)
}

// afterLogin converts the temporary participant and re-fetches the survey
// if it was blocked by the login gate.
func (c *Controller) afterLogin(ctx context.Context, profileID string) error {
	c.mu.Lock()
	completed := c.completed
	reload := !completed && (c.loginGated ||
		c.st.Content == ContentGetSurveyError ||
		c.st.Content == ContentLoading)
	c.mu.Unlock()

	converted, err := c.convertTempParticipant(ctx, profileID)

	c.mu.Lock()
	if err != nil {
		// the user is not blocked, the flow ends without the account link
		c.st.LastError = err
		c.st.Dialog = DialogNone
		c.st.Redirect = c.cfg.CompletionURLWithoutAccount
		c.completed = true
		c.mu.Unlock()
		return nil
	}
	if completed {
		switch {
		case converted:
			c.st.Dialog = DialogTempParticipantConversionSuccess
		case c.st.Dialog != DialogTempParticipantConversionSuccess:
			c.st.Dialog = DialogSubmitSuccess
		}
	}
	c.mu.Unlock()

	if reload {
		return c.Load(ctx)
	}
	return nil
}

func (c *Controller) convertTempParticipant(ctx context.Context, profileID string) (bool, error) {
	if c.deps.Participants == nil {
		return false, nil
	}
	if _, ok := c.deps.Participants.Current(); !ok {
		return false, nil
	}
	err := c.deps.Participants.Assume(ctx, c.st.StudyKey, profileID)
	switch {
	case errors.Is(err, tempparticipant.ErrConversionRunning),
		errors.Is(err, tempparticipant.ErrNoTempParticipant),
		errors.Is(err, tempparticipant.ErrAlreadyConverted):
		// another login handler of this flow took care of it
		c.l.Debug("temp participant converted elsewhere", log.ErrorField(err))
		return false, nil
	case err != nil:
		return false, err
	}
	c.mu.Lock()
	c.st.TempParticipant = nil
	c.mu.Unlock()
	return true, nil
}

// Watch calls OnLoginStateChanged for every login or logout event until
// ctx is done or events is closed.
func (c *Controller) Watch(ctx context.Context, events <-chan session.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Kind == session.EventRenewed {
				continue
			}
			if err := c.OnLoginStateChanged(ctx); err != nil {
				c.l.Warn("could not apply login state",
					log.String("event", ev.Kind.String()),
					log.ErrorField(err))
			}
		}
	}
}

// RequestLogin hands over to the application's login dialog.
func (c *Controller) RequestLogin() {
	c.requestAuth(AuthRequestLogin)
}

// RequestRegistration hands over to the application's registration dialog.
func (c *Controller) RequestRegistration() {
	c.requestAuth(AuthRequestRegistration)
}

func (c *Controller) requestAuth(req AuthRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.st.AuthRequest = req
	if c.st.Dialog == DialogLoginRequired || c.st.Dialog == DialogSubmitSuccessWithLoginOptions {
		c.st.Dialog = DialogNone
	}
}

// ContinueWithoutAccount ends a completed anonymous flow.
func (c *Controller) ContinueWithoutAccount() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.completed {
		return ErrInvalidState
	}
	c.st.Dialog = DialogNone
	c.st.AuthRequest = AuthRequestNone
	c.st.Redirect = c.cfg.CompletionURLWithoutAccount
	// a later login must not link the answers anymore
	if c.deps.Participants != nil {
		c.deps.Participants.Forget()
	}
	return nil
}

// CloseDialog closes the open dialog. The profile selection can not be
// closed, it is answered with SelectProfile.
func (c *Controller) CloseDialog() {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.st.Dialog {
	case DialogProfileSelection:
		return
	case DialogSubmitSuccess, DialogTempParticipantConversionSuccess:
		c.st.Redirect = c.cfg.CompletionURL
	case DialogSubmitSuccessWithLoginOptions:
		c.st.Redirect = c.cfg.CompletionURLWithoutAccount
	case DialogNavigationWarning:
		c.st.PendingNavigation = ""
	case DialogNone, DialogLoginRequired:
	}
	c.st.Dialog = DialogNone
}

// RequestNavigation reports whether the target may be navigated to right
// away. With unsaved changes the NavigationWarning dialog is opened instead.
func (c *Controller) RequestNavigation(target string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.st.NavigationArmed {
		return true
	}
	c.st.PendingNavigation = target
	c.st.Dialog = DialogNavigationWarning
	return false
}

// ConfirmNavigation disarms the guard and returns the pending target.
func (c *Controller) ConfirmNavigation() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	target := c.st.PendingNavigation
	c.st.PendingNavigation = ""
	c.st.NavigationArmed = false
	if c.st.Dialog == DialogNavigationWarning {
		c.st.Dialog = DialogNone
	}
	return target
}

func (c *Controller) CancelNavigation() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.st.PendingNavigation = ""
	if c.st.Dialog == DialogNavigationWarning {
		c.st.Dialog = DialogNone
	}
}

// ensureProfile returns the profile to act as. A preselected profile is
// only used if the account has it. With several profiles and none selected
// the ProfileSelection dialog is opened and ok is false.
//
//nolint:whitespace,funlen // editor/linter issue
func (c *Controller) ensureProfile(
	ctx context.Context,
	step resumeStep,
) (profileID string, ok bool, err error) {
	c.mu.Lock()
	pid := c.st.SelectedProfileID
	known := hasProfile(c.st.Profiles, pid)
	c.mu.Unlock()
	if pid != "" && known {
		return pid, true, nil
	}
	profiles, err := c.deps.API.Profiles(ctx)
	if err != nil {
		return "", false, err
	}

	c.mu.Lock()
	c.st.Profiles = profiles
	if pid != "" {
		if hasProfile(profiles, pid) {
			c.mu.Unlock()
			return pid, true, nil
		}
		c.l.Warn("ignoring unknown profile", log.String("profile", pid))
		c.st.SelectedProfileID = ""
	}
	switch len(profiles) {
	case 0:
		c.mu.Unlock()
		return "", false, ErrNoProfile
	case 1:
		pid = profiles[0].ID
		c.st.SelectedProfileID = pid
		c.mu.Unlock()
		c.deps.Session.SetSelectedProfile(ctx, pid)
		return pid, true, nil
	default:
		c.st.Dialog = DialogProfileSelection
		c.resume = step
		if c.st.Content == ContentSubmitting || c.st.Content == ContentSubmitError {
			c.st.Content = ContentSurvey
		}
		c.mu.Unlock()
		return "", false, nil
	}
}

func hasProfile(profiles []model.Profile, id string) bool {
	return id != "" && lo.ContainsBy(profiles, func(p model.Profile) bool { return p.ID == id })
}

func (c *Controller) tempParticipant(ctx context.Context) (tempparticipant.TempParticipant, error) {
	if c.deps.Participants == nil {
		return tempparticipant.TempParticipant{}, ErrAnonymousDisabled
	}
	if tp, ok := c.deps.Participants.Current(); ok {
		return tp, nil
	}
	tp, err := c.deps.Participants.Register(ctx, c.cfg.InstanceID, c.st.StudyKey)
	if err != nil {
		return tempparticipant.TempParticipant{}, err
	}
	c.mu.Lock()
	c.st.TempParticipant = &tp
	c.mu.Unlock()
	return tp, nil
}

// must be called with c.mu held
func (c *Controller) prepareResponse(resp model.SurveyResponse) *model.SurveyResponse {
	if resp.Key == "" {
		resp.Key = c.st.CurrentSurveyKey
	}
	if resp.VersionID == "" && c.st.CurrentSurvey != nil {
		resp.VersionID = c.st.CurrentSurvey.Survey.VersionID
	}
	if resp.OpenedAt == 0 && !c.openedAt.IsZero() {
		resp.OpenedAt = c.openedAt.Unix()
	}
	resp.SubmittedAt = c.cfg.Now().Unix()
	return &resp
}

func (c *Controller) loadFailed(gen uint64, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return nil
	}
	c.st.Content = ContentGetSurveyError
	c.st.LastError = err
	c.l.Warn("could not load survey",
		log.String("survey", c.st.CurrentSurveyKey),
		log.ErrorField(err))
	return err
}

// gen 0 means no request was started yet
func (c *Controller) submitFailed(gen uint64, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != 0 && gen != c.gen {
		return nil
	}
	c.st.Content = ContentSubmitError
	c.st.LastError = err
	c.l.Warn("could not submit response",
		log.String("survey", c.st.CurrentSurveyKey),
		log.ErrorField(err))
	return err
}
