//nolint:funlen // test scenarios
package surveyflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/participant-core-go/log"
	"github.com/mpapenbr/participant-core-go/pkg/model"
	"github.com/mpapenbr/participant-core-go/pkg/session"
	"github.com/mpapenbr/participant-core-go/pkg/tempparticipant"
)

var (
	refTime        = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	errUnavailable = errors.New("service unavailable")
)

const (
	completionURL        = "https://example.com/done"
	completionURLNoLogin = "https://example.com/done-anonymous"
)

type submitted struct {
	authenticated bool
	profileID     string
	participantID string
	response      model.SurveyResponse
}

// fakeBackend implements both the flow API and the temp participant API.
type fakeBackend struct {
	mu           sync.Mutex
	requireLogin map[string]bool
	results      map[string]*model.SubmitResult
	profiles     []model.Profile
	getErrs      int // number of failing survey fetches
	submitErrs   int // number of failing submits
	authGets     []string
	anonGets     []string
	submits      []submitted
	issued       map[string]int64
	registered   int
	assumed      []string
	blockFirst   chan struct{}
	getCalls     int
}

func newBackend() *fakeBackend {
	return &fakeBackend{
		requireLogin: map[string]bool{},
		results:      map[string]*model.SubmitResult{},
		issued:       map[string]int64{},
	}
}

func (f *fakeBackend) survey(key, pid string) (*model.SurveyWithContext, error) {
	f.getCalls++
	n := f.getCalls
	block := f.blockFirst
	if f.getErrs > 0 {
		f.getErrs--
		return nil, errUnavailable
	}
	f.mu.Unlock()
	if n == 1 && block != nil {
		<-block
	}
	f.mu.Lock()
	return &model.SurveyWithContext{Survey: model.Survey{
		ID:                           key,
		VersionID:                    fmt.Sprintf("v%d", n),
		RequireLoginBeforeSubmission: f.requireLogin[key],
	}}, nil
}

//nolint:whitespace // editor/linter issue
func (f *fakeBackend) GetSurvey(
	ctx context.Context,
	studyKey, surveyKey, profileID string,
) (*model.SurveyWithContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authGets = append(f.authGets, surveyKey+"@"+profileID)
	return f.survey(surveyKey, profileID)
}

//nolint:whitespace // editor/linter issue
func (f *fakeBackend) GetTempParticipantSurvey(
	ctx context.Context,
	instanceID, studyKey, surveyKey, tempParticipantID string,
) (*model.SurveyWithContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.anonGets = append(f.anonGets, surveyKey+"@"+tempParticipantID)
	return f.survey(surveyKey, tempParticipantID)
}

func (f *fakeBackend) submitResult(key string) (*model.SubmitResult, error) {
	if f.submitErrs > 0 {
		f.submitErrs--
		return nil, errUnavailable
	}
	if r, ok := f.results[key]; ok {
		return r, nil
	}
	return &model.SubmitResult{}, nil
}

//nolint:whitespace // editor/linter issue
func (f *fakeBackend) SubmitResponse(
	ctx context.Context,
	studyKey, profileID string,
	response *model.SurveyResponse,
) (*model.SubmitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits = append(f.submits, submitted{
		authenticated: true, profileID: profileID, response: *response,
	})
	return f.submitResult(response.Key)
}

//nolint:whitespace // editor/linter issue
func (f *fakeBackend) SubmitTempParticipantResponse(
	ctx context.Context,
	instanceID, studyKey, tempParticipantID string,
	response *model.SurveyResponse,
) (*model.SubmitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits = append(f.submits, submitted{
		participantID: tempParticipantID, response: *response,
	})
	return f.submitResult(response.Key)
}

func (f *fakeBackend) Profiles(ctx context.Context) ([]model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profiles, nil
}

//nolint:whitespace // editor/linter issue
func (f *fakeBackend) RegisterTempParticipant(
	ctx context.Context,
	instanceID, studyKey string,
) (*model.TempParticipantInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered++
	id := fmt.Sprintf("tp-%d", f.registered)
	f.issued[id] = refTime.Unix() + int64(f.registered)
	return &model.TempParticipantInfo{TemporaryParticipantID: id, Timestamp: f.issued[id]}, nil
}

//nolint:whitespace // editor/linter issue
func (f *fakeBackend) AssumeTempParticipant(
	ctx context.Context,
	studyKey, profileID, tempParticipantID string,
	timestamp int64,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ts, ok := f.issued[tempParticipantID]; !ok || ts != timestamp {
		return errors.New("timestamp mismatch")
	}
	f.assumed = append(f.assumed, tempParticipantID+"->"+profileID)
	return nil
}

// invalidate makes the server reject the issued timestamps
func (f *fakeBackend) invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k := range f.issued {
		f.issued[k]++
	}
}

func (f *fakeBackend) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submits)
}

type fakeSession struct {
	mu       sync.Mutex
	loggedIn bool
	selected string
}

func (s *fakeSession) IsLoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loggedIn
}

func (s *fakeSession) SetSelectedProfile(ctx context.Context, profileID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = profileID
}

func (s *fakeSession) login() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loggedIn = true
}

type testFlow struct {
	*Controller
	backend      *fakeBackend
	session      *fakeSession
	participants *tempparticipant.Registry
}

func newFlow(t *testing.T, loggedIn bool, opts ...Option) *testFlow {
	t.Helper()
	b := newBackend()
	s := &fakeSession{loggedIn: loggedIn}
	opts = append([]Option{
		WithInstanceID("default"),
		WithCompletionURLs(completionURL, completionURLNoLogin),
		WithClock(func() time.Time { return refTime }),
		WithLogger(log.Nop()),
	}, opts...)
	r := tempparticipant.NewRegistry(b, tempparticipant.WithLogger(log.Nop()))
	c := New("s1", "A", Deps{
		API:          b,
		Session:      s,
		Participants: r,
	}, opts...)
	return &testFlow{Controller: c, backend: b, session: s, participants: r}
}

func answer(t *testing.T, f *testFlow) {
	t.Helper()
	require.NoError(t, f.UpdateResponse(&model.SurveyResponse{
		Responses: []model.SurveyItemResponse{{Key: "q1"}},
	}))
}

func TestAnonymousLoadRegistersTempParticipant(t *testing.T) {
	f := newFlow(t, false)
	assert.Equal(t, ContentLoading, f.State().Content)

	require.NoError(t, f.Load(context.Background()))
	st := f.State()
	assert.Equal(t, ContentSurvey, st.Content)
	assert.Equal(t, DialogNone, st.Dialog)
	require.NotNil(t, st.TempParticipant)
	assert.Equal(t, "tp-1", st.TempParticipant.ID)
	assert.Equal(t, []string{"A@tp-1"}, f.backend.anonGets)
	assert.Empty(t, f.backend.authGets)

	// a reload keeps the participant
	require.NoError(t, f.Load(context.Background()))
	assert.Equal(t, 1, f.backend.registered)
}

func TestLoadErrorAndManualRetry(t *testing.T) {
	f := newFlow(t, false)
	f.backend.getErrs = 1

	err := f.Load(context.Background())
	require.ErrorIs(t, err, errUnavailable)
	st := f.State()
	assert.Equal(t, ContentGetSurveyError, st.Content)
	assert.ErrorIs(t, st.LastError, errUnavailable)

	require.NoError(t, f.RetryLoad(context.Background()))
	st = f.State()
	assert.Equal(t, ContentSurvey, st.Content)
	assert.NoError(t, st.LastError)

	assert.ErrorIs(t, f.RetryLoad(context.Background()), ErrInvalidState)
}

func TestLoginRequiredBeforeSubmit(t *testing.T) {
	f := newFlow(t, false)
	f.backend.requireLogin["A"] = true

	require.NoError(t, f.Load(context.Background()))
	st := f.State()
	assert.Equal(t, ContentSurvey, st.Content)
	assert.Equal(t, DialogLoginRequired, st.Dialog)

	answer(t, f)
	f.CloseDialog()
	assert.ErrorIs(t, f.Submit(context.Background()), ErrLoginRequired)
	assert.Equal(t, DialogLoginRequired, f.State().Dialog)
	assert.Equal(t, 0, f.backend.submitCount())

	f.RequestLogin()
	st = f.State()
	assert.Equal(t, AuthRequestLogin, st.AuthRequest)
	assert.Equal(t, DialogNone, st.Dialog)
}

func TestLoginAfterGateRefetchesSurvey(t *testing.T) {
	f := newFlow(t, false)
	f.backend.requireLogin["A"] = true
	f.backend.profiles = []model.Profile{{ID: "p1"}}

	require.NoError(t, f.Load(context.Background()))
	f.RequestRegistration()
	assert.Equal(t, AuthRequestRegistration, f.State().AuthRequest)

	f.session.login()
	require.NoError(t, f.OnLoginStateChanged(context.Background()))
	st := f.State()
	assert.Equal(t, ContentSurvey, st.Content)
	assert.Equal(t, DialogNone, st.Dialog)
	assert.Equal(t, AuthRequestNone, st.AuthRequest)
	assert.Equal(t, []string{"A@p1"}, f.backend.authGets)
	assert.Equal(t, []string{"tp-1->p1"}, f.backend.assumed)

	answer(t, f)
	require.NoError(t, f.Submit(context.Background()))
	assert.Equal(t, DialogSubmitSuccess, f.State().Dialog)
}

func TestSubmitChainsToImmediateSurvey(t *testing.T) {
	f := newFlow(t, false)
	f.backend.results["A"] = &model.SubmitResult{AssignedSurveys: []model.AssignedSurvey{
		{
			SurveyKey:  "B",
			Category:   model.SurveyCategoryImmediate,
			ValidUntil: refTime.Add(time.Hour).Unix(),
		},
		{SurveyKey: "A", Category: model.SurveyCategoryOptional},
	}}

	require.NoError(t, f.Load(context.Background()))
	answer(t, f)
	require.NoError(t, f.Submit(context.Background()))

	st := f.State()
	assert.Equal(t, "B", st.CurrentSurveyKey)
	assert.Equal(t, ContentSurvey, st.Content)
	assert.Equal(t, DialogNone, st.Dialog)
	assert.False(t, st.NavigationArmed)
	if diff := cmp.Diff([]string{"A@tp-1", "B@tp-1"}, f.backend.anonGets); diff != "" {
		t.Errorf("survey fetches mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"A"}, st.CompletedSurveys); diff != "" {
		t.Errorf("completed surveys mismatch (-want +got):\n%s", diff)
	}

	// B has nothing to chain, the flow completes
	answer(t, f)
	require.NoError(t, f.Submit(context.Background()))
	st = f.State()
	assert.Equal(t, DialogSubmitSuccessWithLoginOptions, st.Dialog)
	assert.Equal(t, []string{"A", "B"}, st.CompletedSurveys)
}

func TestNextSurveyEligibility(t *testing.T) {
	future := refTime.Add(time.Minute).Unix()
	past := refTime.Add(-time.Minute).Unix()
	imm := model.SurveyCategoryImmediate
	tests := []struct {
		name      string
		assigned  []model.AssignedSurvey
		completed []string
		want      string
		wantFound bool
	}{
		{
			name:     "none",
			assigned: nil,
		},
		{
			name: "not immediate",
			assigned: []model.AssignedSurvey{
				{SurveyKey: "B", Category: model.SurveyCategoryPrio},
				{SurveyKey: "C", Category: model.SurveyCategoryNormal},
			},
		},
		{
			name:     "same key",
			assigned: []model.AssignedSurvey{{SurveyKey: "A", Category: imm}},
		},
		{
			name:     "expired",
			assigned: []model.AssignedSurvey{{SurveyKey: "B", Category: imm, ValidUntil: past}},
		},
		{
			name:      "open ended",
			assigned:  []model.AssignedSurvey{{SurveyKey: "B", Category: imm}},
			want:      "B",
			wantFound: true,
		},
		{
			name: "first eligible in list order",
			assigned: []model.AssignedSurvey{
				{SurveyKey: "B", Category: imm, ValidUntil: past},
				{SurveyKey: "C", Category: imm, ValidUntil: future},
				{SurveyKey: "D", Category: imm},
			},
			want:      "C",
			wantFound: true,
		},
		{
			name:      "already completed",
			assigned:  []model.AssignedSurvey{{SurveyKey: "B", Category: imm}},
			completed: []string{"B"},
		},
		{
			name: "other study",
			assigned: []model.AssignedSurvey{
				{StudyKey: "s2", SurveyKey: "B", Category: imm},
				{StudyKey: "s1", SurveyKey: "C", Category: imm},
			},
			want:      "C",
			wantFound: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFlow(t, false)
			f.st.CompletedSurveys = tt.completed
			got, found := f.nextSurvey(&model.SubmitResult{AssignedSurveys: tt.assigned}, "A")
			assert.Equal(t, tt.wantFound, found)
			assert.Equal(t, tt.want, got.SurveyKey)
		})
	}
}

func TestCompletionAuthenticated(t *testing.T) {
	f := newFlow(t, true)
	f.backend.profiles = []model.Profile{{ID: "p1"}}

	require.NoError(t, f.Load(context.Background()))
	answer(t, f)
	require.NoError(t, f.Submit(context.Background()))
	st := f.State()
	assert.Equal(t, DialogSubmitSuccess, st.Dialog)
	require.Len(t, f.backend.submits, 1)
	assert.True(t, f.backend.submits[0].authenticated)
	assert.Equal(t, "p1", f.backend.submits[0].profileID)

	f.CloseDialog()
	assert.Equal(t, completionURL, f.State().Redirect)
	assert.ErrorIs(t, f.Submit(context.Background()), ErrInvalidState)
}

func TestContinueWithoutAccount(t *testing.T) {
	f := newFlow(t, false)
	assert.ErrorIs(t, f.ContinueWithoutAccount(), ErrInvalidState)

	require.NoError(t, f.Load(context.Background()))
	answer(t, f)
	require.NoError(t, f.Submit(context.Background()))
	assert.Equal(t, DialogSubmitSuccessWithLoginOptions, f.State().Dialog)

	require.NoError(t, f.ContinueWithoutAccount())
	st := f.State()
	assert.Equal(t, DialogNone, st.Dialog)
	assert.Equal(t, completionURLNoLogin, st.Redirect)

	// a login afterwards does not link the answers
	_, held := f.participants.Current()
	assert.False(t, held)
	f.backend.profiles = []model.Profile{{ID: "p1"}}
	f.session.login()
	require.NoError(t, f.OnLoginStateChanged(context.Background()))
	assert.Empty(t, f.backend.assumed)
}

func TestAnonymousFlowWithoutRegistry(t *testing.T) {
	b := newBackend()
	c := New("s1", "A", Deps{API: b, Session: &fakeSession{}},
		WithLogger(log.Nop()))

	err := c.Load(context.Background())
	require.ErrorIs(t, err, ErrAnonymousDisabled)
	st := c.State()
	assert.Equal(t, ContentGetSurveyError, st.Content)
	assert.ErrorIs(t, st.LastError, ErrAnonymousDisabled)
	assert.Empty(t, b.anonGets)

	// logged in users do not need one
	b.profiles = []model.Profile{{ID: "p1"}}
	authed := New("s1", "A", Deps{API: b, Session: &fakeSession{loggedIn: true}},
		WithLogger(log.Nop()))
	require.NoError(t, authed.Load(context.Background()))
	assert.Equal(t, ContentSurvey, authed.State().Content)
}

func TestSubmitResponseIsPrepared(t *testing.T) {
	f := newFlow(t, false)
	require.NoError(t, f.Load(context.Background()))
	answer(t, f)
	require.NoError(t, f.Submit(context.Background()))

	require.Len(t, f.backend.submits, 1)
	got := f.backend.submits[0]
	assert.Equal(t, "tp-1", got.participantID)
	assert.False(t, got.authenticated)
	want := model.SurveyResponse{
		Key:         "A",
		VersionID:   "v1",
		OpenedAt:    refTime.Unix(),
		SubmittedAt: refTime.Unix(),
		Responses:   []model.SurveyItemResponse{{Key: "q1"}},
	}
	if diff := cmp.Diff(want, got.response); diff != "" {
		t.Errorf("submitted response mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmitErrorRetriesSameResponse(t *testing.T) {
	f := newFlow(t, false)
	f.backend.submitErrs = 1

	require.NoError(t, f.Load(context.Background()))
	assert.ErrorIs(t, f.Submit(context.Background()), ErrNoResponse)
	answer(t, f)
	assert.ErrorIs(t, f.RetrySubmit(context.Background()), ErrInvalidState)

	err := f.Submit(context.Background())
	require.ErrorIs(t, err, errUnavailable)
	st := f.State()
	assert.Equal(t, ContentSubmitError, st.Content)
	require.NotNil(t, st.PendingResponse)

	require.NoError(t, f.RetrySubmit(context.Background()))
	assert.Equal(t, DialogSubmitSuccessWithLoginOptions, f.State().Dialog)
	require.Len(t, f.backend.submits, 2)
	if diff := cmp.Diff(f.backend.submits[0].response, f.backend.submits[1].response); diff != "" {
		t.Errorf("retry sent a different response (-first +retry):\n%s", diff)
	}
}

func TestMidFlowLoginSubmitsAuthenticated(t *testing.T) {
	f := newFlow(t, false)
	f.backend.profiles = []model.Profile{{ID: "p1"}}

	require.NoError(t, f.Load(context.Background()))
	answer(t, f)

	f.session.login()
	require.NoError(t, f.OnLoginStateChanged(context.Background()))
	st := f.State()
	// the survey is not refetched, the answers are kept
	assert.NotNil(t, st.PendingResponse)
	assert.Empty(t, f.backend.authGets)
	assert.Nil(t, st.TempParticipant)
	assert.Equal(t, []string{"tp-1->p1"}, f.backend.assumed)

	require.NoError(t, f.Submit(context.Background()))
	require.Len(t, f.backend.submits, 1)
	assert.True(t, f.backend.submits[0].authenticated)
	assert.Equal(t, DialogSubmitSuccess, f.State().Dialog)
}

func TestSingleProfileIsSelectedAutomatically(t *testing.T) {
	f := newFlow(t, true)
	f.backend.profiles = []model.Profile{{ID: "p1", MainProfile: true}}

	require.NoError(t, f.Load(context.Background()))
	st := f.State()
	assert.Equal(t, DialogNone, st.Dialog)
	assert.Equal(t, ContentSurvey, st.Content)
	assert.Equal(t, "p1", st.SelectedProfileID)
	assert.Equal(t, "p1", f.session.selected)
	assert.Equal(t, []string{"A@p1"}, f.backend.authGets)
}

func TestProfileFromPageParameter(t *testing.T) {
	f := newFlow(t, true, WithProfileID("p2"))
	f.backend.profiles = []model.Profile{{ID: "p1"}, {ID: "p2"}}

	require.NoError(t, f.Load(context.Background()))
	assert.Equal(t, DialogNone, f.State().Dialog)
	assert.Equal(t, []string{"A@p2"}, f.backend.authGets)
}

func TestUnknownPageProfileIsIgnored(t *testing.T) {
	f := newFlow(t, true, WithProfileID("p9"))
	f.backend.profiles = []model.Profile{{ID: "p1"}, {ID: "p2"}}

	require.NoError(t, f.Load(context.Background()))
	st := f.State()
	assert.Equal(t, DialogProfileSelection, st.Dialog)
	assert.Empty(t, st.SelectedProfileID)
	assert.Empty(t, f.backend.authGets)
}

func TestSelectProfileAfterPageParameter(t *testing.T) {
	f := newFlow(t, true, WithProfileID("p2"))
	f.backend.profiles = []model.Profile{{ID: "p1"}, {ID: "p2"}}

	require.NoError(t, f.Load(context.Background()))
	require.NoError(t, f.SelectProfile(context.Background(), "p1"))
	assert.Equal(t, "p1", f.State().SelectedProfileID)
	assert.Equal(t, "p1", f.session.selected)
}

func TestSelectProfileFetchesProfiles(t *testing.T) {
	f := newFlow(t, true, WithProfileID("p2"))
	f.backend.profiles = []model.Profile{{ID: "p1"}, {ID: "p2"}}

	require.NoError(t, f.SelectProfile(context.Background(), "p1"))
	assert.Len(t, f.State().Profiles, 2)
	assert.ErrorIs(t, f.SelectProfile(context.Background(), "p9"), ErrUnknownProfile)
}

func TestSeveralProfilesRequireSelection(t *testing.T) {
	f := newFlow(t, true)
	f.backend.profiles = []model.Profile{{ID: "p1"}, {ID: "p2"}}

	require.NoError(t, f.Load(context.Background()))
	st := f.State()
	assert.Equal(t, DialogProfileSelection, st.Dialog)
	assert.Equal(t, ContentLoading, st.Content)
	assert.Empty(t, f.backend.authGets)

	// the selection can not be dismissed
	f.CloseDialog()
	assert.Equal(t, DialogProfileSelection, f.State().Dialog)

	assert.ErrorIs(t, f.SelectProfile(context.Background(), "p9"), ErrUnknownProfile)
	require.NoError(t, f.SelectProfile(context.Background(), "p2"))
	st = f.State()
	assert.Equal(t, DialogNone, st.Dialog)
	assert.Equal(t, ContentSurvey, st.Content)
	assert.Equal(t, "p2", st.SelectedProfileID)
	assert.Equal(t, "p2", f.session.selected)
	assert.Equal(t, []string{"A@p2"}, f.backend.authGets)
}

func TestNoProfileIsLoadError(t *testing.T) {
	f := newFlow(t, true)
	err := f.Load(context.Background())
	require.ErrorIs(t, err, ErrNoProfile)
	assert.Equal(t, ContentGetSurveyError, f.State().Content)
}

func TestLoginAfterCompletionConvertsTempParticipant(t *testing.T) {
	f := newFlow(t, false)
	f.backend.profiles = []model.Profile{{ID: "p1"}, {ID: "p2"}}

	require.NoError(t, f.Load(context.Background()))
	answer(t, f)
	require.NoError(t, f.Submit(context.Background()))
	f.RequestLogin()

	f.session.login()
	require.NoError(t, f.OnLoginStateChanged(context.Background()))
	assert.Equal(t, DialogProfileSelection, f.State().Dialog)
	assert.Empty(t, f.backend.assumed)

	require.NoError(t, f.SelectProfile(context.Background(), "p2"))
	st := f.State()
	assert.Equal(t, DialogTempParticipantConversionSuccess, st.Dialog)
	assert.Equal(t, []string{"tp-1->p2"}, f.backend.assumed)

	f.CloseDialog()
	assert.Equal(t, completionURL, f.State().Redirect)
}

func TestConversionFailureRoutesWithoutAccount(t *testing.T) {
	f := newFlow(t, false)
	f.backend.profiles = []model.Profile{{ID: "p1"}}

	require.NoError(t, f.Load(context.Background()))
	answer(t, f)
	require.NoError(t, f.Submit(context.Background()))

	f.backend.invalidate()
	f.session.login()
	require.NoError(t, f.OnLoginStateChanged(context.Background()))

	st := f.State()
	assert.Equal(t, completionURLNoLogin, st.Redirect)
	assert.Equal(t, DialogNone, st.Dialog)
	assert.ErrorIs(t, st.LastError, tempparticipant.ErrConversionFailed)
	assert.Empty(t, f.backend.assumed)
}

func TestConcurrentLoginHandlersConvertOnce(t *testing.T) {
	f := newFlow(t, false)
	f.backend.profiles = []model.Profile{{ID: "p1"}}

	require.NoError(t, f.Load(context.Background()))
	answer(t, f)
	require.NoError(t, f.Submit(context.Background()))

	f.session.login()
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = f.OnLoginStateChanged(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, []error{nil, nil}, errs)
	assert.Equal(t, []string{"tp-1->p1"}, f.backend.assumed)
	st := f.State()
	assert.Equal(t, DialogTempParticipantConversionSuccess, st.Dialog)
	assert.Empty(t, st.Redirect)
}

func TestNavigationGuard(t *testing.T) {
	f := newFlow(t, false)
	require.NoError(t, f.Load(context.Background()))
	assert.True(t, f.RequestNavigation("/home"))

	answer(t, f)
	assert.False(t, f.RequestNavigation("/home"))
	st := f.State()
	assert.Equal(t, DialogNavigationWarning, st.Dialog)
	assert.Equal(t, "/home", st.PendingNavigation)

	f.CancelNavigation()
	st = f.State()
	assert.Equal(t, DialogNone, st.Dialog)
	assert.True(t, st.NavigationArmed)
	assert.NotNil(t, st.PendingResponse)

	assert.False(t, f.RequestNavigation("/profile"))
	assert.Equal(t, "/profile", f.ConfirmNavigation())
	st = f.State()
	assert.False(t, st.NavigationArmed)
	assert.Equal(t, DialogNone, st.Dialog)
	assert.True(t, f.RequestNavigation("/profile"))
}

func TestSupersededLoadIsDropped(t *testing.T) {
	f := newFlow(t, false)
	block := make(chan struct{})
	f.backend.blockFirst = block

	done := make(chan error, 1)
	go func() { done <- f.Load(context.Background()) }()
	assert.Eventually(t, func() bool {
		f.backend.mu.Lock()
		defer f.backend.mu.Unlock()
		return f.backend.getCalls == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, f.Load(context.Background()))
	close(block)
	require.NoError(t, <-done)

	st := f.State()
	assert.Equal(t, ContentSurvey, st.Content)
	assert.Equal(t, "v2", st.CurrentSurvey.Survey.VersionID)
}

func TestWatchFollowsSessionEvents(t *testing.T) {
	store := session.NewStore(session.WithLogger(log.Nop()))
	t.Cleanup(store.Close)
	b := newBackend()
	b.requireLogin["A"] = true
	b.profiles = []model.Profile{{ID: "p1"}}
	f := New("s1", "A", Deps{
		API:          b,
		Session:      store,
		Participants: tempparticipant.NewRegistry(b, tempparticipant.WithLogger(log.Nop())),
	}, WithLogger(log.Nop()), WithClock(func() time.Time { return refTime }))

	require.NoError(t, f.Load(context.Background()))
	require.Equal(t, DialogLoginRequired, f.State().Dialog)

	ctx, cancel := context.WithCancel(context.Background())
	events := store.Subscribe()
	watchDone := make(chan error, 1)
	go func() { watchDone <- f.Watch(ctx, events) }()

	store.Set(context.Background(), session.NewAuthSession("a", "r", 60, refTime, time.Minute))
	// the survey is refetched for the selected profile
	assert.Eventually(t, func() bool {
		b.mu.Lock()
		fetched := len(b.authGets) == 1
		b.mu.Unlock()
		return fetched && f.State().Content == ContentSurvey
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, DialogNone, f.State().Dialog)
	assert.Equal(t, "p1", store.SelectedProfile())

	cancel()
	assert.ErrorIs(t, <-watchDone, context.Canceled)
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "getSurveyError", ContentGetSurveyError.String())
	assert.Equal(t, "SubmitSuccessWithLoginOptions", DialogSubmitSuccessWithLoginOptions.String())
	assert.Equal(t, "registration", AuthRequestRegistration.String())
}
