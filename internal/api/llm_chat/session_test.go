package llmChat

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Nexoracode/khadamat/config"
	"github.com/Nexoracode/khadamat/internal/api/catalog"
	generativeAI "github.com/Nexoracode/khadamat/internal/api/generative_ai"
	"github.com/Nexoracode/khadamat/internal/api/recommendation"
	"github.com/Nexoracode/khadamat/internal/types"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Converse(ctx context.Context, utterance string, history []types.ConversationMessage, audio *types.AudioInput) types.AIReply {
	args := m.Called(ctx, utterance, history, audio)
	return args.Get(0).(types.AIReply)
}

type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(ctx context.Context, ref types.RecommendationReference, origin *types.GeoPoint) *types.Recommendation {
	args := m.Called(ctx, ref, origin)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*types.Recommendation)
}

type MockSynthesizer struct {
	mock.Mock
}

func (m *MockSynthesizer) Synthesize(ctx context.Context, text string) []byte {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]byte)
}

type chatMocks struct {
	gateway     *MockGateway
	resolver    *MockResolver
	synthesizer *MockSynthesizer
	audio       *AudioStore
}

func setupChatServiceTest(turnTimeout time.Duration) (*ServiceImpl, *chatMocks) {
	m := &chatMocks{
		gateway:     new(MockGateway),
		resolver:    new(MockResolver),
		synthesizer: new(MockSynthesizer),
		audio:       NewAudioStore(time.Minute),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.ChatConfig{TurnTimeout: turnTimeout, SessionTTL: time.Minute}
	return NewServiceImpl(m.gateway, m.resolver, m.synthesizer, m.audio, cfg, logger), m
}

var wavBytes = []byte("RIFF-fake-wav")

func TestSession_StartsWithGreeting(t *testing.T) {
	svc, _ := setupChatServiceTest(time.Second)
	s := svc.CreateSession(context.Background())

	history := s.History()
	require.Len(t, history, 1)
	assert.Equal(t, types.RoleModel, history[0].Role)
	assert.Equal(t, Greeting, history[0].Text)
	assert.False(t, s.Pending())
}

func TestSession_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("empty utterance without audio is rejected", func(t *testing.T) {
		svc, m := setupChatServiceTest(time.Second)
		s := svc.CreateSession(ctx)

		_, err := s.Submit(ctx, "   ", nil)
		assert.ErrorIs(t, err, ErrEmptyUtterance)
		_, err = s.Submit(ctx, "", &types.AudioCapture{MIMEType: "audio/webm"})
		assert.ErrorIs(t, err, ErrEmptyUtterance)

		assert.Len(t, s.History(), 1)
		m.gateway.AssertNotCalled(t, "Converse", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("text turn without location", func(t *testing.T) {
		svc, m := setupChatServiceTest(time.Second)
		s := svc.CreateSession(ctx)
		greeting := s.History()

		specialist := &types.Specialist{ID: "s1", Expertise: "برق‌کار ساختمان"}
		m.gateway.On("Converse", mock.Anything, "برق خانه رفته ", greeting, (*types.AudioInput)(nil)).
			Return(types.AIReply{Text: "با متخصص تماس بگیرید", Solution: "فیوز را چک کنید", RecommendationType: types.RecommendationSpecialist, RecommendationID: "s1"})
		m.resolver.On("Resolve", mock.Anything, types.RecommendationReference{Kind: types.RecommendationSpecialist, ID: "s1"}, (*types.GeoPoint)(nil)).
			Return(&types.Recommendation{Kind: types.RecommendationSpecialist, Specialist: specialist})
		m.synthesizer.On("Synthesize", mock.Anything, "فیوز را چک کنید").Return(wavBytes)

		reply, err := s.Submit(ctx, "برق خانه رفته", nil)
		require.NoError(t, err)

		history := s.History()
		require.Len(t, history, 3)
		assert.Equal(t, types.RoleUser, history[1].Role)
		assert.Equal(t, "برق خانه رفته", history[1].Text)
		assert.False(t, history[1].IsVoiceInput)
		assert.Nil(t, history[1].AudioRef)

		assert.Equal(t, reply, history[2])
		assert.Equal(t, types.RoleModel, reply.Role)
		assert.Equal(t, "با متخصص تماس بگیرید", reply.Text)
		require.NotNil(t, reply.Recommendation)
		assert.Equal(t, "s1", reply.Recommendation.Specialist.ID)
		require.NotNil(t, reply.AudioRef)
		clip, ok := m.audio.Get(*reply.AudioRef)
		require.True(t, ok)
		assert.Equal(t, wavBytes, clip.Data)
		assert.Equal(t, "audio/wav", clip.MIMEType)
		assert.False(t, s.Pending())

		m.gateway.AssertExpectations(t)
		m.resolver.AssertExpectations(t)
		m.synthesizer.AssertExpectations(t)
	})

	t.Run("known location is appended and passed to the resolver", func(t *testing.T) {
		svc, m := setupChatServiceTest(time.Second)
		s := svc.CreateSession(ctx)
		s.SetLocation(types.GeoPoint{Lat: 35.76, Lng: 51.49})

		m.gateway.On("Converse", mock.Anything, "برق رفته کاربر در لوکیشن 35.76, 51.49 قرار دارد.", mock.Anything, mock.Anything).
			Return(types.AIReply{Text: "t", RecommendationType: types.RecommendationNone})
		m.resolver.On("Resolve", mock.Anything, mock.Anything, &types.GeoPoint{Lat: 35.76, Lng: 51.49}).Return(nil)

		reply, err := s.Submit(ctx, "برق رفته", nil)
		require.NoError(t, err)
		assert.Nil(t, reply.Recommendation)
		assert.Nil(t, reply.AudioRef)
		m.gateway.AssertExpectations(t)
		m.resolver.AssertExpectations(t)
		m.synthesizer.AssertNotCalled(t, "Synthesize", mock.Anything, mock.Anything)
	})

	t.Run("cleared location is not used", func(t *testing.T) {
		svc, m := setupChatServiceTest(time.Second)
		s := svc.CreateSession(ctx)
		s.SetLocation(types.GeoPoint{Lat: 35.7, Lng: 51.3})
		s.ClearLocation()
		assert.Nil(t, s.Location())

		m.gateway.On("Converse", mock.Anything, "سلام ", mock.Anything, mock.Anything).
			Return(types.AIReply{Text: "t", RecommendationType: types.RecommendationNone})
		m.resolver.On("Resolve", mock.Anything, mock.Anything, (*types.GeoPoint)(nil)).Return(nil)

		_, err := s.Submit(ctx, "سلام", nil)
		require.NoError(t, err)
		m.gateway.AssertExpectations(t)
	})

	t.Run("failed synthesis leaves the message without audio", func(t *testing.T) {
		svc, m := setupChatServiceTest(time.Second)
		s := svc.CreateSession(ctx)

		m.gateway.On("Converse", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(types.AIReply{Text: "t", Solution: "s", RecommendationType: types.RecommendationNone})
		m.resolver.On("Resolve", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		m.synthesizer.On("Synthesize", mock.Anything, "s").Return(nil)

		reply, err := s.Submit(ctx, "سلام", nil)
		require.NoError(t, err)
		assert.Nil(t, reply.AudioRef)
		assert.Equal(t, "t", reply.Text)
	})

	t.Run("voice turn stores the clip and forwards it", func(t *testing.T) {
		svc, m := setupChatServiceTest(time.Second)
		s := svc.CreateSession(ctx)
		clip := &types.AudioCapture{Data: []byte{1, 2, 3}, MIMEType: "audio/webm"}

		m.gateway.On("Converse", mock.Anything, " ", mock.Anything, &types.AudioInput{Data: []byte{1, 2, 3}, MIMEType: "audio/webm"}).
			Return(types.AIReply{Text: "t", RecommendationType: types.RecommendationNone})
		m.resolver.On("Resolve", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		_, err := s.Submit(ctx, "", clip)
		require.NoError(t, err)

		user := s.History()[1]
		assert.True(t, user.IsVoiceInput)
		require.NotNil(t, user.AudioRef)
		stored, ok := m.audio.Get(*user.AudioRef)
		require.True(t, ok)
		assert.Equal(t, "audio/webm", stored.MIMEType)
		m.gateway.AssertExpectations(t)
	})

	t.Run("history passed to the gateway excludes the new message", func(t *testing.T) {
		svc, m := setupChatServiceTest(time.Second)
		s := svc.CreateSession(ctx)

		var seen [][]types.ConversationMessage
		m.gateway.On("Converse", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				seen = append(seen, args.Get(2).([]types.ConversationMessage))
			}).
			Return(types.AIReply{Text: "t", RecommendationType: types.RecommendationNone})
		m.resolver.On("Resolve", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		_, err := s.Submit(ctx, "اول", nil)
		require.NoError(t, err)
		_, err = s.Submit(ctx, "دوم", nil)
		require.NoError(t, err)

		require.Len(t, seen, 2)
		assert.Len(t, seen[0], 1)
		assert.Len(t, seen[1], 3)
		assert.Equal(t, "اول", seen[1][1].Text)
	})
}

func TestSession_RejectsConcurrentSubmit(t *testing.T) {
	ctx := context.Background()
	svc, m := setupChatServiceTest(5 * time.Second)
	s := svc.CreateSession(ctx)

	started := make(chan struct{})
	release := make(chan struct{})
	m.gateway.On("Converse", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(types.AIReply{Text: "first", RecommendationType: types.RecommendationNone}).Once()
	m.resolver.On("Resolve", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := s.Submit(ctx, "اول", nil)
		assert.NoError(t, err)
	}()

	<-started
	assert.True(t, s.Pending())
	history := s.History()
	require.Len(t, history, 2)
	assert.Equal(t, "اول", history[1].Text)

	_, err := s.Submit(ctx, "دوم", nil)
	assert.ErrorIs(t, err, ErrTurnInProgress)

	close(release)
	wg.Wait()

	history = s.History()
	require.Len(t, history, 3)
	assert.Equal(t, "first", history[2].Text)
	assert.False(t, s.Pending())
	m.gateway.AssertNumberOfCalls(t, "Converse", 1)
}

func TestSession_TurnDeadline(t *testing.T) {
	ctx := context.Background()
	svc, m := setupChatServiceTest(30 * time.Millisecond)
	s := svc.CreateSession(ctx)

	m.gateway.On("Converse", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(types.AIReply{Text: "fallback", RecommendationType: types.RecommendationNone})
	m.resolver.On("Resolve", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	start := time.Now()
	reply, err := s.Submit(ctx, "سلام", nil)
	require.NoError(t, err)
	assert.Equal(t, "fallback", reply.Text)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.False(t, s.Pending())
}

func TestSession_SurvivesCancelledRequest(t *testing.T) {
	svc, m := setupChatServiceTest(time.Second)
	s := svc.CreateSession(context.Background())

	reqCtx, cancel := context.WithCancel(context.Background())
	m.gateway.On("Converse", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			cancel()
			assert.NoError(t, args.Get(0).(context.Context).Err())
		}).
		Return(types.AIReply{Text: "t", RecommendationType: types.RecommendationNone})
	m.resolver.On("Resolve", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := s.Submit(reqCtx, "سلام", nil)
	require.NoError(t, err)
	assert.Len(t, s.History(), 3)
}

func TestSession_Subscribe(t *testing.T) {
	ctx := context.Background()
	svc, m := setupChatServiceTest(time.Second)
	s := svc.CreateSession(ctx)

	m.gateway.On("Converse", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(types.AIReply{Text: "t", RecommendationType: types.RecommendationNone})
	m.resolver.On("Resolve", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	events, cancel := s.Subscribe()
	_, err := s.Submit(ctx, "سلام", nil)
	require.NoError(t, err)

	var got []types.SessionEventType
	for i := 0; i < 4; i++ {
		select {
		case ev := <-events:
			got = append(got, ev.Type)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
	assert.Equal(t, []types.SessionEventType{types.EventMessage, types.EventPending, types.EventMessage, types.EventIdle}, got)

	cancel()
	_, open := <-events
	assert.False(t, open)
	cancel()
}

func TestSession_HistoryIsACopy(t *testing.T) {
	svc, _ := setupChatServiceTest(time.Second)
	s := svc.CreateSession(context.Background())

	h := s.History()
	h[0].Text = "changed"
	assert.Equal(t, Greeting, s.History()[0].Text)
}

// Scenario: a user in the east of the city asks about a power cut. The model
// picks the western electrician; once the location is known the eastern one
// is recommended instead.
func TestSession_ResolvesAgainstCatalog(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := catalog.NewMemoryRepository(logger, []types.Specialist{
		{ID: "s1", Name: "غرب", Expertise: "برق‌کار ساختمان", Location: types.GeoPoint{Lat: 35.70, Lng: 51.33}},
		{ID: "s2", Name: "شرق", Expertise: "برق‌کار ساختمان", Location: types.GeoPoint{Lat: 35.75, Lng: 51.50}},
	}, nil, nil)

	gateway := new(MockGateway)
	gateway.On("Converse", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(types.AIReply{Text: "t", RecommendationType: types.RecommendationSpecialist, RecommendationID: "s1"})
	synth := new(MockSynthesizer)

	svc := NewServiceImpl(gateway, recommendation.NewResolver(repo, logger), synth, NewAudioStore(time.Minute),
		config.ChatConfig{TurnTimeout: time.Second, SessionTTL: time.Minute}, logger)
	s := svc.CreateSession(ctx)

	reply, err := s.Submit(ctx, "برق رفته", nil)
	require.NoError(t, err)
	require.NotNil(t, reply.Recommendation)
	assert.Equal(t, "s1", reply.Recommendation.Specialist.ID)

	s.SetLocation(types.GeoPoint{Lat: 35.76, Lng: 51.49})
	reply, err = s.Submit(ctx, "هنوز برق نیست", nil)
	require.NoError(t, err)
	require.NotNil(t, reply.Recommendation)
	assert.Equal(t, "s2", reply.Recommendation.Specialist.ID)
	assert.NotNil(t, reply.Recommendation.Specialist.DistanceKm)
}

func TestSession_PanickingTurnStillCompletes(t *testing.T) {
	ctx := context.Background()
	svc, m := setupChatServiceTest(time.Second)
	s := svc.CreateSession(ctx)

	m.gateway.On("Converse", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(types.AIReply{Text: "t", RecommendationType: types.RecommendationSpecialist, RecommendationID: "s1"})
	m.resolver.On("Resolve", mock.Anything, mock.Anything, mock.Anything).Panic("catalog exploded").Once()

	reply, err := s.Submit(ctx, "سلام", nil)
	require.NoError(t, err)
	assert.Equal(t, types.RoleModel, reply.Role)
	assert.Equal(t, generativeAI.FallbackText, reply.Text)
	assert.Nil(t, reply.Recommendation)
	assert.False(t, s.Pending())
	require.Len(t, s.History(), 3)

	m.resolver.On("Resolve", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	reply, err = s.Submit(ctx, "دوباره", nil)
	require.NoError(t, err)
	assert.Equal(t, "t", reply.Text)
	assert.Len(t, s.History(), 5)
}

func TestSession_SubmitAt(t *testing.T) {
	ctx := context.Background()

	t.Run("accepted turn stores and uses the position", func(t *testing.T) {
		svc, m := setupChatServiceTest(time.Second)
		s := svc.CreateSession(ctx)
		loc := &types.GeoPoint{Lat: 35.76, Lng: 51.49}

		m.gateway.On("Converse", mock.Anything, "برق رفته کاربر در لوکیشن 35.76, 51.49 قرار دارد.", mock.Anything, mock.Anything).
			Return(types.AIReply{Text: "t", RecommendationType: types.RecommendationNone})
		m.resolver.On("Resolve", mock.Anything, mock.Anything, loc).Return(nil)

		_, err := s.SubmitAt(ctx, "برق رفته", nil, loc)
		require.NoError(t, err)
		assert.Equal(t, loc, s.Location())
		m.gateway.AssertExpectations(t)
	})

	t.Run("rejected turn leaves the position alone", func(t *testing.T) {
		svc, m := setupChatServiceTest(5 * time.Second)
		s := svc.CreateSession(ctx)
		s.SetLocation(types.GeoPoint{Lat: 35.7, Lng: 51.3})

		started := make(chan struct{})
		release := make(chan struct{})
		m.gateway.On("Converse", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Run(func(mock.Arguments) {
				close(started)
				<-release
			}).
			Return(types.AIReply{Text: "t", RecommendationType: types.RecommendationNone}).Once()
		m.resolver.On("Resolve", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _ = s.Submit(ctx, "اول", nil)
		}()
		<-started

		_, err := s.SubmitAt(ctx, "دوم", nil, &types.GeoPoint{Lat: 10, Lng: 20})
		assert.ErrorIs(t, err, ErrTurnInProgress)
		assert.Equal(t, &types.GeoPoint{Lat: 35.7, Lng: 51.3}, s.Location())

		close(release)
		<-done
	})

	t.Run("empty turn leaves the position alone", func(t *testing.T) {
		svc, _ := setupChatServiceTest(time.Second)
		s := svc.CreateSession(ctx)

		_, err := s.SubmitAt(ctx, " ", nil, &types.GeoPoint{Lat: 10, Lng: 20})
		assert.ErrorIs(t, err, ErrEmptyUtterance)
		assert.Nil(t, s.Location())
	})
}

func TestSession_Watch(t *testing.T) {
	ctx := context.Background()
	svc, m := setupChatServiceTest(time.Second)
	s := svc.CreateSession(ctx)

	m.gateway.On("Converse", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(types.AIReply{Text: "t", RecommendationType: types.RecommendationNone})
	m.resolver.On("Resolve", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := s.Submit(ctx, "اول", nil)
	require.NoError(t, err)

	snapshot, events, cancel := s.Watch()
	defer cancel()
	require.Len(t, snapshot.Messages, 3)
	assert.False(t, snapshot.Pending)

	_, err = s.Submit(ctx, "دوم", nil)
	require.NoError(t, err)

	var seen []string
	for i := 0; i < 4; i++ {
		select {
		case ev := <-events:
			if ev.Type == types.EventMessage {
				seen = append(seen, ev.Message.Text)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
	assert.Equal(t, []string{"دوم", "t"}, seen)
	for _, msg := range snapshot.Messages {
		assert.NotEqual(t, "دوم", msg.Text)
	}
	select {
	case ev := <-events:
		t.Fatalf("unexpected extra event %q", ev.Type)
	default:
	}
}
