package enrichment

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubTeams struct {
	mu    sync.Mutex
	calls []string
	frags map[string]Fragment
}

func (s *stubTeams) LookupTeam(_ context.Context, teamNumber string) (Fragment, bool) {
	s.mu.Lock()
	s.calls = append(s.calls, teamNumber)
	s.mu.Unlock()
	f, ok := s.frags[teamNumber]
	return f, ok
}

func (s *stubTeams) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type stubKnowledge struct {
	mu    sync.Mutex
	calls int
	docs  []Fragment
}

func (s *stubKnowledge) Search(_ context.Context, _ string, _ int) []Fragment {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.docs
}

func mustEngine(t *testing.T, teams TeamLookup, knowledge KnowledgeSearch) *Engine {
	t.Helper()
	e, err := NewEngine(teams, knowledge, 3, 3)
	require.NoError(t, err)
	return e
}

func TestNewEngine_ValidatesDependencies(t *testing.T) {
	_, err := NewEngine(nil, &stubKnowledge{}, 3, 3)
	require.Error(t, err)
	_, err = NewEngine(&stubTeams{}, nil, 3, 3)
	require.Error(t, err)
}

func TestBuildContext_NoCandidatesShortCircuits(t *testing.T) {
	teams := &stubTeams{}
	knowledge := &stubKnowledge{}
	e := mustEngine(t, teams, knowledge)

	block := e.BuildContext(context.Background(), "merhaba")
	require.Empty(t, block)
	require.Zero(t, teams.callCount(), "no connector call may be issued for a plain greeting")
	require.Zero(t, knowledge.calls)
}

func TestBuildContext_FanOutBounded(t *testing.T) {
	teams := &stubTeams{frags: map[string]Fragment{}}
	e := mustEngine(t, teams, &stubKnowledge{})

	e.BuildContext(context.Background(), "compare 1234 2345 3456 4567 5678")
	require.LessOrEqual(t, teams.callCount(), 3)
}

func TestBuildContext_TeamFragment(t *testing.T) {
	teams := &stubTeams{frags: map[string]Fragment{
		"9024": {Source: "The Blue Alliance", Body: "FRC Team 9024: Callister"},
	}}
	e := mustEngine(t, teams, &stubKnowledge{})

	block := e.BuildContext(context.Background(), "Takım 9024 hakkında bilgi ver")
	require.Contains(t, block, "9024")
	require.Contains(t, block, contextBlockBegin)
	require.Contains(t, block, contextBlockEnd)
	require.Contains(t, block, "[The Blue Alliance]")
}

func TestBuildContext_AllConnectorsFailYieldsEmptyBlock(t *testing.T) {
	teams := &stubTeams{frags: map[string]Fragment{}} // every lookup misses
	e := mustEngine(t, teams, &stubKnowledge{})

	block := e.BuildContext(context.Background(), "team 254 durumu nedir")
	require.Empty(t, block, "degraded enrichment must produce no block at all")
	require.Equal(t, 1, teams.callCount())
}

func TestBuildContext_KnowledgeGatedOnTopics(t *testing.T) {
	knowledge := &stubKnowledge{docs: []Fragment{{Source: "FRC Knowledge Base: pid", Body: "PIDController usage"}}}
	e := mustEngine(t, &stubTeams{}, knowledge)

	block := e.BuildContext(context.Background(), "how do I tune PID for an arm?")
	require.Equal(t, 1, knowledge.calls)
	require.Contains(t, block, "PIDController usage")

	// No topic keywords, no team numbers: the search must not fire.
	e.BuildContext(context.Background(), "nasılsın")
	require.Equal(t, 1, knowledge.calls)
}

func TestBuildContext_MergesTeamsAndKnowledge(t *testing.T) {
	teams := &stubTeams{frags: map[string]Fragment{
		"254": {Source: "The Blue Alliance", Body: "FRC Team 254"},
	}}
	knowledge := &stubKnowledge{docs: []Fragment{{Source: "FRC Knowledge Base: drive", Body: "Swerve kinematics"}}}
	e := mustEngine(t, teams, knowledge)

	block := e.BuildContext(context.Background(), "does team 254 run swerve drive?")
	require.Contains(t, block, "FRC Team 254")
	require.Contains(t, block, "Swerve kinematics")
	require.True(t, strings.Index(block, "FRC Team 254") < strings.Index(block, "Swerve kinematics"),
		"team fragments come before knowledge fragments")
}
