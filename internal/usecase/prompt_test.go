package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBuildSystemPrompt(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	tr := buildSystemPrompt(contextGeneral, "tr", now)
	require.Contains(t, tr, "2026")
	require.Contains(t, tr, "2026-03-15")
	require.Contains(t, tr, "Türkçe cevap ver")

	en := buildSystemPrompt(contextSimulation, "en", now)
	require.Contains(t, en, "Respond in English")
	require.Contains(t, en, "PathPlanner")

	// Unknown tags fall back to the general persona.
	fallback := buildSystemPrompt("no-such-tag", "tr", now)
	require.Contains(t, fallback, "FRC takımları")

	mech := buildSystemPrompt(contextMechanical, "tr", now)
	require.Contains(t, mech, "pnömatik")
}
