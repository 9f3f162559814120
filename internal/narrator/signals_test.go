package narrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenDetector_Death(t *testing.T) {
	d := NewTokenDetector()

	clean, sig := d.Detect("You travel through the snow. [PLAYER_DEATH]")
	assert.True(t, sig.Death)
	assert.False(t, sig.GameEnded)
	assert.Equal(t, "You travel through the snow.", clean)
}

func TestTokenDetector_CaseInsensitive(t *testing.T) {
	d := NewTokenDetector()

	clean, sig := d.Detect("The cold takes you. [player_death]")
	assert.True(t, sig.Death)
	assert.NotContains(t, clean, "player_death")

	clean, sig = d.Detect("All is lost. [Game_Ended]")
	assert.True(t, sig.GameEnded)
	assert.NotContains(t, clean, "Game_Ended")
}

func TestTokenDetector_RemovesAllOccurrences(t *testing.T) {
	d := NewTokenDetector()

	clean, sig := d.Detect("[PLAYER_DEATH] The end comes swiftly. [PLAYER_DEATH]")
	assert.True(t, sig.Death)
	assert.NotContains(t, clean, "[PLAYER_DEATH]")
	assert.Equal(t, "The end comes swiftly.", clean)
}

func TestTokenDetector_BothSignals(t *testing.T) {
	d := NewTokenDetector()

	clean, sig := d.Detect("Your story concludes here. [PLAYER_DEATH] [GAME_ENDED]")
	assert.True(t, sig.Death)
	assert.True(t, sig.GameEnded)
	assert.Equal(t, "Your story concludes here.", clean)
}

func TestTokenDetector_NoSignals(t *testing.T) {
	d := NewTokenDetector()

	text := "You walk along the shore and find a bottle."
	clean, sig := d.Detect(text)
	assert.False(t, sig.Death)
	assert.False(t, sig.GameEnded)
	assert.Equal(t, text, clean)
}

func TestPhraseDetector_Death(t *testing.T) {
	d := NewPhraseDetector()

	text := "The river swallows you whole. You have died."
	clean, sig := d.Detect(text)
	assert.True(t, sig.Death)
	// 短语属于叙事内容，不移除
	assert.Equal(t, text, clean)
}

func TestPhraseDetector_CaseInsensitive(t *testing.T) {
	d := NewPhraseDetector()

	_, sig := d.Detect("DEATH CLAIMS YOU in the dark.")
	assert.True(t, sig.Death)
}

func TestPhraseDetector_GameEnded(t *testing.T) {
	d := NewPhraseDetector()

	_, sig := d.Detect("And so the story ends, not with a bang but a whisper.")
	assert.True(t, sig.GameEnded)
}

func TestPhraseDetector_NoFalsePositive(t *testing.T) {
	d := NewPhraseDetector()

	_, sig := d.Detect("You narrowly escape death and keep moving.")
	assert.False(t, sig.Death)
	assert.False(t, sig.GameEnded)
}
