package game

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoryLog_AppendOnly(t *testing.T) {
	log := NewStoryLog("test story")
	assert.Equal(t, 0, log.Len())

	log.Append(LogEntry{NarrationText: "The journey begins."})
	log.Append(LogEntry{PlayerName: "alice", PlayerInput: "go north", NarrationText: "You head north."})
	assert.Equal(t, 2, log.Len())

	all := log.All()
	require.Len(t, all, 2)
	assert.Equal(t, "The journey begins.", all[0].NarrationText)
	assert.False(t, all[0].CreatedAt.IsZero())
}

func TestStoryLog_TrailingWindow(t *testing.T) {
	log := NewStoryLog("test story")
	for _, text := range []string{"one", "two", "three", "four", "five"} {
		log.Append(LogEntry{NarrationText: text})
	}

	window := log.TrailingWindow(3)
	require.Len(t, window, 3)
	assert.Equal(t, "three", window[0].NarrationText)
	assert.Equal(t, "five", window[2].NarrationText)

	// 窗口大于日志长度时返回全部
	window = log.TrailingWindow(10)
	assert.Len(t, window, 5)

	assert.Nil(t, log.TrailingWindow(0))
}

func TestStoryLog_ExportTranscript_Order(t *testing.T) {
	log := NewStoryLog("survival story")
	log.Append(LogEntry{PlayerInput: "", NarrationText: "A"})
	log.Append(LogEntry{PlayerInput: "go north", NarrationText: "B"})

	transcript := log.ExportTranscript()

	// 标题行在最前
	assert.True(t, strings.HasPrefix(transcript, "=== survival story ==="))

	// A在"> go north"之前，"> go north"在B之前
	posA := strings.Index(transcript, "A")
	posInput := strings.Index(transcript, "> go north")
	posB := strings.Index(transcript, "\nB")
	require.NotEqual(t, -1, posA)
	require.NotEqual(t, -1, posInput)
	require.NotEqual(t, -1, posB)
	assert.Less(t, posA, posInput)
	assert.Less(t, posInput, posB)
}

func TestStoryLog_ExportTranscript_EmptyInputOmitsQuote(t *testing.T) {
	log := NewStoryLog("story")
	log.Append(LogEntry{PlayerInput: "", NarrationText: "An opening scene."})

	transcript := log.ExportTranscript()
	assert.NotContains(t, transcript, ">")
	assert.Contains(t, transcript, "An opening scene.")
}

func TestStoryLog_Reset(t *testing.T) {
	log := NewStoryLog("story")
	log.Append(LogEntry{NarrationText: "once"})
	log.Reset()
	assert.Equal(t, 0, log.Len())
}
