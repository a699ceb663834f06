package pipeline

import (
	"fmt"
	"strings"

	"github.com/udipth01/acefone/internal/types"
)

// buildNote formats the timeline comment from call metadata, summary, and a
// bounded transcript excerpt. Layout matches what agents already see in
// Bitrix, so it stays stable.
func buildNote(rec types.CallRecord, phone, summary, transcript string, transcriptLimit int) string {
	agent := rec.AgentName
	if agent == "" {
		agent = "Unknown Agent"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📞 **Call Summary for %s**\n\n", phone)
	fmt.Fprintf(&b, "👤 Agent: %s\n", agent)
	fmt.Fprintf(&b, "🕒 Duration: %d sec\n", rec.Duration)
	fmt.Fprintf(&b, "📅 Time: %s\n\n", rec.StartedAt())
	fmt.Fprintf(&b, "🧠 **Summary:**\n%s\n\n", summary)
	fmt.Fprintf(&b, "🎧 **Transcription:**\n%s\n", truncate(transcript, transcriptLimit))
	if rec.RecordingURL != "" {
		fmt.Fprintf(&b, "\n🔗 [Recording Link](%s)", rec.RecordingURL)
	}
	return b.String()
}

// truncate bounds s to limit runes without splitting a UTF-8 sequence.
func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
