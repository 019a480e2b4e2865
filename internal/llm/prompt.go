package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/outreachkit/prospector/internal/prospect"
)

// DraftPrompt renders the copywriter prompt for one prospect. The prospect is
// embedded as JSON so the model sees every populated field.
func DraftPrompt(p prospect.Prospect, style Style) string {
	style = style.WithDefaults()

	// Marshal cannot fail for Prospect (plain strings and a struct slice).
	pj, _ := json.Marshal(p)

	return strings.TrimSpace(fmt.Sprintf(`
You are an expert email copywriter. Write a personalized outreach email for the prospect below. Use the specified tone, length, style, and context.

Prospect: %s
Email Tone: %s
Email Length: %s
Email Style: %s
Email Context: %s

Instructions:
- Address the prospect by name.
- Tailor the email content to the prospect's background or company if information is provided.
- Follow the requested tone, length, and style.
- Ensure the email is relevant to the provided context.

Only return the content of the email, nothing else. Do not return JSON, do not add any additional text.

Generate the email now.`,
		pj, style.Tone, style.Length, style.Style, style.Context))
}

// TitlePrompt renders the summarization prompt for a campaign description.
func TitlePrompt(description string) string {
	return fmt.Sprintf(
		"Create a short title for this campaign description: %s. Only return the short title. Keep it short.",
		description)
}
