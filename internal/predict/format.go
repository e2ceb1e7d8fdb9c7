package predict

import (
	"fmt"
	"strings"
)

// NoSymptomsMessage is shown when Predict returns ErrNoSymptoms.
const NoSymptomsMessage = "Please select at least one symptom."

// FormatMarkdown renders r as the assistant message appended to a chat
// history after a prediction.
func FormatMarkdown(r Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Based on your symptoms, you may have **%s**.\n\n", r.Disease)
	fmt.Fprintf(&b, "**Description:** %s\n\n", r.Description)
	fmt.Fprintf(&b, "**Medications:** %s\n\n", r.Medications)
	b.WriteString("**Precautions:**\n")
	for _, p := range r.Precautions {
		fmt.Fprintf(&b, "- %s\n", p)
	}
	b.WriteString("\n_Note: This is a prediction. Please consult a real doctor for confirmation._")
	return b.String()
}
