package assist

import "strings"

var instructions = map[Intent]string{
	IntentPrescription: "Draft a short list of medication questions and safety checks the patient should raise with their clinician. Cover interactions, side effects and missed doses.",
	IntentPrevisit:     "Summarize the patient's symptoms into a brief pre-visit snapshot: onset, duration, severity and anything that makes them better or worse.",
	IntentNextSteps:    "Turn the visit notes into a clear follow-up plan with concrete next steps and when to seek urgent care.",
}

// BuildPrompt assembles the model prompt from already sanitized context.
func BuildPrompt(intent Intent, sanitized string) string {
	var b strings.Builder
	b.WriteString("You are a careful telehealth assistant helping a patient prepare for a consultation. ")
	b.WriteString("Do not diagnose. Do not invent facts. Placeholders in square brackets stand in for private details; keep them as they are.\n\n")
	b.WriteString("Task: ")
	b.WriteString(instructions[intent])
	b.WriteString("\n\nHeading: ")
	b.WriteString(intent.Header())
	b.WriteString("\n\nPatient context:\n")
	b.WriteString(sanitized)
	b.WriteString("\n\nEnd with this sentence: ")
	b.WriteString(ClosingNote)
	return b.String()
}

// Fallback is the template draft used when no model answer is available.
func Fallback(intent Intent, sanitized string) string {
	return intent.Header() + "\n\n" + sanitized + "\n\n" + ClosingNote
}
