package memory

import (
	"strconv"
	"strings"
)

// Profile is the static onboarding information of a user. Its rendered
// form is loaded once per session as the user context blob.
type Profile struct {
	UserID           string
	FullName         string
	Age              int
	Gender           string
	PreviousDiseases []string
	CurrentSymptoms  []string
	Medications      []string
	Allergies        []string
	AdditionalNotes  string
}

// Context renders the non-empty profile fields as "Label: value" lines.
func (p Profile) Context() string {
	var lines []string
	add := func(label, value string) {
		if value != "" {
			lines = append(lines, label+": "+value)
		}
	}
	list := func(label string, items []string) {
		if len(items) > 0 {
			add(label, strings.Join(items, ", "))
		}
	}

	add("Name", p.FullName)
	if p.Age > 0 {
		add("Age", strconv.Itoa(p.Age))
	}
	add("Gender", p.Gender)
	list("Previous diseases", p.PreviousDiseases)
	list("Current symptoms", p.CurrentSymptoms)
	list("Medications", p.Medications)
	list("Allergies", p.Allergies)
	add("Additional notes", p.AdditionalNotes)

	return strings.Join(lines, "\n")
}
