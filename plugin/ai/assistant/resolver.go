package assistant

import (
	"context"
	"regexp"
	"strings"

	"github.com/nudgebot/nudge/store"
)

// categoryBuckets are tested in order; the first bucket with a keyword hit
// wins. Reminders matching nothing fall back to "personal".
var categoryBuckets = []struct {
	name     string
	keywords []string
}{
	{"family", []string{"mom", "dad", "mother", "father", "wife", "husband", "kid", "kids", "son", "daughter", "family", "grandma", "grandpa", "anniversary", "birthday"}},
	{"work", []string{"meeting", "standup", "deadline", "report", "boss", "client", "project", "email", "presentation", "interview", "review", "work", "office"}},
	{"health", []string{"doctor", "dentist", "gym", "workout", "medicine", "meds", "pill", "appointment", "therapy", "vitamin", "exercise", "run", "stretch"}},
	{"finance", []string{"pay", "bill", "rent", "invoice", "tax", "taxes", "bank", "transfer", "subscription", "insurance", "loan", "budget"}},
}

// InferCategory classifies a reminder by keyword buckets over the combined
// title and description. Plain substring containment, so punctuation next
// to a keyword never hides it. It always returns a category.
func InferCategory(title, description string) string {
	text := strings.ToLower(title + " " + description)
	for _, bucket := range categoryBuckets {
		for _, kw := range bucket.keywords {
			if strings.Contains(text, kw) {
				return bucket.name
			}
		}
	}
	return "personal"
}

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9 ]+`)

// NormalizeTitle lower-cases a title, deletes everything but letters,
// digits and spaces, and collapses whitespace, so "Stand-up @ 9am" and
// "standup 9am" name the same subject. Two reminders are considered the
// same subject when their normalized titles match exactly.
func NormalizeTitle(title string) string {
	t := strings.ToLower(title)
	t = nonAlnumRe.ReplaceAllString(t, "")
	return strings.Join(strings.Fields(t), " ")
}

// FindExistingActive returns the most recently updated active reminder
// whose normalized title matches, or nil. This is the only duplicate
// suppression mechanism; matching is exact after normalization.
func FindExistingActive(ctx context.Context, s *store.Store, userID, title string) (*store.Reminder, error) {
	want := NormalizeTitle(title)
	if want == "" {
		return nil, nil
	}

	status := store.ReminderStatusActive
	reminders, err := s.ListReminders(ctx, &store.FindReminder{UserID: &userID, Status: &status})
	if err != nil {
		return nil, err
	}

	var best *store.Reminder
	for _, r := range reminders {
		if NormalizeTitle(r.Title) != want {
			continue
		}
		if best == nil || r.UpdatedTs > best.UpdatedTs {
			best = r
		}
	}
	return best, nil
}

var affirmations = map[string]bool{
	"yes": true, "y": true, "yeah": true, "yep": true, "yup": true,
	"sure": true, "ok": true, "okay": true, "sounds good": true,
	"please": true, "yes please": true, "do it": true, "go ahead": true,
	"correct": true, "right": true, "that works": true, "perfect": true,
}

var rejections = map[string]bool{
	"no": true, "n": true, "nope": true, "nah": true, "cancel": true,
	"never mind": true, "nevermind": true, "forget it": true, "stop": true,
	"no thanks": true, "not now": true, "don't": true, "dont": true,
}

func normalizePhrase(text string) string {
	t := strings.ToLower(strings.TrimSpace(text))
	t = strings.Trim(t, ".!?,")
	return strings.Join(strings.Fields(t), " ")
}

// IsAffirmation reports whether a message is a plain yes.
func IsAffirmation(text string) bool {
	return affirmations[normalizePhrase(text)]
}

// IsRejection reports whether a message is a plain no or a cancel.
func IsRejection(text string) bool {
	return rejections[normalizePhrase(text)]
}

var ordinals = map[string]int{
	"1": 1, "one": 1, "first": 1, "the first": 1, "first one": 1, "the first one": 1,
	"2": 2, "two": 2, "second": 2, "the second": 2, "second one": 2, "the second one": 2,
	"3": 3, "three": 3, "third": 3, "the third": 3, "third one": 3, "the third one": 3,
}

// ordinalTokens are scanned inside longer replies like "the second one,
// at 4pm". Bare "one"/"two"/"three" only count as a whole phrase, via the
// ordinals map, so "the big one" stays unrecognized.
var ordinalTokens = map[string]int{
	"first": 1, "1st": 1, "1": 1,
	"second": 2, "2nd": 2, "2": 2,
	"third": 3, "3rd": 3, "3": 3,
}

// ParseSelection maps an ordinal reply ("first", "2", "the third one") to a
// 1-based index. Selections beyond third are not recognized.
func ParseSelection(text string) (int, bool) {
	phrase := normalizePhrase(text)
	if n, ok := ordinals[phrase]; ok {
		return n, true
	}
	for _, word := range strings.Fields(phrase) {
		if n, ok := ordinalTokens[strings.Trim(word, ".,!?")]; ok {
			return n, true
		}
	}
	return 0, false
}
