package classifier

import "strings"

// Canonical intent names shared by the classifier, the learning loop and the
// handler registry.
const (
	IntentGymWorkout    = "gym_workout"
	IntentFoodLogging   = "food_logging"
	IntentWaterLogging  = "water_logging"
	IntentSleepLogging  = "sleep_logging"
	IntentTodoAdd       = "todo_add"
	IntentTodoList      = "todo_list"
	IntentTodoComplete  = "todo_complete"
	IntentReminderSet   = "reminder_set"
	IntentAssignmentAdd = "assignment_add"
	IntentStatsQuery    = "stats_query"
	IntentUnknown       = "unknown"
)

// valueVocabulary maps spoken values ("a workout", "food") to canonical
// intents. Used both when parsing teaching phrases and when sanitizing
// classifier output.
var valueVocabulary = map[string]string{
	"workout":    IntentGymWorkout,
	"gym":        IntentGymWorkout,
	"exercise":   IntentGymWorkout,
	"food":       IntentFoodLogging,
	"meal":       IntentFoodLogging,
	"eat":        IntentFoodLogging,
	"water":      IntentWaterLogging,
	"drink":      IntentWaterLogging,
	"todo":       IntentTodoAdd,
	"task":       IntentTodoAdd,
	"reminder":   IntentReminderSet,
	"remind":     IntentReminderSet,
	"assignment": IntentAssignmentAdd,
	"homework":   IntentAssignmentAdd,
}

var knownIntents = map[string]bool{
	IntentGymWorkout:    true,
	IntentFoodLogging:   true,
	IntentWaterLogging:  true,
	IntentSleepLogging:  true,
	IntentTodoAdd:       true,
	IntentTodoList:      true,
	IntentTodoComplete:  true,
	IntentReminderSet:   true,
	IntentAssignmentAdd: true,
	IntentStatsQuery:    true,
}

// CanonicalIntent maps a free-text value to a canonical intent name.
// Returns false for values outside the vocabulary.
func CanonicalIntent(value string) (string, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	v = strings.TrimPrefix(v, "a ")
	v = strings.TrimPrefix(v, "an ")
	v = strings.TrimPrefix(v, "my ")
	v = strings.TrimSuffix(v, ".")
	if intent, ok := valueVocabulary[v]; ok {
		return intent, true
	}
	if knownIntents[v] {
		return v, true
	}
	return "", false
}

// IsKnownIntent reports whether name is one of the canonical intents.
func IsKnownIntent(name string) bool {
	return knownIntents[strings.ToLower(strings.TrimSpace(name))]
}
