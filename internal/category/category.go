// Package category defines the closed taxonomy of memory topics.
package category

import (
	"sort"
	"strings"
)

// Descriptions maps each category to the description shown in LLM prompts.
var Descriptions = map[string]string{
	"identity_profile":       "Identity, demographics, languages, and where the user lives.",
	"preferences_general":    "General likes and dislikes for food, music, brands, products, media, and style.",
	"preferences_workstyle":  "How the user prefers to work, communicate, and schedule meetings.",
	"work_career":            "Jobs, roles, employers, teams, and important work projects.",
	"education_skills":       "Education history, courses, certifications, and skills the user has or is learning.",
	"relationships_family":   "Family members and important facts about them.",
	"relationships_social":   "Friends, colleagues, and other social relationships.",
	"hobbies_interests":      "Hobbies, sports, games, creative pursuits, and other interests.",
	"health_wellness":        "High-level health constraints, allergies, routines, and fitness or wellness goals.",
	"finance_life_admin":     "Budgets, recurring bills, subscriptions, and other life administration details.",
	"logistics_routines":     "Daily and weekly routines, schedules, time zones, and commute or travel patterns.",
	"digital_life_tools":     "Devices, apps, and services the user uses and how they are configured.",
	"goals_plans":            "Short-term and long-term goals, projects, and milestones.",
	"constraints_boundaries": "Hard limits, constraints, and things the assistant should avoid.",
	"assistant_preferences":  "How the user wants the assistant to respond, behave, and take initiative.",
}

// Default is the fallback bucket for facts whose category is unclear.
const Default = "preferences_general"

// All returns the category names in sorted order.
func All() []string {
	names := make([]string, 0, len(Descriptions))
	for name := range Descriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Normalize canonicalizes a raw category string. Case is folded and dashes
// are treated as underscores. Unrecognized input returns ("", false).
func Normalize(raw string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return "", false
	}
	if _, ok := Descriptions[key]; ok {
		return key, true
	}
	key = strings.ReplaceAll(key, "-", "_")
	if _, ok := Descriptions[key]; ok {
		return key, true
	}
	return "", false
}
