package ollama

import (
	"fmt"
	"strings"

	"github.com/ewilliams-labs/overture/curator/internal/core/domain"
)

const preamble = "You are the Overture playlist curator. You judge music for a mood-driven playlist.\nReturn ONLY a valid JSON object. No conversational text.\n\n"

var taskPrompts = map[domain.AdvisoryTask]string{
	domain.TaskArtistFilter: "Task: decide which candidate artists fit the requested mood.\n" +
		`Output: {"keep": ["artist name", ...]} using names exactly as given. Drop artists whose sound clearly contradicts the mood.`,
	domain.TaskOrderingStrategy: "Task: choose how the playlist's energy should move over time.\n" +
		fmt.Sprintf(`Output: {"strategy": one of %s, "reason": "short explanation"}.`, quoted(domain.OrderingStrategies)),
	domain.TaskEnergyAnalysis: "Task: rate each track for sequencing. All values are 0 to 100.\n" +
		`Output: {"tracks": [{"track_id": "...", "energy_level": n, "momentum": n, "emotional_intensity": n, ` +
		`"opening_potential": n, "closing_potential": n, "peak_potential": n, ` +
		fmt.Sprintf(`"suggested_phase": one of %s}]}. `, quoted(domain.Phases)) +
		"Include every track_id from the context exactly once.",
	domain.TaskQualityAssessment: "Task: judge how well the playlist fits the mood as a whole.\n" +
		`Output: {"score": number between 0 and 1, "issues": ["short issue", ...]}.`,
	domain.TaskRepairStrategy: "Task: pick repairs for a playlist that missed its quality bar.\n" +
		fmt.Sprintf(`Output: {"strategies": [up to three of %s]} in the order to apply them.`, quoted(domain.RepairStrategies)),
}

func systemPrompt(task domain.AdvisoryTask) string {
	if p, ok := taskPrompts[task]; ok {
		return preamble + p
	}
	return preamble + "Task: " + string(task) + "\nOutput: a JSON object answering the task."
}

func quoted[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%q", string(v))
	}
	return strings.Join(parts, ", ")
}
