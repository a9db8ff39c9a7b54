package domain

// AdvisoryTask selects the judgment requested from the advisory capability.
type AdvisoryTask string

const (
	TaskArtistFilter      AdvisoryTask = "artist_filter"
	TaskOrderingStrategy  AdvisoryTask = "ordering_strategy"
	TaskEnergyAnalysis    AdvisoryTask = "energy_analysis"
	TaskQualityAssessment AdvisoryTask = "quality_assessment"
	TaskRepairStrategy    AdvisoryTask = "repair_strategy"
)

// AdvisoryPrompt is a structured request; Context is marshalled as JSON.
type AdvisoryPrompt struct {
	Task         AdvisoryTask
	Instructions string
	Context      any
}
