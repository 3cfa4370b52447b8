package metrics

/*
Labels and so on for metrics used in deploy2ecs.
*/

const (
	LabelMethod  = "method"
	LabelSuccess = "success"

	// Labels for decision metrics
	LabelKind   = "kind"
	LabelAction = "action"
	LabelPhase  = "phase"
)
