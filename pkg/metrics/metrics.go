package metrics

/*
Labels and so on for metrics used in cococi.
*/

const (
	LabelSuccess   = "success"
	LabelState     = "state"
	LabelOutcome   = "outcome"
	LabelOperation = "operation"
)

const Namespace = "cococi"
