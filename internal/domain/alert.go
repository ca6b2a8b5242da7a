package domain

// AlertField selects which tick field a rule evaluates.
type AlertField string

// Supported rule fields.
const (
	AlertFieldPrice AlertField = "price"
	AlertFieldSize  AlertField = "size"
)

// AlertOperator is a comparison operator in a rule condition.
type AlertOperator string

// Supported operators.
const (
	OpGreater      AlertOperator = ">"
	OpLess         AlertOperator = "<"
	OpGreaterEqual AlertOperator = ">="
	OpLessEqual    AlertOperator = "<="
	OpEqual        AlertOperator = "=="
)

// AlertRule is a user-defined threshold condition on one symbol.
// Rules stay active after firing and may re-fire on subsequent data
// until explicitly deleted.
type AlertRule struct {
	ID           string
	Symbol       string
	Field        AlertField
	Operator     AlertOperator
	Threshold    float64
	CreatedAt    int64 // Unix milliseconds
	Active       bool
	TriggerCount int
}

// AlertTrigger records one firing of a rule. Append-only, immutable.
type AlertTrigger struct {
	RuleID      string
	Symbol      string
	Value       float64 // field value that satisfied the condition
	Timestamp   int64   // timestamp of the tick that fired the rule
	TriggeredAt int64   // wall-clock time the trigger was recorded
}
