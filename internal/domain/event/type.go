package event

// Type identifies the kind of change-feed event.
type Type string

const (
	// TypeInsert signals a new row visible to the session.
	TypeInsert Type = "insert"
	// TypeUpdate signals a full replacement of an existing row.
	TypeUpdate Type = "update"
	// TypeDelete signals removal of a row.
	TypeDelete Type = "delete"
)

// Types lists every change-feed event type, in the order a subscriber that
// wants the whole feed should register.
var Types = []Type{TypeInsert, TypeUpdate, TypeDelete}

// String returns the string representation of the event type.
func (t Type) String() string {
	return string(t)
}

// IsValid checks that the event type is one of the defined constants.
func (t Type) IsValid() bool {
	switch t {
	case TypeInsert, TypeUpdate, TypeDelete:
		return true
	default:
		return false
	}
}
