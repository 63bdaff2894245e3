package command

// Kind identifies the parsed command variant.
type Kind string

const (
	KindList          Kind = "LIST"
	KindDelete        Kind = "DELETE"
	KindConfirmDelete Kind = "CONFIRM_DELETE"
	KindMove          Kind = "MOVE"
	KindSummary       Kind = "SUMMARY"
	KindHelp          Kind = "HELP"
	KindInvalid       Kind = "INVALID"
)

// Command is the typed result of parsing one inbound message. Parsing never
// fails outright; malformed input yields Kind == KindInvalid with a
// human-readable ValidationError.
type Command struct {
	Kind     Kind
	SenderID string
	RawText  string

	// Path is set for LIST, SUMMARY, DELETE and CONFIRM_DELETE, and is the
	// source path for MOVE.
	Path string
	// DestPath is the destination path for MOVE.
	DestPath string

	Valid           bool
	ValidationError string
}
