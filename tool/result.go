package tool

// Result is the textual outcome of a tool invocation: either a success
// payload or an error message. Both forms are plain text so they can be fed
// back to the model unchanged.
type Result struct {
	text  string
	isErr bool
}

// Ok returns a successful result carrying payload.
func Ok(payload string) Result { return Result{text: payload} }

// Err returns a failed result carrying a human readable message.
func Err(message string) Result { return Result{text: message, isErr: true} }

// IsErr reports whether the result is a failure.
func (r Result) IsErr() bool { return r.isErr }

// Text returns the payload or the error message.
func (r Result) Text() string { return r.text }

// String renders the result the way it is shown to the model. Failures are
// prefixed with "error: ".
func (r Result) String() string {
	if r.isErr {
		return "error: " + r.text
	}
	return r.text
}
