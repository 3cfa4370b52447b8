package errors

import (
	"encoding/json"
	"errors"
)

// Representation of errors surfaced by deploy2ecs. These are divided
// into a small number of kinds, which the decision engine inspects to
// tell "it isn't there" apart from "something went wrong"; i.e., is
// this error:
//  - a resource that simply doesn't exist (yet)?
//  - a describe call that reported failures we can't explain away?
//  - a value that failed validation?
//  - not going to work until the user takes some other action?
type Error struct {
	Type Type
	// a message that can be printed out for the user
	Help string `json:"help"`
	// the underlying error that can be e.g., logged for developers to look at
	Err error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Type string

const (
	// The operation looked fine on paper, but something went wrong
	Server Type = "server"
	// The thing you mentioned, whatever it is, just doesn't exist
	Missing Type = "missing"
	// A describe call came back with failures other than "missing"
	DescribeFailed Type = "describe-failed"
	// A value was present, but not in a shape we can trust
	Invalid Type = "invalid"
	// The operation was well-formed, but you asked for something that
	// can't happen at present (e.g., because the config is wrong)
	User Type = "user"
)

// KindOf returns the Type of the first *Error in the chain of err, or
// the empty Type if there is none.
func KindOf(err error) Type {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ""
}

func IsMissing(err error) bool {
	return KindOf(err) == Missing
}

func IsDescribeFailed(err error) bool {
	return KindOf(err) == DescribeFailed
}

// NotFound is a convenience for making a Missing error.
func NotFound(err error) *Error {
	return &Error{Type: Missing, Err: err}
}

func (e *Error) MarshalJSON() ([]byte, error) {
	var errMsg string
	if e.Err != nil {
		errMsg = e.Err.Error()
	}
	jsonable := &struct {
		Type string `json:"type"`
		Help string `json:"help"`
		Err  string `json:"error,omitempty"`
	}{
		Type: string(e.Type),
		Help: e.Help,
		Err:  errMsg,
	}
	return json.Marshal(jsonable)
}

func (e *Error) UnmarshalJSON(data []byte) error {
	jsonable := &struct {
		Type string `json:"type"`
		Help string `json:"help"`
		Err  string `json:"error,omitempty"`
	}{}
	if err := json.Unmarshal(data, &jsonable); err != nil {
		return err
	}
	e.Type = Type(jsonable.Type)
	e.Help = jsonable.Help
	if jsonable.Err != "" {
		e.Err = errors.New(jsonable.Err)
	}
	return nil
}

func CoverAllError(err error) *Error {
	return &Error{
		Type: User,
		Err:  err,
		Help: `Error: ` + err.Error() + `

We don't have a specific help message for the error above.

It would help us remedy this if you log an issue at

    https://github.com/fluxcd/deploy2ecs/issues

saying what you were doing when you saw this, and quoting the message
at the top.
`,
	}
}
