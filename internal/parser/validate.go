package parser

import "github.com/armaan1620/tsh/internal/errors"

var (
	errInputAfterPipe  = &errors.SyntaxError{Reason: `an input redirector "<" cannot appear after a pipe "|"`}
	errPipeAfterOutput = &errors.SyntaxError{Reason: `a pipe operator "|" cannot appear after an output redirector ">"`}
)

// Validate rejects misplaced operators before anything is started. A valid
// sequence has exactly one non-operator token after every operator.
func Validate(tokens []Token) error {
	if len(tokens) == 0 {
		return nil
	}
	if tokens[0].IsOperator() {
		return &errors.SyntaxError{}
	}

	var sawPipe, sawOutput bool
	for i, tok := range tokens {
		if !tok.IsOperator() {
			continue
		}
		if i+1 == len(tokens) || tokens[i+1].IsOperator() {
			return &errors.SyntaxError{}
		}
		switch tok.Text {
		case Pipe:
			if sawOutput {
				return errPipeAfterOutput
			}
			sawPipe = true
		case RedirectIn:
			if sawPipe {
				return errInputAfterPipe
			}
		case RedirectOut:
			sawOutput = true
		}
	}
	return nil
}
