package parser

import (
	"strings"

	"github.com/armaan1620/tsh/internal/errors"
)

// Operators recognized outside of quotes.
const (
	Pipe           = "|"
	RedirectIn     = "<"
	RedirectOut    = ">"
	BackgroundMark = "&"
)

// Token is one word of a command line. Quoted tokens are always literal, so a
// quoted '|' is an argument and not an operator.
type Token struct {
	Text   string
	Quoted bool
}

// IsOperator reports whether the token is an unquoted |, < or >.
func (t Token) IsOperator() bool {
	if t.Quoted {
		return false
	}
	switch t.Text {
	case Pipe, RedirectIn, RedirectOut:
		return true
	}
	return false
}

// Line is a tokenized command line.
type Line struct {
	Tokens     []Token
	Background bool
	// Text is the line as typed, without the trailing newline.
	Text string
}

// Empty reports whether the line has nothing to run.
func (l Line) Empty() bool {
	return len(l.Tokens) == 0
}

// Args returns the token texts.
func (l Line) Args() []string {
	args := make([]string, len(l.Tokens))
	for i, tok := range l.Tokens {
		args[i] = tok.Text
	}
	return args
}

// Tokenize splits one input line into tokens. A '...' span is one token with
// the quotes removed and no escape processing. |, < and > are tokens of their
// own even without surrounding whitespace. A final bare & is dropped and marks
// the line for background execution.
func Tokenize(input string) (Line, error) {
	text := strings.TrimRight(input, "\r\n")
	line := Line{Text: text}

	var (
		tokens  []Token
		current strings.Builder
		inWord  bool
	)
	flush := func() {
		if inWord {
			tokens = append(tokens, Token{Text: current.String()})
			current.Reset()
			inWord = false
		}
	}

	// Every delimiter is ASCII, so the line is scanned byte by byte and
	// arguments keep their bytes whatever the encoding.
	trimmed := strings.TrimSpace(text)
	for i := 0; i < len(trimmed); i++ {
		c := trimmed[i]
		switch c {
		case '\'':
			flush()
			end := strings.IndexByte(trimmed[i+1:], '\'')
			if end < 0 {
				return Line{Text: text}, &errors.SyntaxError{Reason: "unterminated quote"}
			}
			tokens = append(tokens, Token{Text: trimmed[i+1 : i+1+end], Quoted: true})
			i += end + 1
		case ' ', '\t':
			flush()
		case '|', '<', '>':
			flush()
			tokens = append(tokens, Token{Text: string(c)})
		default:
			current.WriteByte(c)
			inWord = true
		}
	}
	flush()

	if n := len(tokens); n > 0 && !tokens[n-1].Quoted && tokens[n-1].Text == BackgroundMark {
		tokens = tokens[:n-1]
		line.Background = true
	}
	line.Tokens = tokens
	return line, nil
}
