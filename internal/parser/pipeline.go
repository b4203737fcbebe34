package parser

import "github.com/armaan1620/tsh/internal/errors"

// Stage is one command of a pipeline. Only the first stage may have an
// InFile and only the last may have an OutFile.
type Stage struct {
	Path    string
	Args    []string // Args[0] is Path
	InFile  string
	OutFile string
}

// Link connects the standard output of stage From to the standard input of
// stage To through an anonymous pipe.
type Link struct {
	From int
	To   int
}

// Pipeline is a validated command line split into stages.
type Pipeline struct {
	Stages     []Stage
	Background bool
	Text       string
}

// Links returns the pipe plan: one link between each pair of adjacent stages.
func (p *Pipeline) Links() []Link {
	if len(p.Stages) < 2 {
		return nil
	}
	links := make([]Link, 0, len(p.Stages)-1)
	for i := 0; i+1 < len(p.Stages); i++ {
		links = append(links, Link{From: i, To: i + 1})
	}
	return links
}

// Build splits validated tokens on | into stages. < and > take the following
// token as the stage's file and are removed from its arguments.
func Build(tokens []Token) ([]Stage, error) {
	stages := []Stage{{}}
	cur := &stages[0]

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if !tok.IsOperator() {
			cur.Args = append(cur.Args, tok.Text)
			continue
		}
		if i+1 == len(tokens) {
			return nil, &errors.SyntaxError{}
		}
		switch tok.Text {
		case Pipe:
			stages = append(stages, Stage{})
			cur = &stages[len(stages)-1]
		case RedirectIn:
			i++
			cur.InFile = tokens[i].Text
		case RedirectOut:
			i++
			cur.OutFile = tokens[i].Text
		}
	}

	for i := range stages {
		if len(stages[i].Args) == 0 {
			return nil, &errors.SyntaxError{}
		}
		stages[i].Path = stages[i].Args[0]
	}
	return stages, nil
}

// Parse tokenizes, validates and builds one command line. A blank line yields
// a nil pipeline and no error.
func Parse(input string) (*Pipeline, error) {
	line, err := Tokenize(input)
	if err != nil {
		return nil, err
	}
	return FromLine(line)
}

// FromLine validates and builds an already tokenized line.
func FromLine(line Line) (*Pipeline, error) {
	if line.Empty() {
		return nil, nil
	}
	if err := Validate(line.Tokens); err != nil {
		return nil, err
	}
	stages, err := Build(line.Tokens)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		Stages:     stages,
		Background: line.Background,
		Text:       line.Text,
	}, nil
}
