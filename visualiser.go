package caseflow

import (
	"io"
	"text/template"
)

type MermaidDirection string

const (
	UnknownDirection     MermaidDirection = ""
	TopToBottomDirection MermaidDirection = "TB"
	LeftToRightDirection MermaidDirection = "LR"
	RightToLeftDirection MermaidDirection = "RL"
	BottomToTopDirection MermaidDirection = "BT"
)

type mermaidFormat struct {
	Direction      MermaidDirection
	Entry          string
	TerminalPoints []string
	Transitions    []mermaidTransition
	Current        string
}

type mermaidTransition struct {
	From string
	To   string
}

var mermaidTemplate = template.Must(template.New("").Parse(`stateDiagram-v2
	direction {{.Direction}}
	[*]-->{{.Entry}}
	{{- range .Transitions}}
	{{.From}}-->{{.To}}
	{{- end}}
	{{- range .TerminalPoints}}
	{{.}}-->[*]
	{{- end}}
{{- if .Current}}
	classDef current fill:lightblue,stroke-width:2px
	class {{.Current}} current
{{- end}}
`))

// MermaidDiagram renders the graph's declared edges as a mermaid state
// diagram. A non-empty current node is highlighted, which lets a dashboard
// show an instance's position from its last node alone.
func MermaidDiagram(g *Graph, w io.Writer, d MermaidDirection, current string) error {
	if d == UnknownDirection {
		d = LeftToRightDirection
	}

	mf := mermaidFormat{
		Direction: d,
		Entry:     g.entry,
		Current:   current,
	}

	for _, from := range g.order {
		if g.Terminal(from) {
			mf.TerminalPoints = append(mf.TerminalPoints, from)
			continue
		}

		for _, to := range g.edges[from] {
			mf.Transitions = append(mf.Transitions, mermaidTransition{
				From: from,
				To:   to,
			})
		}
	}

	return mermaidTemplate.Execute(w, mf)
}
