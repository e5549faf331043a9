// Package components provides the stock prompt tree for code completion:
// the current file split at the cursor plus a context group of markers,
// traits and snippets fed by pump events.
package components

import (
	"context"
	"strings"

	"promptkit/internal/suffixcache"
	"promptkit/internal/tokenizer"
	"promptkit/internal/vtree"
	"promptkit/internal/walker"
)

// Component names the renderer classifies on.
const (
	NameCurrentFile    = "CurrentFile"
	NameBeforeCursor   = "BeforeCursor"
	NameAfterCursor    = "AfterCursor"
	NameContextGroup   = "ContextGroup"
	NamePathMarker     = "PathMarker"
	NameLanguageMarker = "LanguageMarker"
	NameTraits         = "Traits"
	NameSnippets       = "Snippets"
	NameChunk          = "Chunk"
)

// Default weights of the context group members.
const (
	LanguageWeight = 0.8
	TraitsWeight   = 0.7
	SnippetWeight  = 0.5
)

// Prompt builds the stock prompt tree.
func Prompt() vtree.Element {
	return vtree.F(
		ContextGroup(
			vtree.C(NamePathMarker, PathMarker, nil),
			vtree.C(NameLanguageMarker, LanguageMarker, vtree.Props{walker.PropWeight: LanguageWeight}),
			vtree.C(NameTraits, Traits, vtree.Props{walker.PropWeight: TraitsWeight, walker.PropSource: "traits"}),
			vtree.C(NameSnippets, Snippets, nil),
		),
		vtree.C(NameCurrentFile, CurrentFile, nil),
	)
}

// ContextGroup wraps children whose blocks are classified as context. Each
// direct child forms its own group.
func ContextGroup(children ...vtree.Element) *vtree.Component {
	return vtree.C(NameContextGroup, passThrough, nil, children...)
}

// Chunk wraps children that are kept or dropped as a unit.
func Chunk(props vtree.Props, children ...vtree.Element) *vtree.Component {
	p := props.Clone()
	if p == nil {
		p = vtree.Props{}
	}
	p[walker.PropChunk] = true
	return vtree.C(NameChunk, passThrough, p, children...)
}

func passThrough(_ vtree.Props, children []vtree.Element, _ *vtree.Lifecycle) vtree.Element {
	return vtree.F(children...)
}

type document struct {
	Before string
	Suffix string
}

// CurrentFile is the cursor anchor. It follows CompletionRequest events and
// renders the text before the cursor and the suffix candidate after it.
func CurrentFile(_ vtree.Props, _ []vtree.Element, lc *vtree.Lifecycle) vtree.Element {
	doc, setDoc := vtree.UseState(lc, document{})
	vtree.UseData(lc, func(_ context.Context, req CompletionRequest) error {
		if err := req.Validate(); err != nil {
			return err
		}
		cpt := req.CharsPerToken
		if cpt <= 0 {
			cpt = tokenizer.CharsPerToken
		}
		setDoc(document{
			Before: req.Before(),
			Suffix: suffixcache.Candidate(req.After(), req.SuffixWindowTokens*cpt),
		})
		return nil
	})

	return vtree.F(
		vtree.C(NameBeforeCursor, passThrough, nil, vtree.Text(doc.Before)),
		vtree.C(NameAfterCursor, passThrough, nil, vtree.Text(doc.Suffix)),
	)
}

// PathMarker renders the document path.
func PathMarker(_ vtree.Props, _ []vtree.Element, lc *vtree.Lifecycle) vtree.Element {
	path, setPath := vtree.UseState(lc, "")
	vtree.UseData(lc, func(_ context.Context, req CompletionRequest) error {
		setPath(req.Path)
		return nil
	})
	if path == "" {
		return nil
	}
	return vtree.Text("Path: " + path)
}

// LanguageMarker renders the document language.
func LanguageMarker(_ vtree.Props, _ []vtree.Element, lc *vtree.Lifecycle) vtree.Element {
	lang, setLang := vtree.UseState(lc, "")
	vtree.UseData(lc, func(_ context.Context, req CompletionRequest) error {
		setLang(req.LanguageID)
		return nil
	})
	if lang == "" {
		return nil
	}
	return vtree.Text("Language: " + lang)
}

// Traits renders resolved traits as one chunk.
func Traits(_ vtree.Props, _ []vtree.Element, lc *vtree.Lifecycle) vtree.Element {
	traits, setTraits := vtree.UseState[[]Trait](lc, nil)
	vtree.UseData(lc, func(_ context.Context, ev TraitsResolved) error {
		setTraits(ev.Traits)
		return nil
	})
	if len(traits) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("Consider this related information:\n")
	for _, t := range traits {
		sb.WriteString(t.Name)
		sb.WriteString(": ")
		sb.WriteString(t.Value)
		sb.WriteByte('\n')
	}
	return Chunk(nil, vtree.Text(sb.String()))
}

// Snippets renders each resolved snippet as a chunk holding a header and
// the snippet body.
func Snippets(_ vtree.Props, _ []vtree.Element, lc *vtree.Lifecycle) vtree.Element {
	snippets, setSnippets := vtree.UseState[[]Snippet](lc, nil)
	vtree.UseData(lc, func(_ context.Context, ev SnippetsResolved) error {
		setSnippets(ev.Snippets)
		return nil
	})

	out := make([]vtree.Element, 0, len(snippets))
	for _, s := range snippets {
		weight := s.Weight
		if weight == 0 {
			weight = SnippetWeight
		}
		source := s.Source
		if source == "" {
			source = "snippets"
		}
		props := vtree.Props{walker.PropWeight: weight, walker.PropSource: source}
		out = append(out, Chunk(props,
			vtree.Text("Compare this snippet from "+s.Path+":\n"),
			vtree.Text(s.Text),
		))
	}
	return vtree.F(out...)
}
