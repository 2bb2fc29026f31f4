// Package generate turns a presentation plan into the first revision of a
// Beamer deck.
package generate

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"text/template"

	"github.com/slidesmith-dev/slidesmith/internal/deck"
	"github.com/slidesmith-dev/slidesmith/internal/log"
	"github.com/slidesmith-dev/slidesmith/internal/oracle"
	"github.com/slidesmith-dev/slidesmith/internal/plan"
	"github.com/slidesmith-dev/slidesmith/internal/store"
	"github.com/slidesmith-dev/slidesmith/internal/theme"
)

//go:embed templates/deck.tex.tmpl
var deckTemplate string

var deckTmpl = template.Must(template.New("deck").
	Delims("<<", ">>").
	Funcs(template.FuncMap{"esc": EscapeLaTeX, "authors": joinAuthors}).
	Parse(deckTemplate))

// ArtifactWriter stores new revisions.
type ArtifactWriter interface {
	PutArtifact(ctx context.Context, a *store.Artifact) (*store.Artifact, error)
}

// Generator builds revision 0 of a session from its plan.
type Generator struct {
	Store   ArtifactWriter
	Oracle  oracle.Oracle
	Catalog *theme.Catalog
	Events  *log.Logger
	Logger  *slog.Logger
}

type deckData struct {
	Title    string
	Subtitle string
	Authors  []string
	Date     string
	TOC      bool
	Theme    theme.Theme
	Profile  theme.Profile
	Slides   []slideData
}

type slideData struct {
	Title   string
	Bullets []string
	Figures []figureData
}

type figureData struct {
	File        string
	Caption     string
	CaptionSize string
	Height      string
}

// Generate renders p for sess and stores the result as a pending revision.
// Figure references are checked before any text is produced.
func (g *Generator) Generate(ctx context.Context, sess *store.Session, p *plan.Plan) (*store.Artifact, error) {
	logger := g.logger()

	th, err := g.Catalog.Theme(sess.Theme)
	if err != nil {
		return nil, err
	}
	profile, err := g.Catalog.Profile(theme.Language(sess.Language))
	if err != nil {
		return nil, err
	}
	if err := p.ResolveFigures(sess.FigureDir); err != nil {
		return nil, err
	}

	_ = g.Events.Append(log.LogEvent{Event: log.EventGenerateStarted, SessionID: sess.ID,
		Data: map[string]any{"slides": len(p.Slides), "theme": th.Name, "language": profile.Code}})

	data := deckData{
		Title:    p.Title,
		Subtitle: p.Subtitle,
		Authors:  p.Authors,
		Date:     p.Date,
		TOC:      sess.TableOfContents,
		Theme:    th,
		Profile:  profile,
	}

	for _, s := range p.Slides {
		sd, err := g.slide(ctx, sess, p, s)
		if err != nil {
			return nil, err
		}
		data.Slides = append(data.Slides, sd)
	}

	var buf bytes.Buffer
	if err := deckTmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("rendering deck: %w", err)
	}

	art, err := g.Store.PutArtifact(ctx, &store.Artifact{
		SessionID:    sess.ID,
		Text:         buf.String(),
		Origin:       deck.OriginGenerate,
		BaseRevision: -1,
	})
	if err != nil {
		return nil, fmt.Errorf("storing generated deck: %w", err)
	}
	logger.Info("generated deck", "session", sess.ID, "revision", art.Revision, "slides", len(data.Slides))
	return art, nil
}

// slide fills in one slide, asking the oracle for whatever the plan left
// open.
func (g *Generator) slide(ctx context.Context, sess *store.Session, p *plan.Plan, s plan.Slide) (slideData, error) {
	sd := slideData{Title: s.Title, Bullets: s.Bullets}

	for _, id := range s.Figures {
		f, _ := p.Figure(id)
		sd.Figures = append(sd.Figures, g.figure(f, len(s.Bullets) > 0 || len(s.Points) > 0))
	}

	if !needsContent(s) {
		return sd, nil
	}

	req := oracle.Request{
		Task:      oracle.TaskSlideContent,
		Language:  sess.Language,
		DeckTitle: p.Title,
		Slide: &oracle.SlideContext{
			Number: s.Number,
			Title:  s.Title,
			Points: s.Points,
			Notes:  s.Notes,
		},
	}
	for _, id := range s.Figures {
		f, _ := p.Figure(id)
		label := f.Caption
		if label == "" {
			label = f.ID
		}
		req.Slide.Figures = append(req.Slide.Figures, label)
	}

	prop, err := g.Oracle.Propose(ctx, req)
	if err != nil {
		return slideData{}, deck.Errorf(deck.ErrContentUnavailable, -1, "slide %d", s.Number).WithCause(err)
	}

	if sd.Title == "" {
		sd.Title = prop.Title
	}
	if sd.Title == "" {
		return slideData{}, deck.Errorf(deck.ErrContentUnavailable, -1, "slide %d: oracle returned no title", s.Number)
	}

	if len(sd.Bullets) == 0 {
		sd.Bullets = oracle.Lines(prop.NewText)
		if len(sd.Bullets) == 0 {
			g.logger().Warn("slide content degraded to an empty bullet list", "session", sess.ID, "slide", s.Number)
			_ = g.Events.Append(log.LogEvent{Event: log.EventContentDegraded, SessionID: sess.ID,
				Slide: s.Number, Reason: "oracle returned no bullets"})
		}
	}
	return sd, nil
}

// needsContent reports whether the plan leaves text for the oracle to
// write: a missing title, or missing bullets on a slide that has talking
// points or nothing else to show.
func needsContent(s plan.Slide) bool {
	if s.Title == "" {
		return true
	}
	if len(s.Bullets) > 0 {
		return false
	}
	return len(s.Points) > 0 || s.Notes != "" || len(s.Figures) == 0
}

func (g *Generator) figure(f plan.Figure, withText bool) figureData {
	fd := figureData{File: f.File, Caption: f.Caption, Height: "0.7"}
	if withText {
		fd.Height = "0.45"
	}
	if f.Caption != "" {
		switch g.Catalog.CaptionLength(f.Caption) {
		case "medium":
			fd.CaptionSize = `\small `
		case "long":
			fd.CaptionSize = `\footnotesize `
		}
	}
	return fd
}

func (g *Generator) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return log.Discard()
}
