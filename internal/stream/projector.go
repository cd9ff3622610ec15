// Package stream projects decoded engine events onto chat messages.
package stream

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/Stewart86/bobby/internal/engine"
)

// SendFunc delivers one outbound message to the conversation surface.
type SendFunc func(ctx context.Context, text string) error

// Summary is what one projected query run produced.
type Summary struct {
	Success             bool
	FinalText           string
	SessionID           string
	Title               string
	IssueFilingDetected bool
}

var titleMarkerPattern = regexp.MustCompile(`\[THREAD_TITLE: ([^\]]+)\]`)

// Projector consumes the event sequence for a single query and emits
// user-visible messages as chunks arrive. One message per non-empty chunk;
// appending new messages instead of editing one keeps ordering visible and
// avoids racing edits.
type Projector struct {
	send SendFunc
	log  *slog.Logger

	sessionID  string
	title      string
	chunks     strings.Builder
	resultText string
	emitted    bool
	resultSeen bool
}

func NewProjector(send SendFunc, log *slog.Logger) *Projector {
	if log == nil {
		log = slog.Default()
	}
	return &Projector{send: send, log: log}
}

// Consume applies one decoded event in arrival order.
func (p *Projector) Consume(ctx context.Context, ev engine.Event) {
	switch ev.Type {
	case engine.EventMetadata:
		// First-write-wins: a later metadata line never overwrites.
		if p.sessionID == "" {
			p.sessionID = ev.SessionID
		}
	case engine.EventAssistantChunk:
		p.chunks.WriteString(ev.Text)
		p.captureTitle(ev.Text)
		if out := strings.TrimSpace(stripTitleMarkers(ev.Text)); out != "" {
			p.emit(ctx, out)
		}
	case engine.EventResult:
		p.resultSeen = true
		p.resultText = ev.Text
		if p.sessionID == "" && ev.SessionID != "" {
			p.sessionID = ev.SessionID
		}
		p.captureTitle(ev.Text)
		if !p.emitted {
			if out := strings.TrimSpace(stripTitleMarkers(ev.Text)); out != "" {
				p.emit(ctx, out)
			}
		}
	case engine.EventUnparseable:
		// Diagnostic or partial line from the engine; dropped by contract.
	}
}

// Finalize closes out the run. runErr is the subprocess exit error (nil on a
// clean exit) and errOutput is its captured stderr; non-empty stderr is a
// failure regardless of exit code.
func (p *Projector) Finalize(ctx context.Context, runErr error, errOutput string) Summary {
	final := strings.TrimSpace(stripTitleMarkers(p.chunks.String()))
	if final == "" {
		final = strings.TrimSpace(stripTitleMarkers(p.resultText))
	}

	summary := Summary{
		FinalText:           final,
		SessionID:           p.sessionID,
		Title:               p.title,
		IssueFilingDetected: detectIssueFiling(final),
	}

	if runErr != nil || errOutput != "" {
		// Partially emitted chunks must not read as success; the user gets an
		// explicit notice instead of a silently truncated answer.
		if p.emitted {
			p.emit(ctx, "Something went wrong while finishing that analysis. Please try again.")
		} else {
			p.emit(ctx, "Sorry, something went wrong while running that analysis. Please try again.")
		}
		return summary
	}

	if !p.emitted && !p.resultSeen {
		p.emit(ctx, "Analysis complete, but no output was produced. Please try again.")
		return summary
	}

	summary.Success = true
	return summary
}

func (p *Projector) emit(ctx context.Context, text string) {
	if err := p.send(ctx, text); err != nil {
		p.log.Error("send message failed", "error", err)
		return
	}
	p.emitted = true
}

func (p *Projector) captureTitle(text string) {
	if p.title != "" {
		return
	}
	if m := titleMarkerPattern.FindStringSubmatch(text); m != nil {
		p.title = strings.TrimSpace(m[1])
	}
}

func stripTitleMarkers(text string) string {
	return titleMarkerPattern.ReplaceAllString(text, "")
}

func detectIssueFiling(text string) bool {
	if strings.Contains(text, "Created GitHub issue #") {
		return true
	}
	return strings.Contains(text, "github.com/") && strings.Contains(text, "/issues/")
}
