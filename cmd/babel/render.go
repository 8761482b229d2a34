package main

import (
	"fmt"
	"strings"

	"github.com/babelhq/babel/internal/idgen"
	"github.com/babelhq/babel/internal/types"
	"github.com/babelhq/babel/internal/ui"
)

// nodeLine renders the one-line form used everywhere a node is listed.
func nodeLine(n *types.Node) string {
	line := fmt.Sprintf("%s %s %s  %s",
		ui.RenderStatusIcon(string(n.Status)),
		ui.RenderArtifactType(string(n.Type)),
		ui.RenderShortCode(idgen.Encode(n.ID)),
		ui.TruncateSimple(n.Content.Summary, 72))
	if marks := ui.ValidationMarks(n.Consensus, n.Evidence); marks != "" {
		line += "  " + marks
	}
	return line
}

// eventLine renders an event for history listings: id, time, scope, type,
// then whatever human text the payload carries.
func eventLine(ev *types.Event) string {
	line := fmt.Sprintf("%s  %s  %-6s %-19s",
		ui.RenderMuted(ev.ID),
		ev.CreatedAt.Local().Format("2006-01-02 15:04"),
		ev.Scope,
		ev.Type)
	if s := eventSummary(ev); s != "" {
		line += "  " + ui.TruncateSimple(s, 56)
	}
	return line
}

// eventSummary pulls the line a human wants out of an event payload.
func eventSummary(ev *types.Event) string {
	payload, err := types.DecodePayload(ev)
	if err != nil {
		return ""
	}
	switch pl := payload.(type) {
	case *types.ProjectCreatedPayload:
		return pl.Name
	case *types.PurposeDeclaredPayload:
		return pl.What
	case *types.StructureProposedPayload:
		return fmt.Sprintf("[%s] %s", pl.ArtifactType, pl.Summary)
	case *types.ArtifactConfirmedPayload:
		if pl.Summary != "" {
			return fmt.Sprintf("[%s] %s", pl.ArtifactType, pl.Summary)
		}
		return fmt.Sprintf("[%s] confirms %s", pl.ArtifactType, pl.ProposalID)
	case *types.QuestionRaisedPayload:
		return pl.Question
	case *types.QuestionResolvedPayload:
		if pl.Resolution != "" {
			return pl.Resolution
		}
		return "resolves " + pl.QuestionID
	case *types.ChallengeRaisedPayload:
		return pl.Challenge
	case *types.EndorsedPayload:
		return "endorses " + pl.TargetID
	case *types.EvidenceAttachedPayload:
		return pl.Evidence
	case *types.DeprecatedPayload:
		if pl.Reason != "" {
			return fmt.Sprintf("deprecates %s: %s", pl.TargetID, pl.Reason)
		}
		return "deprecates " + pl.TargetID
	case *types.LinkCreatedPayload:
		return fmt.Sprintf("%s -[%s]-> %s", pl.SourceID, pl.Relation, pl.TargetID)
	case *types.CommitCapturedPayload:
		subject := pl.Message
		if i := strings.IndexByte(subject, '\n'); i >= 0 {
			subject = subject[:i]
		}
		return fmt.Sprintf("%.12s %s", pl.Hash, subject)
	case *types.MemoCapturedPayload:
		return pl.Text
	case *types.TopicDeclaredPayload:
		return pl.Topic
	}
	return ""
}
