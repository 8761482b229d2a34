// Package ui provides terminal styling for babel CLI output.
// Uses the Ayu color theme with adaptive light/dark mode support.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Ayu theme color palette
// Dark: https://terminalcolors.com/themes/ayu/dark/
// Light: https://terminalcolors.com/themes/ayu/light/
var (
	ColorPass = lipgloss.AdaptiveColor{
		Light: "#86b300", // ayu light bright green
		Dark:  "#c2d94c", // ayu dark bright green
	}
	ColorWarn = lipgloss.AdaptiveColor{
		Light: "#f2ae49", // ayu light bright yellow
		Dark:  "#ffb454", // ayu dark bright yellow
	}
	ColorFail = lipgloss.AdaptiveColor{
		Light: "#f07171", // ayu light bright red
		Dark:  "#f07178", // ayu dark bright red
	}
	ColorMuted = lipgloss.AdaptiveColor{
		Light: "#828c99", // ayu light muted
		Dark:  "#6c7680", // ayu dark muted
	}
	ColorAccent = lipgloss.AdaptiveColor{
		Light: "#399ee6", // ayu light bright blue
		Dark:  "#59c2ff", // ayu dark bright blue
	}
)

var (
	PassStyle   = lipgloss.NewStyle().Foreground(ColorPass)
	WarnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	FailStyle   = lipgloss.NewStyle().Foreground(ColorFail)
	MutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	AccentStyle = lipgloss.NewStyle().Foreground(ColorAccent)
)

// CategoryStyle for section headers - bold with accent color
var CategoryStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)

// artifactStyles maps node types to their display style. Purposes and topics
// anchor the graph (accent), decisions are settled (green), constraints and
// questions want attention (yellow), tensions are unresolved conflicts (red),
// everything provisional or ambient stays muted.
var artifactStyles = map[string]lipgloss.Style{
	"project":    CategoryStyle,
	"purpose":    AccentStyle,
	"topic":      AccentStyle,
	"decision":   PassStyle,
	"constraint": WarnStyle,
	"question":   WarnStyle,
	"tension":    FailStyle,
	"proposal":   MutedStyle,
	"memo":       MutedStyle,
	"commit":     MutedStyle,
}

// statusIcons mark node lifecycle states in listings.
var statusIcons = map[string]string{
	"active":     "●",
	"proposed":   "○",
	"resolved":   "✓",
	"superseded": "↷",
	"deprecated": "✗",
}

// Tree characters for hierarchical display
const (
	TreeChild  = "⎿ "  // child indicator
	TreeLast   = "└─ " // last child / detail line
	TreeIndent = "  "  // 2-space indent per level
)

const (
	SeparatorLight = "──────────────────────────────────────────"
	SeparatorHeavy = "══════════════════════════════════════════"
)

// RenderPass renders text with pass (green) styling
func RenderPass(s string) string {
	return PassStyle.Render(s)
}

// RenderWarn renders text with warning (yellow) styling
func RenderWarn(s string) string {
	return WarnStyle.Render(s)
}

// RenderFail renders text with fail (red) styling
func RenderFail(s string) string {
	return FailStyle.Render(s)
}

// RenderMuted renders text with muted (gray) styling
func RenderMuted(s string) string {
	return MutedStyle.Render(s)
}

// RenderAccent renders text with accent (blue) styling
func RenderAccent(s string) string {
	return AccentStyle.Render(s)
}

// RenderCategory renders a category header in uppercase with accent color
func RenderCategory(s string) string {
	return CategoryStyle.Render(strings.ToUpper(s))
}

// RenderSeparator renders the light separator line in muted color
func RenderSeparator() string {
	return MutedStyle.Render(SeparatorLight)
}

// RenderArtifactType renders a node type label in its semantic color,
// left-padded to align listings.
func RenderArtifactType(nodeType string) string {
	style, ok := artifactStyles[nodeType]
	if !ok {
		style = MutedStyle
	}
	return style.Render(nodeType)
}

// StatusIcon returns the one-glyph marker for a node lifecycle status.
func StatusIcon(status string) string {
	if icon, ok := statusIcons[status]; ok {
		return icon
	}
	return "·"
}

// RenderStatusIcon colors the status marker: resolved green, superseded and
// deprecated muted, tension-prone states as they come.
func RenderStatusIcon(status string) string {
	icon := StatusIcon(status)
	switch status {
	case "active":
		return AccentStyle.Render(icon)
	case "resolved":
		return PassStyle.Render(icon)
	case "superseded", "deprecated":
		return MutedStyle.Render(icon)
	case "proposed":
		return WarnStyle.Render(icon)
	}
	return icon
}

// RenderShortCode renders an AA-BB alias the way listings show it.
func RenderShortCode(code string) string {
	return AccentStyle.Render("[" + code + "]")
}

// ValidationMarks renders the consensus and evidence bits as a compact
// suffix, empty when neither is set.
func ValidationMarks(consensus, evidence bool) string {
	var marks []string
	if consensus {
		marks = append(marks, PassStyle.Render("◆consensus"))
	}
	if evidence {
		marks = append(marks, AccentStyle.Render("◆evidence"))
	}
	if len(marks) == 0 {
		return ""
	}
	return " " + strings.Join(marks, " ")
}
