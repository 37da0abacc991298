package synthesis

import "topicdesk/internal/core"

// SensitivityThreshold is the political sensitivity at which proposals must stay neutral.
const SensitivityThreshold = 7

var toneInstructions = map[core.Tone]string{
	core.ToneInvestigative: "Frame the topic as an investigation. Lead with an unanswered question, " +
		"follow the evidence step by step and name who is accountable.",
	core.ToneEducational: "Explain the topic clearly from first principles. Define terms, use concrete " +
		"examples and end each point with what the viewer now understands.",
	core.ToneProvocative: "Open with a bold, surprising claim that challenges a common assumption. " +
		"Keep every claim defensible with evidence.",
	core.ToneConversational: "Talk to the viewer like a friend. Use plain language, everyday analogies " +
		"and direct questions.",
	core.ToneBalanced: "Present the topic evenly. Give the strongest version of each major viewpoint " +
		"and let the evidence carry the conclusion.",
}

var depthInstructions = map[core.Depth]string{
	core.DepthSurface:  "Keep it brief: the key facts and why they matter, no deep analysis.",
	core.DepthModerate: "Cover the key facts plus the most important context and consequences.",
	core.DepthDeepDive: "Go deep: background, mechanisms, competing explanations and data.",
}

const sensitivityInstruction = "This audience is politically sensitive. Present multiple perspectives " +
	"fairly, attribute opinions to their sources and do not take a political stance."

// ToneInstruction returns the storytelling strategy for tone. Unknown tones use balanced.
func ToneInstruction(tone core.Tone) string {
	if s, ok := toneInstructions[tone]; ok {
		return s
	}
	return toneInstructions[core.ToneBalanced]
}

// DepthInstruction returns the depth guidance for depth. Unknown depths use moderate.
func DepthInstruction(depth core.Depth) string {
	if s, ok := depthInstructions[depth]; ok {
		return s
	}
	return depthInstructions[core.DepthModerate]
}

// TalkingPointCount returns how many talking points to request for a depth and duration.
// surface: 2. moderate: 3, or 4 from 480s. deep_dive: 3 plus one per full 300s above 300s, at most 5.
// Unknown depths are treated as moderate.
func TalkingPointCount(depth core.Depth, seconds int) int {
	switch depth {
	case core.DepthSurface:
		return 2
	case core.DepthDeepDive:
		n := 3
		if seconds > 300 {
			n += (seconds - 300) / 300
		}
		if n > 5 {
			n = 5
		}
		return n
	default:
		if seconds >= 480 {
			return 4
		}
		return 3
	}
}
