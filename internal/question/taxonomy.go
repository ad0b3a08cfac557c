package question

import "fmt"

// Levels of questioning, ordered from surface recall to original synthesis.
// A session walks them in order; there is no skipping.
const (
	LevelRecall        = 1
	LevelComprehension = 2
	LevelApplication   = 3
	LevelAnalysis      = 4
	LevelEvaluation    = 5
	LevelCreation      = 6

	MinLevel = LevelRecall
	MaxLevel = LevelCreation
)

type levelSpec struct {
	name     string
	demand   string
	guidance string
}

var levels = map[int]levelSpec{
	LevelRecall: {
		name:     "recall",
		demand:   "remember specific facts from the material",
		guidance: "Ask for a concrete fact, figure, name, or event stated in the material. One clear factual target.",
	},
	LevelComprehension: {
		name:     "comprehension",
		demand:   "explain the material in their own words",
		guidance: "Ask the learner to restate, summarize, or explain the meaning of a key point. No new facts required.",
	},
	LevelApplication: {
		name:     "application",
		demand:   "apply the idea to a new concrete situation",
		guidance: "Pose a fresh scenario and ask how the material's idea plays out there.",
	},
	LevelAnalysis: {
		name:     "analysis",
		demand:   "break the subject into parts and relate them",
		guidance: "Ask about causes, components, relationships, or underlying assumptions. Compare or contrast where natural.",
	},
	LevelEvaluation: {
		name:     "evaluation",
		demand:   "judge the subject against criteria and defend the judgement",
		guidance: "Ask for a position with reasons. The learner must weigh trade-offs or critique a claim.",
	},
	LevelCreation: {
		name:     "creation",
		demand:   "produce something new from what they have learned",
		guidance: "Ask the learner to propose, design, or imagine an original solution, plan, or alternative grounded in the material.",
	},
}

// LevelName returns the short name for a level, e.g. "analysis" for 4.
func LevelName(level int) string {
	if spec, ok := levels[level]; ok {
		return spec.name
	}
	return fmt.Sprintf("level-%d", level)
}

// LevelDemand describes what an answer at this level must demonstrate.
// Used when judging answers as well as when generating questions.
func LevelDemand(level int) string {
	if spec, ok := levels[level]; ok {
		return spec.demand
	}
	return "engage with the question"
}

func levelGuidance(level int) string {
	if spec, ok := levels[level]; ok {
		return spec.guidance
	}
	return ""
}

// ValidLevel reports whether level is within the taxonomy.
func ValidLevel(level int) bool {
	return level >= MinLevel && level <= MaxLevel
}
