// ABOUTME: Prompt templates and JSON schemas for every text-generation call in the pipeline.
// ABOUTME: Kept in one place so prompt wording can evolve without touching stage logic.

package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
)

const scriptwriterPrompt = `Create a 2 minute educational video script about: %s

The video script should read like the videos by the YouTube channel 3Blue1Brown by Grant Sanderson.
Make the script simple and explain concepts clearly with geometric intuition where possible. Include mathematical expressions and derivations if applicable.

Requirements:
1. Total duration should be around 120-150 seconds (around 2 minutes)
2. Split into 2-5 segments (each segment = one clear concept that can be explained by one animation)
3. Each segment should be 30-60 seconds long, with a maximum of 5 segments; ideally keep 3-4 segments
4. Write in a simple, narrative style suitable for voice narration
5. Avoid explanations that cannot be visualized abstractly (no "imagine you are on a hill" framing); the animation library is only good at colorful graphs, diagrams, 3d/2d plots and curves, mathematical expressions, symbols and written words, so every segment must be animatable that way
6. Each segment should be explainable with ONE clear animation

Make it engaging and educational.`

// scriptSchema constrains the scriptwriter output. segment_id values are
// expected to run 0..N-1.
var scriptSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"full_script": {"type": "string"},
		"segments": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"segment_id": {"type": "integer"},
					"script": {"type": "string"},
					"duration_sec": {"type": "number"}
				},
				"required": ["segment_id", "script", "duration_sec"],
				"additionalProperties": false
			}
		}
	},
	"required": ["full_script", "segments"],
	"additionalProperties": false
}`)

const plannerSystemPrompt = `You are an expert at creating Manim animation descriptions for educational videos.`

const plannerPromptTemplate = `Create a detailed Manim animation prompt for this segment:

Narration: %s
Duration: %.1f seconds
Topic: %s

The video style should match the YouTube channel 3Blue1Brown by Grant Sanderson. The animation description should be something the Manim library can animate well: colorful graphs, diagrams, 3d/2d plots and curves, mathematical expressions, symbols, equations and written words.

Provide a clear, specific animation description that:
1. Matches the narration content; the description must strictly supplement or match the narration text
2. Can be created with Manim (mathematical animations library)
3. Is visually engaging and educational
4. Can be completed in %.1f seconds
5. Uses Manim's capabilities: graphs, equations, geometric shapes, transformations
6. Syncs with the narration provided

Include:
- What objects to show (text, shapes, graphs, equations, diagrams)
- What animations to use (FadeIn, Transform, Create, Write, etc.)
- Color scheme (use vibrant colors)
- Key visual moments that sync with narration

Be specific and concise.%s`

const codegenSystemPrompt = `You are an expert Manim (Mathematical Animation Engine) programmer.
Generate complete, working Manim Community Edition code that creates engaging educational animations.
Always include proper imports and ensure timing exactly matches the required duration.`

const codegenPromptTemplate = `Generate a complete Manim Python script for this animation:

KEEP THE CODE SHORT AND SIMPLE, DO NOT GIVE BIG CODE
Animation Description: %s
Required Duration: %.1f seconds
Segment ID: %d

Requirements:
1. Use Manim Community Edition (from manim import *)
2. Create a Scene class called Segment%d
3. MUST use self.wait() (if necessary) to reach EXACTLY %.1f seconds total runtime
4. Use clear, educational animations (Write, Create, FadeIn, Transform, etc.)
5. Include proper timing comments
6. Use vibrant colors and clear text
7. Match the 3Blue1Brown visual style
8. Use ONLY these colors: BLUE, RED, GREEN, YELLOW, PURPLE, ORANGE, WHITE, PINK
   (NO CYAN, GOLD, TEAL, MAGENTA, MAROON - they cause errors)

# Example timing:
# self.play(SomeAnimation, run_time=X)
# self.wait(Y)
Total of X + Y + ... should equal %.1f seconds

The animation is planned to run for the given duration; use self.wait() only when the animation timing does not reach it.%s

Return the complete working code with all imports. Don't give any explanations or text, just give code.`

// manimSchema constrains code generation to an entry-point name plus source.
var manimSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"class_name": {"type": "string"},
		"completed_code": {"type": "string"}
	},
	"required": ["class_name", "completed_code"],
	"additionalProperties": false
}`)

const repairSystemPrompt = `You are an expert in fixing Manim code with bugs. Return ONLY the fixed Manim python code.`

const repairPromptTemplate = `Fix the Manim code given the execution logs, which describe the bugs and problems in the code.
YOUR JOB IS TO FIND THE PROBLEMS IN THE CODE USING THE LOGS BELOW AND CHANGE ONLY THE PROBLEMATIC LINES.
DO NOT CHANGE THE ENTIRE CODE UNLESS NECESSARY. RETURN THE ENTIRE CORRECTED CODE ONLY.

CURRENT CODE:
` + "```python\n%s\n```" + `

EXECUTION LOGS START--------------
%s
EXECUTION LOGS END----------------
%s
CONTEXT:
- animation prompt: %s
- Required duration: %.1f seconds
- Segment ID: %d

REQUIREMENTS:
1. Fix the code based on the logs above. RETURN ONLY THE CORRECTED CODE
2. Explain the bug and its fix in a short comment below the corrected code; no other commentary
3. The animation timing must match EXACTLY %.1f seconds. Use self.wait() if needed
4. Do not change the animation scenes or colors unless necessary
5. The rendered video must have no overlapping elements
6. Use only modules and functions that are part of the Manim community library
7. The class name must be Segment%d, inheriting from Scene or ThreeDScene only
8. If earlier repair attempts are listed above, avoid repeating the same mistake

DO NOT USE external resources or dependencies (svgs, images, extra libraries beyond what the code already uses).
DO NOT fix cosmetic issues like comments; change only code that matters to execution.`

// formatRetrievedContext renders retrieval hits as a prompt section. Empty
// input yields an empty string so prompts stay unchanged when no index is
// available.
func formatRetrievedContext(heading string, snippets []string) string {
	if len(snippets) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\n\n%s\n", heading)
	for i, s := range snippets {
		fmt.Fprintf(&b, "\n--- example %d ---\n%s\n", i+1, s)
	}
	return b.String()
}

// formatErrorHistory renders prior repair-cycle error summaries so the repair
// service can avoid repeating a fix that already failed.
func formatErrorHistory(history []string) string {
	if len(history) == 0 {
		return "\n"
	}
	var b strings.Builder
	b.WriteString("\nPREVIOUS CYCLE ERRORS (do not repeat these mistakes):\n")
	for i, h := range history {
		fmt.Fprintf(&b, "%d. %s\n", i+1, h)
	}
	return b.String()
}
