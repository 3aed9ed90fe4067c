// ABOUTME: Tests for fenced-code extraction from model output.
// ABOUTME: Covers python fences, unlabeled fences, surrounding prose, and bare code passthrough.

package pipeline

import "testing"

func TestExtractCodeBlock(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "python fence",
			input: "```python\nfrom manim import *\n```",
			want:  "from manim import *",
		},
		{
			name:  "unlabeled fence",
			input: "```\nclass Segment0(Scene): pass\n```",
			want:  "class Segment0(Scene): pass",
		},
		{
			name:  "prose around fence",
			input: "Here is the fixed code:\n\n```python\nx = 1\n```\n\nThe bug was a typo.",
			want:  "x = 1",
		},
		{
			name:  "python fence preferred over earlier fence",
			input: "```text\nnot code\n```\n\n```python\ny = 2\n```",
			want:  "y = 2",
		},
		{
			name:  "bare code passthrough",
			input: "from manim import *\n\nclass Segment0(Scene):\n    pass",
			want:  "from manim import *\n\nclass Segment0(Scene):\n    pass",
		},
		{
			name:  "multiline fence body",
			input: "```python\nfrom manim import *\n\nclass Segment1(Scene):\n    def construct(self):\n        self.wait(1)\n```",
			want:  "from manim import *\n\nclass Segment1(Scene):\n    def construct(self):\n        self.wait(1)",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractCodeBlock(tc.input); got != tc.want {
				t.Errorf("ExtractCodeBlock() = %q, want %q", got, tc.want)
			}
		})
	}
}
