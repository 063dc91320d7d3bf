package render

import "fmt"

// Stage is a step of frame rendering.
type Stage uint8

// Frame stages, in execution order.
const (
	StageBeginFrame Stage = iota
	StageGroupByPipeline
	StageGroupByMesh
	StageWriteInstanceData
	StageIssueDraws
	StageSubmit
)

func (s Stage) String() string {
	switch s {
	case StageBeginFrame:
		return "BeginFrame"
	case StageGroupByPipeline:
		return "GroupByPipeline"
	case StageGroupByMesh:
		return "GroupByMesh"
	case StageWriteInstanceData:
		return "WriteInstanceData"
	case StageIssueDraws:
		return "IssueDraws"
	case StageSubmit:
		return "Submit"
	default:
		return fmt.Sprintf("Stage(%d)", s)
	}
}

// FailurePolicy decides what a failed globals write does to the renderer.
type FailurePolicy uint8

const (
	// SkipFrame drops the current frame. The next Render tries again.
	SkipFrame FailurePolicy = iota

	// Halt stops the renderer until Resume is called.
	Halt
)

func (p FailurePolicy) String() string {
	switch p {
	case SkipFrame:
		return "skip-frame"
	case Halt:
		return "halt"
	default:
		return fmt.Sprintf("FailurePolicy(%d)", p)
	}
}

// ParseFailurePolicy parses the String form of a policy. The empty string
// is SkipFrame.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch s {
	case "", "skip-frame":
		return SkipFrame, nil
	case "halt":
		return Halt, nil
	default:
		return SkipFrame, fmt.Errorf("render: unknown failure policy %q", s)
	}
}
