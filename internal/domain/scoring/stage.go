package scoring

// FunnelStage is the ordered funnel depth a user has reached within the
// scoring window: visitor < browsing < engaged < cart < checkout.
type FunnelStage string

const (
	StageVisitor  FunnelStage = "visitor"
	StageBrowsing FunnelStage = "browsing"
	StageEngaged  FunnelStage = "engaged"
	StageCart     FunnelStage = "cart"
	StageCheckout FunnelStage = "checkout"
)

var stageOrder = map[FunnelStage]int{
	StageVisitor:  0,
	StageBrowsing: 1,
	StageEngaged:  2,
	StageCart:     3,
	StageCheckout: 4,
}

// Depth returns the ordinal position of the stage (visitor = 0)
func (s FunnelStage) Depth() int {
	return stageOrder[s]
}

// AtLeast reports whether the stage is as deep or deeper than other
func (s FunnelStage) AtLeast(other FunnelStage) bool {
	return stageOrder[s] >= stageOrder[other]
}

// Deeper returns the deeper of two stages
func Deeper(a, b FunnelStage) FunnelStage {
	if stageOrder[b] > stageOrder[a] {
		return b
	}
	return a
}

// MaxStageDepth is the depth of the deepest stage (checkout)
const MaxStageDepth = 4

// IsValid returns true if the stage is known
func (s FunnelStage) IsValid() bool {
	_, ok := stageOrder[s]
	return ok
}
