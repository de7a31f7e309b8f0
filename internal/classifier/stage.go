package classifier

// Stage is the progress of one classify call.
type Stage int

// Stages in order. Done and Failed are terminal.
const (
	StageIdle Stage = iota
	StageNormalizing
	StageRequesting
	StageLinking
	StageDone
	StageFailed
)

var stageNames = [...]string{"idle", "normalizing", "requesting", "linking", "done", "failed"}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}
