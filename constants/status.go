package constants

// Stage names one step of a pipeline.
type Stage string

// Stable values (stored in result records).
const (
	StageTranscribe Stage = "transcribe"
	StageRecognize  Stage = "recognize"
	StageSynthesize Stage = "synthesize"
	StageOCR        Stage = "ocr"
	StageExtract    Stage = "extract"
)

// AudioStages and DocumentStages list each pipeline's stages in execution order.
var (
	AudioStages    = []Stage{StageTranscribe, StageRecognize, StageSynthesize}
	DocumentStages = []Stage{StageOCR, StageExtract}
)

// RunStatus is the lifecycle status of a stored pipeline run.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "QUEUED"    // accepted, waiting for a worker
	RunStatusRunning   RunStatus = "RUNNING"   // in progress
	RunStatusCompleted RunStatus = "COMPLETED" // every stage succeeded
	RunStatusFailed    RunStatus = "FAILED"    // a stage failed; partial result stored
)
