package constants

// DocStatus is the per-document pipeline state.
type DocStatus string

// Stage order within one document is fixed. FAILED is reachable from
// RECOGNIZING only; later stages degrade instead of failing.
const (
	StatusReceived           DocStatus = "RECEIVED"
	StatusRecognizing        DocStatus = "RECOGNIZING"
	StatusRouting            DocStatus = "ROUTING"
	StatusExtracting         DocStatus = "EXTRACTING"
	StatusAnalyzingSignature DocStatus = "ANALYZING_SIGNATURE"
	StatusReconciling        DocStatus = "RECONCILING"
	StatusDone               DocStatus = "DONE"
	StatusFailed             DocStatus = "FAILED"
)

// Stage names used as keys for provenance timings.
const (
	StageRecognize = "recognize"
	StageRoute     = "route"
	StageExtract   = "extract"
	StageSignature = "signature"
	StageReconcile = "reconcile"
)
