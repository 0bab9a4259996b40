package analysis

// OutcomeKind tags the result of analyzing one file.
type OutcomeKind string

const (
	OutcomeOK          OutcomeKind = "ok"
	OutcomeUnparseable OutcomeKind = "unparseable"
	OutcomeMalformed   OutcomeKind = "malformed"
)

// Outcome is the tagged per-file result produced by the analyzer.
// Analysis is set for ok and malformed outcomes, Raw for unparseable ones.
type Outcome struct {
	File     string
	Kind     OutcomeKind
	Analysis *FileAnalysis
	Raw      string
	Err      error
}

// Report is what the orchestrator returns for one successful run.
type Report struct {
	Collected int
	Outcomes  []Outcome
	Analyses  []FileAnalysis
}

// Dropped counts outcomes that did not make it into Analyses.
func (r Report) Dropped() int {
	return r.Collected - len(r.Analyses)
}
