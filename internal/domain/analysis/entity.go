package analysis

import (
	"encoding/json"
	"time"
)

// JobID tipe untuk AnalysisJob
type JobID string

// Status is the lifecycle state observed by callers.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Stage is the orchestrator state: Created -> Fetching -> Materializing ->
// Collecting -> Analyzing -> Completed, or Failed from any of them.
type Stage string

const (
	StageCreated       Stage = "created"
	StageFetching      Stage = "fetching"
	StageMaterializing Stage = "materializing"
	StageCollecting    Stage = "collecting"
	StageAnalyzing     Stage = "analyzing"
	StageCompleted     Stage = "completed"
	StageFailed        Stage = "failed"
)

// IssueKind enum
type IssueKind string

const (
	KindStyle        IssueKind = "style"
	KindBug          IssueKind = "bug"
	KindPerformance  IssueKind = "performance"
	KindBestPractice IssueKind = "best_practice"
)

// IssueKinds lists the closed set of kinds a model may report.
var IssueKinds = []IssueKind{KindStyle, KindBug, KindPerformance, KindBestPractice}

// Valid reports whether k belongs to the closed set.
func (k IssueKind) Valid() bool {
	for _, known := range IssueKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Issue is a single finding reported by the model for one file.
type Issue struct {
	Kind        IssueKind `json:"type"`
	Line        int       `json:"line"`
	Description string    `json:"description"`
	Suggestion  string    `json:"suggestion"`
}

// SourceFile is a collected file; Path is relative to the repository root.
type SourceFile struct {
	Path    string `json:"file_name"`
	Content string `json:"code"`
}

// FileAnalysis is the per-file entry of a job result. Document holds the
// model's JSON verbatim; Issues is decoded from it on a best-effort basis.
type FileAnalysis struct {
	FileName string          `json:"file_name"`
	Issues   []Issue         `json:"issues"`
	Document json.RawMessage `json:"document,omitempty"`
}

// Aggregate Root: Job
type Job struct {
	ID             JobID          `json:"id"`
	RepoURL        string         `json:"repo_url"`
	PRNumber       int            `json:"pr_number"`
	Status         Status         `json:"status"`
	Stage          Stage          `json:"stage"`
	Detail         string         `json:"detail,omitempty"`
	FilesCollected int            `json:"files_collected"`
	FilesDropped   int            `json:"files_dropped"`
	Result         []FileAnalysis `json:"result,omitempty"`
	ArtifactURL    string         `json:"artifact_url,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	StartedAt      *time.Time     `json:"started_at,omitempty"`
	FinishedAt     *time.Time     `json:"finished_at,omitempty"`
}

// Task is the unit handed to a queue. Token lives only here, in memory or
// sealed inside queue arguments; it is never copied onto a Job.
type Task struct {
	JobID    JobID
	RepoURL  string
	PRNumber int
	Token    string
}
