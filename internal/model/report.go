package model

import "time"

// Stage is a state of the per-target acquisition state machine.
type Stage string

const (
	StageStart     Stage = "start"
	StageFetched   Stage = "fetched"
	StageRendered  Stage = "rendered"
	StageExtracted Stage = "extracted"
	StageSynced    Stage = "synced"
	StageDone      Stage = "done"
	StageFailed    Stage = "failed"
)

// RunStatus summarizes a FetchReport for display.
type RunStatus string

const (
	// RunOK means every stage completed without errors.
	RunOK RunStatus = "ok"
	// RunPartial means the run completed but some links failed to download.
	RunPartial RunStatus = "partial"
	// RunFailed means the run stopped before syncing.
	RunFailed RunStatus = "failed"
)

// FetchReport is the per-target summary of one acquisition run.
// It is created once at the end of a run and not mutated afterwards.
type FetchReport struct {
	RunID           string           `json:"run_id"`
	Company         string           `json:"company"`
	Ticker          string           `json:"ticker,omitempty"`
	StartedAt       time.Time        `json:"started_at"`
	FinishedAt      time.Time        `json:"finished_at"`
	FinalStage      Stage            `json:"final_stage"`
	FetchedVia      FetchMethod      `json:"fetched_via,omitempty"`
	LinksFound      int              `json:"links_found"`
	LinksNew        int              `json:"links_new"`
	FilesDownloaded int              `json:"files_downloaded"`
	Downloads       []DownloadRecord `json:"downloads,omitempty"`
	Errors          []ErrorEntry     `json:"errors"`
}

// Status derives the run status from the final stage and the errors.
func (r *FetchReport) Status() RunStatus {
	if r.FinalStage == StageFailed {
		return RunFailed
	}
	if len(r.Errors) > 0 {
		return RunPartial
	}
	return RunOK
}

// Failed reports whether the run ended in the Failed state.
func (r *FetchReport) Failed() bool {
	return r.Status() == RunFailed
}

// Duration is the wall-clock time of the run.
func (r *FetchReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// BatchSummary aggregates reports from one invocation over a roster.
type BatchSummary struct {
	RunID           string `json:"run_id"`
	Targets         int    `json:"targets"`
	Failed          int    `json:"failed"`
	LinksFound      int    `json:"links_found"`
	LinksNew        int    `json:"links_new"`
	FilesDownloaded int    `json:"files_downloaded"`
	Errors          int    `json:"errors"`
}

// Summarize aggregates the given reports. Nil entries (targets that never
// started because the batch was cancelled) are skipped.
func Summarize(runID string, reports []*FetchReport) BatchSummary {
	s := BatchSummary{RunID: runID}
	for _, r := range reports {
		if r == nil {
			continue
		}
		s.Targets++
		if r.Failed() {
			s.Failed++
		}
		s.LinksFound += r.LinksFound
		s.LinksNew += r.LinksNew
		s.FilesDownloaded += r.FilesDownloaded
		s.Errors += len(r.Errors)
	}
	return s
}
