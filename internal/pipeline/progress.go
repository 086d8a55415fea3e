package pipeline

// Run stages, in order.
const (
	StageIdle      = "idle"
	StageResolve   = "resolve"
	StageFetch     = "fetch"
	StageFeatures  = "features"
	StageAssociate = "associate"
	StageDone      = "done"
)

// Progress is a point-in-time view of the current or last run.
type Progress struct {
	RunID        string `json:"run_id,omitempty"`
	Stage        string `json:"stage"`
	DatesTotal   int    `json:"dates_total"`
	DatesDone    int    `json:"dates_done"`
	DatesSkipped int    `json:"dates_skipped"`
	Detections   int    `json:"detections"`
	Events       int    `json:"events"`
	CellsTotal   int    `json:"bboxes_total"`
	CellsDone    int    `json:"bboxes_done"`
	Associations int    `json:"associations"`
	Finished     bool   `json:"finished"`
	Error        string `json:"error,omitempty"`
}

// Progress returns a copy of the run progress.
func (p *Pipeline) Progress() Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.progress.Stage == "" {
		return Progress{Stage: StageIdle}
	}
	return p.progress
}

func (p *Pipeline) resetProgress(runID string) {
	p.mu.Lock()
	p.progress = Progress{RunID: runID, Stage: StageResolve}
	p.mu.Unlock()
}

func (p *Pipeline) update(fn func(*Progress)) {
	p.mu.Lock()
	fn(&p.progress)
	p.mu.Unlock()
}

func (p *Pipeline) finish(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.progress.Finished = true
	p.progress.Stage = StageDone
	if err != nil {
		p.progress.Error = err.Error()
	}
}
