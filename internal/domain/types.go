package domain

// JobStatus tracks each pipeline stage for a single processing job.
type JobStatus string

const (
	JobStatusQueued       JobStatus = "queued"
	JobStatusTranscribing JobStatus = "transcribing"
	JobStatusCleaning     JobStatus = "cleaning"
	JobStatusStructuring  JobStatus = "structuring"
	JobStatusDone         JobStatus = "done"
	JobStatusFailed       JobStatus = "failed"
)

// Terminal reports whether no further events follow this status.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusFailed
}

// Job stores identity, lifecycle status, and latest progress for one
// end-to-end pipeline run.
type Job struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Status     JobStatus `json:"status"`
	Message    string    `json:"message"`
	Percent    int       `json:"percent"`
	OutputPath string    `json:"outputPath,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Event is one immutable progress snapshot pushed during a job's lifetime.
type Event struct {
	JobID      string    `json:"job_id"`
	Status     JobStatus `json:"status"`
	Message    string    `json:"message"`
	Percent    int       `json:"percent"`
	OutputPath string    `json:"output_path,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// AudioExtensions lists the supported input formats (lowercase, with dot).
var AudioExtensions = map[string]struct{}{
	".mp3":  {},
	".wav":  {},
	".m4a":  {},
	".flac": {},
	".ogg":  {},
	".opus": {},
}

// IsAudioExt reports whether ext (lowercase, with dot) is a supported format.
func IsAudioExt(ext string) bool {
	_, ok := AudioExtensions[ext]
	return ok
}
