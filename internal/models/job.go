package models

import "time"

// JobStatus is a download job's position in its lifecycle.
type JobStatus string

const (
	JobQueued      JobStatus = "queued"
	JobDownloading JobStatus = "downloading"
	JobZipping     JobStatus = "zipping"
	JobCompleted   JobStatus = "completed"
	JobFailed      JobStatus = "failed"
)

// rank orders the success path; failed sits outside it.
var rank = map[JobStatus]int{
	JobQueued:      0,
	JobDownloading: 1,
	JobZipping:     2,
	JobCompleted:   3,
}

// IsValid reports whether s is a known status.
func (s JobStatus) IsValid() bool {
	_, ok := rank[s]
	return ok || s == JobFailed
}

// IsTerminal reports whether no further transition is possible.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// CanTransition reports whether a job in s may move to next.
//
// Terminal states are final. Any other state may fail, stay where it is, or move forward along
// queued -> downloading -> zipping -> completed.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if s.IsTerminal() || !next.IsValid() {
		return false
	}
	if next == JobFailed {
		return true
	}
	return rank[next] >= rank[s]
}

// Progress counts processed tracks. CurrentTrack names the track in flight, when known.
type Progress struct {
	Current      int    `json:"current"`
	Total        int    `json:"total"`
	CurrentTrack string `json:"currentTrack,omitempty"`
}

// DownloadJob tracks one asynchronous archive request.
type DownloadJob struct {
	ID           string     `json:"id"`
	PlaylistID   string     `json:"playlistId"`
	PlaylistName string     `json:"playlistName"`
	Status       JobStatus  `json:"status"`
	Progress     Progress   `json:"progress"`
	DownloadURL  string     `json:"downloadUrl,omitempty"`
	Error        string     `json:"error,omitempty"`
	FailedTracks []string   `json:"failedTracks"`
	CreatedAt    time.Time  `json:"createdAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// Clone returns a deep copy safe to hand outside the store.
func (j *DownloadJob) Clone() *DownloadJob {
	c := *j
	c.FailedTracks = append([]string{}, j.FailedTracks...)
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// JobUpdate is the partial job a worker reports. Nil fields are left unchanged.
type JobUpdate struct {
	Status       *JobStatus `json:"status,omitempty"`
	Progress     *Progress  `json:"progress,omitempty"`
	Error        *string    `json:"error,omitempty"`
	DownloadURL  *string    `json:"downloadUrl,omitempty"`
	FailedTracks []string   `json:"failedTracks,omitempty"`
}

// IsEmpty reports whether the update carries no fields.
func (u JobUpdate) IsEmpty() bool {
	return u.Status == nil && u.Progress == nil && u.Error == nil && u.DownloadURL == nil && u.FailedTracks == nil
}
