package models

import (
	"testing"
	"time"
)

func TestJobStatus(t *testing.T) {
	t.Run("CanTransition", func(t *testing.T) {
		tc := []struct {
			from JobStatus
			to   JobStatus
			want bool
		}{
			{JobQueued, JobDownloading, true},
			{JobDownloading, JobDownloading, true},
			{JobDownloading, JobZipping, true},
			{JobZipping, JobCompleted, true},
			{JobQueued, JobZipping, true},
			{JobQueued, JobFailed, true},
			{JobDownloading, JobFailed, true},
			{JobZipping, JobFailed, true},
			{JobZipping, JobDownloading, false},
			{JobDownloading, JobQueued, false},
			{JobCompleted, JobFailed, false},
			{JobCompleted, JobCompleted, false},
			{JobFailed, JobDownloading, false},
			{JobFailed, JobFailed, false},
			{JobQueued, JobStatus("paused"), false},
		}

		for _, tt := range tc {
			t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
				if got := tt.from.CanTransition(tt.to); got != tt.want {
					t.Errorf("CanTransition() = %v, want %v", got, tt.want)
				}
			})
		}
	})

	t.Run("IsTerminal", func(t *testing.T) {
		for _, s := range []JobStatus{JobQueued, JobDownloading, JobZipping} {
			if s.IsTerminal() {
				t.Errorf("%s should not be terminal", s)
			}
		}
		for _, s := range []JobStatus{JobCompleted, JobFailed} {
			if !s.IsTerminal() {
				t.Errorf("%s should be terminal", s)
			}
		}
	})
}

func TestDownloadJobClone(t *testing.T) {
	done := time.Now()
	job := &DownloadJob{ID: "job_1", FailedTracks: []string{"a"}, CompletedAt: &done}

	c := job.Clone()
	c.FailedTracks[0] = "b"
	*c.CompletedAt = done.Add(time.Hour)

	if job.FailedTracks[0] != "a" {
		t.Error("clone shares failed tracks slice")
	}
	if !job.CompletedAt.Equal(done) {
		t.Error("clone shares completion time")
	}
}

func TestMatchResultConstructors(t *testing.T) {
	track := Track{ID: "sp1", Name: "Song", ISRC: " usrc17607839 "}

	m := NewMatchedResult(track, CandidateTrack{ID: "t1", ISRC: "USRC17607839"})
	if m.Status != MatchStatusMatched || m.Candidate == nil || *m.ISRC != "USRC17607839" {
		t.Errorf("unexpected matched result %+v", m)
	}

	n := NewNoCodeResult(Track{ID: "sp2"})
	if n.Status != MatchStatusNoCode || n.ISRC != nil || n.Candidate != nil {
		t.Errorf("unexpected no_code result %+v", n)
	}

	nf := NewNotFoundResult(track)
	if nf.Status != MatchStatusNotFound || nf.Candidate != nil {
		t.Errorf("unexpected not_found result %+v", nf)
	}

	e := NewErrorResult(track, errString("boom"))
	if e.Status != MatchStatusError || e.Candidate != nil || e.Error != "boom" {
		t.Errorf("unexpected error result %+v", e)
	}
}

type errString string

func (e errString) Error() string { return string(e) }
