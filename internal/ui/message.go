package ui

import (
	"time"

	"github.com/hbarnett99/so-you-made-a-mix/internal/models"
	"github.com/hbarnett99/so-you-made-a-mix/internal/tasks"
)

type progressUpdateMsg tasks.ProgressUpdate

type matchCompleteMsg struct {
	playlist *models.EnhancedPlaylist
	err      error
}

type jobPolledMsg struct {
	job *models.DownloadJob
	err error
}

type pollTickMsg time.Time

type jobCancelledMsg struct {
	err error
}
