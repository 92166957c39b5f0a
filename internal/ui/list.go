package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/stemx/internal/formatter"
	"github.com/desertthunder/stemx/internal/models"
)

var (
	_ list.Item = jobItem{}
)

// jobItem wraps [models.Job] to implement [list.Item].
type jobItem struct {
	job *models.Job
}

func (i jobItem) FilterValue() string { return i.job.Filename() }
func (i jobItem) Title() string       { return i.job.Filename() }
func (i jobItem) Description() string {
	desc := fmt.Sprintf("%s • %s", i.job.Status(), i.job.CreatedAt().Local().Format("Jan 2 15:04"))
	if took := formatter.ProcessingTime(i.job); took != "" {
		desc = fmt.Sprintf("%s • took %s", desc, took)
	}
	if msg := i.job.ErrorMessage(); msg != "" {
		desc = fmt.Sprintf("%s • %s", desc, msg)
	}
	return desc
}
