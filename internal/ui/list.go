package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/adder/internal/tasks"
)

var _ list.Item = outcomeItem{}

// outcomeItem wraps [tasks.Outcome] to implement [list.Item].
type outcomeItem struct {
	index   int
	outcome tasks.Outcome
}

func (i outcomeItem) FilterValue() string { return i.outcome.Name }
func (i outcomeItem) Title() string {
	return fmt.Sprintf("%d. %s", i.index+1, i.outcome.Name)
}
func (i outcomeItem) Description() string {
	o := i.outcome
	desc := Outcome(o.Kind, o.Kind.String())
	switch {
	case o.URI != "":
		desc = fmt.Sprintf("%s • %s (%.2f)", desc, o.URI, o.Score)
	case o.Path != "":
		desc = fmt.Sprintf("%s • %s", desc, o.Path)
	}
	if o.Failed() && o.Err != nil {
		desc = fmt.Sprintf("%s • %v", desc, o.Err)
	}
	return desc
}

func outcomeItems(outcomes []tasks.Outcome) []list.Item {
	items := make([]list.Item, len(outcomes))
	for i, o := range outcomes {
		items[i] = outcomeItem{index: i, outcome: o}
	}
	return items
}
