package admin

import (
	"fmt"

	"github.com/eringen/folio/collection"
	"github.com/eringen/folio/content"
)

// Action is a mutation that needs confirmation.
type Action string

const (
	ActionDelete     Action = "delete"
	ActionBulkDelete Action = "bulk-delete"
	ActionPublish    Action = "publish"
	ActionUnpublish  Action = "unpublish"
	ActionFeature    Action = "feature"
	ActionUnfeature  Action = "unfeature"
)

// ParseAction maps a route parameter to an Action.
func ParseAction(s string) (Action, bool) {
	switch a := Action(s); a {
	case ActionDelete, ActionBulkDelete, ActionPublish, ActionUnpublish, ActionFeature, ActionUnfeature:
		return a, true
	}
	return "", false
}

func (a Action) field() (string, bool) {
	switch a {
	case ActionPublish:
		return collection.FieldDraft, false
	case ActionUnpublish:
		return collection.FieldDraft, true
	case ActionFeature:
		return collection.FieldFeatured, true
	}
	return collection.FieldFeatured, false
}

func (a Action) doneMessage(noun string) string {
	switch a {
	case ActionPublish:
		return fmt.Sprintf("Published the selected %s.", noun)
	case ActionUnpublish:
		return fmt.Sprintf("Moved the selected %s to drafts.", noun)
	case ActionFeature:
		return fmt.Sprintf("Marked the selected %s as featured.", noun)
	}
	return fmt.Sprintf("Removed featured from the selected %s.", noun)
}

func confirmFor(a Action, kind content.Kind, n int) ConfirmRequest {
	noun := string(kind)
	switch a {
	case ActionDelete:
		return ConfirmRequest{
			Action:       a,
			Title:        "Delete " + singular(kind),
			Message:      fmt.Sprintf("Are you sure you want to delete this %s?", singular(kind)),
			ConfirmLabel: "Delete",
		}
	case ActionBulkDelete:
		return ConfirmRequest{
			Action:       a,
			Title:        "Delete " + noun,
			Message:      fmt.Sprintf("Delete %d selected %s?", n, noun),
			ConfirmLabel: "Delete all",
		}
	case ActionPublish:
		return ConfirmRequest{Action: a, Title: "Update status", Message: fmt.Sprintf("Publish %d selected %s?", n, noun), ConfirmLabel: "Confirm"}
	case ActionUnpublish:
		return ConfirmRequest{Action: a, Title: "Update status", Message: fmt.Sprintf("Move %d selected %s to drafts?", n, noun), ConfirmLabel: "Confirm"}
	case ActionFeature:
		return ConfirmRequest{Action: a, Title: "Update featured", Message: fmt.Sprintf("Mark %d selected %s as featured?", n, noun), ConfirmLabel: "Confirm"}
	}
	return ConfirmRequest{Action: a, Title: "Update featured", Message: fmt.Sprintf("Remove featured from %d selected %s?", n, noun), ConfirmLabel: "Confirm"}
}
