package streaming

import (
	"github.com/antonmedv/expr"
	"github.com/wechange-eg/conference-hub/globals"
	"github.com/wechange-eg/conference-hub/types"
)

/*
Here the Env used in the streaming allow-filter is defined.
Once this struct is fixed, it should not be changed, otherwise filters in
existing configurations may not compile any more (f.e. if properties are
renamed etc.)
*/

type Group struct {
	Id      string
	Name    string
	Premium bool
}

type Event struct {
	Id       string
	Title    string
	Nature   string
	FromDate int64
	ToDate   int64
}

type Env struct {
	Group
	Event
}

// Allowed evaluates the configured allow-filter expression against the
// group/event env. Without a configured filter the group's premium flag
// decides. A filter that errors or yields a non-bool denies.
func Allowed(filterExpr string, group *types.Group, event *types.Event) bool {
	if filterExpr == "" {
		return group != nil && group.Premium
	}
	env := Env{}
	if group != nil {
		env.Group = Group{Id: group.Id, Name: group.Name, Premium: group.Premium}
	}
	if event != nil {
		env.Event = Event{
			Id:       event.Id,
			Title:    event.Title,
			Nature:   event.Nature,
			FromDate: event.FromDate.Unix(),
			ToDate:   event.ToDate.Unix(),
		}
	}
	res, err := expr.Eval(filterExpr, env)
	if err != nil {
		globals.AppLogger.Error("could not evaluate streaming allow filter", "error", err)
		return false
	}
	b, ok := res.(bool)
	return ok && b
}
