package globals

import "github.com/hashicorp/go-hclog"

var AppLogger = hclog.New(&hclog.LoggerOptions{
	Name:  "conference-hub",
	Level: hclog.LevelFromString("DEBUG"),
})
