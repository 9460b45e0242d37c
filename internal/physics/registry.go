package physics

import (
	"fmt"
	"sort"

	"github.com/san-kum/sysid/internal/dynamo"
)

var models = map[string]func() dynamo.System{
	"motor":    func() dynamo.System { return NewMotor() },
	"elevator": func() dynamo.System { return NewElevator() },
	"arm":      func() dynamo.System { return NewArm() },
}

// New returns a fresh model by name.
func New(name string) (dynamo.System, error) {
	fn, ok := models[name]
	if !ok {
		return nil, fmt.Errorf("unknown model: %s", name)
	}
	return fn(), nil
}

// Models lists the available model names.
func Models() []string {
	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
