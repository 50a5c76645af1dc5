package evidence

import "path/filepath"

// Layout names the files of one scenario under the artifact directory.
type Layout struct {
	Dir string
}

// Path joins name onto the artifact directory. Absolute names are kept.
func (l Layout) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(l.Dir, name)
}

// ErrorShot is the diagnostic screenshot taken when scenario fails.
func (l Layout) ErrorShot(scenario string) string {
	return l.Path(scenario + "_error.png")
}

// ConsoleLog is where scenario's console output is written.
func (l Layout) ConsoleLog(scenario string) string {
	return l.Path(scenario + "_console.log")
}

// BridgeCalls is where scenario's bridge call log is written.
func (l Layout) BridgeCalls(scenario string) string {
	return l.Path(scenario + "_bridge.json")
}
