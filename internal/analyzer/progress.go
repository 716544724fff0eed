package analyzer

// ProgressReporter receives callbacks as a run moves through its stages.
// Implementations can display progress bars, log messages, or remain silent.
type ProgressReporter interface {
	// OnDiscoveryStart is called when file discovery begins.
	OnDiscoveryStart()

	// OnDiscoveryComplete is called with the number of files found.
	OnDiscoveryComplete(files int)

	// OnParsingStart is called before parsing begins.
	OnParsingStart(totalFiles int)

	// OnFileParsed is called after each file is parsed. Calls are serialized.
	OnFileParsed(relPath string)

	// OnResolutionStart is called once the symbol table is built.
	OnResolutionStart(symbols int)

	// OnComplete is called when the model is assembled.
	OnComplete(stats *Stats)
}

// NoOpProgressReporter is a progress reporter that does nothing.
// Used when progress reporting is disabled (e.g., --quiet flag).
type NoOpProgressReporter struct{}

func (n *NoOpProgressReporter) OnDiscoveryStart()            {}
func (n *NoOpProgressReporter) OnDiscoveryComplete(files int) {}
func (n *NoOpProgressReporter) OnParsingStart(totalFiles int) {}
func (n *NoOpProgressReporter) OnFileParsed(relPath string)  {}
func (n *NoOpProgressReporter) OnResolutionStart(symbols int) {}
func (n *NoOpProgressReporter) OnComplete(stats *Stats)       {}
