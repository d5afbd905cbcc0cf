package grid

import (
	"encoding/gob"
	"os"
	"path/filepath"
	"sort"
)

// resultsFile is the name of the saved results within a log directory.
const resultsFile = "results.bin"

// Result records one run's outcome.
type Result struct {
	// RunID is the run's index within the space.
	RunID int

	// Params is the hyperparameter setting the run trained with.
	Params Params

	// MeanDelay is the mean per-vehicle delay of the run's final greedy
	// evaluation, the metric runs are ranked by. Negative when the
	// evaluation episode did not complete.
	MeanDelay float64

	// Return is the undiscounted return of the final evaluation.
	Return float64

	// Episodes is the number of training episodes completed.
	Episodes int

	// Failed marks a run that errored or panicked; Err carries the
	// message.
	Failed bool
	Err    string
}

// Sort orders results best first: ascending mean delay, with runs that
// failed or never completed an evaluation episode placed last.
func Sort(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if ranked(a) != ranked(b) {
			return ranked(a)
		}
		if !ranked(a) {
			return a.RunID < b.RunID
		}
		return a.MeanDelay < b.MeanDelay
	})
}

func ranked(r Result) bool {
	return !r.Failed && r.MeanDelay >= 0
}

// SaveResults writes the results to <logDir>/results.bin.
func SaveResults(logDir string, results []Result) error {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return err
	}
	file, err := os.Create(filepath.Join(logDir, resultsFile))
	if err != nil {
		return err
	}
	defer file.Close()
	return gob.NewEncoder(file).Encode(results)
}

// LoadResults reads back results saved by a previous search.
func LoadResults(logDir string) ([]Result, error) {
	file, err := os.Open(filepath.Join(logDir, resultsFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var results []Result
	if err := gob.NewDecoder(file).Decode(&results); err != nil {
		return nil, err
	}
	return results, nil
}
