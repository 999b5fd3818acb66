package models

// Scan stages reported through ScanProgress.
const (
	StageCounting = "Counting files"
	StageScanning = "Scanning files"
	StageComplete = "Scan complete"
)

// ScanProgress is emitted by the scanner while it walks a tree.
type ScanProgress struct {
	Stage string
	// Progress is within [0, 1].
	Progress float64
	Message  string
}
