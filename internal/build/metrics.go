package build

import (
	"sync"
	"time"
)

// BuildMetrics tracks build counts and output volume across the builds of
// one process.
type BuildMetrics struct {
	TotalBuilds      int64
	SuccessfulBuilds int64
	FailedBuilds     int64
	BundlesWritten   int64
	BytesWritten     int64
	FilesCopied      int64
	AverageDuration  time.Duration
	TotalDuration    time.Duration
	LastError        string
	mutex            sync.RWMutex
}

// NewBuildMetrics creates a new build metrics tracker
func NewBuildMetrics() *BuildMetrics {
	return &BuildMetrics{}
}

// RecordBuild records a finished build. result is nil for failed builds.
func (bm *BuildMetrics) RecordBuild(result *Result, duration time.Duration, err error) {
	bm.mutex.Lock()
	defer bm.mutex.Unlock()

	bm.TotalBuilds++
	bm.TotalDuration += duration

	if err != nil {
		bm.FailedBuilds++
		bm.LastError = err.Error()
	} else {
		bm.SuccessfulBuilds++
		bm.LastError = ""
	}

	if result != nil {
		for _, a := range result.Bundles {
			bm.BundlesWritten++
			bm.BytesWritten += a.Size
		}
		bm.FilesCopied += int64(len(result.Copies))
	}

	bm.AverageDuration = bm.TotalDuration / time.Duration(bm.TotalBuilds)
}

// GetSnapshot returns a snapshot of current metrics
func (bm *BuildMetrics) GetSnapshot() BuildMetrics {
	bm.mutex.RLock()
	defer bm.mutex.RUnlock()

	return BuildMetrics{
		TotalBuilds:      bm.TotalBuilds,
		SuccessfulBuilds: bm.SuccessfulBuilds,
		FailedBuilds:     bm.FailedBuilds,
		BundlesWritten:   bm.BundlesWritten,
		BytesWritten:     bm.BytesWritten,
		FilesCopied:      bm.FilesCopied,
		AverageDuration:  bm.AverageDuration,
		TotalDuration:    bm.TotalDuration,
		LastError:        bm.LastError,
	}
}

// Reset resets all metrics
func (bm *BuildMetrics) Reset() {
	bm.mutex.Lock()
	defer bm.mutex.Unlock()

	bm.TotalBuilds = 0
	bm.SuccessfulBuilds = 0
	bm.FailedBuilds = 0
	bm.BundlesWritten = 0
	bm.BytesWritten = 0
	bm.FilesCopied = 0
	bm.AverageDuration = 0
	bm.TotalDuration = 0
	bm.LastError = ""
}

// GetSuccessRate returns the success rate as a percentage
func (bm *BuildMetrics) GetSuccessRate() float64 {
	bm.mutex.RLock()
	defer bm.mutex.RUnlock()

	if bm.TotalBuilds == 0 {
		return 0.0
	}

	return float64(bm.SuccessfulBuilds) / float64(bm.TotalBuilds) * 100.0
}
