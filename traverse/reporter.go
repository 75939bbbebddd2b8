// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package traverse

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/grailbio/bitarray/log"
)

// A Reporter receives events from an ongoing traversal. Reporters are
// used to monitor progress of long-running traversals.
type Reporter interface {
	// Init is called when processing is about to begin. Parameter
	// n indicates the number of tasks to be executed by the traversal.
	Init(n int)
	// Complete is called after the traversal has completed.
	Complete()

	// Begin is called when task i is begun.
	Begin(i int)
	// End is called when task i has completed.
	End(i int)
}

// reportInterval is the minimum time between two progress lines.
const reportInterval = time.Second

type logReporter struct {
	name  string
	level log.Level

	mu sync.Mutex

	numWorkers int32
	numQueued  int32
	numRunning int32
	numDone    int32
	// start time of the traversal
	startTime  time.Time
	lastReport time.Time

	cumulativeRuntime time.Duration
	startTimes        map[int]time.Time
}

// NewLogReporter returns a reporter that logs, at the given level, the
// number of tasks queued, running and done, the elapsed time and an
// estimate of the time remaining. Progress is logged at most once per
// second, and once more on completion.
//
// The estimate assumes that tasks take roughly equal time and start in
// order.
func NewLogReporter(name string, level log.Level) Reporter {
	return &logReporter{
		name:       name,
		level:      level,
		startTimes: make(map[int]time.Time),
	}
}

func (r *logReporter) Init(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.numQueued = int32(n)
	r.numRunning, r.numDone = 0, 0
	r.numWorkers = 1
	r.cumulativeRuntime = 0
	r.startTime = time.Now()
	r.lastReport = r.startTime
}

func (r *logReporter) Complete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report(time.Now())
}

func (r *logReporter) Begin(i int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.startTimes[i] = now
	r.numQueued--
	r.numRunning++
	if r.numRunning > r.numWorkers {
		r.numWorkers = r.numRunning
	}
	r.maybeReport(now)
}

func (r *logReporter) End(i int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	start, ok := r.startTimes[i]
	if !ok {
		panic("end called without start")
	}
	delete(r.startTimes, i)
	now := time.Now()
	r.numRunning--
	r.numDone++
	r.cumulativeRuntime += now.Sub(start)
	r.maybeReport(now)
}

func (r *logReporter) maybeReport(now time.Time) {
	if now.Sub(r.lastReport) >= reportInterval {
		r.report(now)
	}
}

func (r *logReporter) report(now time.Time) {
	r.lastReport = now
	r.level.Printf("%s: (queued: %d -> running: %d -> done: %d) %v %s",
		r.name, r.numQueued, r.numRunning, r.numDone,
		now.Sub(r.startTime).Round(time.Second), r.buildTimeLeftStr(now))
}

func (r *logReporter) buildTimeLeftStr(currentTime time.Time) string {
	// If some tasks have finished, use their running time for the
	// estimate. Otherwise, use the time the running tasks have taken so
	// far.
	var modifier string
	var avgRunTime time.Duration
	if r.cumulativeRuntime > 0 {
		modifier = "~"
		avgRunTime = r.cumulativeRuntime / time.Duration(r.numDone)
	} else if r.numRunning > 0 {
		modifier = ">"
		avgRunTime = r.sumCurrentRunningTimes(currentTime) / time.Duration(len(r.startTimes))
	}

	runningTimeLeft := time.Duration(r.numRunning)*avgRunTime - r.sumCurrentRunningTimes(currentTime)
	if r.numRunning > 0 {
		runningTimeLeft /= time.Duration(r.numRunning)
	}
	if runningTimeLeft < 0 {
		runningTimeLeft = 0
	}
	queuedTimeLeft := time.Duration(math.Ceil(float64(r.numQueued)/float64(r.numWorkers))) * avgRunTime

	return fmt.Sprintf("(%s%v left  %v avg)", modifier,
		(queuedTimeLeft + runningTimeLeft).Round(time.Second),
		avgRunTime.Round(time.Second))
}

func (r *logReporter) sumCurrentRunningTimes(currentTime time.Time) time.Duration {
	var total time.Duration
	for _, startTime := range r.startTimes {
		total += currentTime.Sub(startTime)
	}
	return total
}
