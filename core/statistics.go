package core

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Statistics aggregates the outcomes of a run of echo requests. All methods
// are safe for concurrent use, so async requests completing on different
// goroutines can report into the same instance.
type Statistics struct {
	totalSent     uint32
	totalRecv     uint32
	totalTimedOut uint32
	totalFailed   uint32

	// rttsMutex controls updates of the RTT aggregates.
	rttsMutex sync.RWMutex
	rttCount  uint64
	rttsMin   uint64
	rttsMax   uint64
	rttsSum   uint64
	rttsSqSum uint64

	// timeMutex controls updates to the run times.
	timeMutex sync.RWMutex
	stTime    time.Time
	started   bool
	endTime   time.Time
	ended     bool
}

// NewStatistics creates and initializes a Statistics struct.
func NewStatistics() *Statistics {
	return &Statistics{
		rttsMin: math.MaxUint64,
	}
}

// RunStarted records the start time of the run.
func (s *Statistics) RunStarted() {
	s.timeMutex.Lock()
	defer s.timeMutex.Unlock()

	s.stTime = time.Now()
	s.started = true
}

// RunEnded records the end time of the run.
func (s *Statistics) RunEnded() {
	s.timeMutex.Lock()
	defer s.timeMutex.Unlock()

	s.endTime = time.Now()
	s.ended = true
}

// EchoRequested counts one issued echo request.
func (s *Statistics) EchoRequested() {
	atomic.AddUint32(&s.totalSent, 1)
}

// EchoReplied counts one successful reply and folds its RTT into the
// aggregates.
func (s *Statistics) EchoReplied(rtt time.Duration) {
	atomic.AddUint32(&s.totalRecv, 1)

	ms := uint64(rtt / time.Millisecond)

	s.rttsMutex.Lock()
	defer s.rttsMutex.Unlock()

	s.rttCount++
	if ms > s.rttsMax {
		s.rttsMax = ms
	}
	if ms < s.rttsMin {
		s.rttsMin = ms
	}
	s.rttsSum += ms
	s.rttsSqSum += ms * ms
}

// EchoTimedOut counts one request that timed out before a reply.
func (s *Statistics) EchoTimedOut() {
	atomic.AddUint32(&s.totalTimedOut, 1)
}

// EchoFailed counts one request the driver failed with an error other than
// a timeout.
func (s *Statistics) EchoFailed() {
	atomic.AddUint32(&s.totalFailed, 1)
}

// GetStartTime returns the recorded start time, if any.
func (s *Statistics) GetStartTime() (time.Time, bool) {
	s.timeMutex.RLock()
	defer s.timeMutex.RUnlock()

	return s.stTime, s.started
}

// GetEndTime returns the recorded end time, if any.
func (s *Statistics) GetEndTime() (time.Time, bool) {
	s.timeMutex.RLock()
	defer s.timeMutex.RUnlock()

	return s.endTime, s.ended
}

// GetTotalSent returns the total amount of echo requests issued.
func (s *Statistics) GetTotalSent() uint32 {
	return atomic.LoadUint32(&s.totalSent)
}

// GetTotalRecv returns the total amount of successful replies.
func (s *Statistics) GetTotalRecv() uint32 {
	return atomic.LoadUint32(&s.totalRecv)
}

// GetTotalTimedOut returns the total amount of timed-out requests.
func (s *Statistics) GetTotalTimedOut() uint32 {
	return atomic.LoadUint32(&s.totalTimedOut)
}

// GetTotalFailed returns the total amount of requests that failed with a
// driver or system error.
func (s *Statistics) GetTotalFailed() uint32 {
	return atomic.LoadUint32(&s.totalFailed)
}

// GetPktLoss returns the fraction of issued requests without a reply.
func (s *Statistics) GetPktLoss() float64 {
	sent := s.GetTotalSent()
	if sent == 0 {
		return 0
	}

	return float64(1) - (float64(s.GetTotalRecv()) / float64(sent))
}

// GetRTTMax returns the largest observed RTT in milliseconds.
func (s *Statistics) GetRTTMax() uint64 {
	s.rttsMutex.RLock()
	defer s.rttsMutex.RUnlock()

	return s.rttsMax
}

// GetRTTMin returns the smallest observed RTT in milliseconds.
func (s *Statistics) GetRTTMin() uint64 {
	s.rttsMutex.RLock()
	defer s.rttsMutex.RUnlock()

	if s.rttCount == 0 {
		return 0
	}
	return s.rttsMin
}

// GetRTTAvg returns the mean observed RTT in milliseconds.
func (s *Statistics) GetRTTAvg() uint64 {
	s.rttsMutex.RLock()
	defer s.rttsMutex.RUnlock()

	if s.rttCount == 0 {
		return 0
	}

	return s.rttsSum / s.rttCount
}

// GetRTTMDev returns the standard deviation of the observed RTTs in
// milliseconds.
func (s *Statistics) GetRTTMDev() uint64 {
	s.rttsMutex.RLock()
	defer s.rttsMutex.RUnlock()

	if s.rttCount == 0 {
		return 0
	}

	avg := s.rttsSum / s.rttCount
	sqrd := float64(s.rttsSqSum/s.rttCount - avg*avg)
	return uint64(math.Sqrt(sqrd))
}
