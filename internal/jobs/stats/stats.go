package stats

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/masa-finance/unified-scraper/api/types"
)

// These are the types of statistics that we can add. The value is the JSON key that will be used for serialization.
type StatType string

const (
	Batches         StatType = "batches"
	BatchErrors     StatType = "batch_errors"
	JobSubmissions  StatType = "job_submissions"
	JobSuccesses    StatType = "job_successes"
	JobFailures     StatType = "job_failures"
	JobTimeouts     StatType = "job_timeouts"
	ReturnedRecords StatType = "returned_records"
	FilteredRecords StatType = "filtered_records"
	SessionScrapes  StatType = "session_scrapes"
)

// AddStat is the message sent to the collector
type AddStat struct {
	Type     StatType
	Provider types.ProviderId
	Num      uint
}

// Stats is the structure we use to store the statistics
type Stats struct {
	BootTimeUnix      int64                                  `json:"boot_time"`
	LastOperationUnix int64                                  `json:"last_operation_time"`
	CurrentTimeUnix   int64                                  `json:"current_time"`
	Backends          []types.Backend                        `json:"available_backends"`
	Stats             map[types.ProviderId]map[StatType]uint `json:"stats"`
	sync.Mutex
}

// StatsCollector is the object used to collect statistics
type StatsCollector struct {
	Stats *Stats
	Chan  chan AddStat
}

// StartCollector starts a goroutine that listens to a channel for AddStat messages and updates the stats accordingly.
func StartCollector(bufSize uint, backends []types.Backend) *StatsCollector {
	logrus.Info("Starting stats collector")

	s := Stats{
		BootTimeUnix: time.Now().Unix(),
		Backends:     backends,
		Stats:        make(map[types.ProviderId]map[StatType]uint),
	}

	ch := make(chan AddStat, bufSize)

	go func(s *Stats, ch chan AddStat) {
		for stat := range ch {
			s.Lock()
			s.LastOperationUnix = time.Now().Unix()
			if _, ok := s.Stats[stat.Provider]; !ok {
				s.Stats[stat.Provider] = make(map[StatType]uint)
			}
			s.Stats[stat.Provider][stat.Type] += stat.Num
			s.Unlock()
			logrus.Debugf("Added %d to stat %s for %s", stat.Num, stat.Type, stat.Provider)
		}
	}(&s, ch)

	return &StatsCollector{Stats: &s, Chan: ch}
}

// Json returns the current statistics as a JSON byte array
func (s *StatsCollector) Json() ([]byte, error) {
	s.Stats.Lock()
	defer s.Stats.Unlock()
	s.Stats.CurrentTimeUnix = time.Now().Unix()
	return json.Marshal(s.Stats)
}

// Get returns the current value of a statistic.
func (s *StatsCollector) Get(provider types.ProviderId, typ StatType) uint {
	s.Stats.Lock()
	defer s.Stats.Unlock()
	return s.Stats.Stats[provider][typ]
}

// Add is a convenience method to add a number to a statistic. A nil collector discards it.
func (s *StatsCollector) Add(provider types.ProviderId, typ StatType, num uint) {
	if s == nil || num == 0 {
		return
	}
	s.Chan <- AddStat{Provider: provider, Type: typ, Num: num}
}
