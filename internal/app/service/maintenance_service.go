package service

import (
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

const (
	MsgMaintenanceEnabled  = "Enabled maintenance mode"
	MsgMaintenanceDisabled = "Disabled maintenance mode"
)

// MaintenanceService holds the process-wide maintenance switch. It is not
// persisted; a restart clears it.
type MaintenanceService struct {
	enabled atomic.Bool
}

func NewMaintenanceService() *MaintenanceService {
	return &MaintenanceService{}
}

func (s *MaintenanceService) Enabled() bool {
	return s.enabled.Load()
}

// Toggle flips the switch and returns the message for the new state.
func (s *MaintenanceService) Toggle() string {
	for {
		old := s.enabled.Load()
		if s.enabled.CompareAndSwap(old, !old) {
			log.WithField("enabled", !old).Warn("maintenance mode toggled")
			if old {
				return MsgMaintenanceDisabled
			}
			return MsgMaintenanceEnabled
		}
	}
}
