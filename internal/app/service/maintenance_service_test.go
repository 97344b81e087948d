package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaintenanceToggle(t *testing.T) {
	svc := NewMaintenanceService()
	assert.False(t, svc.Enabled())

	assert.Equal(t, MsgMaintenanceEnabled, svc.Toggle())
	assert.True(t, svc.Enabled())

	assert.Equal(t, MsgMaintenanceDisabled, svc.Toggle())
	assert.False(t, svc.Enabled())
}

func TestMaintenanceToggle_Concurrent(t *testing.T) {
	svc := NewMaintenanceService()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.Toggle()
		}()
	}
	wg.Wait()
	assert.False(t, svc.Enabled(), "an even number of toggles leaves the flag off")
}
