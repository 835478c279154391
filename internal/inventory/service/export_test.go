package service

import (
	"context"
	"time"
)

// Test hooks for the external service_test package.

func (s *InventoryService) SetClock(now func() time.Time) { s.now = now }
func (s *HierarchyService) SetClock(now func() time.Time) { s.now = now }
func (s *CheckService) SetClock(now func() time.Time)     { s.now = now }
func (s *ReportService) SetClock(now func() time.Time)    { s.now = now }
func (n *Notifier) SetClock(now func() time.Time)         { n.now = now }

func (j *ExpiryJob) SetTenantLister(fn func(ctx context.Context) ([]string, error)) {
	j.listTenants = fn
}

var ParseSuggestions = parseSuggestions
var ComputeStats = computeStats
