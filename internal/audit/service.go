package audit

import (
	"fmt"

	"github.com/ryanwelchtech/iamd-threat-detection-platform/pkg/logger"
)

// Service owns the append-only audit log
type Service struct {
	storage Storage
	logger  *logger.Logger
}

// NewService creates a new audit-log service
func NewService(storage Storage, log *logger.Logger) *Service {
	return &Service{
		storage: storage,
		logger:  log.Named("audit"),
	}
}

// Append stores a single audit event
func (s *Service) Append(event *Event) error {
	if event.EventID == "" {
		return fmt.Errorf("audit event missing event_id")
	}
	if err := s.storage.Append(event); err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}

	s.logger.Debug("Audit event stored",
		logger.String("event_id", event.EventID),
		logger.String("source", event.SourceService),
		logger.String("action", event.Action))
	return nil
}

// GetRecent returns the most recent events, newest first
func (s *Service) GetRecent(limit int) ([]*Event, error) {
	return s.storage.GetRecent(limit)
}

// Count returns the total number of stored events
func (s *Service) Count() (int, error) {
	return s.storage.Count()
}

// Reset clears the audit log
func (s *Service) Reset() error {
	if err := s.storage.Reset(); err != nil {
		return fmt.Errorf("failed to reset audit log: %w", err)
	}
	s.logger.Info("Audit log reset")
	return nil
}
