package finance

import (
	"context"
	"fmt"
	"strings"

	"github.com/esathiyasekhar/FinanceTracker/internal/remote"
	"github.com/esathiyasekhar/FinanceTracker/internal/schema"
)

// Settings returns the key/value pairs of the Config table.
func (s *Service) Settings(ctx context.Context) (map[string]string, error) {
	c, err := s.store.Load(ctx, schema.Config)
	if err != nil {
		return nil, fmt.Errorf("Settings: %w", err)
	}
	out := make(map[string]string, c.Len())
	for _, r := range c.Records {
		if k := strings.TrimSpace(r["Key"]); k != "" {
			out[k] = r["Value"]
		}
	}
	return out, nil
}

// SetSetting stores value under key, replacing any earlier value.
func (s *Service) SetSetting(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if err := required("key", key); err != nil {
		return err
	}
	defer s.lock()()

	c, err := s.store.LoadFresh(ctx, schema.Config)
	if err != nil {
		return fmt.Errorf("SetSetting: %w", err)
	}
	records := c.Filter(func(r remote.Record) bool {
		return !strings.EqualFold(strings.TrimSpace(r["Key"]), key)
	})
	records = append(records, remote.Record{"Key": key, "Value": value})
	if err := s.store.Replace(ctx, c, records); err != nil {
		return fmt.Errorf("SetSetting: %w", err)
	}
	return nil
}
