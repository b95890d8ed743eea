package config

import (
	"errors"
	"fmt"
	"time"
	_ "time/tzdata" // service.timezone must resolve without host zoneinfo

	"github.com/robfig/cron/v3"

	"github.com/rickgao/yf-price-fetcher/internal/model"
)

// Validate checks that all required fields are set and values are valid.
func (c *FetcherConfig) Validate() error {
	if c.Service.Name == "" {
		return errors.New("service.name is required")
	}
	if _, err := time.LoadLocation(c.Service.Timezone); err != nil {
		return fmt.Errorf("service.timezone %q is invalid: %w", c.Service.Timezone, err)
	}

	if err := c.Database.Postgres.validate("database.postgres"); err != nil {
		return err
	}

	if c.Provider.Concurrency < 1 {
		return errors.New("provider.concurrency must be >= 1")
	}

	if c.Fetch.ChunkSize < 1 {
		return errors.New("fetch.chunk_size must be >= 1")
	}
	if c.Fetch.UseStartEnd {
		start, end, err := c.Fetch.Range()
		if err != nil {
			return err
		}
		if start == nil {
			return errors.New("fetch.start_date is required when fetch.use_start_end is set")
		}
		if end != nil && !start.Before(*end) {
			return fmt.Errorf("fetch.start_date (%s) must be before fetch.end_date (%s)", start, end)
		}
	} else if c.Fetch.Period == "" {
		return errors.New("fetch.period is required when fetch.use_start_end is not set")
	}

	if _, err := cron.ParseStandard(c.Schedule.Spec); err != nil {
		return fmt.Errorf("schedule.spec %q is invalid: %w", c.Schedule.Spec, err)
	}

	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	if c.Cache.Mongo.LifetimeDays < 0 {
		return errors.New("cache.mongo.lifetime_days must be >= 0")
	}

	return nil
}

// Range parses the explicit start and end dates. Unset dates are nil.
func (f FetchConfig) Range() (start, end *model.Date, err error) {
	if f.StartDate != "" {
		d, err := model.ParseDate(f.StartDate)
		if err != nil {
			return nil, nil, fmt.Errorf("fetch.start_date: %w", err)
		}
		start = &d
	}
	if f.EndDate != "" {
		d, err := model.ParseDate(f.EndDate)
		if err != nil {
			return nil, nil, fmt.Errorf("fetch.end_date: %w", err)
		}
		end = &d
	}
	return start, end, nil
}

// Location returns the service timezone.
func (s ServiceConfig) Location() (*time.Location, error) {
	return time.LoadLocation(s.Timezone)
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
