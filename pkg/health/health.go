package health

import (
	"context"

	"gorm.io/gorm"

	"github.com/gantryio/gantry/pkg/repository"
)

// Checker probes one dependency of the running service.
type Checker interface {
	// Name identifies the check in the health report.
	Name() string
	// Ready reports whether the dependency can serve traffic right now.
	Ready(ctx context.Context) error
	// Live reports whether the dependency is expected to recover on its
	// own. A false value means the process should be restarted.
	Live() bool
}

// AppCheck reports the process itself. It is ready as soon as it runs.
type AppCheck struct{}

func (AppCheck) Name() string                { return "app" }
func (AppCheck) Ready(context.Context) error { return nil }
func (AppCheck) Live() bool                  { return true }

// DatabaseCheck probes the database with a trivial round trip.
type DatabaseCheck struct {
	db *gorm.DB
}

func NewDatabaseCheck(db *gorm.DB) *DatabaseCheck {
	return &DatabaseCheck{db: db}
}

func (c *DatabaseCheck) Name() string { return "database" }

func (c *DatabaseCheck) Ready(ctx context.Context) error {
	return repository.CheckHealth(ctx, c.db)
}

func (c *DatabaseCheck) Live() bool { return true }

// Pinger is the slice of a cache client the health probe needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RedisCheck probes a Redis-backed dependency with PING.
type RedisCheck struct {
	pinger Pinger
}

func NewRedisCheck(pinger Pinger) *RedisCheck {
	return &RedisCheck{pinger: pinger}
}

func (c *RedisCheck) Name() string { return "redis" }

func (c *RedisCheck) Ready(ctx context.Context) error {
	return c.pinger.Ping(ctx)
}

func (c *RedisCheck) Live() bool { return true }
