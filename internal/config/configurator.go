package config

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
	"syscall"

	"go.uber.org/zap"

	"github.com/calvinalkan/xlease/internal/volumedb"
)

// Status is the tri-valued outcome of a configuration check: the service
// must never treat an unknown outcome as a hard failure at start-up, so a
// check that cannot determine an answer reports StatusMaybe rather than
// erroring.
type Status int

const (
	// StatusNo means the condition definitely does not hold; configuration
	// is needed.
	StatusNo Status = iota
	// StatusYes means the condition definitely holds.
	StatusYes
	// StatusMaybe means the check could not be completed (e.g. permission
	// denied stat-ing the path). Callers must not crash service start-up on
	// this outcome.
	StatusMaybe
)

func (s Status) String() string {
	switch s {
	case StatusYes:
		return "YES"
	case StatusNo:
		return "NO"
	case StatusMaybe:
		return "MAYBE"
	default:
		return "MAYBE"
	}
}

// Configurator runs the idempotent existence/ownership/version checks
// (and the create/fix actions) the managed-volume database file needs
// before the service that depends on it can start safely.
type Configurator struct {
	cfg Config
	log *zap.SugaredLogger
}

// NewConfigurator returns a Configurator for cfg.
func NewConfigurator(cfg Config) *Configurator {
	return &Configurator{cfg: cfg, log: zap.NewNop().Sugar()}
}

// WithLogger returns a copy of c that logs through log.
func (c *Configurator) WithLogger(log *zap.SugaredLogger) *Configurator {
	cp := *c
	cp.log = log

	return &cp
}

// CheckExists reports whether cfg.DBPath exists.
func (c *Configurator) CheckExists() Status {
	_, err := os.Stat(c.cfg.DBPath)

	switch {
	case err == nil:
		return StatusYes
	case os.IsNotExist(err):
		return StatusNo
	default:
		c.log.Warnw("cannot stat managed-volume database path", "path", c.cfg.DBPath, "error", err)

		return StatusMaybe
	}
}

// CheckOwnership reports whether cfg.DBPath is owned by
// (cfg.OwnerUser, cfg.OwnerGrp).
func (c *Configurator) CheckOwnership() Status {
	info, err := os.Stat(c.cfg.DBPath)
	if err != nil {
		c.log.Warnw("cannot stat managed-volume database path", "path", c.cfg.DBPath, "error", err)

		return StatusMaybe
	}

	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return StatusMaybe
	}

	wantUID, wantGID, err := lookupOwner(c.cfg.OwnerUser, c.cfg.OwnerGrp)
	if err != nil {
		c.log.Warnw("cannot resolve configured owner", "user", c.cfg.OwnerUser, "group", c.cfg.OwnerGrp, "error", err)

		return StatusMaybe
	}

	if stat.Uid == wantUID && stat.Gid == wantGID {
		return StatusYes
	}

	return StatusNo
}

// CheckVersion reports whether cfg.DBPath is a managed-volume database at
// the schema version this build expects.
func (c *Configurator) CheckVersion() Status {
	db, err := volumedb.Open(c.cfg.DBPath)
	if err != nil {
		return StatusNo
	}
	defer db.Close()

	version, err := db.VersionInfo()
	if err != nil {
		return StatusNo
	}

	if version.Version != currentConfiguratorSchemaVersion {
		return StatusNo
	}

	return StatusYes
}

// currentConfiguratorSchemaVersion mirrors volumedb's own schema version;
// kept as a distinct constant since the configurator validates it without
// importing volumedb's unexported internals.
const currentConfiguratorSchemaVersion = 1

// Create provisions cfg.DBPath as a fresh managed-volume database and sets
// its ownership to (cfg.OwnerUser, cfg.OwnerGrp). Create is safe to call
// when the path already exists and is already correctly configured.
func (c *Configurator) Create() error {
	db, err := volumedb.Create(c.cfg.DBPath)
	if err != nil {
		return fmt.Errorf("config: creating managed-volume database: %w", err)
	}

	if err := db.Close(); err != nil {
		return fmt.Errorf("config: closing freshly created managed-volume database: %w", err)
	}

	return c.chownToConfiguredOwner()
}

// Fix brings an existing, wrongly-owned cfg.DBPath back into the
// configured (owner-user, owner-group) without touching the database
// contents. If cfg.DBPath does not exist, Fix provisions it via [Create].
func (c *Configurator) Fix() error {
	switch c.CheckExists() {
	case StatusNo:
		return c.Create()
	case StatusMaybe:
		return fmt.Errorf("config: cannot fix %s: existence is unknown", c.cfg.DBPath)
	case StatusYes:
	}

	return c.chownToConfiguredOwner()
}

func (c *Configurator) chownToConfiguredOwner() error {
	uid, gid, err := lookupOwner(c.cfg.OwnerUser, c.cfg.OwnerGrp)
	if err != nil {
		return fmt.Errorf("config: resolving owner %s:%s: %w", c.cfg.OwnerUser, c.cfg.OwnerGrp, err)
	}

	if err := os.Chown(c.cfg.DBPath, int(uid), int(gid)); err != nil {
		return fmt.Errorf("config: chown %s to %s:%s: %w", c.cfg.DBPath, c.cfg.OwnerUser, c.cfg.OwnerGrp, err)
	}

	c.log.Infow("fixed managed-volume database ownership", "path", c.cfg.DBPath,
		"owner_user", c.cfg.OwnerUser, "owner_group", c.cfg.OwnerGrp)

	return nil
}

func lookupOwner(userName, groupName string) (uid, gid uint32, err error) {
	u, err := user.Lookup(userName)
	if err != nil {
		return 0, 0, fmt.Errorf("looking up user %s: %w", userName, err)
	}

	g, err := user.LookupGroup(groupName)
	if err != nil {
		return 0, 0, fmt.Errorf("looking up group %s: %w", groupName, err)
	}

	parsedUID, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing uid %s: %w", u.Uid, err)
	}

	parsedGID, err := strconv.ParseUint(g.Gid, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing gid %s: %w", g.Gid, err)
	}

	return uint32(parsedUID), uint32(parsedGID), nil
}
