package constants

import "time"

const (
	AppName            = "habitcraft"
	DefaultKeyringUser = "database-connection"
	AdvisorKeyringUser = "advisor-api-key"
	DefaultConfigDir   = "~/.config/habitcraft"
	DefaultConfigPath  = "~/.config/habitcraft/config.yaml"
	DefaultDataPath    = "~/.config/habitcraft/habitcraft.db"
	Version            = "v0.1.0"

	// DBConnectionEnv overrides the remote connection string when set.
	DBConnectionEnv = "HABITCRAFT_DB_CONNECTION"
	// AdvisorAPIKeyEnv overrides the advisor API key when set.
	AdvisorAPIKeyEnv = "HABITCRAFT_ADVISOR_API_KEY"

	// Storage collections. Each is one whole-collection value under the
	// owner's namespace.
	CollectionHabits       = "habits"
	CollectionAdvisorQuota = "advisor_quota"
	CollectionIdentity     = "identity"

	// DeviceNamespace holds values that belong to the device rather than an owner.
	DeviceNamespace = "device"

	// Habit limits
	DefaultMaxHabits   = 50
	MaxTitleLength     = 120
	MaxTextLength      = 1000
	MaxGoalDays        = 3650
	StreakSafetyBound  = 365
	DefaultCalendarLen = 30

	// Sync constants
	DefaultSyncInterval = 30 * time.Second
	DefaultSyncTimeout  = 10 * time.Second
	SyncCodeLength      = 8
	SyncCodeAlphabet    = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	SyncCodeTTL         = 24 * time.Hour

	// Identity prefixes
	AnonymousOwnerPrefix = "local"

	// Lockfile
	LockfileName = "habitcraft.lock"

	// Backup constants
	MaxBackups       = 14
	BackupDirName    = "backups"
	BackupFilePrefix = "habitcraft-"
	BackupFileSuffix = ".db"
	ExportVersion    = 1
)
