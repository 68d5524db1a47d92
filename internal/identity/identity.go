// Package identity resolves which owner partition this device reads and
// writes, and links devices together through short-lived sync codes.
package identity

import (
	"context"
	"crypto/rand"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/habitcraft/internal/constants"
	"github.com/julianstephens/habitcraft/internal/errors"
	"github.com/julianstephens/habitcraft/internal/logger"
	"github.com/julianstephens/habitcraft/internal/remote"
	"github.com/julianstephens/habitcraft/internal/storage"
	"github.com/julianstephens/habitcraft/internal/utils"
)

const maxCodeAttempts = 5

// ErrNoRemote means linking was attempted without a remote store.
var ErrNoRemote = stderrors.New("no remote store configured")

type Config struct {
	Storage storage.Provider
	Remote  remote.Store // nil disables sync codes
	Clock   utils.Clock
	Timeout time.Duration
	// Random supplies code entropy. Defaults to crypto/rand.
	Random io.Reader
}

// record is the device's persisted identity.
type record struct {
	DeviceID    string     `json:"device_id"`
	LinkedOwner string     `json:"linked_owner,omitempty"`
	LinkedAt    *time.Time `json:"linked_at,omitempty"`
}

type Linker struct {
	cfg Config

	mu     sync.Mutex
	cached *record
}

func New(cfg Config) (*Linker, error) {
	if cfg.Storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = utils.SystemClock{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.DefaultSyncTimeout
	}
	if cfg.Random == nil {
		cfg.Random = rand.Reader
	}
	return &Linker{cfg: cfg}, nil
}

// PlatformOwner builds the owner id for an account on an external platform,
// e.g. PlatformOwner("tg", "42") is "tg-42".
func PlatformOwner(platform, userID string) (string, error) {
	platform = strings.TrimSpace(platform)
	userID = strings.TrimSpace(userID)
	if platform == "" || userID == "" {
		return "", errors.NewValidation("owner", "platform and user id are required")
	}
	owner := platform + "-" + userID
	if strings.Contains(owner, "/") {
		return "", errors.NewValidation("owner", "must not contain '/'")
	}
	return owner, nil
}

// IsAnonymous reports whether owner is a device-generated id.
func IsAnonymous(owner string) bool {
	return strings.HasPrefix(owner, constants.AnonymousOwnerPrefix+"-")
}

// loadLocked returns the identity record, creating and persisting a device id
// on first use. A failed write still yields a usable in-memory record.
func (l *Linker) loadLocked(ctx context.Context) (*record, error) {
	if l.cached != nil {
		return l.cached, nil
	}

	var rec record
	found, err := storage.GetJSON(ctx, l.cfg.Storage, constants.DeviceNamespace, constants.CollectionIdentity, &rec)
	if err != nil {
		return nil, &errors.PersistenceError{Op: "read", Err: err}
	}
	if found && rec.DeviceID != "" {
		l.cached = &rec
		return l.cached, nil
	}

	rec.DeviceID = constants.AnonymousOwnerPrefix + "-" + uuid.NewString()
	l.cached = &rec
	logger.Info("Generated device id", "device_id", rec.DeviceID)
	return l.cached, l.saveLocked(ctx)
}

func (l *Linker) saveLocked(ctx context.Context) error {
	if err := storage.PutJSON(ctx, l.cfg.Storage, constants.DeviceNamespace, constants.CollectionIdentity, l.cached); err != nil {
		logger.Warn("Failed to persist identity", "error", err)
		return &errors.PersistenceError{Op: "write", Err: err}
	}
	return nil
}

// DeviceID returns this device's anonymous owner id, generating it once.
func (l *Linker) DeviceID(ctx context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, err := l.loadLocked(ctx)
	if rec == nil {
		return "", err
	}
	return rec.DeviceID, err
}

// Owner returns the linked owner when one was redeemed, else the device id.
func (l *Linker) Owner(ctx context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, err := l.loadLocked(ctx)
	if rec == nil {
		return "", err
	}
	if rec.LinkedOwner != "" {
		return rec.LinkedOwner, err
	}
	return rec.DeviceID, err
}

// Linked reports the redeemed owner and when it was linked.
func (l *Linker) Linked(ctx context.Context) (owner string, at time.Time, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, err := l.loadLocked(ctx)
	if rec == nil || rec.LinkedOwner == "" {
		return "", time.Time{}, err
	}
	if rec.LinkedAt != nil {
		at = *rec.LinkedAt
	}
	return rec.LinkedOwner, at, err
}

// NormalizeCode upper-cases a typed code and drops spaces and dashes.
func NormalizeCode(code string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(code) {
		if r == ' ' || r == '-' || r == '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// IsWellFormedCode reports whether code (already normalized) could have been
// minted by GenerateCode.
func IsWellFormedCode(code string) bool {
	if len(code) != constants.SyncCodeLength {
		return false
	}
	for _, r := range code {
		if !strings.ContainsRune(constants.SyncCodeAlphabet, r) {
			return false
		}
	}
	return true
}

// GenerateCode draws a code from the unambiguous alphabet. The alphabet has
// 32 symbols, so byte%32 is uniform.
func GenerateCode(random io.Reader) (string, error) {
	buf := make([]byte, constants.SyncCodeLength)
	if _, err := io.ReadFull(random, buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	alphabet := constants.SyncCodeAlphabet
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf), nil
}

// CreateSyncCode mints a new code for owner that expires after 24 hours.
// Earlier codes stay valid until their own expiry.
func (l *Linker) CreateSyncCode(ctx context.Context, owner string) (remote.SyncCode, error) {
	if owner == "" {
		return remote.SyncCode{}, errors.NewValidation("owner", "must not be empty")
	}
	if l.cfg.Remote == nil {
		return remote.SyncCode{}, &errors.RemoteUnavailableError{Op: "create sync code", Err: ErrNoRemote}
	}

	ctx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
	defer cancel()

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := GenerateCode(l.cfg.Random)
		if err != nil {
			return remote.SyncCode{}, err
		}
		now := l.cfg.Clock.Now()
		sc := remote.SyncCode{
			Code:      code,
			Owner:     owner,
			CreatedAt: now,
			ExpiresAt: now.Add(constants.SyncCodeTTL),
		}
		err = l.cfg.Remote.PutSyncCode(ctx, sc)
		if err == nil {
			logger.Info("Created sync code", "owner", owner, "expires_at", sc.ExpiresAt)
			return sc, nil
		}
		if !stderrors.Is(err, remote.ErrCodeExists) {
			return remote.SyncCode{}, &errors.RemoteUnavailableError{Op: "create sync code", Err: err}
		}
		logger.Debug("Sync code collision, retrying", "attempt", attempt)
	}
	return remote.SyncCode{}, fmt.Errorf("could not mint a unique sync code after %d attempts", maxCodeAttempts)
}

// RedeemSyncCode links this device to the owner behind code. Unknown and
// expired codes are a NotFoundError; an unreachable remote is a
// RemoteUnavailableError. In both cases the current owner is unchanged.
func (l *Linker) RedeemSyncCode(ctx context.Context, code string) (string, error) {
	normalized := NormalizeCode(code)
	if !IsWellFormedCode(normalized) {
		return "", errors.NewNotFound("sync code", code)
	}
	if l.cfg.Remote == nil {
		return "", &errors.RemoteUnavailableError{Op: "redeem sync code", Err: ErrNoRemote}
	}

	lookupCtx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
	owner, err := l.cfg.Remote.LookupSyncCode(lookupCtx, normalized, l.cfg.Clock.Now())
	cancel()
	if stderrors.Is(err, remote.ErrCodeNotFound) {
		return "", errors.NewNotFound("sync code", code)
	}
	if err != nil {
		return "", &errors.RemoteUnavailableError{Op: "redeem sync code", Err: err}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	rec, err := l.loadLocked(ctx)
	if rec == nil {
		return "", err
	}
	now := l.cfg.Clock.Now()
	if owner == rec.DeviceID {
		rec.LinkedOwner = ""
		rec.LinkedAt = nil
	} else {
		rec.LinkedOwner = owner
		rec.LinkedAt = &now
	}
	logger.Info("Linked device", "device_id", rec.DeviceID, "owner", owner)
	return owner, l.saveLocked(ctx)
}

// Unlink reverts to the device id. It is a no-op when nothing is linked.
func (l *Linker) Unlink(ctx context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, err := l.loadLocked(ctx)
	if rec == nil {
		return "", err
	}
	if rec.LinkedOwner == "" {
		return rec.DeviceID, nil
	}
	rec.LinkedOwner = ""
	rec.LinkedAt = nil
	return rec.DeviceID, l.saveLocked(ctx)
}

// PurgeExpiredCodes removes expired codes from the remote lookup table.
func (l *Linker) PurgeExpiredCodes(ctx context.Context) (int, error) {
	if l.cfg.Remote == nil {
		return 0, &errors.RemoteUnavailableError{Op: "purge sync codes", Err: ErrNoRemote}
	}
	ctx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
	defer cancel()
	n, err := l.cfg.Remote.PurgeExpiredCodes(ctx, l.cfg.Clock.Now())
	if err != nil {
		return 0, &errors.RemoteUnavailableError{Op: "purge sync codes", Err: err}
	}
	return n, nil
}
