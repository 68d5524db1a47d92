package backups

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/julianstephens/habitcraft/internal/cli"
	"github.com/julianstephens/habitcraft/internal/constants"
)

type BackupCreateCmd struct{}

func (c *BackupCreateCmd) Run(ctx *cli.Context) error {
	mgr, err := ctx.Backups()
	if err != nil {
		return err
	}
	// Make sure the database exists and is migrated before snapshotting it.
	if _, err := ctx.Storage(ctx.Ctx()); err != nil {
		return err
	}

	backupPath, err := mgr.Create()
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	ctx.Printf("%s Backup created: %s\n", cli.SuccessStyle.Render("✓"), filepath.Base(backupPath))
	return nil
}

type BackupListCmd struct{}

func (c *BackupListCmd) Run(ctx *cli.Context) error {
	mgr, err := ctx.Backups()
	if err != nil {
		return err
	}

	backups, err := mgr.List()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}

	if len(backups) == 0 {
		ctx.Println("No backups found.")
		ctx.Printf("Backups are stored in: %s\n", mgr.Dir())
		return nil
	}

	ctx.Printf("Available backups (%d total, keeping most recent %d):\n\n", len(backups), constants.MaxBackups)
	for _, b := range backups {
		sizeKB := float64(b.Size) / 1024.0
		timestamp := b.Timestamp.Format("2006-01-02 15:04:05")
		filename := filepath.Base(b.Path)
		ctx.Printf("  %s  %s  (%.1f KB)\n", timestamp, filename, sizeKB)
	}
	ctx.Printf("\nBackup directory: %s\n", mgr.Dir())

	return nil
}

type BackupRestoreCmd struct {
	BackupFile string `arg:"" help:"Path or filename of the backup to restore."`
	Yes        bool   `short:"y" help:"Skip the confirmation."`
}

// resolve finds the backup by path, or by file name inside the backup directory.
func (c *BackupRestoreCmd) resolve(dir string) (string, error) {
	backupPath := c.BackupFile
	if !filepath.IsAbs(backupPath) {
		possiblePath := filepath.Join(dir, c.BackupFile)
		if _, err := os.Stat(possiblePath); err == nil {
			backupPath = possiblePath
		}
	}
	if _, err := os.Stat(backupPath); os.IsNotExist(err) {
		return "", fmt.Errorf("backup file not found: %s", backupPath)
	}
	return backupPath, nil
}

func (c *BackupRestoreCmd) Run(ctx *cli.Context) error {
	mgr, err := ctx.Backups()
	if err != nil {
		return err
	}
	backupPath, err := c.resolve(mgr.Dir())
	if err != nil {
		return err
	}

	if !c.Yes {
		ctx.Println(cli.WarningStyle.Render("⚠️  WARNING: This will replace your current database with the backup."))
		ctx.Println("A backup of your current database will be created before restoring.")
		ok, err := ctx.Confirm("Restore from "+filepath.Base(backupPath)+"?", "Other devices are unaffected until the next sync.", false)
		if err != nil {
			return err
		}
		if !ok {
			ctx.Println("Restore cancelled.")
			return nil
		}
	}

	// Close the current store connection before restoring
	if err := ctx.CloseStorage(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close database connection: %v\n", err)
	}

	previous, err := mgr.Restore(backupPath)
	if err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}

	ctx.Printf("%s Database restored successfully!\n", cli.SuccessStyle.Render("✓"))
	if previous != "" {
		ctx.Printf("Previous database saved as %s\n", filepath.Base(previous))
	}
	ctx.Printf("Restart any running %s processes to use the restored database.\n", constants.AppName)
	return nil
}
