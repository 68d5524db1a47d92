package system

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/julianstephens/habitcraft/internal/cli"
	"github.com/julianstephens/habitcraft/internal/config"
	"github.com/julianstephens/habitcraft/internal/constants"
	"github.com/julianstephens/habitcraft/internal/storage"
	"github.com/julianstephens/habitcraft/internal/storage/sqlite"
)

type InitCmd struct {
	Force  bool   `help:"Force reset by deleting the existing local database before initialization."`
	Source string `help:"Another habitcraft SQLite database to copy data from." type:"existingfile"`
}

func (c *InitCmd) Run(ctx *cli.Context) error {
	if c.Source != "" {
		absSource, _ := filepath.Abs(c.Source)
		absData, _ := filepath.Abs(ctx.DataPath)
		if absSource == absData {
			return fmt.Errorf("source and destination are the same: %s", ctx.DataPath)
		}
	}

	if c.Force {
		if err := removeDatabase(ctx); err != nil {
			return err
		}
	}

	if _, err := os.Stat(ctx.ConfigPath); os.IsNotExist(err) && ctx.ConfigPath != "" {
		if err := config.Save(ctx.ConfigPath, ctx.Config); err != nil {
			return err
		}
		ctx.Printf("Wrote default configuration to: %s\n", ctx.ConfigPath)
	}

	p, err := ctx.Storage(ctx.Ctx())
	if err != nil {
		return err
	}
	ctx.Printf("Initialized %s storage at: %s\n", constants.AppName, p.Path())

	if c.Source != "" {
		ctx.Printf("Copying data from: %s\n", c.Source)
		n, err := copyFrom(ctx.Ctx(), c.Source, p)
		if err != nil {
			return fmt.Errorf("copy failed: %w", err)
		}
		ctx.Printf("  Copied %d values\n", n)
	}

	owner, err := ctx.Owner(ctx.Ctx())
	if err != nil {
		return err
	}
	ctx.Printf("This device syncs as: %s\n", owner)
	return nil
}

// removeDatabase deletes the local database. A badger directory is only
// removed when it looks like one.
func removeDatabase(ctx *cli.Context) error {
	if err := ctx.CloseStorage(); err != nil {
		return fmt.Errorf("failed to close existing database: %w", err)
	}
	path := ctx.DataPath
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to access existing database: %w", err)
	}

	if info.IsDir() {
		if _, err := os.Stat(filepath.Join(path, "MANIFEST")); err != nil {
			return fmt.Errorf("refusing to delete %s: not a badger database", path)
		}
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("failed to delete existing database: %w", err)
		}
	} else {
		for _, suffix := range []string{"", "-wal", "-shm"} {
			if err := os.Remove(path + suffix); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to delete existing database: %w", err)
			}
		}
	}
	ctx.Printf("Deleted existing database at: %s\n", path)
	return nil
}

// copyFrom copies every namespace of a SQLite database into dst.
func copyFrom(ctx context.Context, sourcePath string, dst storage.Provider) (int, error) {
	src := sqlite.NewStore(sourcePath)
	if err := src.Init(ctx); err != nil {
		return 0, fmt.Errorf("failed to open source database: %w", err)
	}
	defer src.Close()

	namespaces, err := src.Namespaces(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, ns := range namespaces {
		keys, err := src.Keys(ctx, ns)
		if err != nil {
			return n, err
		}
		for _, key := range keys {
			v, err := src.Get(ctx, ns, key)
			if err != nil {
				return n, err
			}
			if err := dst.Put(ctx, ns, key, v); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}
