package cmd

import (
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/conneroisu/jah/internal/config"
	jaherrors "github.com/conneroisu/jah/internal/errors"
	"github.com/conneroisu/jah/internal/logging"
	"github.com/conneroisu/jah/internal/packages"
	"github.com/conneroisu/jah/internal/runtime"
)

// project is everything a command needs to act on one jah project.
type project struct {
	settings *config.Settings
	logger   logging.Logger
	fs       afero.Fs
	queue    *packages.Queue
}

// loadProject reads the settings, the project config and the runtime,
// and locates every declared library. Any failure is fatal to the command.
func loadProject() (*project, error) {
	settings, err := config.LoadSettings()
	if err != nil {
		return nil, err
	}
	logger := settings.Logger()

	return openProject(afero.NewOsFs(), settings, logger)
}

func openProject(fs afero.Fs, settings *config.Settings, logger logging.Logger) (*project, error) {
	file, err := filepath.Abs(settings.ConfigFile)
	if err != nil {
		return nil, err
	}
	if ok, _ := afero.Exists(fs, file); !ok {
		return nil, jaherrors.NewIOError(jaherrors.ErrCodeReadFailed, "project config not found", nil).WithFile(file)
	}
	primary := packages.New(fs, file)

	var (
		rt          *packages.Package
		runtimeRoot string
	)
	if settings.Runtime != "" {
		rt, err = runtime.LoadDir(fs, settings.Runtime)
		if err != nil {
			return nil, err
		}
		runtimeRoot = rt.Root
	} else {
		rt, err = runtime.Load()
		if err != nil {
			return nil, err
		}
	}

	locator := packages.NewLocator(fs, primary.Root, runtimeRoot, logger)
	queue, err := packages.NewQueue(primary, rt, locator, logger)
	if err != nil {
		return nil, err
	}

	return &project{
		settings: settings,
		logger:   logger,
		fs:       fs,
		queue:    queue,
	}, nil
}
