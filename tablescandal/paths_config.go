package tablescandal

import (
	"path/filepath"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/gofs"
	"github.com/jamesrr39/goutil/userextra"
)

const DefaultRootDir = "~/.local/share/github.com/jamesrr39/tablescan/"

type PathsConfig struct {
	DataDir    string
	TraceDir   string
	ProfileDir string
}

// NewPathsConfig lays the directories out under rootDir. A leading "~" is expanded to the user's home directory.
func NewPathsConfig(rootDir string) (*PathsConfig, errorsx.Error) {
	rootDir, err := userextra.ExpandUser(rootDir)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	return &PathsConfig{
		DataDir:    filepath.Join(rootDir, "data"),
		TraceDir:   filepath.Join(rootDir, "trace"),
		ProfileDir: filepath.Join(rootDir, "profile"),
	}, nil
}

func (pc *PathsConfig) EnsurePaths(fs gofs.Fs) errorsx.Error {
	for _, dirPath := range []string{pc.DataDir, pc.TraceDir, pc.ProfileDir} {
		err := fs.MkdirAll(dirPath, 0755)
		if err != nil {
			return errorsx.Wrap(err, "dirPath", dirPath)
		}
	}

	return nil
}
