// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"errors"
	"io"
	"io/fs"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/require"
)

type fsFunc func(string) (fs.File, error)

func (f fsFunc) Open(path string) (fs.File, error) {
	return f(path)
}

func TestFileReader_Read(t *testing.T) {
	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the fs.FS fails to open the file", func(t *testing.T) {
			openErr := errors.New("failed to open")
			fsys := fsFunc(func(s string) (fs.File, error) {
				return nil, openErr
			})

			_, err := io.ReadAll(NewFileReader(fsys, "config.yaml"))
			require.ErrorIs(t, err, openErr)
		})

		t.Run("if the file does not exist", func(t *testing.T) {
			_, err := io.ReadAll(NewFileReader(fstest.MapFS{}, "config.yaml"))
			require.ErrorIs(t, err, fs.ErrNotExist)
		})
	})
}

func TestFileReader_Close(t *testing.T) {
	t.Run("will not return an error", func(t *testing.T) {
		t.Run("if Close is called before the underlying file has been opened", func(t *testing.T) {
			fsys := fsFunc(func(s string) (fs.File, error) {
				return nil, nil
			})

			err := NewFileReader(fsys, "config.yaml").Close()
			require.NoError(t, err)
		})
	})
}

func TestFromFile(t *testing.T) {
	fsys := fstest.MapFS{
		"strata.yaml": {Data: []byte("id: org.example.Editor\ninactivity_timeout: 5s\n")},
		"strata.json": {Data: []byte(`{"id": "org.example.Viewer"}`)},
		"tmpl.yaml":   {Data: []byte(`id: {{ env "APP_ID" | default "org.example.Default" }}`)},
	}

	t.Run("will decode yaml", func(t *testing.T) {
		m, err := Read(FromFile(fsys, "strata.yaml"))
		require.NoError(t, err)

		var cfg settings
		require.NoError(t, m.Unmarshal(&cfg))
		require.Equal(t, "org.example.Editor", cfg.ID)
		require.Equal(t, 5*time.Second, cfg.InactivityTimeout)
	})

	t.Run("will decode json", func(t *testing.T) {
		t.Run("if the file name ends in .json", func(t *testing.T) {
			m, err := Read(FromFile(fsys, "strata.json"))
			require.NoError(t, err)

			var cfg settings
			require.NoError(t, m.Unmarshal(&cfg))
			require.Equal(t, "org.example.Viewer", cfg.ID)
		})
	})

	t.Run("will render the file as a template", func(t *testing.T) {
		testCases := []struct {
			Name string
			Env  map[string]string
			ID   string
		}{
			{Name: "with the variable set", Env: map[string]string{"APP_ID": "org.example.Env"}, ID: "org.example.Env"},
			{Name: "with the variable unset", ID: "org.example.Default"},
		}

		for _, testCase := range testCases {
			t.Run(testCase.Name, func(t *testing.T) {
				getenv := func(k string) string {
					return testCase.Env[k]
				}

				m, err := Read(FromFile(fsys, "tmpl.yaml", Template(TemplateEnv(getenv))))
				require.NoError(t, err)

				var cfg settings
				require.NoError(t, m.Unmarshal(&cfg))
				require.Equal(t, testCase.ID, cfg.ID)
			})
		}
	})

	t.Run("will apply nothing", func(t *testing.T) {
		t.Run("if an optional file does not exist", func(t *testing.T) {
			m, err := Read(
				Map{"id": "org.example.Editor"},
				FromFile(fsys, "missing.json", Optional(), Template()),
			)
			require.NoError(t, err)

			var cfg settings
			require.NoError(t, m.Unmarshal(&cfg))
			require.Equal(t, "org.example.Editor", cfg.ID)
		})
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if a required file does not exist", func(t *testing.T) {
			_, err := Read(FromFile(fsys, "missing.yaml"))
			require.ErrorIs(t, err, fs.ErrNotExist)
		})
	})
}
