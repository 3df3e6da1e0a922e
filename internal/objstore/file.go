// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package objstore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// fileWriter writes to a temporary file and renames it into place on Close
type fileWriter struct {
	f    *os.File
	path string
}

func newFileWriter(path string) (Writer, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%s: %w", path, os.ErrExist)
	}
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return nil, err
	}
	return &fileWriter{f: f, path: path}, nil
}

func (w *fileWriter) Write(p []byte) (int, error) {
	return w.f.Write(p)
}

func (w *fileWriter) Close() error {
	tmpName := w.f.Name()
	if err := w.f.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	// Link fails if path appeared since the writer was created
	if err := os.Link(tmpName, w.path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Remove(tmpName)
}

func (w *fileWriter) Abort() {
	_ = w.f.Close()
	_ = os.Remove(w.f.Name())
}

func openFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, err
	}
	return f, nil
}
