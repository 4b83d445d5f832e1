package infra

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps each workflow as <dir>/<name>.json.
type LocalStore struct{ dir string }

func NewLocalStore(dir string) *LocalStore { return &LocalStore{dir: dir} }

func (l *LocalStore) path(name string) string { return filepath.Join(l.dir, name+".json") }

func (l *LocalStore) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := CheckName(name); err != nil {
		return err
	}
	if err := ensureDir(l.dir); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(l.dir, ".put-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), l.path(name))
}

func (l *LocalStore) Get(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := CheckName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(l.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, notFound(name)
	}
	return data, err
}

func (l *LocalStore) List(ctx context.Context) ([]DocInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []DocInfo{}, nil
		}
		return nil, err
	}
	docs := []DocInfo{}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		docs = append(docs, DocInfo{Name: strings.TrimSuffix(e.Name(), ".json"), Size: info.Size(), UpdatedAt: info.ModTime().UTC()})
	}
	return docs, nil
}

func (l *LocalStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := CheckName(name); err != nil {
		return err
	}
	err := os.Remove(l.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return notFound(name)
	}
	return err
}

var _ Store = (*LocalStore)(nil)
