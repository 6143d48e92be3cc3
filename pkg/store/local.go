package store

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/T3-Labs/coop-cam/pkg/metrics"
)

// LocalProvider guarda gravações sob um diretório raiz no filesystem local.
type LocalProvider struct {
	Root string
}

func NewLocalProvider(root string) (*LocalProvider, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, err
	}
	return &LocalProvider{Root: root}, nil
}

func (l *LocalProvider) List(prefix string) ([]string, error) {
	var keys []string

	err := filepath.Walk(l.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}

		// Converte o caminho do SO de volta para chave com barras
		rel, _ := filepath.Rel(l.Root, path)
		key := filepath.ToSlash(rel)

		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		metrics.StorageOperations.WithLabelValues("list", "error").Inc()
		return nil, err
	}

	metrics.StorageOperations.WithLabelValues("list", "success").Inc()
	return keys, nil
}

func (l *LocalProvider) Get(key string) (*FileObject, error) {
	f, err := os.Open(filepath.Join(l.Root, filepath.FromSlash(key)))
	if err != nil {
		return nil, err
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	return &FileObject{
		Body:          f,
		ContentLength: stat.Size(),
		ContentType:   "application/octet-stream",
		LastModified:  stat.ModTime(),
	}, nil
}

func (l *LocalProvider) Put(key string, body io.ReadSeeker, contentType string) error {
	path := filepath.Join(l.Root, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		metrics.StorageOperations.WithLabelValues("put", "error").Inc()
		return err
	}
	defer f.Close()

	if _, err := io.Copy(f, body); err != nil {
		metrics.StorageOperations.WithLabelValues("put", "error").Inc()
		return err
	}

	metrics.StorageOperations.WithLabelValues("put", "success").Inc()
	return nil
}

func (l *LocalProvider) Delete(key string) error {
	err := os.Remove(filepath.Join(l.Root, filepath.FromSlash(key)))
	if err != nil && !os.IsNotExist(err) {
		metrics.StorageOperations.WithLabelValues("delete", "error").Inc()
		return err
	}

	metrics.StorageOperations.WithLabelValues("delete", "success").Inc()
	return nil
}
