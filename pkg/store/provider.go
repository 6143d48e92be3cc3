package store

import (
	"io"
	"time"

	"github.com/T3-Labs/coop-cam/pkg/config"
)

// Provider define o contrato de qualquer backend de armazenamento de
// gravações. Chaves são caminhos com barras relativos à raiz do store
// (ex.: "2026-08-23/recording_x.mp4").
type Provider interface {
	List(prefix string) ([]string, error)
	Get(key string) (*FileObject, error)
	Put(key string, body io.ReadSeeker, contentType string) error
	Delete(key string) error
}

// FileObject é a representação de um arquivo armazenado, agnóstica de backend.
type FileObject struct {
	Body          io.ReadCloser
	ContentLength int64
	ContentType   string
	LastModified  time.Time
}

// New seleciona o backend pela configuração: S3 quando habilitado, filesystem
// local caso contrário.
func New(cfg *config.Config) (Provider, error) {
	if cfg.S3.Enabled {
		return NewS3Provider(cfg.S3)
	}
	root := cfg.Recording.OutputDir
	if root == "" {
		root = "./recordings"
	}
	return NewLocalProvider(root)
}
