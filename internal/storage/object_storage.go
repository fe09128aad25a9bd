package storage

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/ignatzorin/orderdesk-backend/internal/domain/repository"
	"github.com/ignatzorin/orderdesk-backend/internal/pkg/apperror"
)

// ObjectStorage stores files on disk and serves them under baseURL.
// Ключ объекта строится из хеша содержимого, поэтому повторная загрузка того же файла
// не создаёт копию.
type ObjectStorage struct {
	rootPath string
	baseURL  string
}

// NewObjectStorage создаёт каталог хранилища, если его нет.
func NewObjectStorage(rootPath, baseURL string) (*ObjectStorage, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог %s: %w", rootPath, err)
	}
	return &ObjectStorage{
		rootPath: rootPath,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}, nil
}

// Root возвращает каталог, который раздаётся как статика.
func (s *ObjectStorage) Root() string {
	return s.rootPath
}

// Put сохраняет data под ключом prefix/<blake2b>/<имя файла>.
func (s *ObjectStorage) Put(ctx context.Context, prefix string, data []byte, filename, mimeType string) (repository.StoredObject, error) {
	if err := ctx.Err(); err != nil {
		return repository.StoredObject{}, err
	}

	sum := blake2b.Sum256(data)
	key := path.Join(sanitizePrefix(prefix), hex.EncodeToString(sum[:16]), sanitizeFilename(filename))
	target := filepath.Join(s.rootPath, filepath.FromSlash(key))

	if _, err := os.Stat(target); err == nil {
		return s.object(key), nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return repository.StoredObject{}, storageError("не удалось создать каталог", err)
	}

	// Пишем во временный файл и переименовываем, чтобы читатели не видели недописанный файл.
	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return repository.StoredObject{}, storageError("не удалось создать файл", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return repository.StoredObject{}, storageError("ошибка записи файла", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return repository.StoredObject{}, storageError("ошибка закрытия файла", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return repository.StoredObject{}, storageError("не удалось сохранить файл", err)
	}

	return s.object(key), nil
}

func (s *ObjectStorage) object(key string) repository.StoredObject {
	return repository.StoredObject{URL: s.baseURL + "/" + key, Key: key}
}

func storageError(msg string, err error) error {
	return apperror.Wrap(err, apperror.ErrCodeStorageError, "storage: "+msg)
}

// sanitizeFilename удаляет из имени файла компоненты пути.
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	name = strings.ReplaceAll(name, "..", "")
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == "/" {
		name = "file"
	}
	return name
}

func sanitizePrefix(prefix string) string {
	parts := strings.Split(strings.ReplaceAll(prefix, "\\", "/"), "/")
	clean := parts[:0]
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			continue
		}
		clean = append(clean, p)
	}
	if len(clean) == 0 {
		return "misc"
	}
	return strings.Join(clean, "/")
}
