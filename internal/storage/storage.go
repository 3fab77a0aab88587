// Package storage stores uploaded images on named local disks.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var (
	// ErrInvalidImage 表示上传内容不是受支持的图片格式。
	ErrInvalidImage = errors.New("uploaded file is not a supported image")
	// ErrImageTooLarge 表示上传内容超过大小限制。
	ErrImageTooLarge = errors.New("uploaded image exceeds the size limit")
	// ErrUnknownDisk 表示引用了未配置的磁盘。
	ErrUnknownDisk = errors.New("unknown storage disk")
	// ErrInvalidPath 表示路径试图逃逸磁盘根目录。
	ErrInvalidPath = errors.New("invalid storage path")
)

const (
	jpegQuality = 85
	// DefaultDisk is the disk used when UploadOptions.Disk is empty.
	DefaultDisk = "public"
	// 非默认磁盘上的路径以 "<disk>://" 开头。
	diskSeparator = "://"
)

var extensions = map[string]string{
	"jpeg": "jpg",
	"png":  "png",
	"gif":  "gif",
	"webp": "webp",
}

// File is an uploaded file waiting to be stored.
type File struct {
	Filename string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// FromMultipart adapts a multipart upload.
func FromMultipart(fh *multipart.FileHeader) File {
	return File{
		Filename: fh.Filename,
		Size:     fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// FromBytes wraps in-memory content, used by seeders and tests.
func FromBytes(filename string, data []byte) File {
	return File{
		Filename: filename,
		Size:     int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// UploadOptions controls where an upload lands. A non-empty CurrentPath is removed
// once the new file has been written.
type UploadOptions struct {
	Disk        string
	Folder      string
	CurrentPath string
}

// ImageManager is the image collaborator used by services.
type ImageManager interface {
	Upload(ctx context.Context, file File, opts UploadOptions) (string, error)
	Destroy(ctx context.Context, path string) error
	Exists(path string) bool
}

// Disk is a local directory exposed under a public URL prefix.
type Disk struct {
	Root string
	URL  string
}

// LocalManager stores images on local disks.
type LocalManager struct {
	disks       map[string]Disk
	defaultDisk string
	maxBytes    int64
	maxWidth    int
	now         func() time.Time
	logger      *slog.Logger
}

// Options configures a LocalManager.
type Options struct {
	DefaultDisk string
	MaxBytes    int64
	MaxWidth    int
	Logger      *slog.Logger
}

// NewLocalManager creates a manager over disks.
func NewLocalManager(disks map[string]Disk, opts Options) *LocalManager {
	defaultDisk := strings.TrimSpace(opts.DefaultDisk)
	if defaultDisk == "" {
		defaultDisk = DefaultDisk
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	copied := make(map[string]Disk, len(disks))
	for name, disk := range disks {
		copied[name] = disk
	}
	return &LocalManager{
		disks:       copied,
		defaultDisk: defaultDisk,
		maxBytes:    opts.MaxBytes,
		maxWidth:    opts.MaxWidth,
		now:         time.Now,
		logger:      logger,
	}
}

// Upload validates file as an image, downsizes it when wider than the limit and writes
// it as <folder>/<yyyymmdd>-<uuid>.<ext>. The returned path is relative to the default
// disk, or prefixed with "<disk>://" when another disk was chosen.
func (m *LocalManager) Upload(ctx context.Context, file File, opts UploadOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	diskName := strings.TrimSpace(opts.Disk)
	if diskName == "" {
		diskName = m.defaultDisk
	}
	disk, err := m.disk(diskName)
	if err != nil {
		return "", err
	}
	if file.Open == nil {
		return "", ErrInvalidImage
	}
	if m.maxBytes > 0 && file.Size > m.maxBytes {
		return "", ErrImageTooLarge
	}

	data, err := m.read(file)
	if err != nil {
		return "", err
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", ErrInvalidImage
	}
	ext, ok := extensions[format]
	if !ok {
		return "", ErrInvalidImage
	}

	if m.maxWidth > 0 && cfg.Width > m.maxWidth {
		data, err = m.downscale(data, format)
		if err != nil {
			return "", err
		}
	}

	folder := cleanFolder(opts.Folder)
	name := fmt.Sprintf("%s-%s.%s", m.now().Format("20060102"), uuid.New().String(), ext)
	relative := name
	if folder != "" {
		relative = path.Join(folder, name)
	}

	target := filepath.Join(disk.Root, filepath.FromSlash(relative))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	if diskName != m.defaultDisk {
		relative = diskName + diskSeparator + relative
	}

	if current := strings.TrimSpace(opts.CurrentPath); current != "" && current != relative {
		if err := m.Destroy(ctx, current); err != nil {
			m.logger.Warn("remove superseded image failed", "path", current, "err", err)
		}
	}

	return relative, nil
}

// Destroy removes a stored image. Empty and already-missing paths are ignored.
func (m *LocalManager) Destroy(_ context.Context, stored string) error {
	target, err := m.resolve(stored)
	if err != nil || target == "" {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Exists reports whether a stored image is present on its disk.
func (m *LocalManager) Exists(stored string) bool {
	target, err := m.resolve(stored)
	if err != nil || target == "" {
		return false
	}
	info, err := os.Stat(target)
	return err == nil && !info.IsDir()
}

// URL maps a stored path to its public URL.
func (m *LocalManager) URL(stored string) string {
	stored = strings.TrimSpace(stored)
	if stored == "" {
		return ""
	}
	name, relative := splitStored(stored)
	if name == "" {
		name = m.defaultDisk
	}
	disk := m.disks[name]
	prefix := strings.TrimRight(disk.URL, "/")
	return prefix + "/" + strings.TrimLeft(filepath.ToSlash(relative), "/")
}

func (m *LocalManager) disk(name string) (Disk, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = m.defaultDisk
	}
	disk, ok := m.disks[name]
	if !ok {
		return Disk{}, fmt.Errorf("%w: %s", ErrUnknownDisk, name)
	}
	return disk, nil
}

func (m *LocalManager) resolve(stored string) (string, error) {
	stored = strings.TrimSpace(stored)
	if stored == "" {
		return "", nil
	}
	name, relative := splitStored(stored)
	disk, err := m.disk(name)
	if err != nil {
		return "", err
	}

	cleaned := path.Clean("/" + filepath.ToSlash(relative))
	if cleaned == "/" || strings.Contains(relative, "..") {
		return "", ErrInvalidPath
	}
	return filepath.Join(disk.Root, filepath.FromSlash(strings.TrimPrefix(cleaned, "/"))), nil
}

func (m *LocalManager) read(file File) ([]byte, error) {
	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	reader := io.Reader(src)
	if m.maxBytes > 0 {
		reader = io.LimitReader(src, m.maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if m.maxBytes > 0 && int64(len(data)) > m.maxBytes {
		return nil, ErrImageTooLarge
	}
	return data, nil
}

// downscale 按最大宽度等比缩放 jpeg/png；gif 与 webp 原样保存。
func (m *LocalManager) downscale(data []byte, format string) ([]byte, error) {
	if format != "jpeg" && format != "png" {
		return data, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ErrInvalidImage
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	newH := h * m.maxWidth / w
	if newH < 1 {
		newH = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, m.maxWidth, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality})
	default:
		err = png.Encode(&buf, dst)
	}
	if err != nil {
		return nil, fmt.Errorf("encode resized image: %w", err)
	}
	return buf.Bytes(), nil
}

// splitStored 拆分 "<disk>://<path>"；默认磁盘上的文件不带前缀，返回的磁盘名为空。
func splitStored(stored string) (disk, relative string) {
	if i := strings.Index(stored, diskSeparator); i > 0 {
		return stored[:i], stored[i+len(diskSeparator):]
	}
	return "", stored
}

func cleanFolder(folder string) string {
	folder = strings.Trim(filepath.ToSlash(strings.TrimSpace(folder)), "/")
	if folder == "" || strings.Contains(folder, "..") {
		return ""
	}
	return path.Clean(folder)
}
