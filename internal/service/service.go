package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/folio/internal/repository"
	"github.com/folio/internal/storage"
	"github.com/folio/internal/validation"
)

// ErrNotFound is wrapped by every per-resource not-found error.
var ErrNotFound = errors.New("not found")

// Upload folders on the public disk.
const (
	PostCoverFolder   = "uploads/posts/covers"
	CompanyLogoFolder = "uploads/experiences/company_logos"
)

// Flag is a boolean input that accepts checkbox values ("on", "1", "true") from forms
// and booleans or strings from JSON.
type Flag bool

// UnmarshalParam implements gin's binding.BindUnmarshaler.
func (f *Flag) UnmarshalParam(param string) error {
	*f = Flag(truthy(param))
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = Flag(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("flag: %w", err)
	}
	*f = Flag(truthy(s))
	return nil
}

func truthy(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "on", "yes":
		return true
	}
	b, _ := strconv.ParseBool(strings.TrimSpace(raw))
	return b
}

// notFound maps repository misses onto the resource sentinel.
func notFound(err, sentinel error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return sentinel
	}
	return err
}

// imageFailure 将存储层错误转换为字段级校验错误，其他错误原样返回。
func imageFailure(field string, err error) error {
	bag := validation.Errors{}
	switch {
	case errors.Is(err, storage.ErrInvalidImage):
		bag.Add(field, fmt.Sprintf("The %s field must be an image.", strings.ReplaceAll(field, "_", " ")))
	case errors.Is(err, storage.ErrImageTooLarge):
		bag.Add(field, fmt.Sprintf("The %s field is too large.", strings.ReplaceAll(field, "_", " ")))
	default:
		return err
	}
	return bag
}

func takenError(field string) error {
	bag := validation.Errors{}
	bag.Taken(field)
	return bag
}

func keep(value, prior string) string {
	if strings.TrimSpace(value) == "" {
		return prior
	}
	return strings.TrimSpace(value)
}

// discardImage 删除已不再被引用的图片。数据库已提交后清理失败只记警告，不影响结果。
func discardImage(ctx context.Context, images storage.ImageManager, stored string) error {
	if err := images.Destroy(ctx, stored); err != nil {
		slog.WarnContext(ctx, "failed to remove image", "path", stored, "err", err)
		return err
	}
	return nil
}
