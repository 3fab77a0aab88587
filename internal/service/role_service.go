package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/folio/internal/activity"
	"github.com/folio/internal/db"
	"github.com/folio/internal/repository"
	"github.com/folio/internal/validation"
)

var (
	// ErrRoleNotFound 表示角色不存在。
	ErrRoleNotFound = fmt.Errorf("role %w", ErrNotFound)
	// ErrRoleProtected 表示内置角色不可删除。
	ErrRoleProtected = errors.New("the master role cannot be deleted")
)

// RoleService wraps role and permission operations.
type RoleService struct {
	db        *gorm.DB
	roles     repository.Repository[db.Role]
	validator *validation.Validator
}

// RoleFilter describes filters for listing roles.
type RoleFilter struct {
	Search  string
	Page    int
	PerPage int
}

// RoleInput represents fields accepted when creating or updating a role.
type RoleInput struct {
	Name        string   `form:"name" json:"name" validate:"required,max=100"`
	Permissions []string `form:"permissions" json:"permissions"`
}

// NewRoleService creates a RoleService instance.
func NewRoleService(gdb *gorm.DB) *RoleService {
	return &RoleService{
		db:        gdb,
		roles:     repository.New[db.Role](gdb),
		validator: validation.New(),
	}
}

// List returns paginated roles with their permissions.
func (s *RoleService) List(ctx context.Context, filter RoleFilter) (repository.Page[db.Role], error) {
	return s.roles.Paginate(ctx, repository.Query{
		Search:        filter.Search,
		SearchColumns: []string{"name"},
		OrderBy:       []string{"name asc"},
		Preload:       []string{"Permissions"},
		Page:          filter.Page,
		PerPage:       filter.PerPage,
	})
}

// Get fetches a role with permissions.
func (s *RoleService) Get(ctx context.Context, id uint) (*db.Role, error) {
	role, err := s.roles.Find(ctx, id, "Permissions")
	if err != nil {
		return nil, notFound(err, ErrRoleNotFound)
	}
	return role, nil
}

// Permissions returns every known permission ordered by name.
func (s *RoleService) Permissions(ctx context.Context) ([]db.Permission, error) {
	var permissions []db.Permission
	if err := s.db.WithContext(ctx).Order("name asc").Find(&permissions).Error; err != nil {
		return nil, err
	}
	return permissions, nil
}

// Create inserts a role and grants the named permissions.
func (s *RoleService) Create(ctx context.Context, actor activity.Actor, input RoleInput) (*db.Role, activity.Entry, error) {
	input = input.normalized()
	permissions, err := s.validate(ctx, input, 0)
	if err != nil {
		return nil, activity.Entry{}, err
	}

	role := db.Role{Name: input.Name}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.New[db.Role](tx).Create(ctx, &role); err != nil {
			return err
		}
		return tx.Model(&role).Association("Permissions").Replace(permissions)
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, activity.Entry{}, takenError("name")
		}
		return nil, activity.Entry{}, err
	}
	role.Permissions = permissions

	entry := activity.NewEntry(activity.ChannelRoles, actor, activity.EventCreated,
		fmt.Sprintf("Created role: %s", role.Name)).On("role", role.ID).With("permissions", input.Permissions)
	return &role, entry, nil
}

// Update renames a role and replaces its permissions. A nil permission list keeps the
// current grants.
func (s *RoleService) Update(ctx context.Context, actor activity.Actor, id uint, input RoleInput) (*db.Role, activity.Entry, error) {
	role, err := s.roles.Find(ctx, id, "Permissions")
	if err != nil {
		return nil, activity.Entry{}, notFound(err, ErrRoleNotFound)
	}

	input = input.normalized()
	input.Name = keep(input.Name, role.Name)
	replace := input.Permissions != nil
	permissions, err := s.validate(ctx, input, role.ID)
	if err != nil {
		return nil, activity.Entry{}, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.New[db.Role](tx).Update(ctx, role, map[string]interface{}{"name": input.Name}); err != nil {
			return err
		}
		if !replace {
			return nil
		}
		return tx.Model(role).Association("Permissions").Replace(permissions)
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, activity.Entry{}, takenError("name")
		}
		return nil, activity.Entry{}, err
	}
	if replace {
		role.Permissions = permissions
	}

	entry := activity.NewEntry(activity.ChannelRoles, actor, activity.EventUpdated,
		fmt.Sprintf("Updated role: %s", role.Name)).On("role", role.ID)
	return role, entry, nil
}

// Delete removes a role and its grants. The master role is protected.
func (s *RoleService) Delete(ctx context.Context, actor activity.Actor, id uint) (*db.Role, activity.Entry, error) {
	role, err := s.roles.Find(ctx, id)
	if err != nil {
		return nil, activity.Entry{}, notFound(err, ErrRoleNotFound)
	}
	if role.Name == db.MasterRole {
		return nil, activity.Entry{}, ErrRoleProtected
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(role).Association("Permissions").Clear(); err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM user_roles WHERE role_id = ?", role.ID).Error; err != nil {
			return err
		}
		return repository.New[db.Role](tx).Delete(ctx, role)
	})
	if err != nil {
		return nil, activity.Entry{}, notFound(err, ErrRoleNotFound)
	}

	entry := activity.NewEntry(activity.ChannelRoles, actor, activity.EventDeleted,
		fmt.Sprintf("Deleted role: %s", role.Name)).On("role", role.ID)
	return role, entry, nil
}

func (s *RoleService) validate(ctx context.Context, input RoleInput, exceptID uint) ([]db.Permission, error) {
	bag := s.validator.Collect(input)

	if input.Name != "" && !bag.Has("name") {
		query := s.db.WithContext(ctx).Model(&db.Role{}).Where("name = ?", input.Name)
		if exceptID > 0 {
			query = query.Where("id <> ?", exceptID)
		}
		var count int64
		if err := query.Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			bag.Taken("name")
		}
	}

	permissions := []db.Permission{}
	if len(input.Permissions) > 0 {
		if err := s.db.WithContext(ctx).Where("name IN ?", input.Permissions).Order("name asc").Find(&permissions).Error; err != nil {
			return nil, err
		}
		if len(permissions) != len(input.Permissions) {
			bag.Invalid("permissions")
		}
	}
	return permissions, bag.Err()
}

func (in RoleInput) normalized() RoleInput {
	in.Name = strings.TrimSpace(in.Name)
	if in.Permissions == nil {
		return in
	}
	seen := make(map[string]struct{}, len(in.Permissions))
	names := make([]string, 0, len(in.Permissions))
	for _, name := range in.Permissions {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	in.Permissions = names
	return in
}
