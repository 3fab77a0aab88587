package db

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// User 定义了后台用户模型
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"size:100;unique;not null" json:"username"`
	Password  string    `gorm:"not null" json:"-"`
	Roles     []Role    `gorm:"many2many:user_roles;" json:"roles,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName 返回审计日志中使用的名字。
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	return u.Username
}

// EnsureUser 存在性检查：若提供的用户名与密码均非空且不存在对应账号，则创建一个 bcrypt 哈希的用户。
// roleNames 中存在的角色会被赋予新建的用户。
func EnsureUser(gdb *gorm.DB, username, password string, roleNames ...string) (*User, error) {
	trimmedUser := strings.TrimSpace(username)
	trimmedPassword := strings.TrimSpace(password)
	if trimmedUser == "" || trimmedPassword == "" {
		return nil, nil
	}

	if gdb == nil {
		return nil, errors.New("database not initialized")
	}

	var existing User
	err := gdb.Where("username = ?", trimmedUser).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(trimmedPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := User{Username: trimmedUser, Password: string(hashed)}
	if err := gdb.Create(&user).Error; err != nil {
		return nil, err
	}

	if len(roleNames) > 0 {
		var roles []Role
		if err := gdb.Where("name IN ?", roleNames).Find(&roles).Error; err != nil {
			return nil, err
		}
		if len(roles) > 0 {
			if err := gdb.Model(&user).Association("Roles").Append(roles); err != nil {
				return nil, err
			}
		}
	}

	return &user, nil
}
