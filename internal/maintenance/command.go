// Package maintenance runs the schema and seed commands exposed on the developer panel
// and through folioctl. Only a closed set of commands is accepted.
package maintenance

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Kind 标识一条允许执行的维护命令。
type Kind int

const (
	KindMigrate Kind = iota + 1
	KindMigrateFresh
	KindMigrateFreshSeed
	KindSeed
	KindSeedClass
)

// ErrUnrecognizedCommand is returned for any input outside the allow-list.
var ErrUnrecognizedCommand = errors.New("invalid command")

var seedClassPattern = regexp.MustCompile(`^db-seed --class=([\w\\]+)$`)

// Command is a parsed, allow-listed maintenance command.
type Command struct {
	Kind  Kind
	Class string
}

// Parse 将输入与允许列表精确匹配，除首尾空白外不做任何归一化。
func Parse(input string) (Command, error) {
	code := strings.TrimSpace(input)

	switch code {
	case "migrate":
		return Command{Kind: KindMigrate}, nil
	case "migrate-fresh":
		return Command{Kind: KindMigrateFresh}, nil
	case "migrate-fresh --seed":
		return Command{Kind: KindMigrateFreshSeed}, nil
	case "db-seed":
		return Command{Kind: KindSeed}, nil
	}

	if m := seedClassPattern.FindStringSubmatch(code); m != nil {
		return Command{Kind: KindSeedClass, Class: m[1]}, nil
	}

	return Command{}, ErrUnrecognizedCommand
}

// String renders the command the way it appears in logs and the audit trail.
func (c Command) String() string {
	switch c.Kind {
	case KindMigrate:
		return "migrate"
	case KindMigrateFresh:
		return "migrate:fresh"
	case KindMigrateFreshSeed:
		return "migrate:fresh --seed"
	case KindSeed:
		return "db:seed"
	case KindSeedClass:
		return fmt.Sprintf("db:seed --class %s", c.Class)
	default:
		return "unknown"
	}
}

// Destructive reports whether the command drops existing data.
func (c Command) Destructive() bool {
	return c.Kind == KindMigrateFresh || c.Kind == KindMigrateFreshSeed
}

// AllowedCommands lists the accepted inputs, as shown on the developer panel.
func AllowedCommands() []string {
	return []string{
		"migrate",
		"migrate-fresh",
		"migrate-fresh --seed",
		"db-seed",
		"db-seed --class=YourClassName",
	}
}
