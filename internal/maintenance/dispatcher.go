package maintenance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/folio/internal/activity"
)

// Panel 是开发者面板展示的内容。
type Panel struct {
	Commands []string `json:"commands"`
	Seeders  []string `json:"seeders"`
}

// Dispatcher validates input against the allow-list, runs it and audits the result.
type Dispatcher struct {
	runner   Runner
	recorder activity.Recorder
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher. A nil logger falls back to slog.Default.
func NewDispatcher(runner Runner, recorder activity.Recorder, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{runner: runner, recorder: recorder, logger: logger}
}

// Execute 解析并执行一条命令。
// 不在允许列表中的输入返回 ErrUnrecognizedCommand，既不执行也不写审计日志。
func (d *Dispatcher) Execute(ctx context.Context, actor activity.Actor, input string) (Command, error) {
	d.logger.InfoContext(ctx, "Received command", "code", input, "causer", actor.Name)

	cmd, err := Parse(input)
	if err != nil {
		d.logger.ErrorContext(ctx, "Invalid command received", "code", input, "causer", actor.Name)
		return Command{}, err
	}

	d.logger.InfoContext(ctx, "Executing command: "+cmd.String())
	if err := d.run(ctx, cmd); err != nil {
		d.logger.ErrorContext(ctx, "Command failed", "command", cmd.String(), "err", err)
		return cmd, err
	}

	entry := activity.NewEntry(activity.ChannelDeveloperPanel, actor, activity.EventExecuted, "Executed command: "+cmd.String()).
		With("command", cmd.String())
	if cmd.Class != "" {
		entry = entry.With("class", cmd.Class)
	}
	if d.recorder != nil {
		if err := d.recorder.Record(ctx, entry); err != nil {
			return cmd, fmt.Errorf("record activity: %w", err)
		}
	}
	return cmd, nil
}

func (d *Dispatcher) run(ctx context.Context, cmd Command) error {
	switch cmd.Kind {
	case KindMigrate:
		return d.runner.Migrate(ctx)
	case KindMigrateFresh:
		return d.runner.Fresh(ctx)
	case KindMigrateFreshSeed:
		if err := d.runner.Fresh(ctx); err != nil {
			return err
		}
		return d.runner.Seed(ctx, "")
	case KindSeed:
		return d.runner.Seed(ctx, "")
	case KindSeedClass:
		return d.runner.Seed(ctx, cmd.Class)
	default:
		return ErrUnrecognizedCommand
	}
}

// Panel lists the accepted commands and seeders and records the visit.
func (d *Dispatcher) Panel(ctx context.Context, actor activity.Actor) (Panel, error) {
	panel := Panel{Commands: AllowedCommands()}
	if lister, ok := d.runner.(interface{ SeederNames() []string }); ok {
		panel.Seeders = lister.SeederNames()
	}

	d.logger.InfoContext(ctx, "Accessed developer panel.", "causer", actor.Name)
	if d.recorder != nil {
		entry := activity.NewEntry(activity.ChannelDeveloperPanel, actor, activity.EventAccessed, "Accessed developer panel.")
		if err := d.recorder.Record(ctx, entry); err != nil {
			return panel, fmt.Errorf("record activity: %w", err)
		}
	}
	return panel, nil
}
